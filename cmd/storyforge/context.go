package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"storyforge/internal/config"
	"storyforge/internal/logging"
	"storyforge/internal/projectstore"
	"storyforge/internal/services"
	"storyforge/internal/studio"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolvedPath, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolvedPath
	})
	return c.config, c.configErr
}

func (c *commandContext) statePath(cfg *config.Config) string {
	if cfg.Paths.StateDir != "" {
		return filepath.Join(cfg.Paths.StateDir, "storyforge.db")
	}
	path, err := projectstore.DefaultKVPath()
	if err != nil {
		return filepath.Join(os.TempDir(), "storyforge.db")
	}
	return path
}

// withStudio runs fn against a fully wired studio. Every invocation gets a
// signal-aware context and a fresh correlation identifier; failures are
// rendered through the user-facing message mapping.
func (c *commandContext) withStudio(cmd *cobra.Command, fn func(context.Context, *studio.Studio) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}

	logger, err := logging.NewForDir(cfg.Logging.Level, cfg.Logging.Format, cfg.Paths.LogDir)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = services.WithRequestID(runCtx, uuid.NewString())
	logger = logging.WithContext(runCtx, logger)

	kv, err := projectstore.OpenKV(c.statePath(cfg))
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer kv.Close()

	st, err := studio.New(runCtx, cfg, kv, studio.WithLogger(logger))
	if err != nil {
		return errors.New(studio.UserMessage(err))
	}
	defer st.Close()

	if err := fn(runCtx, st); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return errors.New(studio.UserMessage(err))
	}
	return nil
}

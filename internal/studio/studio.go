// Package studio coordinates the generation pipeline, the project store,
// and the archive behind the CLI. It owns the active story workspace and
// translates service failures into messages a user can act on.
package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"storyforge/internal/archive"
	"storyforge/internal/config"
	"storyforge/internal/logging"
	"storyforge/internal/pipeline"
	"storyforge/internal/projectstore"
	"storyforge/internal/retry"
	"storyforge/internal/services/gemini"
	"storyforge/internal/services/slideshow"
	"storyforge/internal/story"
)

// ErrNoCredential indicates that no API key has been configured yet.
var ErrNoCredential = errors.New("no api key configured")

// ErrNoRenderCredential indicates the slideshow service key is missing.
var ErrNoRenderCredential = errors.New("no render api key configured")

// ErrNoActiveStory indicates an operation needs a loaded or generated story.
var ErrNoActiveStory = errors.New("no active story")

// Studio is the long-lived application object behind the CLI commands.
// One Studio serves one process; its methods are safe for the sequential
// use a CLI makes of them.
type Studio struct {
	cfg    *config.Config
	kv     *projectstore.KV
	logger *slog.Logger
	now    func() time.Time

	sessionOpts []pipeline.SessionOption

	mu        sync.Mutex
	handle    projectstore.Handle
	archive   *archive.Archive
	session   *pipeline.Session
	current   *story.Story
	currentID string
	createdAt time.Time
}

// Option customizes Studio construction.
type Option func(*Studio)

// WithLogger attaches a logger; a no-op logger is used otherwise.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Studio) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(s *Studio) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSessionOptions forwards options to sessions the studio opens.
func WithSessionOptions(opts ...pipeline.SessionOption) Option {
	return func(s *Studio) {
		s.sessionOpts = append(s.sessionOpts, opts...)
	}
}

// New wires a studio over the state database. A project directory remembered
// from an earlier run is revalidated; a stale one is forgotten so the archive
// falls back to the state database until a directory is chosen again.
func New(ctx context.Context, cfg *config.Config, kv *projectstore.KV, opts ...Option) (*Studio, error) {
	s := &Studio{
		cfg:    cfg,
		kv:     kv,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	handle, err := projectstore.AcquireHandle(ctx, kv, false, nil)
	if err != nil {
		return nil, err
	}
	if handle.IsZero() && cfg.Paths.ProjectDir != "" {
		if err := s.adoptProjectDir(ctx, cfg.Paths.ProjectDir, false); err != nil {
			return nil, err
		}
	} else {
		s.handle = handle
	}
	s.rebuildArchive()
	return s, nil
}

// Close releases the active session. The state database is owned by the
// caller and stays open.
func (s *Studio) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeSessionLocked()
	if s.current != nil {
		s.current.Release()
		s.current = nil
	}
}

func (s *Studio) closeSessionLocked() {
	if s.session != nil {
		s.session.Close()
		s.session = nil
	}
}

func (s *Studio) rebuildArchive() {
	var store *projectstore.Store
	if !s.handle.IsZero() {
		store = projectstore.NewStore(s.handle, s.logger)
	}
	s.archive = archive.New(store, s.kv)
}

// Credential returns the generation API key: the config value wins, then
// the key remembered in the state database.
func (s *Studio) Credential(ctx context.Context) (string, error) {
	if s.cfg.Gemini.APIKey != "" {
		return s.cfg.Gemini.APIKey, nil
	}
	value, ok, err := s.kv.Get(ctx, projectstore.KeyAPIKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return string(value), nil
}

// SetCredential verifies the key against the live service and remembers it.
// A rejected key is never persisted.
func (s *Studio) SetCredential(ctx context.Context, key string) error {
	if err := gemini.ValidateKey(ctx, s.geminiConfig(key)); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, projectstore.KeyAPIKey, []byte(key)); err != nil {
		return err
	}
	s.mu.Lock()
	s.closeSessionLocked()
	s.mu.Unlock()
	return nil
}

// ClearCredential forgets the remembered key and closes the session.
func (s *Studio) ClearCredential(ctx context.Context) error {
	if err := s.kv.Delete(ctx, projectstore.KeyAPIKey); err != nil {
		return err
	}
	s.mu.Lock()
	s.closeSessionLocked()
	s.mu.Unlock()
	return nil
}

// ValidateCredential checks the configured key against the live service.
func (s *Studio) ValidateCredential(ctx context.Context) error {
	key, err := s.Credential(ctx)
	if err != nil {
		return err
	}
	if key == "" {
		return ErrNoCredential
	}
	return gemini.ValidateKey(ctx, s.geminiConfig(key))
}

func (s *Studio) geminiConfig(key string) gemini.Config {
	return gemini.Config{
		APIKey:         key,
		BaseURL:        s.cfg.Gemini.BaseURL,
		TextModel:      s.cfg.Gemini.TextModel,
		ImageModel:     s.cfg.Gemini.ImageModel,
		SpeechModel:    s.cfg.Gemini.SpeechModel,
		VideoModel:     s.cfg.Gemini.VideoModel,
		TimeoutSeconds: s.cfg.Gemini.TimeoutSeconds,
	}
}

// Session returns the active generation session, opening one on first use.
func (s *Studio) Session(ctx context.Context) (*pipeline.Session, error) {
	s.mu.Lock()
	if s.session != nil {
		defer s.mu.Unlock()
		return s.session, nil
	}
	s.mu.Unlock()

	key, err := s.Credential(ctx)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrNoCredential
	}

	cfg := pipeline.SessionConfig{
		Gemini:              s.geminiConfig(key),
		EpisodeCount:        s.cfg.Pipeline.EpisodeCount,
		PacingDelay:         time.Duration(s.cfg.Pipeline.PacingDelayMS) * time.Millisecond,
		ScenePromptCount:    s.cfg.Pipeline.ScenePromptCount,
		SecondsPerScene:     s.cfg.Pipeline.SecondsPerScene,
		VideoPollInterval:   time.Duration(s.cfg.Pipeline.VideoPollIntervalS) * time.Second,
		VideoPollAttempts:   s.cfg.Pipeline.VideoPollAttempts,
		RateWindow:          time.Duration(s.cfg.Pipeline.RateWindowSeconds) * time.Second,
		RateBudgetPerMinute: s.cfg.Pipeline.RateBudgetPerMin,
		RetryPolicy: retry.Policy{
			MaxAttempts:  s.cfg.Pipeline.RetryMaxAttempts,
			InitialDelay: time.Duration(s.cfg.Pipeline.RetryInitialDelayS) * time.Second,
		},
	}
	opts := append([]pipeline.SessionOption{pipeline.WithLogger(s.logger)}, s.sessionOpts...)
	session, err := pipeline.NewSession(cfg, opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil {
		session.Close()
		return s.session, nil
	}
	s.session = session
	return s.session, nil
}

// ChooseProjectDir selects the directory stories are archived into. The
// directory is created if needed, probed for writability, and remembered.
func (s *Studio) ChooseProjectDir(ctx context.Context, path string) error {
	return s.adoptProjectDir(ctx, path, true)
}

func (s *Studio) adoptProjectDir(ctx context.Context, path string, remember bool) error {
	handle, err := projectstore.NewHandle(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(handle.Path(), 0o755); err != nil {
		return fmt.Errorf("create project directory: %w", err)
	}
	if err := handle.Validate(ctx); err != nil {
		return err
	}
	if remember {
		if err := s.kv.Set(ctx, projectstore.KeyProjectDir, []byte(handle.Path())); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = handle
	s.rebuildArchive()
	return nil
}

// ForgetProjectDir drops the remembered directory; the archive falls back
// to the state database. Stories already on disk are left in place.
func (s *Studio) ForgetProjectDir(ctx context.Context) error {
	if err := s.kv.Delete(ctx, projectstore.KeyProjectDir); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handle = projectstore.Handle{}
	s.rebuildArchive()
	return nil
}

// ProjectDir returns the active project directory, or "" in fallback mode.
func (s *Studio) ProjectDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle.Path()
}

// RenderCredential returns the slideshow service key: config first, then
// the state database.
func (s *Studio) RenderCredential(ctx context.Context) (string, error) {
	if s.cfg.Slideshow.APIKey != "" {
		return s.cfg.Slideshow.APIKey, nil
	}
	value, ok, err := s.kv.Get(ctx, projectstore.KeyRenderKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return string(value), nil
}

// SetRenderCredential remembers the slideshow service key.
func (s *Studio) SetRenderCredential(ctx context.Context, key string) error {
	return s.kv.Set(ctx, projectstore.KeyRenderKey, []byte(key))
}

// SlideshowClient builds a rendering client from configuration.
func (s *Studio) SlideshowClient(ctx context.Context) (*slideshow.Client, error) {
	key, err := s.RenderCredential(ctx)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, ErrNoRenderCredential
	}
	opts := []slideshow.Option{slideshow.WithPollAttempts(s.cfg.Slideshow.PollAttempts)}
	if s.cfg.Slideshow.BaseURL != "" {
		opts = append(opts, slideshow.WithBaseURL(s.cfg.Slideshow.BaseURL))
	}
	return slideshow.NewClient(key, opts...), nil
}

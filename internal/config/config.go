// Package config loads and validates the storyforge configuration file.
// Settings come from a TOML file with environment overlays for credentials;
// a missing file yields the documented defaults.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ProjectDir string `toml:"project_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
}

// Gemini contains generation provider settings.
type Gemini struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TextModel      string `toml:"text_model"`
	ImageModel     string `toml:"image_model"`
	SpeechModel    string `toml:"speech_model"`
	VideoModel     string `toml:"video_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Slideshow contains rendering service settings.
type Slideshow struct {
	APIKey           string `toml:"api_key"`
	BaseURL          string `toml:"base_url"`
	PollAttempts     int    `toml:"poll_attempts"`
	SlideDurationSec int    `toml:"slide_duration_sec"`
	TransitionStyle  string `toml:"transition_style"`
	AnimationStyle   string `toml:"animation_style"`
}

// Pipeline contains generation pacing and retry settings.
type Pipeline struct {
	EpisodeCount       int `toml:"episode_count"`
	PacingDelayMS      int `toml:"pacing_delay_ms"`
	RetryMaxAttempts   int `toml:"retry_max_attempts"`
	RetryInitialDelayS int `toml:"retry_initial_delay_seconds"`
	ScenePromptCount   int `toml:"scene_prompt_count"`
	SecondsPerScene    int `toml:"seconds_per_scene"`
	VideoPollIntervalS int `toml:"video_poll_interval_seconds"`
	VideoPollAttempts  int `toml:"video_poll_attempts"`
	RateWindowSeconds  int `toml:"rate_window_seconds"`
	RateBudgetPerMin   int `toml:"rate_budget_per_minute"`
}

// Voice contains narration defaults.
type Voice struct {
	Mode             string `toml:"mode"`
	Voice1           string `toml:"voice1"`
	Voice2           string `toml:"voice2"`
	StyleInstruction string `toml:"style_instruction"`
}

// Logging contains log output settings.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config is the root configuration document.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Gemini    Gemini    `toml:"gemini"`
	Slideshow Slideshow `toml:"slideshow"`
	Pipeline  Pipeline  `toml:"pipeline"`
	Voice     Voice     `toml:"voice"`
	Logging   Logging   `toml:"logging"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: "~/.local/state/storyforge",
			LogDir:   "~/.local/state/storyforge/logs",
		},
		Gemini: Gemini{
			TimeoutSeconds: 120,
		},
		Slideshow: Slideshow{
			PollAttempts:     40,
			SlideDurationSec: 5,
			TransitionStyle:  "fade",
			AnimationStyle:   "ken_burns",
		},
		Pipeline: Pipeline{
			EpisodeCount:       5,
			PacingDelayMS:      1500,
			RetryMaxAttempts:   3,
			RetryInitialDelayS: 2,
			ScenePromptCount:   6,
			SecondsPerScene:    8,
			VideoPollIntervalS: 10,
			VideoPollAttempts:  60,
			RateWindowSeconds:  60,
			RateBudgetPerMin:   10,
		},
		Voice: Voice{
			Mode:   "single",
			Voice1: "Kore",
			Voice2: "Puck",
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "storyforge", "config.toml"), nil
}

// Load reads configuration from path (or the default location when path is
// empty), applies the .env overlay, normalizes paths, and validates. The
// returned bool reports whether a file was found.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverlay()
	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

// applyEnvOverlay lets credentials come from the environment or a local
// .env file instead of being written into the config file. Environment
// values win over file values.
func (c *Config) applyEnvOverlay() {
	// Missing .env is the normal case.
	_ = godotenv.Load()
	if key := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); key != "" {
		c.Gemini.APIKey = key
	}
	if key := strings.TrimSpace(os.Getenv("JSON2VIDEO_API_KEY")); key != "" {
		c.Slideshow.APIKey = key
	}
}

func (c *Config) normalize() error {
	for _, entry := range []struct {
		name  string
		value *string
	}{
		{"paths.project_dir", &c.Paths.ProjectDir},
		{"paths.state_dir", &c.Paths.StateDir},
		{"paths.log_dir", &c.Paths.LogDir},
	} {
		if *entry.value == "" {
			continue
		}
		expanded, err := ExpandPath(*entry.value)
		if err != nil {
			return fmt.Errorf("expand %s: %w", entry.name, err)
		}
		*entry.value = expanded
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Voice.Mode = strings.ToLower(strings.TrimSpace(c.Voice.Mode))
	return nil
}

// Validate rejects configurations that cannot work.
func (c *Config) Validate() error {
	var problems []string
	if c.Pipeline.EpisodeCount <= 0 {
		problems = append(problems, "pipeline.episode_count must be positive")
	}
	if c.Pipeline.RetryMaxAttempts <= 0 {
		problems = append(problems, "pipeline.retry_max_attempts must be positive")
	}
	if c.Pipeline.SecondsPerScene <= 0 {
		problems = append(problems, "pipeline.seconds_per_scene must be positive")
	}
	if c.Pipeline.RateBudgetPerMin <= 0 {
		problems = append(problems, "pipeline.rate_budget_per_minute must be positive")
	}
	switch c.Voice.Mode {
	case "single", "multi":
	default:
		problems = append(problems, fmt.Sprintf("voice.mode %q must be single or multi", c.Voice.Mode))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be console or json", c.Logging.Format))
	}
	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// CreateSample writes the annotated sample configuration to path.
func CreateSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			return "", false, err
		}
		path = defaultPath
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(expanded); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, err
	}
	return expanded, true, nil
}

// ExpandPath resolves a leading tilde and makes the path absolute.
func ExpandPath(pathValue string) (string, error) {
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		pathValue = filepath.Join(home, strings.TrimPrefix(pathValue, "~"))
	}
	return filepath.Abs(pathValue)
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("JSON2VIDEO_API_KEY", "")

	cfg, path, exists, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if path == "" {
		t.Fatal("expected resolved path even when file is missing")
	}
	if cfg.Pipeline.EpisodeCount != 5 {
		t.Fatalf("episode count = %d, want 5", cfg.Pipeline.EpisodeCount)
	}
	if cfg.Pipeline.RetryMaxAttempts != 3 {
		t.Fatalf("retry attempts = %d, want 3", cfg.Pipeline.RetryMaxAttempts)
	}
	if cfg.Slideshow.PollAttempts != 40 {
		t.Fatalf("poll attempts = %d, want 40", cfg.Slideshow.PollAttempts)
	}
	if cfg.Voice.Mode != "single" {
		t.Fatalf("voice mode = %q, want single", cfg.Voice.Mode)
	}
}

func TestLoadReadsFileAndExpandsPaths(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("JSON2VIDEO_API_KEY", "")

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := `
[paths]
project_dir = "~/stories"

[pipeline]
episode_count = 3
pacing_delay_ms = 500

[voice]
mode = "Multi"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, exists, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected exists=true")
	}
	if cfg.Pipeline.EpisodeCount != 3 {
		t.Fatalf("episode count = %d, want 3", cfg.Pipeline.EpisodeCount)
	}
	if cfg.Pipeline.PacingDelayMS != 500 {
		t.Fatalf("pacing = %d, want 500", cfg.Pipeline.PacingDelayMS)
	}
	if cfg.Voice.Mode != "multi" {
		t.Fatalf("voice mode = %q, want normalized multi", cfg.Voice.Mode)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Paths.ProjectDir != filepath.Join(home, "stories") {
		t.Fatalf("project dir = %q, want tilde expansion", cfg.Paths.ProjectDir)
	}
	// Unset sections keep their defaults.
	if cfg.Pipeline.RetryMaxAttempts != 3 {
		t.Fatalf("retry attempts = %d, want default 3", cfg.Pipeline.RetryMaxAttempts)
	}
}

func TestEnvironmentOverridesFileCredentials(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := `
[gemini]
api_key = "from-file"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("JSON2VIDEO_API_KEY", "render-env")

	cfg, _, _, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gemini.APIKey != "from-env" {
		t.Fatalf("gemini key = %q, want environment value", cfg.Gemini.APIKey)
	}
	if cfg.Slideshow.APIKey != "render-env" {
		t.Fatalf("slideshow key = %q, want environment value", cfg.Slideshow.APIKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.EpisodeCount = 0
	cfg.Voice.Mode = "choir"
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"episode_count", "voice.mode", "logging.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q missing %q", err, want)
		}
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[paths\nbroken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := Load(configPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestCreateSampleRoundTripsThroughLoad(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("JSON2VIDEO_API_KEY", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[pipeline]") {
		t.Fatal("sample config missing pipeline section")
	}
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("sample config invalid: %v", err)
	}
}

package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"storyforge/internal/logging"
	"storyforge/internal/progress"
	"storyforge/internal/ratelimit"
	"storyforge/internal/retry"
	"storyforge/internal/services/gemini"
)

const (
	// DefaultEpisodeCount is fixed by the outline format: twenty chapters
	// split into five episodes of four chapters each.
	DefaultEpisodeCount = 5
	// DefaultPacingDelay separates consecutive episode generations.
	DefaultPacingDelay = 1500 * time.Millisecond
	// DefaultScenePromptCount is the number of key visual moments extracted
	// per episode.
	DefaultScenePromptCount = 6
	// DefaultSecondsPerScene sizes storyboard scenes for short video clips.
	DefaultSecondsPerScene = 8
	// DefaultVideoPollInterval and DefaultVideoPollAttempts bound the video
	// operation wait at ten minutes.
	DefaultVideoPollInterval = 10 * time.Second
	DefaultVideoPollAttempts = 60
	// DefaultRateBudgetPerMinute is the request budget usage is displayed
	// against; the tracker never enforces it.
	DefaultRateBudgetPerMinute = 10
)

// SessionConfig carries everything a Session needs at construction.
type SessionConfig struct {
	Gemini            gemini.Config
	EpisodeCount      int
	PacingDelay       time.Duration
	ScenePromptCount  int
	SecondsPerScene   int
	VideoPollInterval time.Duration
	VideoPollAttempts int
	RetryPolicy       retry.Policy
	// RateWindow sizes the rolling request-count window; RateBudgetPerMinute
	// is what usage is reported against.
	RateWindow          time.Duration
	RateBudgetPerMinute int
}

func (cfg *SessionConfig) applyDefaults() {
	if cfg.EpisodeCount <= 0 {
		cfg.EpisodeCount = DefaultEpisodeCount
	}
	if cfg.PacingDelay <= 0 {
		cfg.PacingDelay = DefaultPacingDelay
	}
	if cfg.ScenePromptCount <= 0 {
		cfg.ScenePromptCount = DefaultScenePromptCount
	}
	if cfg.SecondsPerScene <= 0 {
		cfg.SecondsPerScene = DefaultSecondsPerScene
	}
	if cfg.VideoPollInterval <= 0 {
		cfg.VideoPollInterval = DefaultVideoPollInterval
	}
	if cfg.VideoPollAttempts <= 0 {
		cfg.VideoPollAttempts = DefaultVideoPollAttempts
	}
	if cfg.RetryPolicy.MaxAttempts <= 0 {
		cfg.RetryPolicy.MaxAttempts = retry.DefaultMaxAttempts
	}
	if cfg.RetryPolicy.InitialDelay <= 0 {
		cfg.RetryPolicy.InitialDelay = retry.DefaultInitialDelay
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = ratelimit.DefaultWindow
	}
	if cfg.RateBudgetPerMinute <= 0 {
		cfg.RateBudgetPerMinute = DefaultRateBudgetPerMinute
	}
}

// Session is one credentialed generation context. Construct it when a
// credential is set and Close it when the credential is cleared; nothing in
// this package outlives a Session.
type Session struct {
	cfg      SessionConfig
	text     *gemini.TextClient
	images   *gemini.ImageClient
	speech   *gemini.SpeechClient
	video    *gemini.VideoClient
	tracker  *ratelimit.Tracker
	reporter *progress.Reporter
	exec     *retry.Executor
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
	seed     func() int64

	ownsTracker bool
	geminiOpts  []gemini.Option
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithLogger attaches a logger; a no-op logger is used otherwise.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReporter substitutes the progress reporter.
func WithReporter(reporter *progress.Reporter) SessionOption {
	return func(s *Session) {
		if reporter != nil {
			s.reporter = reporter
		}
	}
}

// WithTracker substitutes the rate tracker. The session stops a tracker it
// created itself but never one injected here.
func WithTracker(tracker *ratelimit.Tracker) SessionOption {
	return func(s *Session) {
		if tracker != nil {
			s.tracker = tracker
			s.ownsTracker = false
		}
	}
}

// WithSleeper overrides pacing and poll waits (used in tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) SessionOption {
	return func(s *Session) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// WithSeedSource overrides the base-seed generator (used in tests).
func WithSeedSource(seed func() int64) SessionOption {
	return func(s *Session) {
		if seed != nil {
			s.seed = seed
		}
	}
}

// WithGeminiOptions forwards options to the underlying HTTP client.
func WithGeminiOptions(opts ...gemini.Option) SessionOption {
	return func(s *Session) {
		s.geminiOpts = append(s.geminiOpts, opts...)
	}
}

// NewSession validates the credential presence and wires the generation
// stack. The API key itself is verified separately via gemini.ValidateKey.
func NewSession(cfg SessionConfig, opts ...SessionOption) (*Session, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, errors.New("pipeline: api key required to open a session")
	}
	cfg.applyDefaults()

	s := &Session{
		cfg:         cfg,
		reporter:    progress.NewReporter(),
		logger:      logging.NewNop(),
		sleep:       sleepContext,
		seed:        func() int64 { return rand.Int63n(1 << 31) },
		ownsTracker: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracker == nil {
		s.tracker = ratelimit.NewTracker(ratelimit.DefaultSweepInterval, ratelimit.WithWindow(cfg.RateWindow))
		s.ownsTracker = true
	}

	client := gemini.NewClient(cfg.Gemini, s.geminiOpts...)
	s.text = gemini.NewTextClient(client)
	s.images = gemini.NewImageClient(client)
	s.speech = gemini.NewSpeechClient(client)
	s.video = gemini.NewVideoClient(client)
	s.exec = retry.NewExecutor(s.tracker, retry.WithSleeper(s.sleep))
	return s, nil
}

// Reporter exposes the session's progress stream for subscription.
func (s *Session) Reporter() *progress.Reporter { return s.reporter }

// Tracker exposes the session's request-rate tracker.
func (s *Session) Tracker() *ratelimit.Tracker { return s.tracker }

// RateUsage reports requests recorded within the rolling window against
// the configured per-minute budget.
func (s *Session) RateUsage() (current, budget int) {
	return s.tracker.CurrentCount(), s.cfg.RateBudgetPerMinute
}

// Close releases session resources. The session must not be used afterward.
func (s *Session) Close() {
	if s.ownsTracker && s.tracker != nil {
		s.tracker.Stop()
	}
}

// retryPolicy builds a policy that narrates retries on the progress stream.
func (s *Session) retryPolicy(stage progress.Stage) retry.Policy {
	policy := s.cfg.RetryPolicy
	attempt := 0
	policy.OnRetry = func(message string) {
		attempt++
		s.reporter.Publish(progress.Event{Stage: stage, Message: message, Attempt: attempt})
		s.logger.Warn(message, logging.String(logging.FieldStage, string(stage)), logging.Int(logging.FieldAttempt, attempt))
	}
	return policy
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyforge/internal/services"
)

const (
	// DefaultMaxAttempts bounds the total number of dispatches per unit.
	DefaultMaxAttempts = 3
	// DefaultInitialDelay seeds the exponential backoff sequence.
	DefaultInitialDelay = 2 * time.Second
)

// Policy controls how a unit of work is retried.
type Policy struct {
	// MaxAttempts is the total dispatch budget, first attempt included.
	MaxAttempts int
	// InitialDelay is the wait before the first retry; each subsequent
	// retry doubles it.
	InitialDelay time.Duration
	// OnRetry, when set, receives a human-readable message before each
	// backoff wait, stating the computed delay and attempt count.
	OnRetry func(message string)
}

// Recorder receives a notification for every attempt before it is dispatched.
type Recorder interface {
	RecordRequest()
}

// Executor runs units of work under a retry policy. Attempts are strictly
// sequential; the executor never parallelizes internally.
type Executor struct {
	recorder Recorder
	sleep    func(context.Context, time.Duration) error
}

// Option customizes the executor.
type Option func(*Executor)

// WithSleeper overrides how backoff waits are performed (used in tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(e *Executor) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// NewExecutor constructs an executor. recorder may be nil.
func NewExecutor(recorder Recorder, opts ...Option) *Executor {
	e := &Executor{
		recorder: recorder,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs unit under policy and returns the final error, if any.
func (e *Executor) Execute(ctx context.Context, policy Policy, unit func(context.Context) error) error {
	_, err := Do(ctx, e, policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, unit(ctx)
	})
	return err
}

// Do runs unit under policy and returns its result.
//
// Classification per attempt:
//   - quota-exhausted: propagated immediately, no further attempts
//   - rate-limited with budget remaining: wait initialDelay*2^(attempt-1),
//     then retry
//   - anything else, or budget exhausted: propagate the last error
func Do[T any](ctx context.Context, e *Executor, policy Policy, unit func(context.Context) (T, error)) (T, error) {
	var zero T
	if e == nil {
		return zero, errors.New("retry: nil executor")
	}
	maxAttempts := policy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	initialDelay := policy.InitialDelay
	if initialDelay <= 0 {
		initialDelay = DefaultInitialDelay
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx != nil && ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if e.recorder != nil {
			e.recorder.RecordRequest()
		}

		result, err := unit(ctx)
		if err == nil {
			return result, nil
		}

		classified := services.Classify(err)
		if errors.Is(classified, services.ErrQuotaExhausted) {
			return zero, classified
		}
		if !errors.Is(classified, services.ErrRateLimited) {
			return zero, classified
		}
		if attempt == maxAttempts {
			return zero, fmt.Errorf("failed after %d attempts: %w", maxAttempts, classified)
		}

		delay := initialDelay << (attempt - 1)
		if policy.OnRetry != nil {
			policy.OnRetry(fmt.Sprintf(
				"Rate limit reached. Retrying in %s... (%d/%d)",
				formatDelay(delay), attempt, maxAttempts,
			))
		}
		if err := e.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, fmt.Errorf("failed after %d attempts", maxAttempts)
}

// formatDelay keeps the familiar "N seconds" wording for whole seconds and
// falls back to Duration formatting so sub-second delays never read as zero.
func formatDelay(delay time.Duration) string {
	if delay >= time.Second && delay%time.Second == 0 {
		return fmt.Sprintf("%d seconds", int(delay/time.Second))
	}
	return delay.String()
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx == nil {
		time.Sleep(delay)
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

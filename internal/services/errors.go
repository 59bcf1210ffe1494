package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRateLimited marks failures caused by per-minute request throttling.
	// Eligible for retry with backoff.
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExhausted marks billing/plan quota failures. Never retried.
	ErrQuotaExhausted = errors.New("quota exhausted")
	// ErrInvalidCredential marks rejected API keys.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrMalformedResponse marks schema-mismatched or empty generator output.
	// Not retried: the same request tends to reproduce the same shape.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrPermissionDenied marks a storage capability whose permission was revoked.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStaleHandle marks a storage capability whose directory no longer exists.
	ErrStaleHandle = errors.New("stale handle")
	// ErrTimeout marks bounded polling that ran out of attempts.
	ErrTimeout = errors.New("timeout")
	// ErrTransient marks failures with no specific classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an arbitrary error onto the taxonomy, combining sentinel
// checks with failure-signature matching on provider messages. Signature
// matching mirrors the upstream API wording: "429"/"resource_exhausted" for
// throttling, "quota exceeded" for billing, "api key not valid" for
// credentials.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrQuotaExhausted),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrInvalidCredential),
		errors.Is(err, ErrMalformedResponse),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrStaleHandle),
		errors.Is(err, ErrTimeout):
		return err
	}
	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "quota exceeded"):
		return fmt.Errorf("%w: %w", ErrQuotaExhausted, err)
	case strings.Contains(message, "429"), strings.Contains(message, "resource_exhausted"):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case strings.Contains(message, "api key not valid"):
		return fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	default:
		return err
	}
}

// IsRetryable reports whether the retry executor may re-dispatch after err.
func IsRetryable(err error) bool {
	classified := Classify(err)
	return errors.Is(classified, ErrRateLimited)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// Package ratelimit tracks outbound generation requests against a rolling
// per-minute budget so the UI layer can display current load.
//
// The tracker never blocks or throttles callers; pacing decisions belong to
// the pipeline. Counts reset when the process restarts.
package ratelimit

// Package retry executes units of generation work with bounded exponential
// backoff.
//
// Failures are classified through the services taxonomy: rate-limited errors
// are retried, quota errors propagate immediately so the user can act on
// billing, and everything else fails the attempt. Every attempt is recorded
// on the rate tracker before dispatch so usage counts reflect requests sent
// rather than requests completed.
package retry

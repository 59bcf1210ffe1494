// Package gemini wraps the Google generative language REST API: text
// generation, JSON-schema constrained generation, image synthesis, speech
// synthesis, and long-running video generation. Clients are plain HTTP
// wrappers; retry and rate accounting happen in the caller.
package gemini

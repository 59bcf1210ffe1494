// Package progress carries structured status events from generation stages to
// whatever surface is listening (CLI spinner, log mirror, tests). Stages
// publish typed events rather than raw strings so listeners can render,
// filter, or aggregate without parsing prose.
package progress

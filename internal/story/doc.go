// Package story holds the domain model shared by the generation pipeline,
// the project store, and the CLI: stories, episodes, generated media assets,
// and the archived record format written to disk.
package story

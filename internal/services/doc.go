// Package services defines the shared error taxonomy and context plumbing for
// the external collaborators StoryForge talks to (text, image, speech, and
// video generation plus the slideshow renderer).
//
// Sub-packages hold one client per vendor surface. This package owns the
// sentinel errors every client classifies its failures into, so the retry
// executor and the studio can decide retry/abort/re-prompt behavior without
// inspecting vendor-specific payloads.
package services

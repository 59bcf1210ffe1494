// Package pipeline drives multi-stage story generation: outline, sequential
// episode writing with inline SEO enrichment, scene and storyboard prompt
// extraction, image and narration synthesis, and video rendering. A Session
// owns the provider clients, the rate tracker, the retry executor, and the
// progress reporter; it exists only while a credential is set.
package pipeline

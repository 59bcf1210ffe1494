package story

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EpisodeCount is the fixed episode count of a completed outline.
const EpisodeCount = 5

// SEOData is the publishing metadata generated per episode.
type SEOData struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Episode is one installment of a story plus the media generated for it.
// Media assets are rehydrated from disk on load and never serialized inline.
type Episode struct {
	Text              string   `json:"text"`
	SEO               *SEOData `json:"seo,omitempty"`
	StoryboardPrompts []string `json:"storyboardPrompts,omitempty"`
	ImageScenePrompts []string `json:"imageScenePrompts,omitempty"`

	// Images pairs positionally with ImageScenePrompts; a failed slot
	// stays nil so the pairing survives partial generation.
	Images    []*ImageAsset `json:"-"`
	Narration []*AudioAsset `json:"-"`
	Videos    []*VideoAsset `json:"-"`
}

// ReplaceImages releases the previous image buffers and installs the new set.
func (e *Episode) ReplaceImages(images []*ImageAsset) {
	for _, img := range e.Images {
		img.Release()
	}
	e.Images = images
}

// ReplaceNarration releases the previous narration buffers and installs the
// new chunk sequence.
func (e *Episode) ReplaceNarration(narration []*AudioAsset) {
	for _, audio := range e.Narration {
		audio.Release()
	}
	e.Narration = narration
}

// ReplaceVideos releases the previous clip buffers and installs the new set.
func (e *Episode) ReplaceVideos(videos []*VideoAsset) {
	for _, video := range e.Videos {
		video.Release()
	}
	e.Videos = videos
}

// Release frees every media buffer owned by the episode.
func (e *Episode) Release() {
	e.ReplaceImages(nil)
	e.ReplaceNarration(nil)
	e.ReplaceVideos(nil)
}

// Story is a prompt plus the episodes generated from it.
type Story struct {
	Prompt   string    `json:"prompt"`
	Episodes []Episode `json:"episodes"`
}

// Savable reports whether the story carries enough content to persist.
func (s *Story) Savable() bool {
	if s == nil {
		return false
	}
	return strings.TrimSpace(s.Prompt) != "" || len(s.Episodes) > 0
}

// Release frees all media buffers across every episode.
func (s *Story) Release() {
	if s == nil {
		return
	}
	for i := range s.Episodes {
		s.Episodes[i].Release()
	}
}

// ArchivedStoryRecord is the unit of persistence: one story plus the
// metadata the archive browser lists.
type ArchivedStoryRecord struct {
	Version   int       `json:"version"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	Data      Story     `json:"data"`
}

// CurrentRecordVersion is written to new records; records without a version
// field are treated as version 1.
const CurrentRecordVersion = 1

const titlePrefixLimit = 60

// NewArchiveID produces a filesystem-safe identifier ordered by creation
// time, with a random suffix so two stories created in the same second do
// not collide.
func NewArchiveID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("story-%s-%s", now.UTC().Format("20060102-150405"), suffix)
}

// NewRecord wraps a story in an archive record with a derived title.
func NewRecord(s Story, now time.Time) ArchivedStoryRecord {
	return ArchivedStoryRecord{
		Version:   CurrentRecordVersion,
		ID:        NewArchiveID(now),
		Title:     DeriveTitle(&s),
		CreatedAt: now.UTC(),
		Data:      s,
	}
}

// DeriveTitle prefers the first episode's SEO title and falls back to a
// prefix of the prompt.
func DeriveTitle(s *Story) string {
	if s == nil {
		return "Untitled Story"
	}
	if len(s.Episodes) > 0 && s.Episodes[0].SEO != nil {
		if title := strings.TrimSpace(s.Episodes[0].SEO.Title); title != "" {
			return title
		}
	}
	prompt := strings.TrimSpace(s.Prompt)
	if prompt == "" {
		return "Untitled Story"
	}
	if len(prompt) > titlePrefixLimit {
		return strings.TrimSpace(prompt[:titlePrefixLimit]) + "..."
	}
	return prompt
}

package studio

import (
	"context"
	"fmt"
	"io"

	"storyforge/internal/export"
	"storyforge/internal/logging"
	"storyforge/internal/pipeline"
	"storyforge/internal/services/gemini"
	"storyforge/internal/story"
)

// Current returns a snapshot of the active story, or nil when none is
// loaded. Episode slices are shared; callers treat the snapshot as
// read-only and go through the studio to change it.
func (s *Studio) Current() *story.Story {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	snapshot := *s.current
	return &snapshot
}

// CurrentID returns the archive identifier of the active story, or "" when
// the story has never been saved.
func (s *Studio) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

func (s *Studio) setCurrent(st story.Story) {
	s.mu.Lock()
	s.current = &st
	s.mu.Unlock()
}

// episodeAt returns a copy of episode number (1-based).
func (s *Studio) episodeAt(number int) (story.Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return story.Episode{}, ErrNoActiveStory
	}
	if number < 1 || number > len(s.current.Episodes) {
		return story.Episode{}, fmt.Errorf("episode %d out of range (story has %d)", number, len(s.current.Episodes))
	}
	return s.current.Episodes[number-1], nil
}

// replaceEpisode installs a new episode value without mutating the slice a
// previous snapshot may still reference.
func (s *Studio) replaceEpisode(number int, episode story.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return ErrNoActiveStory
	}
	if number < 1 || number > len(s.current.Episodes) {
		return fmt.Errorf("episode %d out of range (story has %d)", number, len(s.current.Episodes))
	}
	episodes := make([]story.Episode, len(s.current.Episodes))
	copy(episodes, s.current.Episodes)
	episodes[number-1] = episode
	next := *s.current
	next.Episodes = episodes
	s.current = &next
	return nil
}

// GenerateStory runs the full build and archives the result. Partial
// progress replaces the workspace as episodes complete, so an interrupted
// build still leaves what was generated loaded and saved.
func (s *Studio) GenerateStory(ctx context.Context, prompt string) (*story.Story, error) {
	session, err := s.Session(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.current != nil {
		s.current.Release()
		s.current = nil
	}
	s.currentID = ""
	s.mu.Unlock()

	built, buildErr := session.BuildStory(ctx, prompt, func(partial story.Story) {
		s.setCurrent(partial)
	})
	s.setCurrent(built)

	if built.Savable() {
		if _, err := s.SaveCurrent(ctx); err != nil {
			s.logger.Warn("archiving generated story failed", logging.Error(err))
			if buildErr == nil {
				buildErr = err
			}
		}
	}
	if buildErr != nil {
		return s.Current(), buildErr
	}
	return s.Current(), nil
}

// RegenerateEpisode rebuilds one episode's text and publishing metadata.
func (s *Studio) RegenerateEpisode(ctx context.Context, number int) error {
	session, err := s.Session(ctx)
	if err != nil {
		return err
	}
	working, err := s.workingCopy()
	if err != nil {
		return err
	}
	if err := session.RegenerateEpisode(ctx, &working, number); err != nil {
		return err
	}
	s.setCurrent(working)
	return nil
}

// RegenerateSEO rebuilds one episode's publishing metadata. Unlike the
// swallowed attempt during the initial build, a failure here surfaces.
func (s *Studio) RegenerateSEO(ctx context.Context, number int) error {
	session, err := s.Session(ctx)
	if err != nil {
		return err
	}
	working, err := s.workingCopy()
	if err != nil {
		return err
	}
	if err := session.RegenerateSEO(ctx, &working, number); err != nil {
		return err
	}
	s.setCurrent(working)
	return nil
}

func (s *Studio) workingCopy() (story.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return story.Story{}, ErrNoActiveStory
	}
	working := *s.current
	working.Episodes = make([]story.Episode, len(s.current.Episodes))
	copy(working.Episodes, s.current.Episodes)
	return working, nil
}

// GenerateEpisodeImages renders one image per visual scene of the episode.
// Scene prompts are extracted first when the episode has none yet.
func (s *Studio) GenerateEpisodeImages(ctx context.Context, number int, style pipeline.ImageStyle) error {
	session, err := s.Session(ctx)
	if err != nil {
		return err
	}
	episode, err := s.episodeAt(number)
	if err != nil {
		return err
	}
	if len(episode.ImageScenePrompts) == 0 {
		prompts, err := session.GenerateScenePrompts(ctx, episode.Text)
		if err != nil {
			return err
		}
		episode.ImageScenePrompts = prompts
	}
	images, err := session.GenerateImages(ctx, episode.ImageScenePrompts, style)
	if err != nil {
		return err
	}
	episode.ReplaceImages(images)
	return s.replaceEpisode(number, episode)
}

// GenerateEpisodeNarration synthesizes the episode text into narration
// chunks.
func (s *Studio) GenerateEpisodeNarration(ctx context.Context, number int, cfg pipeline.NarrationConfig) error {
	session, err := s.Session(ctx)
	if err != nil {
		return err
	}
	episode, err := s.episodeAt(number)
	if err != nil {
		return err
	}
	narration, err := session.GenerateNarration(ctx, episode.Text, cfg)
	if err != nil {
		return err
	}
	episode.ReplaceNarration(narration)
	return s.replaceEpisode(number, episode)
}

// GenerateEpisodeStoryboard extracts scene descriptions sized to a target
// runtime and stores them on the episode.
func (s *Studio) GenerateEpisodeStoryboard(ctx context.Context, number, totalSeconds int) error {
	session, err := s.Session(ctx)
	if err != nil {
		return err
	}
	episode, err := s.episodeAt(number)
	if err != nil {
		return err
	}
	count := session.StoryboardSceneCount(totalSeconds)
	prompts, err := session.StoryboardPrompts(ctx, episode.Text, count)
	if err != nil {
		return err
	}
	episode.StoryboardPrompts = prompts
	return s.replaceEpisode(number, episode)
}

// GenerateEpisodeVideo renders one storyboard scene into a clip, seeding
// the generation with the matching image when one exists, and appends the
// clip to the episode.
func (s *Studio) GenerateEpisodeVideo(ctx context.Context, number, scene int) error {
	session, err := s.Session(ctx)
	if err != nil {
		return err
	}
	episode, err := s.episodeAt(number)
	if err != nil {
		return err
	}
	if scene < 1 || scene > len(episode.StoryboardPrompts) {
		return fmt.Errorf("scene %d out of range (episode has %d storyboard scenes)", scene, len(episode.StoryboardPrompts))
	}
	params := gemini.VideoParams{Prompt: episode.StoryboardPrompts[scene-1]}
	if scene <= len(episode.Images) && episode.Images[scene-1] != nil {
		img := episode.Images[scene-1]
		params.SeedImage = &gemini.SeedImage{Data: img.Bytes(), MimeType: img.MimeType}
	}
	clip, err := session.GenerateVideo(ctx, params)
	if err != nil {
		return err
	}
	videos := make([]*story.VideoAsset, 0, len(episode.Videos)+1)
	videos = append(videos, episode.Videos...)
	videos = append(videos, clip)
	episode.Videos = videos
	return s.replaceEpisode(number, episode)
}

// Suggestions asks the generator for story ideas in a genre.
func (s *Studio) Suggestions(ctx context.Context, genre, subCategory string) ([]pipeline.StorySuggestion, error) {
	session, err := s.Session(ctx)
	if err != nil {
		return nil, err
	}
	return session.FindStorySuggestions(ctx, genre, subCategory)
}

// SaveCurrent archives the active story, keeping its identifier stable
// across saves so edits update in place.
func (s *Studio) SaveCurrent(ctx context.Context) (story.ArchivedStoryRecord, error) {
	s.mu.Lock()
	if s.current == nil || !s.current.Savable() {
		s.mu.Unlock()
		return story.ArchivedStoryRecord{}, ErrNoActiveStory
	}
	var record story.ArchivedStoryRecord
	if s.currentID == "" {
		record = story.NewRecord(*s.current, s.now())
		s.currentID = record.ID
		s.createdAt = record.CreatedAt
	} else {
		record = story.ArchivedStoryRecord{
			Version:   story.CurrentRecordVersion,
			ID:        s.currentID,
			Title:     story.DeriveTitle(s.current),
			CreatedAt: s.createdAt,
			Data:      *s.current,
		}
	}
	arch := s.archive
	s.mu.Unlock()

	if err := arch.Save(ctx, record); err != nil {
		return story.ArchivedStoryRecord{}, err
	}
	return record, nil
}

// Stories lists the archive, newest first.
func (s *Studio) Stories(ctx context.Context) ([]story.ArchivedStoryRecord, error) {
	s.mu.Lock()
	arch := s.archive
	s.mu.Unlock()
	return arch.List(ctx)
}

// LoadStory makes an archived story the active workspace.
func (s *Studio) LoadStory(ctx context.Context, id string) (story.ArchivedStoryRecord, error) {
	records, err := s.Stories(ctx)
	if err != nil {
		return story.ArchivedStoryRecord{}, err
	}
	for _, record := range records {
		if record.ID != id {
			continue
		}
		s.mu.Lock()
		if s.current != nil {
			s.current.Release()
		}
		data := record.Data
		s.current = &data
		s.currentID = record.ID
		s.createdAt = record.CreatedAt
		s.mu.Unlock()
		return record, nil
	}
	return story.ArchivedStoryRecord{}, fmt.Errorf("story %s not found in archive", id)
}

// DeleteStory removes a story from the archive. Deleting the active story
// also clears the workspace.
func (s *Studio) DeleteStory(ctx context.Context, id string) error {
	s.mu.Lock()
	arch := s.archive
	s.mu.Unlock()
	if err := arch.Remove(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	if s.currentID == id {
		if s.current != nil {
			s.current.Release()
		}
		s.current = nil
		s.currentID = ""
	}
	s.mu.Unlock()
	return nil
}

// ExportZip writes the active story as a zip bundle.
func (s *Studio) ExportZip(_ context.Context, w io.Writer) error {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	if current == nil {
		return ErrNoActiveStory
	}
	return export.WriteZip(w, current)
}

// ExportName derives the zip filename for the active story.
func (s *Studio) ExportName() string {
	s.mu.Lock()
	current := s.current
	s.mu.Unlock()
	return export.SafeFilename(current) + ".zip"
}

// ExportEpisodeText writes one episode's script to a text file.
func (s *Studio) ExportEpisodeText(path string, number int) error {
	episode, err := s.episodeAt(number)
	if err != nil {
		return err
	}
	return export.WriteEpisodeText(path, &episode)
}

package pipeline

import (
	"context"
	"fmt"

	"storyforge/internal/logging"
	"storyforge/internal/progress"
	"storyforge/internal/retry"
	"storyforge/internal/services"
	"storyforge/internal/services/gemini"
	"storyforge/internal/story"
)

// BuildStory runs the full text pipeline: outline, then the episodes in
// order. After each episode's text lands, the partial story is handed to
// onPartial (when set) and published as a progress event before SEO
// enrichment resolves. SEO failures are logged and swallowed; the episode
// simply carries no metadata until RegenerateSEO. An outline failure aborts
// the build; an episode failure stops the build but keeps every episode
// already written.
func (s *Session) BuildStory(ctx context.Context, prompt string, onPartial func(story.Story)) (story.Story, error) {
	result := story.Story{Prompt: prompt}

	s.reporter.Publishf(progress.StageOutline, "Creating story outline...")
	outline, err := retry.Do(ctx, s.exec, s.retryPolicy(progress.StageOutline), func(ctx context.Context) (string, error) {
		return s.text.Generate(ctx, outlinePrompt(prompt), gemini.GenerateOptions{
			SystemInstruction: systemInstruction,
			Temperature:       0.8,
		})
	})
	if err != nil {
		return result, services.Wrap(nil, "outline", "generate", "story outline failed", err)
	}

	for episodeNumber := 1; episodeNumber <= s.cfg.EpisodeCount; episodeNumber++ {
		s.reporter.Publish(progress.Event{
			Stage:        progress.StageEpisode,
			Message:      fmt.Sprintf("Writing episode %d of %d...", episodeNumber, s.cfg.EpisodeCount),
			EpisodeIndex: episodeNumber,
		})

		episode, err := s.generateEpisodeText(ctx, outline, episodeNumber, prompt)
		if err != nil {
			return result, services.Wrap(nil, "episode", fmt.Sprintf("generate %d", episodeNumber), "episode generation failed", err)
		}
		result.Episodes = append(result.Episodes, episode)

		// Publish the text before SEO so listeners see content as soon
		// as it exists.
		if onPartial != nil {
			onPartial(snapshotStory(result))
		}
		s.reporter.Publish(progress.Event{
			Stage:        progress.StageEpisode,
			Message:      fmt.Sprintf("Episode %d text complete", episodeNumber),
			EpisodeIndex: episodeNumber,
		})

		if seo := s.generateSEO(ctx, episode.Text, prompt, episodeNumber); seo != nil {
			result.Episodes[len(result.Episodes)-1].SEO = seo
			if onPartial != nil {
				onPartial(snapshotStory(result))
			}
		}

		if episodeNumber < s.cfg.EpisodeCount {
			if err := s.sleep(ctx, s.cfg.PacingDelay); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

// snapshotStory copies the episode slice so a published partial keeps its
// state when the build mutates episodes afterward.
func snapshotStory(st story.Story) story.Story {
	episodes := make([]story.Episode, len(st.Episodes))
	copy(episodes, st.Episodes)
	st.Episodes = episodes
	return st
}

func (s *Session) generateEpisodeText(ctx context.Context, outline string, episodeNumber int, prompt string) (story.Episode, error) {
	text, err := retry.Do(ctx, s.exec, s.retryPolicy(progress.StageEpisode), func(ctx context.Context) (string, error) {
		return s.text.Generate(ctx, episodePrompt(outline, episodeNumber, prompt), gemini.GenerateOptions{
			SystemInstruction: systemInstruction,
			Temperature:       0.7,
		})
	})
	if err != nil {
		return story.Episode{}, err
	}
	return story.Episode{Text: text}, nil
}

// generateSEO returns nil on any failure; missing metadata never blocks the
// build.
func (s *Session) generateSEO(ctx context.Context, episodeText, prompt string, episodeNumber int) *story.SEOData {
	var seo story.SEOData
	err := s.exec.Execute(ctx, s.retryPolicy(progress.StageSEO), func(ctx context.Context) error {
		return s.text.GenerateJSON(ctx, seoPrompt(episodeText, prompt, episodeNumber), seoSchema, 0, &seo)
	})
	if err != nil {
		s.logger.Warn("seo generation failed, continuing without metadata",
			logging.Int(logging.FieldEpisodeIndex, episodeNumber),
			logging.Error(err))
		return nil
	}
	return &seo
}

// RegenerateEpisode rewrites episode index (1-based) in place, preserving
// the other episodes. The episode's SEO and media are dropped with the old
// text.
func (s *Session) RegenerateEpisode(ctx context.Context, st *story.Story, index int) error {
	if st == nil || index < 1 || index > len(st.Episodes) {
		return fmt.Errorf("pipeline: episode index %d out of range", index)
	}
	s.reporter.Publish(progress.Event{
		Stage:        progress.StageEpisode,
		Message:      fmt.Sprintf("Regenerating episode %d...", index),
		EpisodeIndex: index,
	})

	outline, err := retry.Do(ctx, s.exec, s.retryPolicy(progress.StageOutline), func(ctx context.Context) (string, error) {
		return s.text.Generate(ctx, outlinePrompt(st.Prompt), gemini.GenerateOptions{
			SystemInstruction: systemInstruction,
			Temperature:       0.8,
		})
	})
	if err != nil {
		return services.Wrap(nil, "episode", fmt.Sprintf("regenerate %d", index), "outline refresh failed", err)
	}
	episode, err := s.generateEpisodeText(ctx, outline, index, st.Prompt)
	if err != nil {
		return services.Wrap(nil, "episode", fmt.Sprintf("regenerate %d", index), "episode generation failed", err)
	}
	st.Episodes[index-1].Release()
	st.Episodes[index-1] = episode
	if seo := s.generateSEO(ctx, episode.Text, st.Prompt, index); seo != nil {
		st.Episodes[index-1].SEO = seo
	}
	return nil
}

// RegenerateSEO refreshes only the metadata of episode index (1-based).
// Unlike the inline enrichment during a build, an explicit request surfaces
// its failure.
func (s *Session) RegenerateSEO(ctx context.Context, st *story.Story, index int) error {
	if st == nil || index < 1 || index > len(st.Episodes) {
		return fmt.Errorf("pipeline: episode index %d out of range", index)
	}
	s.reporter.Publish(progress.Event{
		Stage:        progress.StageSEO,
		Message:      fmt.Sprintf("Regenerating metadata for episode %d...", index),
		EpisodeIndex: index,
	})
	var seo story.SEOData
	err := s.exec.Execute(ctx, s.retryPolicy(progress.StageSEO), func(ctx context.Context) error {
		return s.text.GenerateJSON(ctx, seoPrompt(st.Episodes[index-1].Text, st.Prompt, index), seoSchema, 0, &seo)
	})
	if err != nil {
		return services.Wrap(nil, "seo", fmt.Sprintf("regenerate %d", index), "metadata generation failed", err)
	}
	st.Episodes[index-1].SEO = &seo
	return nil
}

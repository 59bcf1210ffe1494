package pipeline

import (
	"context"
	"fmt"

	"storyforge/internal/progress"
	"storyforge/internal/retry"
	"storyforge/internal/services"
)

type promptList struct {
	Prompts []string `json:"prompts"`
}

// GenerateScenePrompts extracts the configured number of key visual moments
// from episode text as image generation prompts.
func (s *Session) GenerateScenePrompts(ctx context.Context, episodeText string) ([]string, error) {
	s.reporter.Publishf(progress.StageScenes, "Extracting key visual scenes...")
	list, err := retry.Do(ctx, s.exec, s.retryPolicy(progress.StageScenes), func(ctx context.Context) (promptList, error) {
		var out promptList
		err := s.text.GenerateJSON(ctx, scenePromptsPrompt(episodeText, s.cfg.ScenePromptCount), promptListSchema, 0.8, &out)
		return out, err
	})
	if err != nil {
		return nil, services.Wrap(nil, "scenes", "generate", "scene prompt extraction failed", err)
	}
	if len(list.Prompts) == 0 {
		return nil, services.Wrap(services.ErrMalformedResponse, "scenes", "generate", "empty prompt list", nil)
	}
	return list.Prompts, nil
}

// StoryboardSceneCount converts a clip duration in seconds to the scene
// count the storyboard must contain, rounding up to cover the full runtime.
func (s *Session) StoryboardSceneCount(totalSeconds int) int {
	if totalSeconds <= 0 {
		return 0
	}
	return (totalSeconds + s.cfg.SecondsPerScene - 1) / s.cfg.SecondsPerScene
}

// StoryboardPrompts breaks story text into exactly count video scene
// prompts. A response with any other number of prompts is a contract
// violation and reported as malformed rather than silently padded.
func (s *Session) StoryboardPrompts(ctx context.Context, text string, count int) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("pipeline: storyboard scene count %d invalid", count)
	}
	s.reporter.Publishf(progress.StageStoryboard, fmt.Sprintf("Storyboarding %d scenes...", count))
	list, err := retry.Do(ctx, s.exec, s.retryPolicy(progress.StageStoryboard), func(ctx context.Context) (promptList, error) {
		var out promptList
		err := s.text.GenerateJSON(ctx, storyboardPrompt(text, count, s.cfg.SecondsPerScene), promptListSchema, 0.9, &out)
		return out, err
	})
	if err != nil {
		return nil, services.Wrap(nil, "storyboard", "generate", "storyboard extraction failed", err)
	}
	if len(list.Prompts) != count {
		return nil, services.Wrap(services.ErrMalformedResponse, "storyboard", "generate",
			fmt.Sprintf("expected %d scenes, got %d", count, len(list.Prompts)), nil)
	}
	return list.Prompts, nil
}

// StorySuggestion is one concept proposed by the story finder.
type StorySuggestion struct {
	Title             string   `json:"title"`
	Synopsis          string   `json:"synopsis"`
	PopularityReasons []string `json:"popularity_reasons"`
	YoutubeKeywords   []string `json:"youtube_keywords"`
}

// FindStorySuggestions proposes three story concepts for a genre and
// subcategory.
func (s *Session) FindStorySuggestions(ctx context.Context, genre, subCategory string) ([]StorySuggestion, error) {
	var out struct {
		Suggestions []StorySuggestion `json:"suggestions"`
	}
	err := s.exec.Execute(ctx, s.retryPolicy(progress.StageOutline), func(ctx context.Context) error {
		return s.text.GenerateJSON(ctx, suggestionsPrompt(genre, subCategory), suggestionsSchema, 0, &out)
	})
	if err != nil {
		return nil, services.Wrap(nil, "suggestions", "generate", "story suggestions failed", err)
	}
	return out.Suggestions, nil
}

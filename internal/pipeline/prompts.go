package pipeline

import (
	"encoding/json"
	"fmt"
)

// systemInstruction frames every narrative generation: a serialized
// cinematic story written as one continuous flow, sized for long-form
// voiceover narration.
const systemInstruction = `You are StoryForge, a professional system for crafting cinematic serialized stories optimized for voiceover narration and visual storytelling.

Story rules:
1. The complete story consists of 20 continuous chapters.
2. The story is divided into 5 episodes (videos), each covering 4 chapters.
3. Each episode must contain enough text for 16-24 minutes of narration (roughly 2000-2800 words).
4. Write the story as one smooth narrative flow with no chapter headings, numbers, or separators.
5. The narration must feel natural, dramatic, and suited to spoken voiceover.
6. Maintain strong continuity between episodes so the story stays unified and cinematic.

Historical versus speculative events:
- When the story covers past events, narrate them as documented history with vivid, emotionally grounded imagery.
- When the story involves future or hypothetical events, present them clearly as things that have not yet happened, using prophetic or speculative phrasing.
- Never present unverified or future events as fact; always mark them as predictions or possible outcomes.`

func outlinePrompt(storyPrompt string) string {
	return fmt.Sprintf(`Create a detailed outline for an epic 20-chapter story, divided into 5 episodes (4 chapters each), based on the following idea: %q. The outline must be detailed enough to guide writing each episode independently while keeping the story coherent.`, storyPrompt)
}

func episodePrompt(outline string, episodeNumber int, storyPrompt string) string {
	chaptersStart := (episodeNumber-1)*4 + 1
	chaptersEnd := episodeNumber * 4
	return fmt.Sprintf(`Based on the original story idea %q and the following detailed outline:

%s

---
Now write episode %d of the story, covering chapters %d through %d.
The episode must contain at least 3500 words while keeping the narrative quality high. Write in a dramatic cinematic style with rich emotional and visual description. Do not add chapter headings or numbers; keep the text flowing as a single piece.`, storyPrompt, outline, episodeNumber, chaptersStart, chaptersEnd)
}

const seoExcerptLimit = 2000

func seoPrompt(episodeText, storyPrompt string, episodeNumber int) string {
	excerpt := episodeText
	if len(excerpt) > seoExcerptLimit {
		excerpt = excerpt[:seoExcerptLimit] + "..."
	}
	return fmt.Sprintf(`Based on the text of episode %d from the story %q, create strong publishing metadata optimized for a video platform.

Text (excerpt):
---
%s
---

Produce:
1. Title: a curiosity-driving title with strong keywords.
2. Description: a compelling episode description that summarizes the key events without spoiling them and includes relevant keywords.
3. Tags: a list of 10-15 varied, highly relevant keywords for the episode and the story as a whole.`, episodeNumber, storyPrompt, excerpt)
}

var seoSchema = json.RawMessage(`{
  "type": "OBJECT",
  "properties": {
    "title": {"type": "STRING"},
    "description": {"type": "STRING"},
    "tags": {"type": "ARRAY", "items": {"type": "STRING"}}
  },
  "required": ["title", "description", "tags"]
}`)

const scenePromptExcerptLimit = 8000

func scenePromptsPrompt(episodeText string, count int) string {
	excerpt := episodeText
	if len(excerpt) > scenePromptExcerptLimit {
		excerpt = excerpt[:scenePromptExcerptLimit] + "..."
	}
	return fmt.Sprintf(`Analyze the following episode text. Identify %d distinct, key visual moments or scenes that would be powerful as cinematic images. For each scene, write a detailed and vivid image generation prompt in English describing characters, setting, lighting, mood, and action. Return ONLY the prompts as a JSON object with a key "prompts" containing an array of %d strings.

Episode Text Excerpt:
---
%s
---`, count, count, excerpt)
}

const storyboardExcerptLimit = 12000

func storyboardPrompt(episodeText string, count, secondsPerScene int) string {
	excerpt := episodeText
	if len(excerpt) > storyboardExcerptLimit {
		excerpt = excerpt[:storyboardExcerptLimit] + "..."
	}
	return fmt.Sprintf(`Analyze the following story text. Break it down into a sequence of distinct visual scenes, each suitable for a %d-second video clip. You must generate exactly %d scenes. For each scene, write a detailed, cinematic video generation prompt in English describing the setting, characters, action, camera movement, and mood. Return the result as a JSON object with a key "prompts" containing an array of exactly %d strings.

Story Text:
---
%s
---`, secondsPerScene, count, count, excerpt)
}

var promptListSchema = json.RawMessage(`{
  "type": "OBJECT",
  "properties": {
    "prompts": {"type": "ARRAY", "items": {"type": "STRING"}}
  },
  "required": ["prompts"]
}`)

func suggestionsPrompt(genre, subCategory string) string {
	return fmt.Sprintf(`As a content strategist and video-platform trend analyst, identify the top 3 story concepts within the genre %q and the subcategory %q. Prioritize concepts with proven success and a high likelihood of attracting viewers.

For each suggestion provide:
1. title: the story or central figure.
2. synopsis: a one-paragraph summary highlighting the dramatic core.
3. popularity_reasons: a list of 3 points explaining the concept's broad appeal, grounded in concrete evidence such as commercial success, a large active online community, or sustained search interest.
4. youtube_keywords: a list of 5-7 strong keywords suited to search optimization.

Important rule: for historical or biographical topics, base all suggestions on documented, generally accepted information. Avoid unverified legends or fringe theories.`, genre, subCategory)
}

var suggestionsSchema = json.RawMessage(`{
  "type": "OBJECT",
  "properties": {
    "suggestions": {
      "type": "ARRAY",
      "items": {
        "type": "OBJECT",
        "properties": {
          "title": {"type": "STRING"},
          "synopsis": {"type": "STRING"},
          "popularity_reasons": {"type": "ARRAY", "items": {"type": "STRING"}},
          "youtube_keywords": {"type": "ARRAY", "items": {"type": "STRING"}}
        },
        "required": ["title", "synopsis", "popularity_reasons", "youtube_keywords"]
      }
    }
  },
  "required": ["suggestions"]
}`)

package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"storyforge/internal/services"
	"storyforge/internal/services/gemini"
	"storyforge/internal/story"
)

// fakeGemini answers generateContent calls by matching substrings of the
// incoming prompt against canned responses.
type fakeGemini struct {
	server   *httptest.Server
	mux      *http.ServeMux
	requests atomic.Int64
}

func newFakeGemini(t *testing.T, handler http.HandlerFunc) *fakeGemini {
	t.Helper()
	f := &fakeGemini{mux: http.NewServeMux()}
	f.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		handler(w, r)
	})
	f.server = httptest.NewServer(f.mux)
	t.Cleanup(f.server.Close)
	return f
}

func promptOf(r *http.Request) string {
	var body struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if len(body.Contents) == 0 || len(body.Contents[0].Parts) == 0 {
		return ""
	}
	return body.Contents[0].Parts[0].Text
}

func writeText(w http.ResponseWriter, text string) {
	payload := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func newTestSession(t *testing.T, baseURL string, mutate func(*SessionConfig)) (*Session, *[]time.Duration) {
	t.Helper()
	cfg := SessionConfig{Gemini: gemini.Config{APIKey: "test-key", BaseURL: baseURL}}
	if mutate != nil {
		mutate(&cfg)
	}
	var waits []time.Duration
	session, err := NewSession(cfg,
		WithSleeper(func(_ context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		}),
		WithSeedSource(func() int64 { return 1000 }),
	)
	if err != nil {
		t.Fatalf("NewSession returned error: %v", err)
	}
	t.Cleanup(session.Close)
	return session, &waits
}

func TestNewSessionRequiresCredential(t *testing.T) {
	if _, err := NewSession(SessionConfig{}); err == nil {
		t.Fatal("expected error without api key")
	}
}

func TestSessionAppliesRateConfig(t *testing.T) {
	session, _ := newTestSession(t, "http://unused.invalid", func(cfg *SessionConfig) {
		cfg.RateWindow = 30 * time.Second
		cfg.RateBudgetPerMinute = 7
	})

	if got := session.Tracker().Window(); got != 30*time.Second {
		t.Fatalf("expected 30s tracker window, got %v", got)
	}
	session.Tracker().RecordRequest()
	session.Tracker().RecordRequest()
	current, budget := session.RateUsage()
	if current != 2 || budget != 7 {
		t.Fatalf("expected usage 2/7, got %d/%d", current, budget)
	}
}

func TestBuildStoryPartialsAreImmutableSnapshots(t *testing.T) {
	fake := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		prompt := promptOf(r)
		switch {
		case strings.Contains(prompt, "Create a detailed outline"):
			writeText(w, "OUTLINE")
		case strings.Contains(prompt, "Now write episode"):
			writeText(w, "EPISODE")
		case strings.Contains(prompt, "publishing metadata"):
			writeText(w, `{"title":"T","description":"D","tags":["a"]}`)
		default:
			t.Errorf("unexpected prompt %q", prompt)
		}
	})

	session, _ := newTestSession(t, fake.server.URL, func(cfg *SessionConfig) {
		cfg.EpisodeCount = 1
	})

	var partials []story.Story
	st, err := session.BuildStory(context.Background(), "a lighthouse keeper finds a map", func(partial story.Story) {
		partials = append(partials, partial)
	})
	if err != nil {
		t.Fatalf("BuildStory returned error: %v", err)
	}
	if len(partials) != 2 {
		t.Fatalf("expected 2 partials, got %d", len(partials))
	}
	if partials[0].Episodes[0].SEO != nil {
		t.Fatal("pre-metadata snapshot was mutated by the later seo write")
	}
	if partials[1].Episodes[0].SEO == nil || st.Episodes[0].SEO == nil {
		t.Fatal("final story missing seo")
	}
}

func TestBuildStoryGeneratesAllEpisodesWithPacing(t *testing.T) {
	fake := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		prompt := promptOf(r)
		switch {
		case strings.Contains(prompt, "Create a detailed outline"):
			writeText(w, "OUTLINE")
		case strings.Contains(prompt, "Now write episode"):
			var n int
			fmt.Sscanf(prompt[strings.Index(prompt, "Now write episode"):], "Now write episode %d", &n)
			writeText(w, fmt.Sprintf("EPISODE-%d", n))
		case strings.Contains(prompt, "publishing metadata"):
			writeText(w, `{"title":"T","description":"D","tags":["a","b"]}`)
		default:
			t.Errorf("unexpected prompt %q", prompt)
		}
	})

	session, waits := newTestSession(t, fake.server.URL, nil)

	var partials []int
	var firstPartialSEO bool
	st, err := session.BuildStory(context.Background(), "a lighthouse keeper finds a map", func(partial story.Story) {
		partials = append(partials, len(partial.Episodes))
		if len(partials) == 1 {
			firstPartialSEO = partial.Episodes[0].SEO != nil
		}
	})
	if err != nil {
		t.Fatalf("BuildStory returned error: %v", err)
	}
	if len(st.Episodes) != 5 {
		t.Fatalf("expected 5 episodes, got %d", len(st.Episodes))
	}
	for i, ep := range st.Episodes {
		if ep.Text != fmt.Sprintf("EPISODE-%d", i+1) {
			t.Fatalf("episode %d out of order: %q", i+1, ep.Text)
		}
		if ep.SEO == nil || ep.SEO.Title != "T" {
			t.Fatalf("episode %d missing seo", i+1)
		}
	}
	if firstPartialSEO {
		t.Fatal("partial was published after seo instead of before")
	}
	// 4 pacing waits: between episodes, none after the last.
	pacing := 0
	for _, d := range *waits {
		if d == DefaultPacingDelay {
			pacing++
		}
	}
	if pacing != 4 {
		t.Fatalf("expected 4 pacing delays, got %d (%v)", pacing, *waits)
	}
}

func TestBuildStorySwallowsSEOFailure(t *testing.T) {
	fake := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		prompt := promptOf(r)
		switch {
		case strings.Contains(prompt, "Create a detailed outline"):
			writeText(w, "OUTLINE")
		case strings.Contains(prompt, "Now write episode"):
			writeText(w, "EPISODE")
		case strings.Contains(prompt, "publishing metadata"):
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"internal"}}`))
		}
	})

	session, _ := newTestSession(t, fake.server.URL, func(cfg *SessionConfig) {
		cfg.EpisodeCount = 2
	})
	st, err := session.BuildStory(context.Background(), "prompt", nil)
	if err != nil {
		t.Fatalf("BuildStory returned error: %v", err)
	}
	if len(st.Episodes) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(st.Episodes))
	}
	for i, ep := range st.Episodes {
		if ep.SEO != nil {
			t.Fatalf("episode %d unexpectedly has seo", i+1)
		}
	}
}

func TestBuildStoryKeepsCompletedEpisodesOnFailure(t *testing.T) {
	episodes := 0
	fake := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		prompt := promptOf(r)
		switch {
		case strings.Contains(prompt, "Create a detailed outline"):
			writeText(w, "OUTLINE")
		case strings.Contains(prompt, "Now write episode"):
			episodes++
			if episodes >= 3 {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":{"code":500,"message":"boom"}}`))
				return
			}
			writeText(w, fmt.Sprintf("EPISODE-%d", episodes))
		case strings.Contains(prompt, "publishing metadata"):
			writeText(w, `{"title":"T","description":"D","tags":[]}`)
		}
	})

	session, _ := newTestSession(t, fake.server.URL, nil)
	st, err := session.BuildStory(context.Background(), "prompt", nil)
	if err == nil {
		t.Fatal("expected error from failing episode")
	}
	if len(st.Episodes) != 2 {
		t.Fatalf("expected 2 completed episodes preserved, got %d", len(st.Episodes))
	}
}

func TestBuildStoryOutlineFailureAborts(t *testing.T) {
	fake := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"boom"}}`))
	})
	session, _ := newTestSession(t, fake.server.URL, nil)
	st, err := session.BuildStory(context.Background(), "prompt", nil)
	if err == nil {
		t.Fatal("expected outline failure")
	}
	if len(st.Episodes) != 0 {
		t.Fatal("no episodes should exist after outline failure")
	}
	if fake.requests.Load() != 1 {
		t.Fatalf("expected a single request, got %d", fake.requests.Load())
	}
}

func TestBuildStoryRetriesRateLimit(t *testing.T) {
	attempts := 0
	fake := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		prompt := promptOf(r)
		if strings.Contains(prompt, "Create a detailed outline") {
			attempts++
			if attempts == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"code":429,"message":"rate limited","status":"RESOURCE_EXHAUSTED"}}`))
				return
			}
			writeText(w, "OUTLINE")
			return
		}
		writeText(w, "EPISODE")
	})

	session, waits := newTestSession(t, fake.server.URL, func(cfg *SessionConfig) {
		cfg.EpisodeCount = 1
	})
	seen := 0
	events, cancel := session.Reporter().Subscribe()
	defer cancel()

	if _, err := session.BuildStory(context.Background(), "prompt", nil); err != nil {
		t.Fatalf("BuildStory returned error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected one retry of the outline, got %d attempts", attempts)
	}
	found := false
	for _, d := range *waits {
		if d == 2*time.Second {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a 2s backoff wait, got %v", *waits)
	}
	for {
		select {
		case event := <-events:
			if event.Attempt > 0 {
				seen++
			}
			continue
		default:
		}
		break
	}
	if seen == 0 {
		t.Fatal("no retry notice published on the progress stream")
	}
}

func TestBuildStoryQuotaErrorFailsFast(t *testing.T) {
	fake := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded for requests","status":"RESOURCE_EXHAUSTED"}}`))
	})
	session, _ := newTestSession(t, fake.server.URL, nil)
	_, err := session.BuildStory(context.Background(), "prompt", nil)
	if !errors.Is(err, services.ErrQuotaExhausted) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if fake.requests.Load() != 1 {
		t.Fatalf("quota error should not be retried, saw %d requests", fake.requests.Load())
	}
}

func TestRegenerateSEOSurfacesFailure(t *testing.T) {
	fake := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":500,"message":"boom"}}`))
	})
	session, _ := newTestSession(t, fake.server.URL, nil)
	st := &story.Story{Prompt: "p", Episodes: []story.Episode{{Text: "text"}}}
	if err := session.RegenerateSEO(context.Background(), st, 1); err == nil {
		t.Fatal("explicit seo regeneration must surface its failure")
	}
}

func TestStoryboardSceneCount(t *testing.T) {
	session, _ := newTestSession(t, "http://unused", nil)
	if got := session.StoryboardSceneCount(600); got != 75 {
		t.Fatalf("600s at 8s per scene should be 75 scenes, got %d", got)
	}
	if got := session.StoryboardSceneCount(601); got != 76 {
		t.Fatalf("601s should round up to 76 scenes, got %d", got)
	}
	if got := session.StoryboardSceneCount(8); got != 1 {
		t.Fatalf("8s should be 1 scene, got %d", got)
	}
}

func TestStoryboardPromptsEnforcesExactCount(t *testing.T) {
	fake := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		prompts := make([]string, 74)
		for i := range prompts {
			prompts[i] = fmt.Sprintf("scene %d", i+1)
		}
		encoded, _ := json.Marshal(map[string]any{"prompts": prompts})
		writeText(w, string(encoded))
	})
	session, _ := newTestSession(t, fake.server.URL, nil)
	_, err := session.StoryboardPrompts(context.Background(), "text", 75)
	if !errors.Is(err, services.ErrMalformedResponse) {
		t.Fatalf("74 scenes for a 75-scene request must be malformed, got %v", err)
	}
}

func TestStoryboardPromptsHappyPath(t *testing.T) {
	fake := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		encoded, _ := json.Marshal(map[string]any{"prompts": []string{"a", "b", "c"}})
		writeText(w, string(encoded))
	})
	session, _ := newTestSession(t, fake.server.URL, nil)
	got, err := session.StoryboardPrompts(context.Background(), "text", 3)
	if err != nil {
		t.Fatalf("StoryboardPrompts returned error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 prompts, got %d", len(got))
	}
}

func TestGenerateScenePrompts(t *testing.T) {
	var gotPrompt string
	fake := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		gotPrompt = promptOf(r)
		encoded, _ := json.Marshal(map[string]any{"prompts": []string{"1", "2", "3", "4", "5", "6"}})
		writeText(w, string(encoded))
	})
	session, _ := newTestSession(t, fake.server.URL, nil)
	got, err := session.GenerateScenePrompts(context.Background(), "episode text")
	if err != nil {
		t.Fatalf("GenerateScenePrompts returned error: %v", err)
	}
	if len(got) != 6 {
		t.Fatalf("expected 6 prompts, got %d", len(got))
	}
	if !strings.Contains(gotPrompt, "Identify 6 distinct") {
		t.Fatalf("prompt does not request 6 scenes: %q", gotPrompt)
	}
}

func TestGenerateImagesSeedsAndSlots(t *testing.T) {
	var mu = make(chan struct{}, 1)
	mu <- struct{}{}
	seeds := map[string]int64{}
	fake := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Instances []struct {
				Prompt string `json:"prompt"`
			} `json:"instances"`
			Parameters struct {
				Seed *int64 `json:"seed"`
			} `json:"parameters"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		<-mu
		if body.Parameters.Seed != nil {
			seeds[body.Instances[0].Prompt] = *body.Parameters.Seed
		}
		mu <- struct{}{}
		payload := map[string]any{
			"predictions": []map[string]any{
				{"bytesBase64Encoded": base64.StdEncoding.EncodeToString([]byte(body.Instances[0].Prompt))},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	})

	session, _ := newTestSession(t, fake.server.URL, nil)
	prompts := []string{"p0", "p1", "p2"}
	assets, err := session.GenerateImages(context.Background(), prompts, ImageStyle{BaseSeed: 500})
	if err != nil {
		t.Fatalf("GenerateImages returned error: %v", err)
	}
	if len(assets) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(assets))
	}
	for i, asset := range assets {
		if asset == nil {
			t.Fatalf("slot %d unexpectedly nil", i)
		}
		if !strings.HasPrefix(string(asset.Bytes()), prompts[i]) {
			t.Fatalf("slot %d does not pair with prompt %q", i, prompts[i])
		}
		if asset.Seed != 500+int64(i) {
			t.Fatalf("slot %d seed %d, want %d", i, asset.Seed, 500+int64(i))
		}
	}
	for i, prompt := range prompts {
		if seeds[prompt] != 500+int64(i) {
			t.Fatalf("request for %q carried seed %d", prompt, seeds[prompt])
		}
	}
}

func TestGenerateImagesFailedSlotLeavesPlaceholder(t *testing.T) {
	fake := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Instances []struct {
				Prompt string `json:"prompt"`
			} `json:"instances"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Instances[0].Prompt == "p1" {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"boom"}}`))
			return
		}
		payload := map[string]any{
			"predictions": []map[string]any{
				{"bytesBase64Encoded": base64.StdEncoding.EncodeToString([]byte("img"))},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	})

	session, _ := newTestSession(t, fake.server.URL, nil)
	assets, err := session.GenerateImages(context.Background(), []string{"p0", "p1", "p2"}, ImageStyle{BaseSeed: 9})
	if err != nil {
		t.Fatalf("GenerateImages returned error: %v", err)
	}
	if assets[0] == nil || assets[2] == nil {
		t.Fatal("healthy slots lost their images")
	}
	if assets[1] != nil {
		t.Fatal("failed slot should stay a nil placeholder")
	}
}

func TestGenerateNarrationChunksSequentially(t *testing.T) {
	var received []string
	fake := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		prompt := promptOf(r)
		received = append(received, prompt)
		payload := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{
					{"inlineData": map[string]any{
						"mimeType": "audio/L16;rate=24000",
						"data":     base64.StdEncoding.EncodeToString([]byte{1, 2}),
					}},
				}}},
			},
		}
		_ = json.NewEncoder(w).Encode(payload)
	})

	session, _ := newTestSession(t, fake.server.URL, nil)
	text := "alpha beta. gamma delta. epsilon zeta"
	assets, err := session.GenerateNarration(context.Background(), text, NarrationConfig{
		Mode:       gemini.VoiceModeSingle,
		Voice1:     "Kore",
		ChunkLimit: 14,
	})
	if err != nil {
		t.Fatalf("GenerateNarration returned error: %v", err)
	}
	if len(assets) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(assets))
	}
	if !strings.Contains(received[0], "alpha beta") {
		t.Fatalf("chunks out of order: first request %q", received[0])
	}
	for i, asset := range assets {
		wav := asset.Bytes()
		if len(wav) != 46 || string(wav[0:4]) != "RIFF" {
			t.Fatalf("chunk %d is not a wav container (%d bytes)", i, len(wav))
		}
		if asset.SampleRate != 24000 {
			t.Fatalf("chunk %d sample rate %d", i, asset.SampleRate)
		}
	}
}

func TestGenerateVideoPollsUntilDone(t *testing.T) {
	polls := 0
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/models/veo-3.1-fast-generate-preview:predictLongRunning", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "operations/vid-1"})
	})
	mux.HandleFunc("/operations/vid-1", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 3 {
			_ = json.NewEncoder(w).Encode(map[string]any{"name": "operations/vid-1", "done": false})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name": "operations/vid-1",
			"done": true,
			"response": map[string]any{
				"generateVideoResponse": map[string]any{
					"generatedSamples": []map[string]any{
						{"video": map[string]any{"uri": server.URL + "/clip?alt=media"}},
					},
				},
			},
		})
	})
	mux.HandleFunc("/clip", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("mp4"))
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	session, waits := newTestSession(t, server.URL, nil)
	asset, err := session.GenerateVideo(context.Background(), gemini.VideoParams{Prompt: "storm"})
	if err != nil {
		t.Fatalf("GenerateVideo returned error: %v", err)
	}
	if string(asset.Bytes()) != "mp4" {
		t.Fatal("clip bytes missing")
	}
	pollWaits := 0
	for _, d := range *waits {
		if d == DefaultVideoPollInterval {
			pollWaits++
		}
	}
	if pollWaits != 3 {
		t.Fatalf("expected 3 poll waits, got %d", pollWaits)
	}
}

func TestGenerateVideoTimesOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/models/veo-3.1-fast-generate-preview:predictLongRunning", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "operations/vid-1"})
	})
	mux.HandleFunc("/operations/vid-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "operations/vid-1", "done": false})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	session, _ := newTestSession(t, server.URL, func(cfg *SessionConfig) {
		cfg.VideoPollAttempts = 4
	})
	_, err := session.GenerateVideo(context.Background(), gemini.VideoParams{Prompt: "storm"})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestFindStorySuggestions(t *testing.T) {
	fake := newFakeGemini(t, func(w http.ResponseWriter, r *http.Request) {
		encoded, _ := json.Marshal(map[string]any{
			"suggestions": []map[string]any{
				{"title": "The Silk Road", "synopsis": "s", "popularity_reasons": []string{"a"}, "youtube_keywords": []string{"k"}},
				{"title": "B", "synopsis": "s", "popularity_reasons": []string{}, "youtube_keywords": []string{}},
				{"title": "C", "synopsis": "s", "popularity_reasons": []string{}, "youtube_keywords": []string{}},
			},
		})
		writeText(w, string(encoded))
	})
	session, _ := newTestSession(t, fake.server.URL, nil)
	got, err := session.FindStorySuggestions(context.Background(), "history", "empires")
	if err != nil {
		t.Fatalf("FindStorySuggestions returned error: %v", err)
	}
	if len(got) != 3 || got[0].Title != "The Silk Road" {
		t.Fatalf("unexpected suggestions %+v", got)
	}
}

package export

import (
	"archive/zip"
	"bytes"
	"io"
	"strings"
	"testing"

	"storyforge/internal/story"
)

func zippedStory() *story.Story {
	episode := story.Episode{
		Text: "Episode script.",
		SEO:  &story.SEOData{Title: "The Keeper's Map", Description: "Desc", Tags: []string{"sea", "map"}},
	}
	episode.Images = []*story.ImageAsset{
		story.NewImageAsset([]byte("img-1"), "image/png", 1),
		nil,
		story.NewImageAsset([]byte("img-3"), "image/png", 3),
	}
	episode.Narration = []*story.AudioAsset{
		story.NewAudioAsset([]byte("wav"), 24000),
		story.NewAudioAsset([]byte("wav2"), 24000),
	}
	return &story.Story{
		Prompt:   "a lighthouse keeper finds a map",
		Episodes: []story.Episode{episode, {Text: "Second episode."}},
	}
}

func TestWriteZipLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteZip(&buf, zippedStory()); err != nil {
		t.Fatalf("WriteZip returned error: %v", err)
	}
	reader, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip unreadable: %v", err)
	}

	files := map[string]string{}
	for _, f := range reader.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, _ := io.ReadAll(rc)
		_ = rc.Close()
		files[f.Name] = string(data)
	}

	if got := files["episode_1/text/episode_script.txt"]; got != "Episode script." {
		t.Fatalf("script content %q", got)
	}
	seo := files["episode_1/text/seo_and_metadata.txt"]
	if !strings.Contains(seo, "The Keeper's Map") || !strings.Contains(seo, "sea, map") {
		t.Fatalf("seo text %q", seo)
	}
	if files["episode_1/audio/voiceover.wav"] != "wav" {
		t.Fatal("first narration chunk missing")
	}
	if files["episode_1/audio/voiceover_02.wav"] != "wav2" {
		t.Fatal("second narration chunk missing")
	}
	if files["episode_1/images/image_01.png"] != "img-1" {
		t.Fatal("first image missing")
	}
	if _, ok := files["episode_1/images/image_02.png"]; ok {
		t.Fatal("nil image slot should not produce a file")
	}
	if files["episode_1/images/image_03.png"] != "img-3" {
		t.Fatal("third image slot lost its number")
	}
	// The second episode has no media but still gets the folder skeleton.
	if _, ok := files["episode_2/videos/"]; !ok {
		t.Fatal("empty videos folder missing for second episode")
	}
	if !strings.Contains(files["episode_2/text/seo_and_metadata.txt"], "No publishing metadata") {
		t.Fatal("missing-seo placeholder absent")
	}
}

func TestSafeFilename(t *testing.T) {
	s := zippedStory()
	if got := SafeFilename(s); got != "The Keeper_s Map" {
		t.Fatalf("unexpected filename %q", got)
	}
	s.Episodes[0].SEO = nil
	if got := SafeFilename(s); got != "a lighthouse keeper finds a ma" {
		t.Fatalf("prompt fallback produced %q", got)
	}
	if got := SafeFilename(&story.Story{}); got != "story_project" {
		t.Fatalf("empty story produced %q", got)
	}
}

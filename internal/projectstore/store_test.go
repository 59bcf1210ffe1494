package projectstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"storyforge/internal/services"
	"storyforge/internal/story"
)

func validHandle(t *testing.T) Handle {
	t.Helper()
	handle, err := NewHandle(t.TempDir())
	if err != nil {
		t.Fatalf("NewHandle returned error: %v", err)
	}
	if err := handle.Validate(context.Background()); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	return handle
}

func sampleRecord(id string, createdAt time.Time) story.ArchivedStoryRecord {
	episode := story.Episode{
		Text:              "Episode one text.",
		SEO:               &story.SEOData{Title: "T", Description: "D", Tags: []string{"a"}},
		ImageScenePrompts: []string{"scene one", "scene two", "scene three"},
	}
	episode.Images = []*story.ImageAsset{
		story.NewImageAsset([]byte("img-1"), "image/png", 10),
		nil, // failed slot
		story.NewImageAsset([]byte("img-3"), "image/png", 12),
	}
	episode.Narration = []*story.AudioAsset{
		story.NewAudioAsset([]byte("wav-1"), 24000),
		story.NewAudioAsset([]byte("wav-2"), 24000),
	}
	episode.Videos = []*story.VideoAsset{
		story.NewVideoAsset([]byte("clip-1"), "video/mp4"),
	}
	return story.ArchivedStoryRecord{
		Version:   story.CurrentRecordVersion,
		ID:        id,
		Title:     "The Keeper's Map",
		CreatedAt: createdAt,
		Data: story.Story{
			Prompt:   "a lighthouse keeper finds a map",
			Episodes: []story.Episode{episode},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	handle := validHandle(t)
	store := NewStore(handle, nil)
	ctx := context.Background()

	createdAt := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	record := sampleRecord("story-20260301-120000-abcd1234", createdAt)
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	// Metadata first: story.json must exist at the top of the story dir.
	if _, err := os.Stat(filepath.Join(handle.Path(), record.ID, "story.json")); err != nil {
		t.Fatalf("metadata missing: %v", err)
	}

	records, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.ID != record.ID || got.Title != record.Title || !got.CreatedAt.Equal(createdAt) {
		t.Fatalf("metadata mismatch: %+v", got)
	}
	if got.Version != 1 {
		t.Fatalf("version %d, want 1", got.Version)
	}
	episode := got.Data.Episodes[0]
	if episode.Text != "Episode one text." || episode.SEO == nil {
		t.Fatal("episode text or seo lost")
	}
	// The failed slot was never written, but the filenames encode slot
	// numbers, so it comes back as a nil placeholder in position.
	if len(episode.Images) != 3 {
		t.Fatalf("expected 3 image slots, got %d", len(episode.Images))
	}
	if episode.Images[1] != nil {
		t.Fatal("failed image slot should reload as nil")
	}
	if string(episode.Images[0].Bytes()) != "img-1" || string(episode.Images[2].Bytes()) != "img-3" {
		t.Fatal("images shifted out of their scene prompt slots")
	}
	if len(episode.Narration) != 2 {
		t.Fatalf("expected 2 narration chunks, got %d", len(episode.Narration))
	}
	if string(episode.Narration[0].Bytes()) != "wav-1" || string(episode.Narration[1].Bytes()) != "wav-2" {
		t.Fatal("narration chunk order lost")
	}
	if len(episode.Videos) != 1 || string(episode.Videos[0].Bytes()) != "clip-1" {
		t.Fatal("video clip lost")
	}
}

func TestLoadKeepsImagesPairedWithScenePrompts(t *testing.T) {
	handle := validHandle(t)
	store := NewStore(handle, nil)
	ctx := context.Background()

	episode := story.Episode{
		Text:              "Episode text.",
		ImageScenePrompts: []string{"scene one", "scene two", "scene three"},
		Images: []*story.ImageAsset{
			nil, // failed slot at the front
			story.NewImageAsset([]byte("img-2"), "image/png", 0),
			story.NewImageAsset([]byte("img-3"), "image/png", 0),
		},
	}
	record := story.ArchivedStoryRecord{
		Version:   story.CurrentRecordVersion,
		ID:        "story-20260302-080000-feedbeef",
		Title:     "Gapped",
		CreatedAt: time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC),
		Data:      story.Story{Prompt: "p", Episodes: []story.Episode{episode}},
	}
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	records, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}
	got := records[0].Data.Episodes[0]
	if len(got.Images) != len(got.ImageScenePrompts) {
		t.Fatalf("got %d images for %d scene prompts", len(got.Images), len(got.ImageScenePrompts))
	}
	if got.Images[0] != nil {
		t.Fatal("leading failed slot should reload as nil")
	}
	if string(got.Images[1].Bytes()) != "img-2" || string(got.Images[2].Bytes()) != "img-3" {
		t.Fatal("images shifted out of their scene prompt slots")
	}
}

func TestImageSlotParsing(t *testing.T) {
	cases := []struct {
		name string
		want int
	}{
		{"image_01.png", 1},
		{"image_12.png", 12},
		{"image_1.png", 1},
		{"cover.png", 0},
		{"image_.png", 0},
		{"image_00.png", 0},
	}
	for _, tc := range cases {
		if got := imageSlot(tc.name); got != tc.want {
			t.Errorf("imageSlot(%q) = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestLoadAllSortsNewestFirst(t *testing.T) {
	handle := validHandle(t)
	store := NewStore(handle, nil)
	ctx := context.Background()

	older := sampleRecord("story-a", time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	newer := sampleRecord("story-b", time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC))
	if err := store.Save(ctx, older); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, newer); err != nil {
		t.Fatal(err)
	}

	records, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}
	if records[0].ID != "story-b" || records[1].ID != "story-a" {
		t.Fatalf("records not newest-first: %s, %s", records[0].ID, records[1].ID)
	}
}

func TestLoadAllToleratesMissingAssetDirs(t *testing.T) {
	handle := validHandle(t)
	store := NewStore(handle, nil)
	ctx := context.Background()

	record := story.ArchivedStoryRecord{
		Version:   1,
		ID:        "story-text-only",
		Title:     "Text Only",
		CreatedAt: time.Now().UTC(),
		Data: story.Story{
			Prompt:   "p",
			Episodes: []story.Episode{{Text: "just text"}},
		},
	}
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	records, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll returned error: %v", err)
	}
	episode := records[0].Data.Episodes[0]
	if len(episode.Images) != 0 || len(episode.Narration) != 0 || len(episode.Videos) != 0 {
		t.Fatal("missing asset directories should load as empty lists")
	}
}

func TestValidateStaleHandle(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "project")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatal(err)
	}
	handle, err := NewHandle(target)
	if err != nil {
		t.Fatal(err)
	}
	if err := handle.Validate(context.Background()); err != nil {
		t.Fatalf("fresh directory should validate: %v", err)
	}
	if err := os.RemoveAll(target); err != nil {
		t.Fatal(err)
	}
	err = handle.Validate(context.Background())
	if !errors.Is(err, services.ErrStaleHandle) {
		t.Fatalf("expected stale handle, got %v", err)
	}
}

func TestAcquireHandleForgetsStaleCapability(t *testing.T) {
	ctx := context.Background()
	kv, err := OpenKV(filepath.Join(t.TempDir(), "state", "storyforge.db"))
	if err != nil {
		t.Fatalf("OpenKV returned error: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })

	gone := filepath.Join(t.TempDir(), "vanished")
	if err := kv.Set(ctx, KeyProjectDir, []byte(gone)); err != nil {
		t.Fatal(err)
	}

	prompted := false
	fresh := t.TempDir()
	handle, err := AcquireHandle(ctx, kv, true, func(context.Context) (string, error) {
		prompted = true
		return fresh, nil
	})
	if err != nil {
		t.Fatalf("AcquireHandle returned error: %v", err)
	}
	if !prompted {
		t.Fatal("stale capability should trigger a re-prompt")
	}
	if handle.Path() != fresh {
		t.Fatalf("unexpected handle path %q", handle.Path())
	}
	remembered, ok, err := kv.Get(ctx, KeyProjectDir)
	if err != nil || !ok {
		t.Fatalf("remembered directory missing: %v", err)
	}
	if string(remembered) != fresh {
		t.Fatalf("remembered %q, want %q", remembered, fresh)
	}
}

func TestAcquireHandleWithoutPromptReturnsZero(t *testing.T) {
	ctx := context.Background()
	kv, err := OpenKV(filepath.Join(t.TempDir(), "storyforge.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kv.Close() })

	handle, err := AcquireHandle(ctx, kv, false, nil)
	if err != nil {
		t.Fatalf("AcquireHandle returned error: %v", err)
	}
	if !handle.IsZero() {
		t.Fatal("expected zero handle when nothing is remembered and prompting is off")
	}
}

func TestDeleteRemovesStory(t *testing.T) {
	handle := validHandle(t)
	store := NewStore(handle, nil)
	ctx := context.Background()

	record := sampleRecord("story-del", time.Now().UTC())
	if err := store.Save(ctx, record); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "story-del"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(handle.Path(), "story-del")); !os.IsNotExist(err) {
		t.Fatal("story directory still present after delete")
	}
}

func TestDeleteRejectsPathTraversal(t *testing.T) {
	store := NewStore(validHandle(t), nil)
	if err := store.Delete(context.Background(), "../escape"); err == nil {
		t.Fatal("expected error for traversal id")
	}
	if err := store.Delete(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestNaturalLess(t *testing.T) {
	names := []string{"image_10.png", "image_2.png", "image_1.png", "image_03.png"}
	sort.Slice(names, func(i, j int) bool { return naturalLess(names[i], names[j]) })
	want := []string{"image_1.png", "image_2.png", "image_03.png", "image_10.png"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("position %d: got %q, want %q (full order %v)", i, names[i], want[i], names)
		}
	}
	if !naturalLess("voiceover.wav", "voiceover_02.wav") {
		t.Fatal("plain voiceover chunk must sort first")
	}
}

func TestKVRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv, err := OpenKV(filepath.Join(t.TempDir(), "storyforge.db"))
	if err != nil {
		t.Fatalf("OpenKV returned error: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })

	if _, ok, err := kv.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := kv.Set(ctx, KeyAPIKey, []byte("secret")); err != nil {
		t.Fatal(err)
	}
	if err := kv.Set(ctx, KeyAPIKey, []byte("rotated")); err != nil {
		t.Fatal(err)
	}
	value, ok, err := kv.Get(ctx, KeyAPIKey)
	if err != nil || !ok || string(value) != "rotated" {
		t.Fatalf("unexpected value %q ok=%v err=%v", value, ok, err)
	}

	if err := kv.Set(ctx, archivePrefix+"id-1", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	if err := kv.Set(ctx, archivePrefix+"id-2", []byte("{}")); err != nil {
		t.Fatal(err)
	}
	listed, err := kv.ListPrefix(ctx, archivePrefix)
	if err != nil {
		t.Fatalf("ListPrefix returned error: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 archive records, got %d", len(listed))
	}
	if err := kv.Delete(ctx, archivePrefix+"id-1"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := kv.Get(ctx, archivePrefix+"id-1"); ok {
		t.Fatal("deleted key still present")
	}
}

package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"storyforge/internal/projectstore"
	"storyforge/internal/story"
)

func newKV(t *testing.T) *projectstore.KV {
	t.Helper()
	kv, err := projectstore.OpenKV(filepath.Join(t.TempDir(), "storyforge.db"))
	if err != nil {
		t.Fatalf("OpenKV returned error: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func record(id string, createdAt time.Time) story.ArchivedStoryRecord {
	return story.ArchivedStoryRecord{
		Version:   1,
		ID:        id,
		Title:     "Title " + id,
		CreatedAt: createdAt,
		Data:      story.Story{Prompt: "prompt", Episodes: []story.Episode{{Text: "text"}}},
	}
}

func TestFallbackRoundTripNewestFirst(t *testing.T) {
	ctx := context.Background()
	a := New(nil, newKV(t))
	if a.HasDirectory() {
		t.Fatal("archive without store should report no directory")
	}

	older := record("story-a", time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	newer := record("story-b", time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC))
	if err := a.Save(ctx, older); err != nil {
		t.Fatal(err)
	}
	if err := a.Save(ctx, newer); err != nil {
		t.Fatal(err)
	}

	records, err := a.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(records) != 2 || records[0].ID != "story-b" || records[1].ID != "story-a" {
		t.Fatalf("unexpected order %+v", records)
	}
	if records[0].Data.Episodes[0].Text != "text" {
		t.Fatal("episode text lost in fallback round trip")
	}
}

func TestFallbackRemove(t *testing.T) {
	ctx := context.Background()
	a := New(nil, newKV(t))
	if err := a.Save(ctx, record("story-a", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	if err := a.Remove(ctx, "story-a"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	records, err := a.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty archive, got %d records", len(records))
	}
}

func TestDirectoryBackedArchive(t *testing.T) {
	ctx := context.Background()
	handle, err := projectstore.NewHandle(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store := projectstore.NewStore(handle, nil)
	a := New(store, newKV(t))
	if !a.HasDirectory() {
		t.Fatal("expected directory-backed archive")
	}
	if err := a.Save(ctx, record("story-dir", time.Now().UTC())); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	records, err := a.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(records) != 1 || records[0].ID != "story-dir" {
		t.Fatalf("unexpected records %+v", records)
	}
	if err := a.Remove(ctx, "story-dir"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
}

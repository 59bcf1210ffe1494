// Package archive lists and prunes saved stories. With a project directory
// the filesystem store is authoritative; without one, records round-trip
// through the session key-value store so nothing is lost before the user
// picks a folder.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"storyforge/internal/projectstore"
	"storyforge/internal/story"
)

const recordPrefix = "archive/"

// Archive provides a uniform view over the two persistence modes.
type Archive struct {
	store *projectstore.Store
	kv    *projectstore.KV
}

// New builds an archive. store may be nil when no project directory is
// available; kv must always be set.
func New(store *projectstore.Store, kv *projectstore.KV) *Archive {
	return &Archive{store: store, kv: kv}
}

// HasDirectory reports whether the archive is backed by a project folder.
func (a *Archive) HasDirectory() bool { return a.store != nil }

// List returns every saved story, newest first.
func (a *Archive) List(ctx context.Context) ([]story.ArchivedStoryRecord, error) {
	if a.store != nil {
		return a.store.LoadAll(ctx)
	}
	raw, err := a.kv.ListPrefix(ctx, recordPrefix)
	if err != nil {
		return nil, fmt.Errorf("archive: list fallback records: %w", err)
	}
	records := make([]story.ArchivedStoryRecord, 0, len(raw))
	for key, value := range raw {
		var record story.ArchivedStoryRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return nil, fmt.Errorf("archive: parse fallback record %s: %w", key, err)
		}
		if record.Version == 0 {
			record.Version = 1
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Save persists a record through whichever backend is available. Fallback
// records carry only metadata and text; media buffers need a directory.
func (a *Archive) Save(ctx context.Context, record story.ArchivedStoryRecord) error {
	if a.store != nil {
		return a.store.Save(ctx, record)
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("archive: encode fallback record: %w", err)
	}
	return a.kv.Set(ctx, recordPrefix+record.ID, encoded)
}

// Remove deletes a story permanently.
func (a *Archive) Remove(ctx context.Context, id string) error {
	if a.store != nil {
		return a.store.Delete(ctx, id)
	}
	return a.kv.Delete(ctx, recordPrefix+id)
}

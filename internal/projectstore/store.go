package projectstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"storyforge/internal/logging"
	"storyforge/internal/services"
	"storyforge/internal/story"
)

const (
	metadataFile  = "story.json"
	lockFile      = ".storyforge.lock"
	voiceoverFile = "voiceover.wav"
	imagesDir     = "images"
	videosDir     = "videos"
	fileMode      = 0o644

	lockRetryDelay = 250 * time.Millisecond
)

// Store reads and writes archived stories under a validated handle.
type Store struct {
	handle Handle
	logger *slog.Logger
}

// NewStore binds a store to a handle. The handle should have been validated
// this session.
func NewStore(handle Handle, logger *slog.Logger) *Store {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Store{handle: handle, logger: logger}
}

// Save persists record under <dir>/<id>/. The metadata file is written
// first so a story is listable even when asset writes fail; individual
// asset failures are logged and skipped. A directory-wide lock keeps at
// most one save in flight.
func (s *Store) Save(ctx context.Context, record story.ArchivedStoryRecord) error {
	if record.ID == "" {
		return errors.New("projectstore: record id required")
	}
	unlock, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	storyDir := filepath.Join(s.handle.Path(), record.ID)
	if err := os.MkdirAll(storyDir, defaultDirMode); err != nil {
		return s.classifyWriteErr("create story directory", err)
	}

	metadata, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("projectstore: encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(storyDir, metadataFile), metadata, fileMode); err != nil {
		return s.classifyWriteErr("write metadata", err)
	}

	for i := range record.Data.Episodes {
		s.saveEpisodeAssets(storyDir, &record.Data.Episodes[i], i+1)
	}
	return nil
}

func (s *Store) saveEpisodeAssets(storyDir string, episode *story.Episode, number int) {
	episodeDir := filepath.Join(storyDir, fmt.Sprintf("episode_%d", number))

	if len(episode.Narration) > 0 {
		if err := os.MkdirAll(episodeDir, defaultDirMode); err != nil {
			s.logger.Warn("skipping episode assets", logging.Int(logging.FieldEpisodeIndex, number), logging.Error(err))
			return
		}
		for i, audio := range episode.Narration {
			data := audio.Bytes()
			if data == nil {
				continue
			}
			name := voiceoverFile
			if i > 0 {
				name = fmt.Sprintf("voiceover_%02d.wav", i+1)
			}
			if err := os.WriteFile(filepath.Join(episodeDir, name), data, fileMode); err != nil {
				s.logger.Warn("failed to save narration chunk, skipping",
					logging.Int(logging.FieldEpisodeIndex, number),
					logging.Int("chunk", i+1),
					logging.Error(err))
			}
		}
	}

	if hasImages(episode.Images) {
		imageDir := filepath.Join(episodeDir, imagesDir)
		if err := os.MkdirAll(imageDir, defaultDirMode); err != nil {
			s.logger.Warn("skipping episode images", logging.Int(logging.FieldEpisodeIndex, number), logging.Error(err))
		} else {
			for i, image := range episode.Images {
				data := image.Bytes()
				if data == nil {
					continue
				}
				name := fmt.Sprintf("image_%02d.png", i+1)
				if err := os.WriteFile(filepath.Join(imageDir, name), data, fileMode); err != nil {
					s.logger.Warn("failed to save image, skipping",
						logging.Int(logging.FieldEpisodeIndex, number),
						logging.Int("slot", i+1),
						logging.Error(err))
				}
			}
		}
	}

	if len(episode.Videos) > 0 {
		videoDir := filepath.Join(episodeDir, videosDir)
		if err := os.MkdirAll(videoDir, defaultDirMode); err != nil {
			s.logger.Warn("skipping episode videos", logging.Int(logging.FieldEpisodeIndex, number), logging.Error(err))
		} else {
			for i, video := range episode.Videos {
				data := video.Bytes()
				if data == nil {
					continue
				}
				name := fmt.Sprintf("clip_%02d.mp4", i+1)
				if err := os.WriteFile(filepath.Join(videoDir, name), data, fileMode); err != nil {
					s.logger.Warn("failed to save video clip, skipping",
						logging.Int(logging.FieldEpisodeIndex, number),
						logging.Int("clip", i+1),
						logging.Error(err))
				}
			}
		}
	}
}

func hasImages(images []*story.ImageAsset) bool {
	for _, image := range images {
		if image.Bytes() != nil {
			return true
		}
	}
	return false
}

// LoadAll reads every story directory under the handle, newest first.
// Missing asset directories yield empty asset lists; an unreadable story
// directory is logged and skipped rather than failing the whole listing.
func (s *Store) LoadAll(ctx context.Context) ([]story.ArchivedStoryRecord, error) {
	entries, err := os.ReadDir(s.handle.Path())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrStaleHandle, "storage", "list", "project directory no longer exists", err)
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, services.Wrap(services.ErrPermissionDenied, "storage", "list", "project directory not readable", err)
		}
		return nil, err
	}

	var records []story.ArchivedStoryRecord
	for _, entry := range entries {
		if ctx != nil && ctx.Err() != nil {
			return records, ctx.Err()
		}
		if !entry.IsDir() {
			continue
		}
		record, err := s.loadStory(filepath.Join(s.handle.Path(), entry.Name()))
		if err != nil {
			s.logger.Warn("skipping unreadable story directory",
				logging.String("dir", entry.Name()),
				logging.Error(err))
			continue
		}
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (s *Store) loadStory(storyDir string) (story.ArchivedStoryRecord, error) {
	var record story.ArchivedStoryRecord
	metadata, err := os.ReadFile(filepath.Join(storyDir, metadataFile))
	if err != nil {
		return record, err
	}
	if err := json.Unmarshal(metadata, &record); err != nil {
		return record, fmt.Errorf("parse %s: %w", metadataFile, err)
	}
	if record.Version == 0 {
		record.Version = 1
	}

	for i := range record.Data.Episodes {
		episodeDir := filepath.Join(storyDir, fmt.Sprintf("episode_%d", i+1))
		episode := &record.Data.Episodes[i]
		episode.Narration = s.loadNarration(episodeDir)
		episode.Images = s.loadImages(filepath.Join(episodeDir, imagesDir))
		episode.Videos = s.loadVideos(filepath.Join(episodeDir, videosDir))
	}
	return record, nil
}

func (s *Store) loadNarration(episodeDir string) []*story.AudioAsset {
	entries, err := os.ReadDir(episodeDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, "voiceover") && strings.HasSuffix(name, ".wav") {
			names = append(names, name)
		}
	}
	// Plain voiceover.wav is chunk one; numbered chunks follow in order.
	sort.Slice(names, func(i, j int) bool { return naturalLess(names[i], names[j]) })
	var assets []*story.AudioAsset
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(episodeDir, name))
		if err != nil {
			s.logger.Warn("skipping unreadable narration file", logging.String("file", name), logging.Error(err))
			continue
		}
		assets = append(assets, story.NewAudioAsset(data, 0))
	}
	return assets
}

// loadImages reinserts each image at the slot encoded in its filename.
// Slots that failed generation were never written, so the returned slice
// carries nil placeholders for the gaps and images keep pairing
// positionally with the episode's scene prompts.
func (s *Store) loadImages(imageDir string) []*story.ImageAsset {
	entries, err := os.ReadDir(imageDir)
	if err != nil {
		return nil
	}
	var assets []*story.ImageAsset
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".png") {
			continue
		}
		slot := imageSlot(name)
		if slot < 1 {
			s.logger.Warn("skipping image with unrecognized name", logging.String("file", name))
			continue
		}
		data, err := os.ReadFile(filepath.Join(imageDir, name))
		if err != nil {
			s.logger.Warn("skipping unreadable image file", logging.String("file", name), logging.Error(err))
			continue
		}
		for len(assets) < slot {
			assets = append(assets, nil)
		}
		assets[slot-1] = story.NewImageAsset(data, "image/png", 0)
	}
	return assets
}

// imageSlot extracts the 1-based slot number from an image_NN.png name;
// 0 means the name does not follow the convention.
func imageSlot(name string) int {
	base := strings.TrimSuffix(name, ".png")
	rest, ok := strings.CutPrefix(base, "image_")
	if !ok {
		return 0
	}
	slot, err := strconv.Atoi(rest)
	if err != nil || slot < 1 {
		return 0
	}
	return slot
}

func (s *Store) loadVideos(videoDir string) []*story.VideoAsset {
	entries, err := os.ReadDir(videoDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".mp4") {
			names = append(names, entry.Name())
		}
	}
	sort.Slice(names, func(i, j int) bool { return naturalLess(names[i], names[j]) })
	var assets []*story.VideoAsset
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(videoDir, name))
		if err != nil {
			s.logger.Warn("skipping unreadable video file", logging.String("file", name), logging.Error(err))
			continue
		}
		assets = append(assets, story.NewVideoAsset(data, "video/mp4"))
	}
	return assets
}

// Delete removes a story directory recursively. Irreversible.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("projectstore: invalid story id %q", id)
	}
	unlock, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	if err := os.RemoveAll(filepath.Join(s.handle.Path(), id)); err != nil {
		return s.classifyWriteErr("delete story directory", err)
	}
	return nil
}

func (s *Store) acquireLock(ctx context.Context) (func(), error) {
	ctx = ensureContext(ctx)
	lock := flock.New(filepath.Join(s.handle.Path(), lockFile))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("projectstore: acquire save lock: %w", err)
	}
	if !locked {
		return nil, errors.New("projectstore: save lock unavailable")
	}
	return func() { _ = lock.Unlock() }, nil
}

func (s *Store) classifyWriteErr(operation string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return services.Wrap(services.ErrStaleHandle, "storage", operation, "project directory no longer exists", err)
	case errors.Is(err, fs.ErrPermission):
		return services.Wrap(services.ErrPermissionDenied, "storage", operation, "project directory not writable", err)
	default:
		return services.Wrap(nil, "storage", operation, "filesystem write failed", err)
	}
}

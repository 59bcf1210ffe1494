package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"storyforge/internal/logging"
	"storyforge/internal/progress"
	"storyforge/internal/retry"
	"storyforge/internal/services"
	"storyforge/internal/services/gemini"
	"storyforge/internal/story"
	"storyforge/internal/textsplit"
	"storyforge/internal/wavepack"
)

// ImageStyle carries the shared styling applied to every slot of a batch.
type ImageStyle struct {
	Style          string
	Chips          []string
	NegativePrompt string
	AspectRatio    string
	// BaseSeed anchors the batch; slot i uses BaseSeed+i. Zero picks a
	// random base so a re-run produces a fresh set.
	BaseSeed int64
}

const maxConcurrentImages = 3

// GenerateImages renders one image per prompt. Slots run concurrently but
// the result slice pairs positionally with prompts: output i was rendered
// from prompts[i] with seed BaseSeed+i. A failed slot stays nil so the
// pairing survives; the failure is logged and reported, not fatal.
func (s *Session) GenerateImages(ctx context.Context, prompts []string, style ImageStyle) ([]*story.ImageAsset, error) {
	if len(prompts) == 0 {
		return nil, nil
	}
	baseSeed := style.BaseSeed
	if baseSeed == 0 {
		baseSeed = s.seed()
	}
	s.reporter.Publishf(progress.StageImages, fmt.Sprintf("Generating %d images...", len(prompts)))

	assets := make([]*story.ImageAsset, len(prompts))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentImages)
	for i, prompt := range prompts {
		group.Go(func() error {
			seed := baseSeed + int64(i)
			images, err := retry.Do(groupCtx, s.exec, s.retryPolicy(progress.StageImages), func(ctx context.Context) ([][]byte, error) {
				return s.images.Generate(ctx, gemini.ImageParams{
					Prompt:         prompt,
					Style:          style.Style,
					Chips:          style.Chips,
					NegativePrompt: style.NegativePrompt,
					AspectRatio:    style.AspectRatio,
					Count:          1,
					Seed:           seed,
				})
			})
			if err != nil {
				s.logger.Warn("image slot failed, leaving placeholder",
					logging.Int("slot", i),
					logging.Error(err))
				s.reporter.Publish(progress.Event{
					Stage:   progress.StageImages,
					Message: fmt.Sprintf("Image %d of %d failed, skipping", i+1, len(prompts)),
				})
				return nil
			}
			assets[i] = story.NewImageAsset(images[0], "image/png", seed)
			s.reporter.Publish(progress.Event{
				Stage:   progress.StageImages,
				Message: fmt.Sprintf("Image %d of %d ready", i+1, len(prompts)),
			})
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return assets, err
	}
	if ctx.Err() != nil {
		return assets, ctx.Err()
	}
	return assets, nil
}

// NarrationConfig shapes a voiceover run.
type NarrationConfig struct {
	Mode             gemini.VoiceMode
	Voice1           string
	Voice2           string
	StyleInstruction string
	// ChunkLimit overrides the provider character budget (tests only).
	ChunkLimit int
}

// GenerateNarration splits text into provider-sized chunks and synthesizes
// them strictly in order, wrapping each PCM payload in a WAV container. A
// chunk failure aborts the run; chunks already synthesized are released.
func (s *Session) GenerateNarration(ctx context.Context, text string, cfg NarrationConfig) ([]*story.AudioAsset, error) {
	limit := cfg.ChunkLimit
	if limit <= 0 {
		limit = textsplit.MaxChunkLength
	}
	chunks := textsplit.ChunksWithLimit(text, limit)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("pipeline: no narration text")
	}

	assets := make([]*story.AudioAsset, 0, len(chunks))
	for i, chunk := range chunks {
		s.reporter.Publishf(progress.StageNarration, fmt.Sprintf("Synthesizing part %d of %d...", i+1, len(chunks)))
		type synthesized struct {
			pcm  []byte
			rate int
		}
		out, err := retry.Do(ctx, s.exec, s.retryPolicy(progress.StageNarration), func(ctx context.Context) (synthesized, error) {
			pcm, rate, err := s.speech.Synthesize(ctx, gemini.SpeechRequest{
				Text:             chunk,
				Mode:             cfg.Mode,
				Voice1:           cfg.Voice1,
				Voice2:           cfg.Voice2,
				StyleInstruction: cfg.StyleInstruction,
			})
			return synthesized{pcm: pcm, rate: rate}, err
		})
		if err != nil {
			for _, asset := range assets {
				asset.Release()
			}
			return nil, services.Wrap(nil, "narration", fmt.Sprintf("chunk %d", i+1), "speech synthesis failed", err)
		}
		assets = append(assets, story.NewAudioAsset(wavepack.Pack(out.pcm, out.rate), out.rate))
	}
	return assets, nil
}

// GenerateVideo submits a clip request and waits for it with a fixed poll
// cadence. The wait is bounded; when the budget runs out the caller gets a
// timeout error and the operation is abandoned.
func (s *Session) GenerateVideo(ctx context.Context, params gemini.VideoParams) (*story.VideoAsset, error) {
	s.reporter.Publishf(progress.StageVideo, "Submitting video generation job...")
	job, err := retry.Do(ctx, s.exec, s.retryPolicy(progress.StageVideo), func(ctx context.Context) (gemini.Job, error) {
		return s.video.Submit(ctx, params)
	})
	if err != nil {
		return nil, services.Wrap(nil, "video", "submit", "video job submission failed", err)
	}
	s.reporter.Publishf(progress.StageVideo, "Video job accepted, waiting for processing...")

	for attempt := 1; !job.Done; attempt++ {
		if attempt > s.cfg.VideoPollAttempts {
			return nil, services.Wrap(services.ErrTimeout, "video", "poll",
				fmt.Sprintf("video not finished after %d status checks", s.cfg.VideoPollAttempts), nil)
		}
		if err := s.sleep(ctx, s.cfg.VideoPollInterval); err != nil {
			return nil, err
		}
		s.reporter.Publish(progress.Event{
			Stage:   progress.StageVideo,
			Message: "Video still processing, checking status...",
			Attempt: attempt,
		})
		job, err = s.video.Poll(ctx, job)
		if err != nil {
			return nil, services.Wrap(nil, "video", "poll", "status check failed", err)
		}
	}

	s.reporter.Publishf(progress.StageVideo, "Video ready, downloading...")
	data, err := s.video.Download(ctx, job)
	if err != nil {
		return nil, services.Wrap(nil, "video", "download", "clip download failed", err)
	}
	return story.NewVideoAsset(data, "video/mp4"), nil
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"storyforge/internal/pipeline"
	"storyforge/internal/services/gemini"
	"storyforge/internal/services/slideshow"
	"storyforge/internal/studio"
)

func newMediaCommand(ctx *commandContext) *cobra.Command {
	mediaCmd := &cobra.Command{
		Use:   "media",
		Short: "Generate images, narration, storyboards, and video for episodes",
	}
	mediaCmd.AddCommand(newMediaImagesCommand(ctx))
	mediaCmd.AddCommand(newMediaNarrationCommand(ctx))
	mediaCmd.AddCommand(newMediaStoryboardCommand(ctx))
	mediaCmd.AddCommand(newMediaVideoCommand(ctx))
	mediaCmd.AddCommand(newMediaSlideshowCommand(ctx))
	return mediaCmd
}

func newMediaImagesCommand(ctx *commandContext) *cobra.Command {
	var (
		style    string
		chips    []string
		negative string
		aspect   string
		seed     int64
	)
	cmd := &cobra.Command{
		Use:   "images <story-id> <episode>",
		Short: "Render one image per visual scene of an episode",
		Long: "Images extracts the episode's key visual scenes when it has none yet, then\n" +
			"renders one image per scene. Scenes that fail stay empty so the remaining\n" +
			"images keep their position; re-running fills only the style requested.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editEpisode(ctx, cmd, args[0], args[1], func(runCtx context.Context, st *studio.Studio, number int) error {
				return st.GenerateEpisodeImages(runCtx, number, pipeline.ImageStyle{
					Style:          style,
					Chips:          chips,
					NegativePrompt: negative,
					AspectRatio:    aspect,
					BaseSeed:       seed,
				})
			})
		},
	}
	cmd.Flags().StringVar(&style, "style", "cinematic, photorealistic", "Style suffix appended to every scene prompt")
	cmd.Flags().StringArrayVar(&chips, "chip", nil, "Extra style fragment (repeatable)")
	cmd.Flags().StringVar(&negative, "negative", "", "Elements to avoid")
	cmd.Flags().StringVar(&aspect, "aspect", "", "Aspect ratio (defaults to 16:9)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Base seed; scene i uses seed+i (0 picks a random base)")
	return cmd
}

func newMediaNarrationCommand(ctx *commandContext) *cobra.Command {
	var (
		mode             string
		voice1           string
		voice2           string
		styleInstruction string
	)
	cmd := &cobra.Command{
		Use:   "narration <story-id> <episode>",
		Short: "Synthesize an episode's text into narration audio",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			narration := pipeline.NarrationConfig{
				Mode:             gemini.VoiceMode(cfg.Voice.Mode),
				Voice1:           cfg.Voice.Voice1,
				Voice2:           cfg.Voice.Voice2,
				StyleInstruction: cfg.Voice.StyleInstruction,
			}
			if mode != "" {
				narration.Mode = gemini.VoiceMode(mode)
			}
			if voice1 != "" {
				narration.Voice1 = voice1
			}
			if voice2 != "" {
				narration.Voice2 = voice2
			}
			if styleInstruction != "" {
				narration.StyleInstruction = styleInstruction
			}
			return editEpisode(ctx, cmd, args[0], args[1], func(runCtx context.Context, st *studio.Studio, number int) error {
				return st.GenerateEpisodeNarration(runCtx, number, narration)
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "Narration mode: single or multi")
	cmd.Flags().StringVar(&voice1, "voice1", "", "Primary narrator voice")
	cmd.Flags().StringVar(&voice2, "voice2", "", "Second speaker voice (multi mode)")
	cmd.Flags().StringVar(&styleInstruction, "style-instruction", "", "Delivery instruction, e.g. a tone or pace")
	return cmd
}

func newMediaStoryboardCommand(ctx *commandContext) *cobra.Command {
	var seconds int
	cmd := &cobra.Command{
		Use:   "storyboard <story-id> <episode>",
		Short: "Extract storyboard scenes sized to a target runtime",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if seconds <= 0 {
				return fmt.Errorf("--seconds must be positive")
			}
			return editEpisode(ctx, cmd, args[0], args[1], func(runCtx context.Context, st *studio.Studio, number int) error {
				return st.GenerateEpisodeStoryboard(runCtx, number, seconds)
			})
		},
	}
	cmd.Flags().IntVar(&seconds, "seconds", 60, "Target runtime in seconds; each scene covers eight seconds")
	return cmd
}

func newMediaVideoCommand(ctx *commandContext) *cobra.Command {
	var scene int
	cmd := &cobra.Command{
		Use:   "video <story-id> <episode>",
		Short: "Render one storyboard scene into a video clip",
		Long: "Video submits one storyboard scene for generation and polls until the clip\n" +
			"is ready. When the episode has an image for that scene it seeds the\n" +
			"generation, keeping the clip visually consistent with the stills.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editEpisode(ctx, cmd, args[0], args[1], func(runCtx context.Context, st *studio.Studio, number int) error {
				return st.GenerateEpisodeVideo(runCtx, number, scene)
			})
		},
	}
	cmd.Flags().IntVar(&scene, "scene", 1, "Storyboard scene number to render")
	return cmd
}

func newMediaSlideshowCommand(ctx *commandContext) *cobra.Command {
	var (
		title     string
		minutes   int
		slideSec  int
		animation string
	)
	cmd := &cobra.Command{
		Use:   "slideshow <image-url>...",
		Short: "Render hosted images into a slideshow video",
		Long: "Slideshow sends publicly reachable image URLs to the rendering service,\n" +
			"looping them until the target duration is covered, and polls until the\n" +
			"finished video URL is available.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := slideshow.Options{
				AnimationStyle:   slideshow.AnimationStyle(cfg.Slideshow.AnimationStyle),
				TransitionStyle:  cfg.Slideshow.TransitionStyle,
				SlideDurationSec: cfg.Slideshow.SlideDurationSec,
				TotalDurationMin: minutes,
			}
			if slideSec > 0 {
				opts.SlideDurationSec = slideSec
			}
			if animation != "" {
				opts.AnimationStyle = slideshow.AnimationStyle(animation)
			}
			return ctx.withStudio(cmd, func(runCtx context.Context, st *studio.Studio) error {
				client, err := st.SlideshowClient(runCtx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				url, err := client.Render(runCtx, args, opts, title, func(message string) {
					fmt.Fprintln(out, message)
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Video ready: %s\n", url)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "storyforge slideshow", "Project title for the render")
	cmd.Flags().IntVar(&minutes, "minutes", 1, "Target video duration in minutes")
	cmd.Flags().IntVar(&slideSec, "slide-seconds", 0, "Seconds each image stays on screen")
	cmd.Flags().StringVar(&animation, "animation", "", "Animation style: ken_burns or static")
	return cmd
}

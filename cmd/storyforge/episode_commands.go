package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"storyforge/internal/studio"
)

func newEpisodeCommand(ctx *commandContext) *cobra.Command {
	episodeCmd := &cobra.Command{
		Use:   "episode",
		Short: "Work on a single episode of an archived story",
	}
	episodeCmd.AddCommand(newEpisodeRegenerateCommand(ctx))
	episodeCmd.AddCommand(newEpisodeSEOCommand(ctx))
	episodeCmd.AddCommand(newEpisodeTextCommand(ctx))
	return episodeCmd
}

func parseEpisodeNumber(arg string) (int, error) {
	number, err := strconv.Atoi(arg)
	if err != nil || number < 1 {
		return 0, fmt.Errorf("episode number %q must be a positive integer", arg)
	}
	return number, nil
}

// editEpisode loads a story, applies fn to one episode, and writes the
// updated story back to the archive.
func editEpisode(ctx *commandContext, cmd *cobra.Command, id, episodeArg string, fn func(context.Context, *studio.Studio, int) error) error {
	number, err := parseEpisodeNumber(episodeArg)
	if err != nil {
		return err
	}
	return ctx.withStudio(cmd, func(runCtx context.Context, st *studio.Studio) error {
		if _, err := st.LoadStory(runCtx, id); err != nil {
			return err
		}
		session, err := st.Session(runCtx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		stopStream := streamEvents(out, session.Reporter())
		err = fn(runCtx, st, number)
		stopStream()
		current, budget := session.RateUsage()
		printRateUsage(out, current, budget)
		if err != nil {
			return err
		}
		if _, err := st.SaveCurrent(runCtx); err != nil {
			return err
		}
		fmt.Fprintf(out, "Episode %d updated and archived.\n", number)
		return nil
	})
}

func newEpisodeRegenerateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate <story-id> <episode>",
		Short: "Rewrite one episode's text and publishing metadata",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editEpisode(ctx, cmd, args[0], args[1], func(runCtx context.Context, st *studio.Studio, number int) error {
				return st.RegenerateEpisode(runCtx, number)
			})
		},
	}
}

func newEpisodeSEOCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "seo <story-id> <episode>",
		Short: "Regenerate one episode's publishing metadata",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editEpisode(ctx, cmd, args[0], args[1], func(runCtx context.Context, st *studio.Studio, number int) error {
				return st.RegenerateSEO(runCtx, number)
			})
		},
	}
}

func newEpisodeTextCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "text <story-id> <episode>",
		Short: "Save one episode's script as a text file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			number, err := parseEpisodeNumber(args[1])
			if err != nil {
				return err
			}
			return ctx.withStudio(cmd, func(runCtx context.Context, st *studio.Studio) error {
				if _, err := st.LoadStory(runCtx, args[0]); err != nil {
					return err
				}
				target := strings.TrimSpace(outPath)
				if target == "" {
					target = fmt.Sprintf("episode_%d.txt", number)
				}
				if err := st.ExportEpisodeText(target, number); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Destination text file")
	return cmd
}

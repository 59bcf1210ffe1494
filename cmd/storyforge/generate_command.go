package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"storyforge/internal/studio"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <prompt>",
		Short: "Generate a serialized story from a prompt and archive it",
		Long: "Generate expands a prompt into a chapter outline, writes every episode in\n" +
			"sequence, attempts publishing metadata per episode, and archives the result.\n" +
			"Episodes completed before a failure are kept and archived.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.TrimSpace(strings.Join(args, " "))
			if prompt == "" {
				return fmt.Errorf("prompt must not be empty")
			}
			return ctx.withStudio(cmd, func(runCtx context.Context, st *studio.Studio) error {
				session, err := st.Session(runCtx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				stopStream := streamEvents(out, session.Reporter())

				built, genErr := st.GenerateStory(runCtx, prompt)
				stopStream()
				current, budget := session.RateUsage()
				printRateUsage(out, current, budget)

				if built != nil && len(built.Episodes) > 0 {
					fmt.Fprintf(out, "Generated %d episode(s).\n", len(built.Episodes))
				}
				if id := st.CurrentID(); id != "" {
					fmt.Fprintf(out, "Archived as %s\n", id)
				}
				return genErr
			})
		},
	}
	return cmd
}

func newSuggestCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest <genre> [subcategory]",
		Short: "Suggest story ideas for a genre",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			subCategory := ""
			if len(args) > 1 {
				subCategory = args[1]
			}
			return ctx.withStudio(cmd, func(runCtx context.Context, st *studio.Studio) error {
				suggestions, err := st.Suggestions(runCtx, args[0], subCategory)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for i, suggestion := range suggestions {
					fmt.Fprintf(out, "%d. %s\n", i+1, suggestion.Title)
					fmt.Fprintf(out, "   %s\n", suggestion.Synopsis)
					if len(suggestion.PopularityReasons) > 0 {
						fmt.Fprintf(out, "   Why it works: %s\n", strings.Join(suggestion.PopularityReasons, "; "))
					}
					if len(suggestion.YoutubeKeywords) > 0 {
						fmt.Fprintf(out, "   Keywords: %s\n", strings.Join(suggestion.YoutubeKeywords, ", "))
					}
				}
				return nil
			})
		},
	}
	return cmd
}

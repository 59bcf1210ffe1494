package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"storyforge/internal/story"
	"storyforge/internal/studio"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived stories, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(cmd, func(runCtx context.Context, st *studio.Studio) error {
				records, err := st.Stories(runCtx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if dir := st.ProjectDir(); dir != "" {
					fmt.Fprintf(out, "Archive: %s\n", dir)
				} else {
					fmt.Fprintln(out, "Archive: state database (choose a folder with 'storyforge project set')")
				}
				if len(records) == 0 {
					fmt.Fprintln(out, "No archived stories.")
					return nil
				}
				rows := make([][]string, 0, len(records))
				for _, record := range records {
					rows = append(rows, []string{
						record.ID,
						truncate(record.Title, 48),
						formatWhen(record.CreatedAt),
						strconv.Itoa(len(record.Data.Episodes)),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Created", "Episodes"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <story-id>",
		Short: "Show one archived story in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(cmd, func(runCtx context.Context, st *studio.Studio) error {
				record, err := st.LoadStory(runCtx, args[0])
				if err != nil {
					return err
				}
				printRecord(cmd.OutOrStdout(), record)
				return nil
			})
		},
	}
}

func printRecord(out io.Writer, record story.ArchivedStoryRecord) {
	fmt.Fprintf(out, "%s\n", record.Title)
	fmt.Fprintf(out, "ID:      %s\n", record.ID)
	fmt.Fprintf(out, "Created: %s\n", formatWhen(record.CreatedAt))
	fmt.Fprintf(out, "Prompt:  %s\n", truncate(record.Data.Prompt, 100))

	rows := make([][]string, 0, len(record.Data.Episodes))
	for i, episode := range record.Data.Episodes {
		seoTitle := "-"
		if episode.SEO != nil {
			seoTitle = truncate(episode.SEO.Title, 40)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(wordCount(episode.Text)),
			seoTitle,
			strconv.Itoa(len(episode.Images)),
			strconv.Itoa(len(episode.Narration)),
			strconv.Itoa(len(episode.Videos)),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Episode", "Words", "SEO Title", "Images", "Audio", "Clips"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignRight, alignRight},
	))
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <story-id>",
		Short: "Delete an archived story and all of its media",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				return fmt.Errorf("deletion is irreversible; re-run with --force to confirm")
			}
			return ctx.withStudio(cmd, func(runCtx context.Context, st *studio.Studio) error {
				if err := st.DeleteStory(runCtx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Confirm irreversible deletion")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export <story-id>",
		Short: "Export an archived story as a zip bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(cmd, func(runCtx context.Context, st *studio.Studio) error {
				if _, err := st.LoadStory(runCtx, args[0]); err != nil {
					return err
				}
				target := strings.TrimSpace(outPath)
				if target == "" {
					target = st.ExportName()
				}
				file, err := os.Create(target)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				if err := st.ExportZip(runCtx, file); err != nil {
					file.Close()
					os.Remove(target)
					return err
				}
				if err := file.Close(); err != nil {
					return fmt.Errorf("finish export file: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", target)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "Destination zip path (defaults to a name derived from the title)")
	return cmd
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"storyforge/internal/studio"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Manage the directory stories are archived into",
	}
	projectCmd.AddCommand(newProjectSetCommand(ctx))
	projectCmd.AddCommand(newProjectForgetCommand(ctx))
	projectCmd.AddCommand(newProjectShowCommand(ctx))
	return projectCmd
}

func newProjectSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <directory>",
		Short: "Choose the project directory and remember it",
		Long: "Set creates the directory if needed, probes it for writability, and\n" +
			"remembers it across runs. Stories archived while no directory was chosen\n" +
			"stay in the state database.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(cmd, func(runCtx context.Context, st *studio.Studio) error {
				if err := st.ChooseProjectDir(runCtx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Project directory set to %s\n", st.ProjectDir())
				return nil
			})
		},
	}
}

func newProjectForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget",
		Short: "Forget the remembered project directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(cmd, func(runCtx context.Context, st *studio.Studio) error {
				if err := st.ForgetProjectDir(runCtx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Project directory forgotten; the archive falls back to the state database.")
				return nil
			})
		},
	}
}

func newProjectShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the active project directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(cmd, func(runCtx context.Context, st *studio.Studio) error {
				out := cmd.OutOrStdout()
				if dir := st.ProjectDir(); dir != "" {
					fmt.Fprintln(out, dir)
				} else {
					fmt.Fprintln(out, "No project directory chosen; the archive uses the state database.")
				}
				return nil
			})
		},
	}
}

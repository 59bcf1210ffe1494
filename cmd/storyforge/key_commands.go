package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"storyforge/internal/studio"
)

func newKeyCommand(ctx *commandContext) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage API credentials",
	}
	keyCmd.AddCommand(newKeySetCommand(ctx))
	keyCmd.AddCommand(newKeyClearCommand(ctx))
	keyCmd.AddCommand(newKeyValidateCommand(ctx))
	return keyCmd
}

func newKeySetCommand(ctx *commandContext) *cobra.Command {
	var render bool
	cmd := &cobra.Command{
		Use:   "set <api-key>",
		Short: "Verify and remember an API key",
		Long: "Set verifies the generation key against the live service before storing it;\n" +
			"a rejected key is never persisted. Rendering keys (--render) are stored\n" +
			"without a verification call.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[0])
			if key == "" {
				return fmt.Errorf("api key must not be empty")
			}
			return ctx.withStudio(cmd, func(runCtx context.Context, st *studio.Studio) error {
				if render {
					if err := st.SetRenderCredential(runCtx, key); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Rendering API key stored.")
					return nil
				}
				if err := st.SetCredential(runCtx, key); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "API key verified and stored.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&render, "render", false, "Store the slideshow rendering key instead")
	return cmd
}

func newKeyClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget the stored generation API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(cmd, func(runCtx context.Context, st *studio.Studio) error {
				if err := st.ClearCredential(runCtx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "API key cleared.")
				return nil
			})
		},
	}
}

func newKeyValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configured API key against the live service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(cmd, func(runCtx context.Context, st *studio.Studio) error {
				if err := st.ValidateCredential(runCtx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "API key is valid.")
				return nil
			})
		},
	}
}

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"storyforge/internal/studio"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show credential, archive, and storage status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStudio(cmd, func(runCtx context.Context, st *studio.Studio) error {
				key, err := st.Credential(runCtx)
				if err != nil {
					return err
				}
				renderKey, err := st.RenderCredential(runCtx)
				if err != nil {
					return err
				}
				records, err := st.Stories(runCtx)
				if err != nil {
					return err
				}

				archiveMode := "state database"
				if dir := st.ProjectDir(); dir != "" {
					archiveMode = dir
				}
				rows := [][]string{
					{"generation key", yesNo(key != "")},
					{"rendering key", yesNo(renderKey != "")},
					{"archive", archiveMode},
					{"stories", strconv.Itoa(len(records))},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Item", "Status"},
					rows,
					[]columnAlignment{alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

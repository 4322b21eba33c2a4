package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the package and progress tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			// app.New migrates on startup.
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema up to date (%s)\n", a.Driver())
			return nil
		},
	}
}

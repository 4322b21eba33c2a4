package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove extraction directories no package references",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			res, err := a.Services.Janitor.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if res.Skipped {
				fmt.Fprintln(out, "Another sweep holds the lock; nothing done")
				return nil
			}
			for _, dir := range res.Removed {
				fmt.Fprintf(out, "removed %s\n", dir)
			}
			fmt.Fprintf(out, "Removed %d, kept %d\n", len(res.Removed), res.Kept)
			return nil
		},
	}
}

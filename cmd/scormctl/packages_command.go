package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newPackagesCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var format string

	cmd := &cobra.Command{
		Use:   "packages",
		Short: "List registered packages, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			pkgs, err := a.Services.Packages.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if format != formatTable {
				return writeStructured(cmd, format, pkgs)
			}
			if len(pkgs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No packages")
				return nil
			}
			rows := make([][]string, 0, len(pkgs))
			for _, p := range pkgs {
				rows = append(rows, []string{
					p.LessonID.String(),
					p.Title,
					p.Version,
					humanize.Bytes(uint64(p.SizeBytes)),
					humanize.Time(p.UpdatedAt),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Lesson", "Title", "Version", "Size", "Updated"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum packages to list")
	cmd.Flags().StringVarP(&format, "output", "o", formatTable, "Output format: table, json or yaml")
	return cmd
}

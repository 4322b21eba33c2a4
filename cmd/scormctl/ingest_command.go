package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/neurobridge-scorm/internal/services"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var lessonFlag string
	var replace bool

	cmd := &cobra.Command{
		Use:   "ingest <package.zip>",
		Short: "Extract a SCORM zip and register it for a lesson",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lessonID, err := uuid.Parse(strings.TrimSpace(lessonFlag))
			if err != nil || lessonID == uuid.Nil {
				return fmt.Errorf("--lesson must be a lesson uuid")
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			st, err := f.Stat()
			if err != nil {
				return err
			}

			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			pkg, err := a.Services.Packages.Upload(cmd.Context(), services.UploadInput{
				LessonID: lessonID,
				Filename: filepath.Base(args[0]),
				Size:     st.Size(),
				Body:     f,
				Replace:  replace,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Package:  %s\n", pkg.ID)
			fmt.Fprintf(out, "Title:    %s (SCORM %s)\n", pkg.Title, pkg.Version)
			fmt.Fprintf(out, "Launch:   %s\n", pkg.LaunchHref)
			fmt.Fprintf(out, "Size:     %s\n", humanize.Bytes(uint64(pkg.SizeBytes)))
			return nil
		},
	}
	cmd.Flags().StringVar(&lessonFlag, "lesson", "", "Lesson id the package belongs to")
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the lesson's existing package")
	_ = cmd.MarkFlagRequired("lesson")
	return cmd
}

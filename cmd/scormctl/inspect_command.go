package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/manifest"
	"github.com/yungbote/neurobridge-scorm/internal/modules/scorm/packagestore"
)

type inspectReport struct {
	Source      string            `json:"source" yaml:"source"`
	PackageID   string            `json:"package_id,omitempty" yaml:"package_id,omitempty"`
	LessonID    string            `json:"lesson_id,omitempty" yaml:"lesson_id,omitempty"`
	ManifestDir string            `json:"manifest_dir,omitempty" yaml:"manifest_dir,omitempty"`
	SizeBytes   int64             `json:"size_bytes" yaml:"size_bytes"`
	Entries     int               `json:"entries,omitempty" yaml:"entries,omitempty"`
	Is2004      bool              `json:"is_2004" yaml:"is_2004"`
	ItemCount   int               `json:"item_count" yaml:"item_count"`
	LaunchHref  string            `json:"launch_href" yaml:"launch_href"`
	Manifest    manifest.Manifest `json:"manifest" yaml:"manifest"`
}

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var zipPath string
	var format string

	cmd := &cobra.Command{
		Use:   "inspect [lesson-id]",
		Short: "Show a package's manifest, from the store or straight from a zip",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			var (
				report *inspectReport
				err    error
			)
			switch {
			case zipPath != "" && len(args) == 0:
				report, err = inspectZip(zipPath)
			case zipPath == "" && len(args) == 1:
				report, err = inspectLesson(cmd, ctx, args[0])
			default:
				return fmt.Errorf("pass either a lesson id or --zip")
			}
			if err != nil {
				return err
			}
			if format != formatTable {
				return writeStructured(cmd, format, report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&zipPath, "zip", "", "Inspect a package archive without ingesting it")
	cmd.Flags().StringVarP(&format, "output", "o", formatTable, "Output format: table, json or yaml")
	return cmd
}

func inspectZip(path string) (*inspectReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	archive, err := packagestore.OpenArchive(data, packagestore.DefaultMaxUncompressedBytes, packagestore.DefaultMaxEntries)
	if err != nil {
		return nil, err
	}
	dir, raw, err := archive.Manifest()
	if err != nil {
		return nil, err
	}
	m, err := manifest.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &inspectReport{
		Source:      path,
		ManifestDir: dir,
		SizeBytes:   archive.UncompressedSize,
		Entries:     archive.Entries,
		Is2004:      m.Is2004(),
		ItemCount:   m.ItemCount(),
		LaunchHref:  m.LaunchHref(),
		Manifest:    m,
	}, nil
}

func inspectLesson(cmd *cobra.Command, ctx *commandContext, arg string) (*inspectReport, error) {
	lessonID, err := uuid.Parse(strings.TrimSpace(arg))
	if err != nil || lessonID == uuid.Nil {
		return nil, fmt.Errorf("lesson id must be a uuid")
	}
	a, err := ctx.ensureApp()
	if err != nil {
		return nil, err
	}
	detail, err := a.Services.Packages.Get(cmd.Context(), lessonID)
	if err != nil {
		return nil, err
	}
	m := detail.Manifest
	return &inspectReport{
		Source:     detail.Package.PackagePath,
		PackageID:  detail.Package.ID.String(),
		LessonID:   lessonID.String(),
		SizeBytes:  detail.Package.SizeBytes,
		Is2004:     m.Is2004(),
		ItemCount:  m.ItemCount(),
		LaunchHref: detail.Package.LaunchHref,
		Manifest:   m,
	}, nil
}

func printReport(out io.Writer, r *inspectReport) {
	m := r.Manifest
	edition := "1.2"
	if r.Is2004 {
		edition = "2004"
	}
	summary := [][]string{
		{"Source", r.Source},
		{"Identifier", m.Identifier},
		{"Title", m.Title},
		{"SCORM", fmt.Sprintf("%s (version %q)", edition, m.Version)},
		{"Launch", r.LaunchHref},
		{"Size", humanize.Bytes(uint64(r.SizeBytes))},
		{"Items", strconv.Itoa(r.ItemCount)},
	}
	if r.ManifestDir != "" {
		summary = append(summary, []string{"Wrapper", r.ManifestDir})
	}
	if r.Entries > 0 {
		summary = append(summary, []string{"Entries", humanize.Comma(int64(r.Entries))})
	}
	if r.PackageID != "" {
		summary = append(summary, []string{"Package", r.PackageID})
	}
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, summary, nil))

	var items [][]string
	for _, o := range m.Organizations {
		items = appendItems(items, m, o.Items, o.Identifier, 0)
	}
	if len(items) > 0 {
		fmt.Fprintln(out, renderTable([]string{"Organization", "Item", "Title", "Href"}, items, nil))
	}

	resources := make([][]string, 0, len(m.Resources))
	for _, res := range m.Resources {
		resources = append(resources, []string{res.Identifier, res.ScormType, res.Href, strconv.Itoa(len(res.Files))})
	}
	if len(resources) > 0 {
		fmt.Fprintln(out, renderTable(
			[]string{"Resource", "Type", "Href", "Files"},
			resources,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
		))
	}
}

func appendItems(rows [][]string, m manifest.Manifest, items []manifest.Item, org string, depth int) [][]string {
	for _, it := range items {
		href := ""
		if res, ok := m.Resource(it.IdentifierRef); ok {
			href = res.Href
		}
		rows = append(rows, []string{org, strings.Repeat("  ", depth) + it.Identifier, it.Title, href})
		rows = appendItems(rows, m, it.Items, org, depth+1)
	}
	return rows
}

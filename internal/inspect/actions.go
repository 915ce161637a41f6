package inspect

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/dtnitsch/sitemap2skill/internal/build"
	"github.com/dtnitsch/sitemap2skill/pkg/storage"
)

func Flags() []cli.Flag {
	return append(build.CommonFlags(),
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "output format: table or yaml"},
	)
}

// InspectAction reads a bundle back and reports its skill metadata,
// reference files and structural problems.
func InspectAction(c *cli.Context) error {
	logger := build.NewLogger(c)

	if c.NArg() == 0 {
		return cli.Exit("usage: sitemap2skill inspect <bundle.zip>", build.ExitFatal)
	}
	path := c.Args().First()

	if !(&storage.Storage{}).HasFile(path) {
		return cli.Exit(fmt.Sprintf("bundle not found: %s", path), build.ExitFatal)
	}

	info, err := storage.ReadBundle(path)
	if err != nil {
		logger.Error("Failed to read bundle", "path", path, "error", err)
		return cli.Exit(err.Error(), build.ExitFatal)
	}

	w := c.App.Writer
	switch c.String("format") {
	case "yaml":
		if err := yaml.NewEncoder(w).Encode(info); err != nil {
			return err
		}
	case "table", "":
		writeTable(w, info)
	default:
		return cli.Exit(fmt.Sprintf("unknown format %q", c.String("format")), build.ExitFatal)
	}

	if len(info.Problems) > 0 {
		return cli.Exit(fmt.Sprintf("bundle has %d problem(s)", len(info.Problems)), build.ExitPartial)
	}
	return nil
}

func writeTable(w io.Writer, info *storage.BundleInfo) {
	var total int64
	for _, ref := range info.References {
		total += ref.Size
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Footer = text.FormatDefault
	t.SetTitle(info.Name)
	t.AppendHeader(table.Row{"#", "File", "Title", "Source", "Lang", "Size"})
	for i, ref := range info.References {
		t.AppendRow(table.Row{i + 1, ref.Path, ref.Title, ref.SourceURL, ref.Language, humanize.Bytes(uint64(ref.Size))})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d files", len(info.References)), "", "", "", humanize.Bytes(uint64(total))})
	t.Render()

	if len(info.Problems) == 0 {
		return
	}
	fmt.Fprintln(w, "\nProblems:")
	for _, p := range info.Problems {
		fmt.Fprintf(w, "  - %s\n", p)
	}
}

package resolve

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/dtnitsch/sitemap2skill/internal/build"
	"github.com/dtnitsch/sitemap2skill/models"
	"github.com/dtnitsch/sitemap2skill/pkg/sitemap"
)

func Flags() []cli.Flag {
	flags := append(build.CommonFlags(), build.SitemapFlags()...)
	return append(flags,
		&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "table", Usage: "output format: table or yaml"},
	)
}

// ResolveAction lists the URLs a build would fetch, without fetching them.
func ResolveAction(c *cli.Context) error {
	logger := build.NewLogger(c)

	cfg, err := build.LoadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), build.ExitFatal)
	}

	ctx, stop := build.SignalContext(c)
	defer stop()

	resolver := sitemap.NewResolver(&http.Client{}, sitemap.Options{
		UserAgent: cfg.UserAgent,
		MaxDepth:  cfg.MaxDepth,
		Timeout:   cfg.RequestTimeout,
		Logger:    logger,
	})
	entries, err := resolver.Resolve(ctx, cfg.SitemapURL)
	if err != nil {
		logger.Error("Sitemap resolution failed", "sitemap_url", cfg.SitemapURL, "error", err)
		return cli.Exit(err.Error(), build.ExitFatal)
	}

	filter, err := sitemap.NewFilter(cfg.Include, cfg.Exclude)
	if err != nil {
		return cli.Exit(err.Error(), build.ExitFatal)
	}
	kept := filter.Apply(entries, cfg.MaxPages)
	logger.Info("Resolved sitemap", "resolved", len(entries), "kept", len(kept))

	w := c.App.Writer
	switch c.String("format") {
	case "yaml":
		return writeYAML(w, kept)
	case "table", "":
		writeTable(w, kept, len(entries))
		return nil
	default:
		return cli.Exit(fmt.Sprintf("unknown format %q", c.String("format")), build.ExitFatal)
	}
}

func writeYAML(w io.Writer, entries []models.SitemapEntry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	if entries == nil {
		entries = []models.SitemapEntry{}
	}
	return enc.Encode(entries)
}

func writeTable(w io.Writer, entries []models.SitemapEntry, resolved int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"#", "URL", "Last Modified", "Priority"})
	for i, e := range entries {
		lastMod := ""
		if e.LastModified != nil {
			lastMod = e.LastModified.Format("2006-01-02")
		}
		priority := ""
		if e.Priority != nil {
			priority = strconv.FormatFloat(*e.Priority, 'f', -1, 64)
		}
		t.AppendRow(table.Row{i + 1, e.URL, lastMod, priority})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d of %d URLs kept", len(entries), resolved), "", ""})
	t.Render()
}

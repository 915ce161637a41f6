package runs

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/sitemap2skill/internal/build"
	"github.com/dtnitsch/sitemap2skill/pkg/history"
)

func Flags() []cli.Flag {
	return append(build.CommonFlags(),
		&cli.StringFlag{Name: "history-db", Usage: "history database path (default: user config dir)"},
	)
}

func ListFlags() []cli.Flag {
	return append(Flags(),
		&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20, Usage: "show at most this many runs (0 = all)"},
	)
}

func RunsAction(c *cli.Context) error {
	database, err := history.Open(c.String("history-db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	runs, err := database.ListRuns(c.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	w := c.App.Writer
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded. Use 'sitemap2skill build --history' to record one.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run ID", "Started", "Sitemap", "Found", "OK", "Failed", "Artifact"})
	for _, r := range runs {
		artifact := r.ArtifactPath
		if artifact != "" {
			artifact = fmt.Sprintf("%s (%s)", artifact, humanize.Bytes(uint64(r.ArtifactBytes)))
		} else if r.Error != "" {
			artifact = "error"
		}
		t.AppendRow(table.Row{r.RunID, humanize.Time(r.StartedAt), r.SitemapURL, r.Discovered, r.Succeeded, r.Failed, artifact})
	}
	t.Render()

	fmt.Fprintf(w, "\nTip: Use 'sitemap2skill runs show <run_id>' to see failures\n")
	return nil
}

// ShowAction prints one run with its failed URLs.
func ShowAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("usage: sitemap2skill runs show <run_id>", build.ExitFatal)
	}

	database, err := history.Open(c.String("history-db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	run, failures, err := database.GetRun(c.Args().First())
	if errors.Is(err, history.ErrRunNotFound) {
		return cli.Exit(err.Error(), build.ExitFatal)
	}
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}

	w := c.App.Writer
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Run " + run.RunID)
	t.AppendRows([]table.Row{
		{"Sitemap", run.SitemapURL},
		{"Started", run.StartedAt.Format("2006-01-02 15:04:05")},
		{"Duration", run.Duration.String()},
		{"Discovered", run.Discovered},
		{"Succeeded", run.Succeeded},
		{"Failed", run.Failed},
	})
	if run.Cancelled {
		t.AppendRow(table.Row{"Cancelled", "yes"})
	}
	if run.ArtifactPath != "" {
		t.AppendRow(table.Row{"Artifact", fmt.Sprintf("%s (%s)", run.ArtifactPath, humanize.Bytes(uint64(run.ArtifactBytes)))})
	}
	if run.Error != "" {
		t.AppendRow(table.Row{"Error", run.Error})
	}
	t.Render()

	if len(failures) == 0 {
		return nil
	}
	ft := table.NewWriter()
	ft.SetOutputMirror(w)
	ft.SetStyle(table.StyleLight)
	ft.AppendHeader(table.Row{"#", "URL", "Reason", "Attempts"})
	for i, f := range failures {
		ft.AppendRow(table.Row{i + 1, f.URL, f.Reason, f.Attempts})
	}
	ft.Render()
	return nil
}

package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/sitemap2skill/internal/common"
	"github.com/dtnitsch/sitemap2skill/models"
	"github.com/dtnitsch/sitemap2skill/pkg/history"
	"github.com/dtnitsch/sitemap2skill/pkg/metrics"
	"github.com/dtnitsch/sitemap2skill/pkg/pipeline"
	"github.com/dtnitsch/sitemap2skill/pkg/storage"
)

// Exit codes shared by every command.
const (
	ExitOK      = 0
	ExitPartial = 1
	ExitFatal   = 2
)

// NewLogger builds the JSON stderr logger used by all commands.
func NewLogger(c *cli.Context) *slog.Logger {
	logLevel := slog.LevelInfo
	if c.Bool("verbose") {
		logLevel = slog.LevelDebug
	}
	if c.Bool("quiet") {
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(errWriter(c), &slog.HandlerOptions{Level: logLevel}))
}

func errWriter(c *cli.Context) io.Writer {
	if c.App != nil && c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

func outWriter(c *cli.Context) io.Writer {
	if c.App != nil && c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

// LoadConfig reads --config (if set) and applies any flags given on the
// command line on top of it.
func LoadConfig(c *cli.Context) (models.BuildConfig, error) {
	cfg := models.DefaultBuildConfig()
	if path := c.String("config"); path != "" {
		loaded, err := models.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if c.IsSet("sitemap") {
		cfg.SitemapURL = c.String("sitemap")
	} else if c.NArg() > 0 {
		cfg.SitemapURL = c.Args().First()
	}
	if cfg.SitemapURL == "" {
		return cfg, errors.New("no sitemap URL provided (use --sitemap or a positional argument)")
	}
	sitemapURL, err := common.SanitizeSitemapURL(cfg.SitemapURL)
	if err != nil {
		return cfg, err
	}
	cfg.SitemapURL = sitemapURL

	if c.IsSet("output") {
		cfg.Output = c.String("output")
	}
	if c.IsSet("concurrency") {
		cfg.Concurrency = c.Int("concurrency")
	}
	if c.IsSet("rate") {
		cfg.RatePerSecond = c.Float64("rate")
	}
	if c.IsSet("user-agent") {
		cfg.UserAgent = c.String("user-agent")
	}
	if c.IsSet("max-retries") {
		cfg.MaxRetries = c.Int("max-retries")
	}
	if c.IsSet("timeout") {
		cfg.RequestTimeout = c.Duration("timeout")
	}
	if c.IsSet("max-depth") {
		cfg.MaxDepth = c.Int("max-depth")
	}
	if c.IsSet("max-pages") {
		cfg.MaxPages = c.Int("max-pages")
	}
	if c.IsSet("include") {
		cfg.Include = c.StringSlice("include")
	}
	if c.IsSet("exclude") {
		cfg.Exclude = c.StringSlice("exclude")
	}
	if c.IsSet("respect-robots") {
		cfg.RespectRobots = c.Bool("respect-robots")
	}
	if c.IsSet("extract") {
		cfg.ExtractMode = c.String("extract")
	}
	if c.IsSet("name") {
		cfg.Skill.Name = c.String("name")
	}
	if c.IsSet("description") {
		cfg.Skill.Description = c.String("description")
	}
	if c.IsSet("overview") {
		cfg.Skill.Overview = c.String("overview")
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	parent := c.Context
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func BuildAction(c *cli.Context) error {
	logger := NewLogger(c)

	cfg, err := LoadConfig(c)
	if err != nil {
		logger.Error("Invalid build configuration", "error", err)
		return cli.Exit(err.Error(), ExitFatal)
	}

	ctx, stop := SignalContext(c)
	defer stop()

	progress := &pipeline.Progress{}
	var m *metrics.Metrics
	if addr := c.String("metrics-addr"); addr != "" {
		m = metrics.New(progress)
		metricsCtx, stopMetrics := context.WithCancel(context.WithoutCancel(ctx))
		defer stopMetrics()
		go func() {
			if err := m.Serve(metricsCtx, addr, logger); err != nil {
				logger.Error("Metrics server failed", "addr", addr, "error", err)
			}
		}()
	}

	events := make(chan pipeline.Event, 256)
	var eventsDone sync.WaitGroup
	eventsDone.Add(1)
	go func() {
		defer eventsDone.Done()
		logEvents(logger, events)
	}()

	logger.Info("Starting build",
		"sitemap_url", cfg.SitemapURL,
		"output", cfg.Output,
		"concurrency", cfg.Concurrency,
		"rate_per_second", cfg.RatePerSecond,
	)

	started := time.Now()
	outcome, runErr := pipeline.Run(ctx, pipeline.Options{
		Config:         cfg,
		Sink:           storage.FileSink{Path: cfg.Output},
		Client:         &http.Client{},
		Progress:       progress,
		Events:         events,
		DetectLanguage: c.Bool("detect-language"),
		Logger:         logger,
	})
	close(events)
	eventsDone.Wait()

	report := reportFor(cfg, outcome, started)
	summary := Summary{Report: report}
	if runErr != nil {
		summary.Error = runErr.Error()
	}

	if runErr == nil {
		artifact, err := describeArtifact(cfg.Output)
		if err != nil {
			logger.Error("Failed to read written artifact", "path", cfg.Output, "error", err)
			return cli.Exit(err.Error(), ExitFatal)
		}
		summary.Artifact = artifact
	}

	reportPath := ReportPath(cfg.Output)
	if err := WriteReport(reportPath, summary); err != nil {
		logger.Error("Failed to write run report", "path", reportPath, "error", err)
	} else {
		summary.ReportPath = reportPath
	}

	var artifactBytes int64
	artifactPath := ""
	if summary.Artifact != nil {
		artifactBytes = summary.Artifact.SizeBytes
		artifactPath = summary.Artifact.Path
	}
	if m != nil {
		m.ObserveRun(report, artifactBytes, runErr)
	}
	if c.Bool("history") {
		recordHistory(c.String("history-db"), report, artifactPath, artifactBytes, runErr, logger)
	}

	PrintSummary(outWriter(c), summary)

	code := ExitCode(report, runErr)
	switch code {
	case ExitFatal:
		return cli.Exit(runErr.Error(), code)
	case ExitPartial:
		return cli.Exit(fmt.Sprintf("%d of %d URLs failed", len(report.Failed), report.TotalDiscovered), code)
	}
	return nil
}

// ExitCode maps a finished run to the process exit status.
func ExitCode(report models.RunReport, runErr error) int {
	switch {
	case runErr != nil:
		return ExitFatal
	case len(report.Failed) > 0:
		return ExitPartial
	default:
		return ExitOK
	}
}

// reportFor returns the run report, synthesising one for runs that failed
// before the sitemap resolved.
func reportFor(cfg models.BuildConfig, outcome *pipeline.Outcome, started time.Time) models.RunReport {
	if outcome != nil {
		return outcome.Report
	}
	return models.RunReport{
		RunID:      uuid.NewString(),
		SitemapURL: cfg.SitemapURL,
		StartedAt:  started.UTC(),
		Duration:   time.Since(started).Round(time.Millisecond),
	}
}

func recordHistory(path string, report models.RunReport, artifactPath string, artifactBytes int64, runErr error, logger *slog.Logger) {
	db, err := history.Open(path)
	if err != nil {
		logger.Error("Failed to open run history", "error", err)
		return
	}
	defer db.Close()

	if err := db.RecordRun(report, artifactPath, artifactBytes, runErr); err != nil {
		logger.Error("Failed to record run history", "run_id", report.RunID, "error", err)
		return
	}
	logger.Debug("Recorded run history", "run_id", report.RunID, "db", db.Path())
}

func logEvents(logger *slog.Logger, events <-chan pipeline.Event) {
	for ev := range events {
		switch ev.Kind {
		case pipeline.EventFailed:
			logger.Warn("URL failed", "url", ev.URL, "reason", ev.Reason,
				"done", ev.Snapshot.Done(), "discovered", ev.Snapshot.Discovered)
		case pipeline.EventDiscovered:
			logger.Info("Sitemap resolved", "discovered", ev.Snapshot.Discovered)
		default:
			logger.Debug("URL finished", "kind", ev.Kind, "url", ev.URL,
				"done", ev.Snapshot.Done(), "discovered", ev.Snapshot.Discovered)
		}
	}
}

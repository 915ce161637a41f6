// Package pipeline runs one sitemap-to-bundle build: resolve, fetch,
// convert, assemble.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dtnitsch/sitemap2skill/models"
	"github.com/dtnitsch/sitemap2skill/pkg/converter"
	"github.com/dtnitsch/sitemap2skill/pkg/fetcher"
	"github.com/dtnitsch/sitemap2skill/pkg/manifest"
	"github.com/dtnitsch/sitemap2skill/pkg/ratelimit"
	"github.com/dtnitsch/sitemap2skill/pkg/sitemap"
	"github.com/dtnitsch/sitemap2skill/pkg/storage"
)

// Options configures a run. Config is validated before anything is fetched.
type Options struct {
	Config models.BuildConfig
	// Sink receives the packaged bundle. It is only called when at least
	// one page converted.
	Sink storage.Sink
	// Client is the HTTP transport for sitemaps, pages and robots.txt.
	Client *http.Client
	// Progress, when set, is updated as the run advances.
	Progress *Progress
	// Events, when set, receives a non-blocking stream of notifications.
	Events chan<- Event
	// RetryBackoff overrides the base delay between fetch retries.
	RetryBackoff time.Duration
	// DetectLanguage enables language detection for pages without a
	// declared lang attribute.
	DetectLanguage bool
	Logger         *slog.Logger
}

// Outcome is everything a finished run produced. Report is always set once
// the sitemap resolved, even when Run also returns an error.
type Outcome struct {
	Report   models.RunReport
	Manifest *models.BundleManifest
	Pages    []models.Page
}

type runner struct {
	opts     Options
	cfg      models.BuildConfig
	logger   *slog.Logger
	progress *Progress
}

// Run executes one build.
//
// Sitemap failures abort immediately with a *models.SitemapError. Per-URL
// failures are recorded in the report. If no page converts, Run returns a
// *models.PackagingError wrapping models.ErrEmptyResult and the sink is never
// opened. Cancelling ctx stops new fetches and packages whatever converted.
func Run(ctx context.Context, opts Options) (*Outcome, error) {
	cfg := opts.Config.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if opts.Sink == nil {
		return nil, errors.New("pipeline: no sink configured")
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Progress == nil {
		opts.Progress = &Progress{}
	}

	r := &runner{opts: opts, cfg: cfg, logger: opts.Logger, progress: opts.Progress}
	return r.run(ctx)
}

func (r *runner) run(ctx context.Context) (*Outcome, error) {
	started := time.Now()
	report := models.RunReport{
		RunID:      uuid.NewString(),
		SitemapURL: r.cfg.SitemapURL,
		StartedAt:  started.UTC(),
	}

	entries, err := r.resolve(ctx)
	if err != nil {
		return nil, err
	}
	report.TotalDiscovered = len(entries)
	r.progress.addDiscovered(len(entries))
	r.emit(Event{Kind: EventDiscovered, URL: r.cfg.SitemapURL})

	urls := make([]string, len(entries))
	for i, e := range entries {
		urls[i] = e.URL
	}

	limiter, err := ratelimit.New(r.cfg.RatePerSecond)
	if err != nil {
		return nil, err
	}
	pages, failures := r.fetchAndConvert(ctx, limiter, urls)

	outcome := &Outcome{}
	for i := range urls {
		if pages[i] != nil {
			outcome.Pages = append(outcome.Pages, *pages[i])
			continue
		}
		if failures[i] != nil {
			report.Failed = append(report.Failed, *failures[i])
		}
	}
	report.Succeeded = len(outcome.Pages)
	report.Cancelled = ctx.Err() != nil
	report.Duration = time.Since(started).Round(time.Millisecond)
	outcome.Report = report

	r.logger.Info("Fetch and convert finished",
		"run_id", report.RunID,
		"discovered", report.TotalDiscovered,
		"succeeded", report.Succeeded,
		"failed", len(report.Failed),
		"cancelled", report.CountKind(models.KindCancelled),
	)

	m, err := manifest.Assemble(outcome.Pages, r.cfg.Skill, r.opts.Sink)
	if err != nil {
		return outcome, err
	}
	outcome.Manifest = m
	return outcome, nil
}

func (r *runner) resolve(ctx context.Context) ([]models.SitemapEntry, error) {
	resolver := sitemap.NewResolver(r.opts.Client, sitemap.Options{
		UserAgent: r.cfg.UserAgent,
		MaxDepth:  r.cfg.MaxDepth,
		Timeout:   r.cfg.RequestTimeout,
		Logger:    r.logger,
	})

	entries, err := resolver.Resolve(ctx, r.cfg.SitemapURL)
	if err != nil {
		r.logger.Error("Sitemap resolution failed", "sitemap_url", r.cfg.SitemapURL, "error", err)
		return nil, err
	}

	filter, err := sitemap.NewFilter(r.cfg.Include, r.cfg.Exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid url filter: %w", err)
	}
	kept := filter.Apply(entries, r.cfg.MaxPages)
	if len(kept) != len(entries) {
		r.logger.Info("Filtered sitemap entries", "resolved", len(entries), "kept", len(kept))
	}
	if len(kept) == 0 {
		r.logger.Warn("No sitemap entries left after filtering", "include", r.cfg.Include, "exclude", r.cfg.Exclude)
	}
	return kept, nil
}

// fetchAndConvert returns, per input index, either a page or a failure.
func (r *runner) fetchAndConvert(ctx context.Context, limiter *ratelimit.Limiter, urls []string) ([]*models.Page, []*models.FailedURL) {
	pages := make([]*models.Page, len(urls))
	failures := make([]*models.FailedURL, len(urls))

	poolCfg := fetcher.Config{
		Concurrency:    r.cfg.Concurrency,
		UserAgent:      r.cfg.UserAgent,
		MaxRetries:     r.cfg.MaxRetries,
		RequestTimeout: r.cfg.RequestTimeout,
		Backoff:        r.opts.RetryBackoff,
		Client:         r.opts.Client,
		Logger:         r.logger,
	}
	if r.cfg.RespectRobots {
		poolCfg.Robots = fetcher.NewRobotsChecker(r.opts.Client, r.cfg.UserAgent, r.cfg.RequestTimeout, r.logger)
	}
	pool := fetcher.NewPool(limiter, poolCfg)

	conv := converter.New(converter.Options{
		ExtractMode:    r.cfg.ExtractMode,
		DetectLanguage: r.opts.DetectLanguage,
		Logger:         r.logger,
	})

	r.logger.Info("Starting concurrent fetch phase",
		"url_count", len(urls),
		"workers", r.cfg.Concurrency,
		"rate_per_second", limiter.Rate(),
		"burst", limiter.Burst(),
		"max_retries", r.cfg.MaxRetries,
	)

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)

	for res := range pool.Stream(ctx, urls) {
		if !res.OK() {
			failures[res.Index] = failedURL(res.FetchResult)
			cancelled := res.Failure.Kind == models.KindCancelled
			r.progress.fail(cancelled)
			kind := EventFailed
			if cancelled {
				kind = EventCancelled
			}
			r.emit(Event{Kind: kind, URL: res.URL, Reason: res.Failure.Reason()})
			continue
		}

		g.Go(func() error {
			page, failure := r.convert(conv, res.FetchResult)
			if failure != nil {
				failures[res.Index] = failure
				r.progress.fail(false)
				r.emit(Event{Kind: EventFailed, URL: res.URL, Reason: failure.Reason})
				return nil
			}
			pages[res.Index] = page
			r.progress.complete()
			r.emit(Event{Kind: EventCompleted, URL: res.URL})
			return nil
		})
	}
	_ = g.Wait()

	return pages, failures
}

func (r *runner) convert(conv *converter.Converter, res models.FetchResult) (*models.Page, *models.FailedURL) {
	base := res.URL
	if res.FinalURL != "" {
		base = res.FinalURL
	}

	page, err := conv.Convert(base, res.Body)
	if err != nil {
		r.logger.Warn("Error converting page", "url", res.URL, "error", err)
		return nil, &models.FailedURL{
			URL:      res.URL,
			Reason:   string(models.KindConversion),
			Kind:     models.KindConversion,
			Attempts: res.Attempts,
			Message:  err.Error(),
		}
	}
	page.URL = res.URL
	return page, nil
}

func failedURL(res models.FetchResult) *models.FailedURL {
	f := &models.FailedURL{
		URL:        res.URL,
		Reason:     res.Failure.Reason(),
		Kind:       res.Failure.Kind,
		StatusCode: res.Failure.StatusCode,
		Attempts:   res.Failure.Attempts,
	}
	if res.Failure.Err != nil {
		f.Message = res.Failure.Err.Error()
	}
	return f
}

func (r *runner) emit(ev Event) {
	if r.opts.Events == nil {
		return
	}
	ev.Snapshot = r.progress.Snapshot()
	select {
	case r.opts.Events <- ev:
	default:
	}
}

package fetcher

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dtnitsch/sitemap2skill/models"
	"github.com/dtnitsch/sitemap2skill/pkg/ratelimit"
)

const (
	defaultBackoff = 500 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// RobotsAllower decides whether a URL may be fetched at all.
type RobotsAllower interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Config configures a Pool. MaxRetries is the number of extra attempts after
// the first; zero disables retries.
type Config struct {
	Concurrency    int
	UserAgent      string
	MaxRetries     int
	RequestTimeout time.Duration
	Backoff        time.Duration
	Client         *http.Client
	Robots         RobotsAllower
	Logger         *slog.Logger
}

// WithDefaults returns a copy of the config with default values applied for
// zero-value fields.
func (c Config) WithDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = models.DefaultConcurrency
	}
	if c.UserAgent == "" {
		c.UserAgent = models.DefaultUserAgent
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = models.DefaultRequestTimeout
	}
	if c.Backoff <= 0 {
		c.Backoff = defaultBackoff
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Result is one URL's outcome tagged with its position in the input.
type Result struct {
	Index int
	models.FetchResult
}

// Pool is a fixed set of workers sharing one rate limiter.
type Pool struct {
	cfg     Config
	fetcher *Fetcher
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

// NewPool creates a pool whose every request attempt takes a token from limiter.
func NewPool(limiter *ratelimit.Limiter, cfg Config) *Pool {
	cfg = cfg.WithDefaults()
	return &Pool{
		cfg:     cfg,
		fetcher: NewFetcher(cfg.Client, cfg.UserAgent, cfg.RequestTimeout),
		limiter: limiter,
		logger:  cfg.Logger,
	}
}

type job struct {
	index int
	url   string
}

// Stream fetches urls and emits exactly one Result per input URL on the
// returned channel, in completion order, then closes it.
//
// Cancelling ctx stops dispatch. Requests already on the wire run to
// completion under their own timeout; URLs not yet started are reported
// with KindCancelled and no further retries are attempted.
func (p *Pool) Stream(ctx context.Context, urls []string) <-chan Result {
	out := make(chan Result, len(urls))
	jobs := make(chan job)

	var wg sync.WaitGroup
	for w := 1; w <= p.cfg.Concurrency; w++ {
		wg.Add(1)
		go p.worker(ctx, w, &wg, jobs, out)
	}

	go func() {
		defer func() {
			wg.Wait()
			close(out)
		}()
		defer close(jobs)

		for i, u := range urls {
			if ctx.Err() != nil {
				p.cancelRemaining(urls, i, out)
				return
			}
			select {
			case jobs <- job{index: i, url: u}:
			case <-ctx.Done():
				p.cancelRemaining(urls, i, out)
				return
			}
		}
	}()

	return out
}

// FetchAll is Stream collected into a slice ordered like urls.
func (p *Pool) FetchAll(ctx context.Context, urls []string) []models.FetchResult {
	results := make([]models.FetchResult, len(urls))
	for r := range p.Stream(ctx, urls) {
		results[r.Index] = r.FetchResult
	}
	return results
}

// FetchAll builds a one-off limiter and pool and fetches urls with it.
func FetchAll(ctx context.Context, urls []string, concurrency int, ratePerSecond float64, userAgent string) ([]models.FetchResult, error) {
	limiter, err := ratelimit.New(ratePerSecond)
	if err != nil {
		return nil, err
	}
	pool := NewPool(limiter, Config{
		Concurrency: concurrency,
		UserAgent:   userAgent,
		MaxRetries:  models.DefaultMaxRetries,
	})
	return pool.FetchAll(ctx, urls), nil
}

func (p *Pool) cancelRemaining(urls []string, from int, out chan<- Result) {
	if from < len(urls) {
		p.logger.Info("Fetch cancelled, skipping queued URLs", "remaining", len(urls)-from)
	}
	for i := from; i < len(urls); i++ {
		out <- cancelledResult(i, urls[i], 0)
	}
}

func cancelledResult(index int, rawURL string, attempts int) Result {
	return Result{
		Index: index,
		FetchResult: models.FetchResult{
			URL:      rawURL,
			Attempts: attempts,
			Failure:  &models.FetchFailure{Kind: models.KindCancelled, Attempts: attempts, Err: context.Canceled},
		},
	}
}

func (p *Pool) worker(ctx context.Context, id int, wg *sync.WaitGroup, jobs <-chan job, out chan<- Result) {
	defer wg.Done()
	for j := range jobs {
		if ctx.Err() != nil {
			out <- cancelledResult(j.index, j.url, 0)
			continue
		}

		p.logger.Debug("Worker started job", "worker_id", id, "url", j.url)
		res := p.fetchWithRetry(ctx, j.url)
		if res.OK() {
			p.logger.Info("Worker fetched page", "worker_id", id, "url", j.url, "status", res.StatusCode, "attempts", res.Attempts)
		} else {
			p.logger.Warn("Worker failed to fetch page", "worker_id", id, "url", j.url, "reason", res.Failure.Reason(), "attempts", res.Attempts, "error", res.Failure.Err)
		}
		out <- Result{Index: j.index, FetchResult: res}
	}
}

// fetchWithRetry runs up to 1+MaxRetries attempts, each gated by the rate
// limiter. A cancelled ctx stops before the next attempt; the attempt in
// flight is detached from ctx so it can finish.
func (p *Pool) fetchWithRetry(ctx context.Context, rawURL string) models.FetchResult {
	result := models.FetchResult{URL: rawURL}

	if p.cfg.Robots != nil && !p.cfg.Robots.Allowed(ctx, rawURL) {
		result.Failure = &models.FetchFailure{Kind: models.KindRobotsDisallowed, Err: errors.New("disallowed by robots.txt")}
		return result
	}

	var lastErr *AttemptError
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 && !p.sleep(ctx, p.backoff(attempt)) {
			break
		}
		if err := p.limiter.Wait(ctx); err != nil {
			if lastErr == nil {
				return cancelledResult(0, rawURL, result.Attempts).FetchResult
			}
			break
		}

		result.Attempts++
		resp, err := p.fetcher.Fetch(context.WithoutCancel(ctx), rawURL)
		if err == nil {
			result.Body = resp.Body
			result.StatusCode = resp.StatusCode
			result.ContentType = resp.ContentType
			result.FinalURL = resp.FinalURL
			return result
		}

		if !errors.As(err, &lastErr) {
			lastErr = &AttemptError{Kind: models.KindNetwork, Err: err}
		}
		if !lastErr.Retryable {
			break
		}
		p.logger.Debug("Retrying fetch", "url", rawURL, "attempt", result.Attempts, "error", lastErr)
	}

	result.StatusCode = lastErr.StatusCode
	result.Failure = &models.FetchFailure{
		Kind:       lastErr.Kind,
		StatusCode: lastErr.StatusCode,
		Attempts:   result.Attempts,
		Err:        lastErr.Err,
	}
	return result
}

func (p *Pool) backoff(attempt int) time.Duration {
	d := p.cfg.Backoff << (attempt - 1)
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

// sleep waits for d, returning false if ctx ends first.
func (p *Pool) sleep(ctx context.Context, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/dtnitsch/sitemap2skill/models"
)

const maxRobotsBodyBytes = 512 * 1024

// RobotsChecker answers robots.txt questions for the hosts of one run. Each
// host's robots.txt is fetched once, bounded by the request timeout. A
// missing, unreachable or unparseable robots.txt allows everything.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	logger    *slog.Logger

	mu    sync.Mutex
	hosts map[string]*robotsEntry
}

type robotsEntry struct {
	mu     sync.Mutex
	loaded bool
	data   *robotstxt.RobotsData
}

// NewRobotsChecker creates a checker that identifies itself as userAgent.
// A non-positive timeout uses the default request timeout.
func NewRobotsChecker(client *http.Client, userAgent string, timeout time.Duration, logger *slog.Logger) *RobotsChecker {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = models.DefaultRequestTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RobotsChecker{
		client:    client,
		userAgent: userAgent,
		timeout:   timeout,
		logger:    logger,
		hosts:     make(map[string]*robotsEntry),
	}
}

// Allowed reports whether rawURL may be fetched.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	origin := strings.ToLower(u.Scheme + "://" + u.Host)

	r.mu.Lock()
	entry, ok := r.hosts[origin]
	if !ok {
		entry = &robotsEntry{}
		r.hosts[origin] = entry
	}
	r.mu.Unlock()

	data, ok := entry.get(ctx, func() (*robotstxt.RobotsData, bool) {
		return r.load(ctx, origin)
	})
	if !ok || data == nil {
		return true
	}

	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	return data.TestAgent(p, r.userAgent)
}

// get returns the cached rules, loading them if needed. A load cut short by
// the caller's cancellation is not cached, so later callers retry it.
func (e *robotsEntry) get(ctx context.Context, load func() (*robotstxt.RobotsData, bool)) (*robotstxt.RobotsData, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.loaded {
		return e.data, true
	}
	if ctx.Err() != nil {
		return nil, false
	}
	data, final := load()
	if !final {
		return nil, false
	}
	e.data, e.loaded = data, true
	return data, true
}

// load fetches and parses origin's robots.txt. final is false when the
// outcome was decided by the caller's cancellation rather than the host.
func (r *RobotsChecker) load(ctx context.Context, origin string) (data *robotstxt.RobotsData, final bool) {
	robotsURL := origin + "/robots.txt"

	body, status, err := r.fetch(ctx, robotsURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false
		}
		r.logger.Warn("robots.txt unavailable, allowing all", "url", robotsURL, "error", err)
		return nil, true
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		r.logger.Debug("robots.txt not found, allowing all", "url", robotsURL, "status", status)
		return nil, true
	}

	data, err = robotstxt.FromBytes(body)
	if err != nil {
		r.logger.Warn("robots.txt unparseable, allowing all", "url", robotsURL, "error", err)
		return nil, true
	}
	return data, true
}

func (r *RobotsChecker) fetch(ctx context.Context, robotsURL string) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("robots: create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("robots: fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("robots: read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

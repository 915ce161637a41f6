// Package sitemap discovers candidate page URLs from a sitemap tree. It reads
// flat <urlset> documents, recurses through <sitemapindex> documents, and
// returns a deduplicated list in first-seen order.
package sitemap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/dtnitsch/sitemap2skill/models"
)

// maxSitemapBytes is the protocol limit for an uncompressed sitemap.
const maxSitemapBytes = 50 * 1024 * 1024

const (
	defaultMaxDepth = 5
	defaultTimeout  = 30 * time.Second
	acceptHeader    = "application/xml,text/xml;q=0.9,text/plain;q=0.8,*/*;q=0.5"
)

var gzipMagic = []byte{0x1f, 0x8b}

var errDepthExceeded = errors.New("sitemap index nesting too deep")

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Resolver. Zero values fall back to defaults.
type Options struct {
	UserAgent string
	MaxDepth  int
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Resolver fetches and expands sitemap documents.
type Resolver struct {
	client    Doer
	userAgent string
	maxDepth  int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewResolver creates a Resolver that issues requests through client.
func NewResolver(client Doer, opts Options) *Resolver {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaultMaxDepth
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = models.DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		client:    client,
		userAgent: opts.UserAgent,
		maxDepth:  opts.MaxDepth,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
	}
}

// walkState accumulates entries across one Resolve call.
type walkState struct {
	seen    map[string]struct{}
	visited map[string]struct{}
	entries []models.SitemapEntry
	skipped int
}

// Resolve returns every unique page URL reachable from sitemapURL.
// Any unreachable or malformed document aborts with a *models.SitemapError.
func (r *Resolver) Resolve(ctx context.Context, sitemapURL string) ([]models.SitemapEntry, error) {
	root, err := NormalizeURL(sitemapURL)
	if err != nil {
		return nil, models.NewSitemapFetchError(sitemapURL, err)
	}

	state := &walkState{
		seen:    make(map[string]struct{}),
		visited: make(map[string]struct{}),
	}

	if err := r.walk(ctx, state, root, 0); err != nil {
		return nil, err
	}

	if len(state.entries) == 0 {
		return nil, models.NewSitemapParseError(sitemapURL, errEmptyDocument)
	}

	r.logger.Info("Sitemap resolved",
		"sitemap_url", sitemapURL,
		"url_count", len(state.entries),
		"sitemaps_visited", len(state.visited),
		"skipped_locs", state.skipped,
	)

	return state.entries, nil
}

func (r *Resolver) walk(ctx context.Context, state *walkState, sitemapURL string, depth int) error {
	if depth > r.maxDepth {
		return models.NewSitemapParseError(sitemapURL, fmt.Errorf("%w (max %d)", errDepthExceeded, r.maxDepth))
	}
	if _, ok := state.visited[sitemapURL]; ok {
		r.logger.Debug("Skipping already visited sitemap", "sitemap_url", sitemapURL)
		return nil
	}
	state.visited[sitemapURL] = struct{}{}

	base, err := url.Parse(sitemapURL)
	if err != nil {
		return models.NewSitemapFetchError(sitemapURL, err)
	}

	body, err := r.fetch(ctx, sitemapURL)
	if err != nil {
		return models.NewSitemapFetchError(sitemapURL, err)
	}

	doc, err := parseDocument(body)
	if err != nil {
		return models.NewSitemapParseError(sitemapURL, err)
	}
	if depth == 0 && doc.empty() {
		return models.NewSitemapParseError(sitemapURL, errEmptyDocument)
	}

	if doc.isIndex {
		r.logger.Debug("Expanding sitemap index", "sitemap_url", sitemapURL, "children", len(doc.children), "depth", depth)
		for _, loc := range doc.children {
			child, err := ResolveLoc(base, loc)
			if err != nil {
				r.logger.Warn("Skipping invalid child sitemap", "sitemap_url", sitemapURL, "loc", loc, "error", err)
				continue
			}
			if err := r.walk(ctx, state, child, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	for i := range doc.urls {
		r.addEntry(state, base, &doc.urls[i])
	}
	return nil
}

func (r *Resolver) addEntry(state *walkState, base *url.URL, raw *xmlURL) {
	normalized, err := ResolveLoc(base, raw.Loc)
	if err != nil {
		state.skipped++
		r.logger.Debug("Skipping invalid loc", "loc", raw.Loc, "error", err)
		return
	}
	if _, dup := state.seen[normalized]; dup {
		return
	}
	state.seen[normalized] = struct{}{}

	entry := models.SitemapEntry{URL: normalized}
	if lm, ok := parseLastMod(raw.LastMod); ok {
		entry.LastModified = lm
	}
	if p, ok := parsePriority(raw.Priority); ok {
		entry.Priority = p
	}
	state.entries = append(state.entries, entry)
}

// fetch downloads one sitemap document, transparently gunzipping .xml.gz bodies.
func (r *Resolver) fetch(ctx context.Context, sitemapURL string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, sitemapURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("unexpected http status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if !bytes.HasPrefix(body, gzipMagic) {
		return body, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("open gzip sitemap: %w", err)
	}
	defer zr.Close()

	inflated, err := io.ReadAll(io.LimitReader(zr, maxSitemapBytes))
	if err != nil {
		return nil, fmt.Errorf("inflate gzip sitemap: %w", err)
	}
	return inflated, nil
}

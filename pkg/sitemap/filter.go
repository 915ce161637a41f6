package sitemap

import (
	"fmt"
	"net/url"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/dtnitsch/sitemap2skill/models"
)

// Filter keeps entries whose URL path matches at least one include pattern
// (when any are given) and no exclude pattern. Patterns use doublestar
// syntax against the URL path, e.g. "/docs/**".
type Filter struct {
	include []string
	exclude []string
}

// NewFilter validates the patterns up front.
func NewFilter(include, exclude []string) (*Filter, error) {
	for _, p := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
	}
	return &Filter{include: include, exclude: exclude}, nil
}

// Allow reports whether rawURL passes the filter.
func (f *Filter) Allow(rawURL string) bool {
	if f == nil || (len(f.include) == 0 && len(f.exclude) == 0) {
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := u.Path
	if p == "" {
		p = "/"
	}

	for _, pattern := range f.exclude {
		if doublestar.MatchUnvalidated(pattern, p) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, pattern := range f.include {
		if doublestar.MatchUnvalidated(pattern, p) {
			return true
		}
	}
	return false
}

// Apply filters entries in place order and truncates to maxPages when > 0.
func (f *Filter) Apply(entries []models.SitemapEntry, maxPages int) []models.SitemapEntry {
	kept := make([]models.SitemapEntry, 0, len(entries))
	for _, e := range entries {
		if !f.Allow(e.URL) {
			continue
		}
		kept = append(kept, e)
		if maxPages > 0 && len(kept) == maxPages {
			break
		}
	}
	return kept
}

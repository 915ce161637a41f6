package models

import "time"

// FailedURL represents a URL that failed during processing.
type FailedURL struct {
	URL        string    `yaml:"url" json:"url"`
	Reason     string    `yaml:"reason" json:"reason"`
	Kind       ErrorKind `yaml:"error_kind" json:"error_kind"`
	StatusCode int       `yaml:"status_code,omitempty" json:"status_code,omitempty"` // 0 for non-HTTP errors
	Attempts   int       `yaml:"attempts" json:"attempts"`
	Message    string    `yaml:"message,omitempty" json:"message,omitempty"`
}

// RunReport summarises one pipeline run for user-facing diagnostics.
// Failed is ordered by sitemap discovery order.
type RunReport struct {
	RunID           string        `yaml:"run_id" json:"run_id"`
	SitemapURL      string        `yaml:"sitemap_url" json:"sitemap_url"`
	StartedAt       time.Time     `yaml:"started_at" json:"started_at"`
	Duration        time.Duration `yaml:"duration" json:"duration"`
	TotalDiscovered int           `yaml:"total_discovered" json:"total_discovered"`
	Succeeded       int           `yaml:"succeeded" json:"succeeded"`
	Failed          []FailedURL   `yaml:"failed,omitempty" json:"failed,omitempty"`
	Cancelled       bool          `yaml:"cancelled,omitempty" json:"cancelled,omitempty"`
}

// CountKind returns how many failures carry the given kind.
func (r *RunReport) CountKind(kind ErrorKind) int {
	n := 0
	for _, f := range r.Failed {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

// ManifestEntry is one line of the SKILL.md index.
type ManifestEntry struct {
	Title        string   `yaml:"title"`
	RelativePath string   `yaml:"path"`
	URL          string   `yaml:"url"`
	Sections     []string `yaml:"sections,omitempty"`
}

// BundleManifest describes the bundle contents; IndexMarkdown is the exact
// SKILL.md body.
type BundleManifest struct {
	Entries       []ManifestEntry
	IndexMarkdown string
}

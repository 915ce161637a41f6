package models

import "time"

// SitemapEntry is a single candidate page discovered from a sitemap tree.
// URL holds the normalized form used for deduplication and fetching.
type SitemapEntry struct {
	URL          string     `json:"url" yaml:"url"`
	LastModified *time.Time `json:"last_modified,omitempty" yaml:"last_modified,omitempty"`
	Priority     *float64   `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Page represents a successfully converted web page.
type Page struct {
	URL          string `json:"url"`
	Title        string `json:"title"`
	Markdown     string `json:"markdown"`
	SourceLength int    `json:"source_length"`

	// Best-effort enrichment, empty when unknown.
	Description string `json:"description,omitempty"`
	Language    string `json:"language,omitempty"` // ISO-639-1, lowercase
}

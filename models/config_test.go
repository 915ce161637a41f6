package models

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() BuildConfig {
	cfg := DefaultBuildConfig()
	cfg.SitemapURL = "https://docs.example.com/sitemap.xml"
	return cfg
}

func TestBuildConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*BuildConfig)
		wantErr bool
	}{
		{"defaults", func(*BuildConfig) {}, false},
		{"missing sitemap", func(c *BuildConfig) { c.SitemapURL = "" }, true},
		{"relative sitemap", func(c *BuildConfig) { c.SitemapURL = "/sitemap.xml" }, true},
		{"ftp sitemap", func(c *BuildConfig) { c.SitemapURL = "ftp://example.com/sitemap.xml" }, true},
		{"zero concurrency", func(c *BuildConfig) { c.Concurrency = 0 }, true},
		{"too much concurrency", func(c *BuildConfig) { c.Concurrency = 65 }, true},
		{"zero rate", func(c *BuildConfig) { c.RatePerSecond = 0 }, true},
		{"fractional rate", func(c *BuildConfig) { c.RatePerSecond = 0.5 }, false},
		{"negative retries", func(c *BuildConfig) { c.MaxRetries = -1 }, true},
		{"no retries", func(c *BuildConfig) { c.MaxRetries = 0 }, false},
		{"too many retries", func(c *BuildConfig) { c.MaxRetries = 11 }, true},
		{"zero depth", func(c *BuildConfig) { c.MaxDepth = 0 }, true},
		{"negative max pages", func(c *BuildConfig) { c.MaxPages = -1 }, true},
		{"readability", func(c *BuildConfig) { c.ExtractMode = ExtractModeReadability }, false},
		{"unknown extract mode", func(c *BuildConfig) { c.ExtractMode = "magic" }, true},
		{"valid globs", func(c *BuildConfig) { c.Include = []string{"/docs/**"}; c.Exclude = []string{"/docs/v1/*"} }, false},
		{"broken glob", func(c *BuildConfig) { c.Include = []string{"/docs/[a"} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithDefaults(t *testing.T) {
	cfg := BuildConfig{SitemapURL: "https://example.com/sitemap.xml", MaxRetries: 0}.WithDefaults()

	assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	assert.Equal(t, DefaultRatePerSecond, cfg.RatePerSecond)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
	assert.Equal(t, ExtractModeDenylist, cfg.ExtractMode)
	assert.Equal(t, DefaultSkillName, cfg.Skill.Name)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, 0, cfg.MaxRetries, "zero retries is a valid choice")
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("overlays defaults", func(t *testing.T) {
		path := filepath.Join(dir, "build.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
sitemap_url: https://docs.example.com/sitemap.xml
rate_per_second: 0.5
request_timeout: 10s
respect_robots: true
exclude:
  - "/blog/**"
skill:
  name: my-docs
`), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 0.5, cfg.RatePerSecond)
		assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
		assert.True(t, cfg.RespectRobots)
		assert.Equal(t, []string{"/blog/**"}, cfg.Exclude)
		assert.Equal(t, "my-docs", cfg.Skill.Name)
		assert.Equal(t, DefaultSkillDescription, cfg.Skill.Description)
		assert.Equal(t, DefaultConcurrency, cfg.Concurrency)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(dir, "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("concurrency: [1, 2"), 0o644))
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}

func TestFetchFailureReason(t *testing.T) {
	assert.Equal(t, "http_status(503)", (&FetchFailure{Kind: KindHTTPStatus, StatusCode: 503}).Reason())
	assert.Equal(t, "timeout", (&FetchFailure{Kind: KindTimeout}).Reason())
}

func TestRunReportCountKind(t *testing.T) {
	r := RunReport{Failed: []FailedURL{{Kind: KindCancelled}, {Kind: KindTimeout}, {Kind: KindCancelled}}}
	assert.Equal(t, 2, r.CountKind(KindCancelled))
	assert.Equal(t, 0, r.CountKind(KindNetwork))
}

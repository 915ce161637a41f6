// Package models defines data structures for configuration, pages and run results.
package models

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

const (
	ExtractModeDenylist    = "denylist"
	ExtractModeReadability = "readability"
)

// Default configuration values.
const (
	DefaultConcurrency    = 5
	DefaultRatePerSecond  = 2.0
	DefaultUserAgent      = "sitemap2skill/1.0 (+https://github.com/dtnitsch/sitemap2skill)"
	DefaultMaxRetries     = 2
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxDepth       = 5
	DefaultOutput         = "skill_bundle.zip"

	DefaultSkillName        = "generated-skill"
	DefaultSkillDescription = "AI Skill generated from website documentation."
	DefaultSkillOverview    = "This skill contains documentation scraped from the provided website."

	maxConcurrency = 64
	maxRetries     = 10
)

// SkillInfo is written into the SKILL.md front matter and overview.
type SkillInfo struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Overview    string `yaml:"overview"`
}

// BuildConfig holds runtime configuration for a bundle build.
// Values come from an optional YAML file, then CLI flags.
type BuildConfig struct {
	SitemapURL     string        `yaml:"sitemap_url"`
	Concurrency    int           `yaml:"concurrency"`
	RatePerSecond  float64       `yaml:"rate_per_second"`
	UserAgent      string        `yaml:"user_agent"`
	MaxRetries     int           `yaml:"max_retries"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxDepth       int           `yaml:"max_depth"`
	MaxPages       int           `yaml:"max_pages"` // 0 = unlimited
	Include        []string      `yaml:"include,omitempty"`
	Exclude        []string      `yaml:"exclude,omitempty"`
	RespectRobots  bool          `yaml:"respect_robots"`
	ExtractMode    string        `yaml:"extract_mode"`
	Skill          SkillInfo     `yaml:"skill"`
	Output         string        `yaml:"output"`
}

// DefaultBuildConfig returns a config populated with every default.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		Concurrency:    DefaultConcurrency,
		RatePerSecond:  DefaultRatePerSecond,
		UserAgent:      DefaultUserAgent,
		MaxRetries:     DefaultMaxRetries,
		RequestTimeout: DefaultRequestTimeout,
		MaxDepth:       DefaultMaxDepth,
		ExtractMode:    ExtractModeDenylist,
		Skill: SkillInfo{
			Name:        DefaultSkillName,
			Description: DefaultSkillDescription,
			Overview:    DefaultSkillOverview,
		},
		Output: DefaultOutput,
	}
}

// LoadConfig reads a YAML config file on top of the defaults.
func LoadConfig(path string) (BuildConfig, error) {
	cfg := DefaultBuildConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg.WithDefaults(), nil
}

// WithDefaults returns a copy of the config with default values applied for
// zero-value fields that have no meaningful zero.
func (c BuildConfig) WithDefaults() BuildConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = DefaultRatePerSecond
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.ExtractMode == "" {
		c.ExtractMode = ExtractModeDenylist
	}
	if c.Skill.Name == "" {
		c.Skill.Name = DefaultSkillName
	}
	if c.Skill.Description == "" {
		c.Skill.Description = DefaultSkillDescription
	}
	if c.Skill.Overview == "" {
		c.Skill.Overview = DefaultSkillOverview
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	return c
}

// Validate checks the user-supplied inputs before a run starts.
func (c BuildConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SitemapURL, validation.Required, validation.By(absoluteHTTPURL)),
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1), validation.Max(maxConcurrency)),
		validation.Field(&c.RatePerSecond, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&c.MaxRetries, validation.Min(0), validation.Max(maxRetries)),
		validation.Field(&c.MaxDepth, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxPages, validation.Min(0)),
		validation.Field(&c.ExtractMode, validation.In(ExtractModeDenylist, ExtractModeReadability)),
		validation.Field(&c.Include, validation.Each(validation.By(validGlob))),
		validation.Field(&c.Exclude, validation.Each(validation.By(validGlob))),
	)
}

func absoluteHTTPURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return validation.NewError("validation_url_invalid", "must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validation.NewError("validation_url_scheme", "must use http or https")
	}
	if u.Host == "" {
		return validation.NewError("validation_url_host", "must include a host")
	}
	return nil
}

func validGlob(value any) error {
	s, _ := value.(string)
	if !doublestar.ValidatePattern(s) {
		return errors.New("must be a valid glob pattern")
	}
	return nil
}

package build

import (
	"github.com/urfave/cli/v2"

	"github.com/dtnitsch/sitemap2skill/models"
)

// CommonFlags are accepted by every command.
func CommonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "only log errors"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log per-URL progress"},
	}
}

// SitemapFlags configure sitemap resolution and are shared by build and resolve.
func SitemapFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML build config; flags override it"},
		&cli.StringFlag{Name: "sitemap", Aliases: []string{"s"}, Usage: "sitemap or sitemap index URL"},
		&cli.StringFlag{Name: "user-agent", Value: models.DefaultUserAgent, Usage: "User-Agent header for every request"},
		&cli.DurationFlag{Name: "timeout", Value: models.DefaultRequestTimeout, Usage: "per-request timeout"},
		&cli.IntFlag{Name: "max-depth", Value: models.DefaultMaxDepth, Usage: "maximum sitemap index nesting"},
		&cli.IntFlag{Name: "max-pages", Usage: "stop after this many pages (0 = unlimited)"},
		&cli.StringSliceFlag{Name: "include", Usage: "only keep URL paths matching this glob (repeatable)"},
		&cli.StringSliceFlag{Name: "exclude", Usage: "drop URL paths matching this glob (repeatable)"},
	}
}

// Flags for the build command.
func Flags() []cli.Flag {
	flags := append(CommonFlags(), SitemapFlags()...)
	return append(flags,
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: models.DefaultOutput, Usage: "bundle zip path"},
		&cli.IntFlag{Name: "concurrency", Aliases: []string{"w"}, Value: models.DefaultConcurrency, Usage: "maximum in-flight page fetches"},
		&cli.Float64Flag{Name: "rate", Value: models.DefaultRatePerSecond, Usage: "page fetches per second across all workers"},
		&cli.IntFlag{Name: "max-retries", Value: models.DefaultMaxRetries, Usage: "retries for transient failures"},
		&cli.BoolFlag{Name: "respect-robots", Usage: "skip URLs disallowed by robots.txt"},
		&cli.StringFlag{Name: "extract", Value: models.ExtractModeDenylist, Usage: "content extraction: denylist or readability"},
		&cli.BoolFlag{Name: "detect-language", Usage: "detect page language when the page does not declare one"},
		&cli.StringFlag{Name: "name", Value: models.DefaultSkillName, Usage: "skill name in SKILL.md"},
		&cli.StringFlag{Name: "description", Value: models.DefaultSkillDescription, Usage: "skill description in SKILL.md"},
		&cli.StringFlag{Name: "overview", Usage: "overview paragraph in SKILL.md"},
		&cli.BoolFlag{Name: "history", Usage: "record this run in the history database"},
		&cli.StringFlag{Name: "history-db", Usage: "history database path (default: user config dir)"},
		&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on this address during the run"},
	)
}

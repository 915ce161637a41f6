// Package converter turns fetched HTML documents into normalized Markdown
// pages.
package converter

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-shiori/go-readability"

	"github.com/dtnitsch/sitemap2skill/models"
)

// binarySample is how many leading bytes are inspected for binary content.
const binarySample = 8 * 1024

var (
	errEmptyBody  = errors.New("empty body")
	errBinaryBody = errors.New("body is binary, not a document")

	excessiveLinesRe = regexp.MustCompile(`\n{3,}`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
)

// Options configures a Converter.
type Options struct {
	// ExtractMode is models.ExtractModeDenylist (default) or
	// models.ExtractModeReadability.
	ExtractMode    string
	Policy         *Policy
	DetectLanguage bool
	Logger         *slog.Logger
}

// Converter converts HTML to Markdown. It holds no per-call state and may be
// used from several goroutines.
type Converter struct {
	mode           string
	policy         Policy
	detectLanguage bool
	logger         *slog.Logger
}

// New creates a Converter.
func New(opts Options) *Converter {
	c := &Converter{
		mode:           opts.ExtractMode,
		policy:         DefaultPolicy(),
		detectLanguage: opts.DetectLanguage,
		logger:         opts.Logger,
	}
	if c.mode == "" {
		c.mode = models.ExtractModeDenylist
	}
	if opts.Policy != nil {
		c.policy = *opts.Policy
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Convert parses body and returns the page it describes. It fails only with a
// *models.ConversionError, when body is empty or binary.
func (c *Converter) Convert(pageURL string, body []byte) (*models.Page, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &models.ConversionError{URL: pageURL, Err: errEmptyBody}
	}
	if looksBinary(body) {
		return nil, &models.ConversionError{URL: pageURL, Err: errBinaryBody}
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, &models.ConversionError{URL: pageURL, Err: fmt.Errorf("parse page url: %w", err)}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &models.ConversionError{URL: pageURL, Err: fmt.Errorf("parse html: %w", err)}
	}

	page := &models.Page{
		URL:          pageURL,
		Title:        extractTitle(doc, base),
		Description:  extractDescription(doc),
		SourceLength: len(body),
	}

	linkBase := documentBase(doc, base)

	var content *goquery.Selection
	if c.mode == models.ExtractModeReadability {
		content = c.readabilityContent(body, base)
	}
	if content == nil {
		content = contentRoot(doc)
		c.policy.strip(content)
	}
	absolutizeLinks(content, linkBase)

	markdown, err := toMarkdown(content)
	if err != nil {
		return nil, &models.ConversionError{URL: pageURL, Err: err}
	}
	page.Markdown = markdown

	if c.detectLanguage {
		page.Language = declaredLanguage(doc.Find("html").AttrOr("lang", ""))
		if page.Language == "" {
			page.Language = detectLanguage(content.Text())
		}
	}

	return page, nil
}

// readabilityContent returns the main article as found by go-readability, or
// nil when it cannot find one.
func (c *Converter) readabilityContent(body []byte, base *url.URL) *goquery.Selection {
	rp := readability.NewParser()
	article, err := rp.Parse(bytes.NewReader(body), base)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		c.logger.Debug("Readability found no article, using denylist", "url", base.String(), "error", err)
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return nil
	}
	return doc.Find("body")
}

// contentRoot prefers the page's declared main region and falls back to body.
func contentRoot(doc *goquery.Document) *goquery.Selection {
	if main := doc.Find("main, [role=main]").First(); main.Length() > 0 {
		return main
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

func toMarkdown(content *goquery.Selection) (string, error) {
	html, err := goquery.OuterHtml(content)
	if err != nil {
		return "", fmt.Errorf("render content: %w", err)
	}

	conv := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		CodeBlockStyle:   "fenced",
		Fence:            "```",
		BulletListMarker: "-",
		EmDelimiter:      "*",
		StrongDelimiter:  "**",
	})
	conv.Use(plugin.GitHubFlavored())

	markdown, err := conv.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	return cleanMarkdown(markdown), nil
}

// cleanMarkdown trims trailing spaces and collapses runs of blank lines.
func cleanMarkdown(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = strings.Join(lines, "\n")
	content = excessiveLinesRe.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

func extractTitle(doc *goquery.Document, pageURL *url.URL) string {
	if t := collapse(doc.Find("head title").First().Text()); t != "" {
		return t
	}
	if t := collapse(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return titleFromURL(pageURL)
}

// titleFromURL uses the last path segment, or the host for the root page.
func titleFromURL(u *url.URL) string {
	p := strings.TrimRight(u.Path, "/")
	if p == "" {
		return u.Hostname()
	}
	seg := path.Base(p)
	if unescaped, err := url.PathUnescape(seg); err == nil {
		seg = unescaped
	}
	switch strings.ToLower(path.Ext(seg)) {
	case ".html", ".htm", ".php", ".asp", ".aspx", ".jsp":
		seg = strings.TrimSuffix(seg, path.Ext(seg))
	}
	if seg == "" {
		return u.Hostname()
	}
	return seg
}

func extractDescription(doc *goquery.Document) string {
	for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		if d := collapse(doc.Find(sel).First().AttrOr("content", "")); d != "" {
			return d
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// looksBinary rejects bodies that mimetype identifies as a non-text format,
// or whose leading bytes are mostly control characters or invalid UTF-8.
func looksBinary(body []byte) bool {
	sample := body
	if len(sample) > binarySample {
		sample = sample[:binarySample]
	}

	if !isTextual(mimetype.Detect(sample)) {
		return true
	}
	if bytes.IndexByte(sample, 0) >= 0 {
		return true
	}

	var suspicious, total int
	for len(sample) > 0 {
		r, size := utf8.DecodeRune(sample)
		sample = sample[size:]
		total++
		if r == utf8.RuneError && size == 1 && len(sample) >= utf8.UTFMax {
			suspicious++
			continue
		}
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			suspicious++
		}
	}
	return total > 0 && suspicious*10 > total
}

func isTextual(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

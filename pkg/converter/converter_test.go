package converter

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnitsch/sitemap2skill/models"
)

const docsPage = `<!DOCTYPE html>
<html>
<head>
  <title>  Getting   Started </title>
  <meta name="description" content="How to install the tool.">
  <script>var tracking = true;</script>
  <style>body { color: red; }</style>
</head>
<body>
  <header class="site-header"><a href="/">Home</a></header>
  <nav><ul><li><a href="/docs">Docs</a></li></ul></nav>
  <div class="sidebar">Sidebar links</div>
  <main>
    <h1>Getting Started</h1>
    <p>Install the <em>tool</em> with <code>go install</code>. See <a href="../reference/cli">the CLI reference</a>.</p>
    <h2>Requirements</h2>
    <ul><li>Go 1.22</li><li>Git</li></ul>
    <h2>Steps</h2>
    <ol><li>Clone</li><li>Build</li></ol>
    <pre><code class="language-bash">make build
</code></pre>
    <div class="ad-banner">Buy now</div>
    <p><strong>Done.</strong> <a href="javascript:void(0)">Toggle</a></p>
    <img src="/img/diagram.png" alt="Diagram">
  </main>
  <footer>Copyright</footer>
</body>
</html>`

func TestConvertDocsPage(t *testing.T) {
	page, err := New(Options{}).Convert("https://example.com/docs/guide/start", []byte(docsPage))
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/docs/guide/start", page.URL)
	assert.Equal(t, "Getting Started", page.Title)
	assert.Equal(t, "How to install the tool.", page.Description)
	assert.Equal(t, len(docsPage), page.SourceLength)

	md := page.Markdown
	assert.Contains(t, md, "# Getting Started")
	assert.Contains(t, md, "## Requirements")
	assert.Contains(t, md, "- Go 1.22")
	assert.Contains(t, md, "1. Clone")
	assert.Contains(t, md, "*tool*")
	assert.Contains(t, md, "`go install`")
	assert.Contains(t, md, "**Done.**")
	assert.Contains(t, md, "```bash\nmake build")
	assert.Contains(t, md, "[the CLI reference](https://example.com/docs/reference/cli)")
	assert.Contains(t, md, "![Diagram](https://example.com/img/diagram.png)")
	assert.Contains(t, md, "Toggle")

	for _, boilerplate := range []string{"tracking", "color: red", "Sidebar links", "Buy now", "Copyright", "javascript:"} {
		assert.NotContains(t, md, boilerplate)
	}
	assert.NotContains(t, md, "\n\n\n")
}

func TestConvertTitleFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		html  string
		title string
	}{
		{
			name:  "title tag",
			url:   "https://example.com/a",
			html:  "<html><head><title>From Title</title></head><body><h1>From H1</h1></body></html>",
			title: "From Title",
		},
		{
			name:  "first h1",
			url:   "https://example.com/a",
			html:  "<html><body><h1>From <span>H1</span></h1><h1>Second</h1></body></html>",
			title: "From H1",
		},
		{
			name:  "last path segment",
			url:   "https://example.com/docs/install-guide.html",
			html:  "<html><body><p>No headings here.</p></body></html>",
			title: "install-guide",
		},
		{
			name:  "escaped path segment",
			url:   "https://example.com/docs/hello%20world/",
			html:  "<p>text</p>",
			title: "hello world",
		},
		{
			name:  "root uses host",
			url:   "https://example.com/",
			html:  "<p>home</p>",
			title: "example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := New(Options{}).Convert(tt.url, []byte(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.title, page.Title)
		})
	}
}

func TestConvertUglyHTMLNeverFails(t *testing.T) {
	inputs := []string{
		"<p>unclosed <b>bold <i>italic",
		"<div><div><div>deep</span></p>",
		"just some text without tags",
		"<table><tr><td>cell",
		"<<<>>> &amp &nbsp; <notatag>",
	}
	for _, in := range inputs {
		_, err := New(Options{}).Convert("https://example.com/ugly", []byte(in))
		assert.NoError(t, err, "input %q", in)
	}
}

func TestConvertRejectsBinary(t *testing.T) {
	inputs := map[string][]byte{
		"png":   {0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'},
		"nul":   []byte("<html>\x00\x01\x02\x03</html>"),
		"gzip":  {0x1f, 0x8b, 0x08, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x03},
		"empty": []byte("   \n"),
	}

	for name, body := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := New(Options{}).Convert("https://example.com/bin", body)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrConversion))

			var convErr *models.ConversionError
			require.True(t, errors.As(err, &convErr))
			assert.Equal(t, "https://example.com/bin", convErr.URL)
		})
	}
}

func TestConvertHonoursBaseHref(t *testing.T) {
	html := `<html><head><base href="https://cdn.example.org/v2/"></head><body><a href="page">p</a></body></html>`
	page, err := New(Options{}).Convert("https://example.com/x/y", []byte(html))
	require.NoError(t, err)
	assert.Contains(t, page.Markdown, "(https://cdn.example.org/v2/page)")
}

func TestConvertFallsBackToBody(t *testing.T) {
	html := `<html><body><nav>menu</nav><div class="content"><h2>Body only</h2><p>text</p></div></body></html>`
	page, err := New(Options{}).Convert("https://example.com/b", []byte(html))
	require.NoError(t, err)
	assert.Contains(t, page.Markdown, "## Body only")
	assert.NotContains(t, page.Markdown, "menu")
}

func TestConvertKeepsHeaderInsideArticle(t *testing.T) {
	html := `<html><body><header>Site chrome</header><article><header><h1>Article Title</h1></header><p>Body text</p></article></body></html>`
	page, err := New(Options{}).Convert("https://example.com/post", []byte(html))
	require.NoError(t, err)
	assert.Contains(t, page.Markdown, "# Article Title")
	assert.NotContains(t, page.Markdown, "Site chrome")
}

func TestConvertKeepsArticleInsideLayoutWrapper(t *testing.T) {
	html := `<html><body><div class="page has-sidebar"><div class="sidebar">links</div>` +
		`<article><h2>Install</h2><p>Run the installer.</p></article></div></body></html>`
	page, err := New(Options{}).Convert("https://example.com/install", []byte(html))
	require.NoError(t, err)
	assert.Contains(t, page.Markdown, "## Install")
	assert.Contains(t, page.Markdown, "Run the installer.")
	assert.NotContains(t, page.Markdown, "links")
}

func TestCustomPolicy(t *testing.T) {
	html := `<html><body><main><div class="callout">Keep</div><div class="promo">Drop</div><nav>Kept nav</nav></main></body></html>`
	policy := Policy{Tokens: []string{"promo"}}
	page, err := New(Options{Policy: &policy}).Convert("https://example.com/p", []byte(html))
	require.NoError(t, err)
	assert.Contains(t, page.Markdown, "Keep")
	assert.Contains(t, page.Markdown, "Kept nav")
	assert.NotContains(t, page.Markdown, "Drop")
}

func TestConvertReadabilityMode(t *testing.T) {
	var b strings.Builder
	b.WriteString(`<html><head><title>Long Article</title></head><body><div class="menu">Menu A | Menu B</div><article><h1>Long Article</h1>`)
	for range 8 {
		b.WriteString("<p>Readability scores paragraphs by their length and the number of commas, so this paragraph is long, wordy, and full of commas, which helps it win.</p>")
	}
	b.WriteString(`</article></body></html>`)

	page, err := New(Options{ExtractMode: models.ExtractModeReadability}).Convert("https://example.com/article", []byte(b.String()))
	require.NoError(t, err)
	assert.Equal(t, "Long Article", page.Title)
	assert.Contains(t, page.Markdown, "Readability scores paragraphs")
	assert.NotContains(t, page.Markdown, "Menu A")
}

func TestConvertLanguage(t *testing.T) {
	declared := `<html lang="de-DE"><body><p>Hallo</p></body></html>`
	page, err := New(Options{DetectLanguage: true}).Convert("https://example.com/de", []byte(declared))
	require.NoError(t, err)
	assert.Equal(t, "de", page.Language)

	english := `<html><body><main><p>This guide explains how to configure the command line tool, how to write a configuration file, and how to run your first build against a documentation website.</p></main></body></html>`
	page, err = New(Options{DetectLanguage: true}).Convert("https://example.com/en", []byte(english))
	require.NoError(t, err)
	assert.Equal(t, "en", page.Language)

	page, err = New(Options{}).Convert("https://example.com/en", []byte(english))
	require.NoError(t, err)
	assert.Empty(t, page.Language)
}

func TestCleanMarkdown(t *testing.T) {
	in := "# Title   \n\n\n\n\nParagraph\t\n\n\n- item\n"
	assert.Equal(t, "# Title\n\nParagraph\n\n- item", cleanMarkdown(in))
}

func TestEdgeMatch(t *testing.T) {
	assert.True(t, edgeMatch("site-nav", "nav"))
	assert.True(t, edgeMatch("nav_main", "nav"))
	assert.False(t, edgeMatch("canvas-wrapper", "nav"))
	assert.False(t, edgeMatch("read-more", "ad"))
	assert.False(t, edgeMatch("shared-content", "share"))
}

package sitemap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtnitsch/sitemap2skill/models"
)

// newSitemapServer serves the given path->body documents; unknown paths 404.
func newSitemapServer(t *testing.T, docs map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func urlset(locs ...string) string {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, loc := range locs {
		fmt.Fprintf(&b, "<url><loc>%s</loc></url>", loc)
	}
	b.WriteString("</urlset>")
	return b.String()
}

func sitemapIndex(locs ...string) string {
	var b bytes.Buffer
	b.WriteString(`<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	for _, loc := range locs {
		fmt.Fprintf(&b, "<sitemap><loc>%s</loc></sitemap>", loc)
	}
	b.WriteString("</sitemapindex>")
	return b.String()
}

func entryURLs(entries []models.SitemapEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.URL
	}
	return out
}

func TestResolveFlatSitemap(t *testing.T) {
	srv := newSitemapServer(t, map[string]string{
		"/sitemap.xml": urlset("https://docs.example.com/a", "https://docs.example.com/b", "https://docs.example.com/c"),
	})

	r := NewResolver(srv.Client(), Options{})
	entries, err := r.Resolve(context.Background(), srv.URL+"/sitemap.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://docs.example.com/a",
		"https://docs.example.com/b",
		"https://docs.example.com/c",
	}, entryURLs(entries))
}

func TestResolveIndexConcatenatesChildren(t *testing.T) {
	var srv *httptest.Server
	docs := map[string]string{}
	srv = newSitemapServer(t, docs)
	docs["/index.xml"] = sitemapIndex(srv.URL+"/s1.xml", srv.URL+"/s2.xml")
	docs["/s1.xml"] = urlset("https://example.com/1", "https://example.com/2")
	docs["/s2.xml"] = urlset("https://example.com/3", "https://example.com/4")

	entries, err := NewResolver(srv.Client(), Options{}).Resolve(context.Background(), srv.URL+"/index.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://example.com/1",
		"https://example.com/2",
		"https://example.com/3",
		"https://example.com/4",
	}, entryURLs(entries))
}

func TestResolveDeduplicatesNormalizedURLs(t *testing.T) {
	srv := newSitemapServer(t, map[string]string{
		"/sitemap.xml": urlset(
			"https://example.com/a",
			"https://EXAMPLE.com/a/",
			"https://example.com:443/a#top",
			"https://example.com/b",
		),
	})

	entries, err := NewResolver(srv.Client(), Options{}).Resolve(context.Background(), srv.URL+"/sitemap.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, entryURLs(entries))
}

func TestResolveRelativeAndInvalidLocs(t *testing.T) {
	srv := newSitemapServer(t, map[string]string{
		"/sitemap.xml": urlset("/docs/intro", "mailto:someone@example.com", "https://example.com/x"),
	})

	entries, err := NewResolver(srv.Client(), Options{}).Resolve(context.Background(), srv.URL+"/sitemap.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/docs/intro", "https://example.com/x"}, entryURLs(entries))
}

func TestResolveKeepsMetadata(t *testing.T) {
	srv := newSitemapServer(t, map[string]string{
		"/sitemap.xml": `<urlset><url><loc>https://example.com/a</loc><lastmod>2024-01-02</lastmod><priority>0.7</priority></url></urlset>`,
	})

	entries, err := NewResolver(srv.Client(), Options{}).Resolve(context.Background(), srv.URL+"/sitemap.xml")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].LastModified)
	require.NotNil(t, entries[0].Priority)
	assert.Equal(t, 2, entries[0].LastModified.Day())
	assert.InDelta(t, 0.7, *entries[0].Priority, 1e-9)
}

func TestResolveGzipSitemap(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(urlset("https://example.com/zipped")))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	srv := newSitemapServer(t, map[string]string{"/sitemap.xml.gz": buf.String()})

	entries, err := NewResolver(srv.Client(), Options{}).Resolve(context.Background(), srv.URL+"/sitemap.xml.gz")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/zipped"}, entryURLs(entries))
}

func TestResolveTextSitemap(t *testing.T) {
	srv := newSitemapServer(t, map[string]string{
		"/sitemap.txt": "https://example.com/one\nhttps://example.com/two\n",
	})

	entries, err := NewResolver(srv.Client(), Options{}).Resolve(context.Background(), srv.URL+"/sitemap.txt")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name     string
		docs     map[string]string
		path     string
		sentinel error
	}{
		{name: "not found", docs: map[string]string{}, path: "/missing.xml", sentinel: models.ErrSitemapFetch},
		{name: "malformed xml", docs: map[string]string{"/s.xml": "<urlset><url><loc>x"}, path: "/s.xml", sentinel: models.ErrSitemapParse},
		{name: "html instead of sitemap", docs: map[string]string{"/s.xml": "<html><body>hi</body></html>"}, path: "/s.xml", sentinel: models.ErrSitemapParse},
		{name: "empty urlset", docs: map[string]string{"/s.xml": urlset()}, path: "/s.xml", sentinel: models.ErrSitemapParse},
		{name: "only invalid locs", docs: map[string]string{"/s.xml": urlset("mailto:x@example.com")}, path: "/s.xml", sentinel: models.ErrSitemapParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newSitemapServer(t, tt.docs)
			entries, err := NewResolver(srv.Client(), Options{}).Resolve(context.Background(), srv.URL+tt.path)
			require.Error(t, err)
			assert.Nil(t, entries)
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)

			var sitemapErr *models.SitemapError
			require.True(t, errors.As(err, &sitemapErr))
			assert.Equal(t, srv.URL+tt.path, sitemapErr.URL)
		})
	}
}

func TestResolveChildFetchFailureAborts(t *testing.T) {
	docs := map[string]string{}
	srv := newSitemapServer(t, docs)
	docs["/index.xml"] = sitemapIndex(srv.URL+"/ok.xml", srv.URL+"/gone.xml")
	docs["/ok.xml"] = urlset("https://example.com/a")

	_, err := NewResolver(srv.Client(), Options{}).Resolve(context.Background(), srv.URL+"/index.xml")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSitemapFetch)
}

func TestResolveIndexCycleTerminates(t *testing.T) {
	docs := map[string]string{}
	srv := newSitemapServer(t, docs)
	docs["/a.xml"] = sitemapIndex(srv.URL+"/b.xml", srv.URL+"/pages.xml")
	docs["/b.xml"] = sitemapIndex(srv.URL + "/a.xml")
	docs["/pages.xml"] = urlset("https://example.com/p")

	entries, err := NewResolver(srv.Client(), Options{}).Resolve(context.Background(), srv.URL+"/a.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/p"}, entryURLs(entries))
}

func TestResolveDepthLimit(t *testing.T) {
	docs := map[string]string{}
	srv := newSitemapServer(t, docs)
	docs["/l0.xml"] = sitemapIndex(srv.URL + "/l1.xml")
	docs["/l1.xml"] = sitemapIndex(srv.URL + "/l2.xml")
	docs["/l2.xml"] = urlset("https://example.com/deep")

	_, err := NewResolver(srv.Client(), Options{MaxDepth: 1}).Resolve(context.Background(), srv.URL+"/l0.xml")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrSitemapParse)

	entries, err := NewResolver(srv.Client(), Options{MaxDepth: 2}).Resolve(context.Background(), srv.URL+"/l0.xml")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestResolveSendsHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(urlset("https://example.com/a")))
	}))
	defer srv.Close()

	_, err := NewResolver(srv.Client(), Options{UserAgent: "test-agent/1.0"}).Resolve(context.Background(), srv.URL+"/s.xml")
	require.NoError(t, err)
	assert.Equal(t, "test-agent/1.0", gotUA)
	assert.Contains(t, gotAccept, "application/xml")
}

func TestFilterApply(t *testing.T) {
	entries := []models.SitemapEntry{
		{URL: "https://example.com/docs/a"},
		{URL: "https://example.com/docs/internal/b"},
		{URL: "https://example.com/blog/c"},
		{URL: "https://example.com/docs/d"},
	}

	f, err := NewFilter([]string{"/docs/**"}, []string{"/docs/internal/**"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/docs/a", "https://example.com/docs/d"}, entryURLs(f.Apply(entries, 0)))
	assert.Equal(t, []string{"https://example.com/docs/a"}, entryURLs(f.Apply(entries, 1)))

	var none *Filter
	assert.Len(t, none.Apply(entries, 0), 4)

	_, err = NewFilter([]string{"/docs/[a"}, nil)
	assert.Error(t, err)
}

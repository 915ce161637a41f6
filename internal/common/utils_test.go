package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "https://example.com/sitemap.xml", "https://example.com/sitemap.xml"},
		{"whitespace", "  https://example.com/sitemap.xml \n", "https://example.com/sitemap.xml"},
		{"markdown link", "[docs](https://example.com/sitemap.xml)", "https://example.com/sitemap.xml"},
		{"angle brackets", "<https://example.com/sitemap.xml>", "https://example.com/sitemap.xml"},
		{"trailing comma", "https://example.com/sitemap.xml,", "https://example.com/sitemap.xml"},
		{"quoted", `"https://example.com/sitemap.xml"`, "https://example.com/sitemap.xml"},
		{"keeps extension dot", "https://example.com/sitemap.xml", "https://example.com/sitemap.xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeURL(tt.in))
		})
	}
}

func TestSanitizeSitemapURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{"valid", "https://example.com/sitemap.xml", "https://example.com/sitemap.xml", false},
		{"with port", "http://127.0.0.1:8080/sitemap.xml", "http://127.0.0.1:8080/sitemap.xml", false},
		{"cleaned", " (https://example.com/sitemap.xml) ", "https://example.com/sitemap.xml", false},
		{"empty", "   ", "", true},
		{"spaces", "https://example.com/site map.xml", "", true},
		{"ftp", "ftp://example.com/sitemap.xml", "", true},
		{"relative", "/sitemap.xml", "", true},
		{"bad host", "https://exa{mple}.com/sitemap.xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizeSitemapURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContentHash(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		ContentHash(nil))
	assert.Len(t, ContentHash([]byte("bundle")), 64)
}

package manifest

import (
	"crypto/sha256"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

const (
	// ReferencesDir is the bundle directory holding one file per page.
	ReferencesDir  = "references"
	maxSegmentLen  = 100
	indexName      = "index"
	markdownSuffix = ".md"
)

var unsafeSegmentChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// strippedExtensions are dropped from the last path segment so that
// /guide.html becomes guide.md rather than guide.html.md.
var strippedExtensions = map[string]struct{}{
	".html": {}, ".htm": {}, ".php": {}, ".asp": {}, ".aspx": {}, ".jsp": {}, ".md": {},
}

// ReferencePath maps a page URL to its preferred bundle path, e.g.
// https://example.com/docs/intro/ -> references/docs/intro.md. The root page
// maps to references/index.md. The result may collide with another URL's;
// AssignPaths resolves that.
func ReferencePath(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return path.Join(ReferencesDir, sanitizeSegment(pageURL)) + markdownSuffix
	}

	var segments []string
	for _, raw := range strings.Split(u.Path, "/") {
		if raw == "" {
			continue
		}
		if unescaped, err := url.PathUnescape(raw); err == nil {
			raw = unescaped
		}
		segments = append(segments, raw)
	}

	if len(segments) == 0 {
		return path.Join(ReferencesDir, indexName) + markdownSuffix
	}

	last := segments[len(segments)-1]
	if _, ok := strippedExtensions[strings.ToLower(path.Ext(last))]; ok {
		last = strings.TrimSuffix(last, path.Ext(last))
		if last == "" {
			last = indexName
		}
		segments[len(segments)-1] = last
	}

	for i, s := range segments {
		segments[i] = sanitizeSegment(s)
	}

	return path.Join(append([]string{ReferencesDir}, segments...)...) + markdownSuffix
}

// sanitizeSegment keeps [A-Za-z0-9._-], replacing other runs with "_", and
// neutralises "." and "..".
func sanitizeSegment(s string) string {
	s = unsafeSegmentChars.ReplaceAllString(s, "_")
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	if len(s) > maxSegmentLen {
		s = s[:maxSegmentLen]
	}
	return s
}

// AssignPaths returns one collision-free path per URL, in input order. The
// first URL to claim a path keeps it; later ones get a suffix derived from
// their URL. Comparison ignores case so bundles extract cleanly on
// case-insensitive filesystems.
func AssignPaths(urls []string) []string {
	paths := make([]string, len(urls))
	taken := make(map[string]struct{}, len(urls))

	for i, u := range urls {
		p := ReferencePath(u)
		if _, dup := taken[strings.ToLower(p)]; dup {
			p = withSuffix(p, shortHash(u))
			for n := 2; ; n++ {
				if _, dup := taken[strings.ToLower(p)]; !dup {
					break
				}
				p = withSuffix(ReferencePath(u), fmt.Sprintf("%s-%d", shortHash(u), n))
			}
		}
		taken[strings.ToLower(p)] = struct{}{}
		paths[i] = p
	}

	return paths
}

func withSuffix(p, suffix string) string {
	return strings.TrimSuffix(p, markdownSuffix) + "-" + suffix + markdownSuffix
}

// shortHash is the first 4 bytes of the URL's SHA-256 as 8 hex characters.
func shortHash(u string) string {
	sum := sha256.Sum256([]byte(u))
	return fmt.Sprintf("%x", sum[:4])
}

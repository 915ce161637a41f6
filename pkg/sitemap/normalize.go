package sitemap

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// defaultPorts maps schemes to their default port strings.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

var (
	errEmptyInput          = errors.New("normalize url: empty input")
	errMissingSchemeOrHost = errors.New("normalize url: missing scheme or host")
	errUnsupportedScheme   = errors.New("normalize url: unsupported scheme")
)

// NormalizeURL applies deterministic transformations so that equivalent page
// URLs compare equal: scheme and host are lowercased, default ports dropped,
// dot-segments resolved, trailing slashes removed (root stays "/"), and the
// fragment stripped. The query string is preserved as-is.
func NormalizeURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", errEmptyInput
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("normalize url: %w", err)
	}

	return normalizeParsed(parsed)
}

// ResolveLoc resolves a <loc> value against the sitemap it was found in and
// normalizes the result. Absolute locs are unaffected by base.
func ResolveLoc(base *url.URL, loc string) (string, error) {
	trimmed := strings.TrimSpace(loc)
	if trimmed == "" {
		return "", errEmptyInput
	}

	ref, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("normalize url: %w", err)
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}

	return normalizeParsed(ref)
}

func normalizeParsed(u *url.URL) (string, error) {
	if u.Scheme == "" || u.Host == "" {
		return "", errMissingSchemeOrHost
	}

	scheme := strings.ToLower(u.Scheme)
	if _, ok := defaultPorts[scheme]; !ok {
		return "", fmt.Errorf("%w: %q", errUnsupportedScheme, u.Scheme)
	}

	u.Scheme = scheme
	u.Host = normalizeHost(u, scheme)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = normalizePath(u.Path)
	u.RawPath = ""

	return u.String(), nil
}

// normalizeHost lowercases the hostname and removes the scheme's default port.
func normalizeHost(u *url.URL, scheme string) string {
	hostname := strings.ToLower(u.Hostname())
	port := u.Port()

	if port == "" || port == defaultPorts[scheme] {
		if strings.Contains(hostname, ":") {
			return "[" + hostname + "]"
		}
		return hostname
	}

	if strings.Contains(hostname, ":") {
		return "[" + hostname + "]:" + port
	}
	return hostname + ":" + port
}

// normalizePath resolves dot-segments (/../, /./) and removes trailing slashes
// while preserving the root "/".
func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}

	cleaned := path.Clean("/" + p)
	if cleaned == "/" {
		return cleaned
	}

	return strings.TrimRight(cleaned, "/")
}

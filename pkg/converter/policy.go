package converter

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Policy is the boilerplate denylist. An element is dropped when its tag,
// its ARIA role, or one of its class/id tokens is listed.
type Policy struct {
	// Tags are removed wherever they appear. "header" is kept when nested
	// inside <article> or <main>, where it usually carries the page heading.
	Tags []string
	// Roles match the role attribute exactly.
	Roles []string
	// Tokens match class names and ids, either exactly or as a
	// hyphen/underscore-delimited prefix or suffix ("site-nav", "nav_main").
	Tokens []string
}

// DefaultPolicy returns the denylist used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		Tags: []string{
			"script", "style", "noscript", "template", "nav", "footer", "header",
			"aside", "iframe", "form", "button", "svg", "canvas", "object", "embed",
		},
		Roles: []string{"navigation", "banner", "contentinfo", "complementary", "search"},
		Tokens: []string{
			"nav", "navbar", "navigation", "sidebar", "menu", "footer",
			"breadcrumb", "breadcrumbs", "advert", "advertisement", "ad", "ads",
			"cookie", "cookies", "social", "share", "skip-link",
		},
	}
}

// strip removes denylisted descendants of root. root itself is never removed.
func (p Policy) strip(root *goquery.Selection) {
	for _, tag := range p.Tags {
		sel := root.Find(tag)
		if tag == "header" {
			sel = sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
				return s.ParentsFiltered("article, main").Length() == 0
			})
		}
		sel.Remove()
	}

	for _, role := range p.Roles {
		root.Find(`[role="` + role + `"]`).Remove()
	}

	if len(p.Tokens) == 0 {
		return
	}
	tokens := make(map[string]struct{}, len(p.Tokens))
	for _, t := range p.Tokens {
		tokens[strings.ToLower(t)] = struct{}{}
	}

	root.Find("[class], [id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		switch goquery.NodeName(s) {
		case "pre", "code", "main", "article", "body":
			return false
		}
		// Layout wrappers such as "page has-sidebar" may hold the article.
		if s.Find("article, main, [role=main], h1").Length() > 0 {
			return false
		}
		return matchesTokens(s, tokens)
	}).Remove()
}

func matchesTokens(s *goquery.Selection, tokens map[string]struct{}) bool {
	var names []string
	if class, ok := s.Attr("class"); ok {
		names = append(names, strings.Fields(strings.ToLower(class))...)
	}
	if id, ok := s.Attr("id"); ok && id != "" {
		names = append(names, strings.ToLower(id))
	}

	for _, name := range names {
		if _, ok := tokens[name]; ok {
			return true
		}
		for t := range tokens {
			if edgeMatch(name, t) {
				return true
			}
		}
	}
	return false
}

// edgeMatch reports whether token is the first or last delimited part of name.
func edgeMatch(name, token string) bool {
	for _, sep := range []string{"-", "_"} {
		if strings.HasPrefix(name, token+sep) || strings.HasSuffix(name, sep+token) {
			return true
		}
	}
	return false
}

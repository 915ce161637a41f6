package converter

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// documentBase returns the URL relative references resolve against, honouring
// a <base href> when present.
func documentBase(doc *goquery.Document, pageURL *url.URL) *url.URL {
	href, ok := doc.Find("base[href]").First().Attr("href")
	if !ok {
		return pageURL
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return pageURL
	}
	return pageURL.ResolveReference(ref)
}

// absolutizeLinks rewrites link and image targets under root to absolute URLs.
// Links to bundled pages are not rewritten to reference files.
func absolutizeLinks(root *goquery.Selection, base *url.URL) {
	root.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if strings.HasPrefix(strings.ToLower(href), "javascript:") || href == "" {
			s.ReplaceWithSelection(s.Contents())
			return
		}
		if abs, ok := resolve(base, href); ok {
			s.SetAttr("href", abs)
		}
	})

	root.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		s.RemoveAttr("srcset")
		if abs, ok := resolve(base, strings.TrimSpace(s.AttrOr("src", ""))); ok {
			s.SetAttr("src", abs)
		}
	})
}

func resolve(base *url.URL, ref string) (string, bool) {
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(u).String(), true
}

package sitemap

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

var (
	errEmptyDocument    = errors.New("sitemap contains no entries")
	errUnexpectedRoot   = errors.New("unexpected root element")
	errNoRootElement    = errors.New("no root element")
	errNoTextSitemapURL = errors.New("text sitemap contains no URLs")
)

// lastModLayouts are the W3C datetime variants seen in the wild, tried in order.
var lastModLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// xmlURLSet is the root element of a standard sitemap XML file.
type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []xmlURL `xml:"url"`
}

// xmlURL is a single <url> entry inside a <urlset>.
type xmlURL struct {
	Loc      string `xml:"loc"`
	LastMod  string `xml:"lastmod"`
	Priority string `xml:"priority"`
}

// xmlSitemapIndex is the root element of a sitemap index XML file.
type xmlSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []xmlSitemap `xml:"sitemap"`
}

// xmlSitemap is a single <sitemap> entry inside a <sitemapindex>.
type xmlSitemap struct {
	Loc string `xml:"loc"`
}

// document is a parsed sitemap: either page URLs or child sitemap locations.
type document struct {
	isIndex  bool
	urls     []xmlURL
	children []string
}

func (d *document) empty() bool {
	return len(d.urls) == 0 && len(d.children) == 0
}

// parseDocument decides between <urlset>, <sitemapindex> and a plain-text
// sitemap (one URL per line) and decodes accordingly.
func parseDocument(body []byte) (*document, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 {
		return nil, errEmptyDocument
	}

	if trimmed[0] != '<' {
		return parseTextSitemap(trimmed)
	}

	decoder := xml.NewDecoder(bytes.NewReader(trimmed))
	decoder.CharsetReader = charset.NewReaderLabel

	start, err := rootElement(decoder)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(start.Name.Local) {
	case "urlset":
		var urlset xmlURLSet
		if err := decoder.DecodeElement(&urlset, &start); err != nil {
			return nil, fmt.Errorf("parse sitemap: %w", err)
		}
		return &document{urls: urlset.URLs}, nil
	case "sitemapindex":
		var index xmlSitemapIndex
		if err := decoder.DecodeElement(&index, &start); err != nil {
			return nil, fmt.Errorf("parse sitemap index: %w", err)
		}
		children := make([]string, 0, len(index.Sitemaps))
		for _, s := range index.Sitemaps {
			if loc := strings.TrimSpace(s.Loc); loc != "" {
				children = append(children, loc)
			}
		}
		return &document{isIndex: true, children: children}, nil
	default:
		return nil, fmt.Errorf("%w <%s>", errUnexpectedRoot, start.Name.Local)
	}
}

// rootElement advances the decoder to the first start element.
func rootElement(decoder *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			return xml.StartElement{}, errNoRootElement
		}
		if err != nil {
			return xml.StartElement{}, fmt.Errorf("parse sitemap: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

func parseTextSitemap(body []byte) (*document, error) {
	var urls []xmlURL
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			urls = append(urls, xmlURL{Loc: line})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse text sitemap: %w", err)
	}
	if len(urls) == 0 {
		return nil, errNoTextSitemapURL
	}
	return &document{urls: urls}, nil
}

// parseLastMod accepts the W3C datetime profiles used by sitemaps.
func parseLastMod(raw string) (*time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, false
	}
	for _, layout := range lastModLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return &t, true
		}
	}
	return nil, false
}

func parsePriority(raw string) (*float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, false
	}
	p, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || p < 0 || p > 1 {
		return nil, false
	}
	return &p, true
}

package manifest

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdownParser = goldmark.New().Parser()

// Sections returns the text of the first limit level-two headings in markdown.
func Sections(markdown string, limit int) []string {
	src := []byte(markdown)
	doc := markdownParser.Parse(text.NewReader(src))

	var sections []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if h.Level == 2 {
			if t := strings.TrimSpace(nodeText(h, src)); t != "" {
				sections = append(sections, t)
			}
			if limit > 0 && len(sections) >= limit {
				return ast.WalkStop, nil
			}
		}
		return ast.WalkSkipChildren, nil
	})
	return sections
}

// nodeText concatenates the literal text under n, dropping markup.
func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(nodeText(c, src))
		}
	}
	return b.String()
}

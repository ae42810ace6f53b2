package render

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Heading is one markdown heading in a rendered document.
type Heading struct {
	Level int
	Text  string
}

// ExtractOutline parses rendered markdown and returns its headings in
// document order.
func ExtractOutline(markdown []byte) []Heading {
	md := goldmark.New()
	reader := text.NewReader(markdown)
	root := md.Parser().Parse(reader)

	var out []Heading
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			out = append(out, Heading{Level: h.Level, Text: headingText(h, markdown)})
		}
		return ast.WalkContinue, nil
	})
	return out
}

// DocumentTitle returns the text of the first level-1 heading, or "" when
// the document has none.
func DocumentTitle(markdown []byte) string {
	for _, h := range ExtractOutline(markdown) {
		if h.Level == 1 {
			return h.Text
		}
	}
	return ""
}

func headingText(h *ast.Heading, source []byte) string {
	var b strings.Builder
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		} else {
			b.Write(c.Text(source))
		}
	}
	return strings.TrimSpace(b.String())
}

package pipeline

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Heading is one ATX or setext heading of a Markdown document.
type Heading struct {
	Level int
	Title string
}

// Headings returns the headings of a Markdown document in order. Headings
// inside code blocks, block quotes and HTML are not reported.
func Headings(src []byte) []Heading {
	return headings(goldmark.DefaultParser().Parse(text.NewReader(src)), src)
}

func headings(doc ast.Node, src []byte) []Heading {
	var out []Heading
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok {
			continue
		}
		var b strings.Builder
		inlineText(&b, h, src)
		if title := strings.Join(strings.Fields(b.String()), " "); title != "" {
			out = append(out, Heading{Level: h.Level, Title: title})
		}
	}
	return out
}

// inlineText writes the plain text of n's inline children, dropping
// emphasis and link markup.
func inlineText(b *strings.Builder, n ast.Node, src []byte) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		case *ast.AutoLink:
			b.Write(v.Label(src))
		case *ast.RawHTML:
		default:
			inlineText(b, c, src)
		}
	}
}

// title picks the first level-one heading, falling back to the first
// heading of any level.
func title(hs []Heading) string {
	for _, h := range hs {
		if h.Level == 1 {
			return h.Title
		}
	}
	if len(hs) > 0 {
		return hs[0].Title
	}
	return ""
}

func firstHeading(md string) string {
	return title(Headings([]byte(md)))
}

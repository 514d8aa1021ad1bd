package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/docindex"
)

// Sanitizer strips navigation chrome from documentation pages and narrows
// them to their content root when the generating framework is known.
type Sanitizer struct {
	detector *Detector
}

// NewSanitizer creates a new Sanitizer.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{detector: NewDetector()}
}

// Sanitize returns cleaned HTML and the detected framework. The title
// element is preserved so later stages can still read it.
func (s *Sanitizer) Sanitize(html string) (string, Framework, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", FrameworkUnknown, docindex.Errorf(docindex.EINVALID, "failed to parse HTML: %v", err)
	}

	framework := s.detector.DetectDocument(doc)
	title := strings.TrimSpace(doc.Find("title").First().Text())

	p, _ := profileFor(framework)
	doc.Find(strings.Join(genericChrome, ", ")).Remove()
	if len(p.chrome) > 0 {
		doc.Find(strings.Join(p.chrome, ", ")).Remove()
	}

	root := doc.Find("body")
	for _, sel := range p.content {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			root = found
			break
		}
	}

	var inner string
	if root.Is("body") {
		inner, err = root.Html()
	} else {
		inner, err = goquery.OuterHtml(root)
	}
	if err != nil {
		return "", framework, err
	}

	var b strings.Builder
	b.WriteString("<html><head>")
	if title != "" {
		b.WriteString("<title>")
		b.WriteString(htmlEscape(title))
		b.WriteString("</title>")
	}
	b.WriteString("</head><body>")
	b.WriteString(inner)
	b.WriteString("</body></html>")
	return b.String(), framework, nil
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func htmlEscape(s string) string {
	return htmlEscaper.Replace(s)
}

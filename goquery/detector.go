package goquery

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Detector names the documentation generator that produced a page, first
// from its generator meta tag, then from markup only that generator emits.
type Detector struct{}

// NewDetector creates a new Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect parses html and identifies its framework. Unparseable or
// unrecognized pages are FrameworkUnknown.
func (d *Detector) Detect(html string) Framework {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return FrameworkUnknown
	}
	return d.DetectDocument(doc)
}

// DetectDocument is Detect for an already parsed document.
func (d *Detector) DetectDocument(doc *goquery.Document) Framework {
	if f := fromGenerator(doc); f != FrameworkUnknown {
		return f
	}
	for _, p := range profiles {
		if doc.Find(strings.Join(p.markers, ", ")).Length() > 0 {
			return p.framework
		}
	}
	return FrameworkUnknown
}

// fromGenerator matches the last generator meta tag against known
// generators.
func fromGenerator(doc *goquery.Document) Framework {
	generator := strings.ToLower(doc.Find("meta[name='generator']").Last().AttrOr("content", ""))
	if generator == "" {
		return FrameworkUnknown
	}
	for _, p := range profiles {
		if strings.Contains(generator, p.generator) {
			return p.framework
		}
	}
	return FrameworkUnknown
}

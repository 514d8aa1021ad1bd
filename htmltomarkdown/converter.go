// Package htmltomarkdown implements docindex.Converter with html-to-markdown.
package htmltomarkdown

import (
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/strikethrough"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/fwojciec/docindex"
)

var _ docindex.Converter = (*Converter)(nil)

var (
	// inlineImage matches images embedded as data URIs.
	inlineImage = regexp.MustCompile(`!\[[^\]]*\]\(data:[^)]*\)`)
	anyImage    = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	blankRun    = regexp.MustCompile(`\n{3,}`)
)

// Converter turns extracted HTML into Markdown ready for chunking.
// Relative links and images are made absolute against the page URL.
// Images embedded as data URIs are always dropped.
type Converter struct {
	conv       *converter.Converter
	keepImages bool
}

// ConverterOption configures a Converter.
type ConverterOption func(*Converter)

// WithImages keeps image references in the output. They are dropped by
// default since they carry no searchable text beyond their alt text.
func WithImages(keep bool) ConverterOption {
	return func(c *Converter) {
		c.keepImages = keep
	}
}

// NewConverter creates a Converter with CommonMark, GFM table and
// strikethrough support.
func NewConverter(opts ...ConverterOption) *Converter {
	c := &Converter{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
				strikethrough.NewStrikethroughPlugin(),
			),
		),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert converts html. baseURL may be empty.
func (c *Converter) Convert(html string, baseURL string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", docindex.Errorf(docindex.EINVALID, "empty HTML input")
	}

	var md string
	var err error
	if baseURL != "" {
		md, err = c.conv.ConvertString(html, converter.WithDomain(baseURL))
	} else {
		md, err = c.conv.ConvertString(html)
	}
	if err != nil {
		return "", docindex.Errorf(docindex.EINVALID, "converting HTML: %v", err)
	}

	if c.keepImages {
		md = inlineImage.ReplaceAllString(md, "")
	} else {
		md = anyImage.ReplaceAllStringFunc(md, altText)
	}
	md = blankRun.ReplaceAllString(md, "\n\n")
	return strings.TrimSpace(md), nil
}

// altText reduces an image to its alt text.
func altText(image string) string {
	end := strings.Index(image, "](")
	return strings.TrimSpace(image[2:end])
}

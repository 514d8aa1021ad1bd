package goquery

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/docindex"
)

// Ensure LinkExtractor implements docindex.LinkExtractor at compile time.
var _ docindex.LinkExtractor = (*LinkExtractor)(nil)

// LinkExtractor returns every navigational link of a page, resolved to an
// absolute URL. Scope and pattern filtering are left to the crawler.
type LinkExtractor struct{}

// NewLinkExtractor creates a new LinkExtractor.
func NewLinkExtractor() *LinkExtractor {
	return &LinkExtractor{}
}

// ExtractLinks returns links in document order without duplicates.
// Fragments are stripped and links back to the page itself are dropped.
// A <base href> element overrides baseURL for resolution.
func (e *LinkExtractor) ExtractLinks(html string, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, docindex.Errorf(docindex.EINVALID, "invalid base URL: %v", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, docindex.Errorf(docindex.EINVALID, "failed to parse HTML: %v", err)
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := url.Parse(strings.TrimSpace(href)); err == nil {
			base = base.ResolveReference(b)
		}
	}

	self := *base
	self.Fragment = ""
	selfURL := self.String()

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href], area[href]").Each(func(_ int, sel *goquery.Selection) {
		link, ok := docindex.ResolveLink(base, sel.AttrOr("href", ""))
		if !ok || link == selfURL || seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})

	return links, nil
}

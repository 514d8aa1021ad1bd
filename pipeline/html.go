package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/fwojciec/docindex"
	"github.com/fwojciec/docindex/goquery"
)

// Ensure HTMLPipeline implements docindex.ContentPipeline at compile time.
var _ docindex.ContentPipeline = (*HTMLPipeline)(nil)

// HTMLPipeline extracts the main content of a page, converts it to
// Markdown and splits it. Links are taken from the whole page, before any
// chrome is removed, so navigation still drives the crawl.
type HTMLPipeline struct {
	Sanitizer *goquery.Sanitizer
	Extractor docindex.Extractor
	// Fallback is used when Extractor fails or finds nothing.
	Fallback  docindex.Extractor
	Converter docindex.Converter
	Links     docindex.LinkExtractor
	Splitter  docindex.Splitter
}

// CanProcess accepts HTML and XHTML.
func (p *HTMLPipeline) CanProcess(mimeType string) bool {
	return mimeType == "text/html" || mimeType == "application/xhtml+xml"
}

// Process converts an HTML page.
func (p *HTMLPipeline) Process(ctx context.Context, raw *docindex.RawContent, opts docindex.ScraperOptions) (*docindex.PipelineResult, error) {
	if err := canceled(ctx); err != nil {
		return nil, err
	}

	page := decode(raw.Content, raw.MimeType, raw.Charset)
	result := &docindex.PipelineResult{}

	if p.Links != nil {
		links, err := p.Links.ExtractLinks(page, raw.SourceURL)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("extracting links: %w", err))
		}
		result.Links = links
	}

	cleaned := page
	if p.Sanitizer != nil {
		s, _, err := p.Sanitizer.Sanitize(page)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("sanitizing: %w", err))
		} else {
			cleaned = s
		}
	}

	extracted, err := p.extract(cleaned, raw.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("extracting content: %w", err)
	}
	result.Title = extracted.Title
	if strings.TrimSpace(extracted.ContentHTML) == "" {
		return result, nil
	}

	md, err := p.Converter.Convert(extracted.ContentHTML, raw.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("converting to markdown: %w", err)
	}
	result.Content = md
	if result.Title == "" {
		result.Title = firstHeading(md)
	}

	if err := canceled(ctx); err != nil {
		return nil, err
	}
	result.Chunks, err = p.Splitter.Split(ctx, md)
	if err != nil {
		return nil, fmt.Errorf("splitting: %w", err)
	}
	return result, nil
}

func (p *HTMLPipeline) extract(html, pageURL string) (*docindex.ExtractResult, error) {
	res, err := p.Extractor.Extract(html, pageURL)
	if err == nil && strings.TrimSpace(res.ContentHTML) != "" {
		return res, nil
	}
	if p.Fallback == nil {
		if err != nil {
			return nil, err
		}
		return res, nil
	}

	fallback, ferr := p.Fallback.Extract(html, pageURL)
	if ferr != nil {
		if err != nil {
			return nil, err
		}
		return res, nil
	}
	if fallback.Title == "" && res != nil {
		fallback.Title = res.Title
	}
	return fallback, nil
}

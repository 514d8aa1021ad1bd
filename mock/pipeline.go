package mock

import (
	"context"

	"github.com/fwojciec/docindex"
)

var (
	_ docindex.ContentPipeline = (*ContentPipeline)(nil)
	_ docindex.LinkExtractor   = (*LinkExtractor)(nil)
	_ docindex.Splitter        = (*Splitter)(nil)
)

// ContentPipeline is a mock implementation of docindex.ContentPipeline.
type ContentPipeline struct {
	CanProcessFn func(mimeType string) bool
	ProcessFn    func(ctx context.Context, raw *docindex.RawContent, opts docindex.ScraperOptions) (*docindex.PipelineResult, error)
}

func (p *ContentPipeline) CanProcess(mimeType string) bool {
	return p.CanProcessFn(mimeType)
}

func (p *ContentPipeline) Process(ctx context.Context, raw *docindex.RawContent, opts docindex.ScraperOptions) (*docindex.PipelineResult, error) {
	return p.ProcessFn(ctx, raw, opts)
}

// LinkExtractor is a mock implementation of docindex.LinkExtractor.
type LinkExtractor struct {
	ExtractLinksFn func(html string, baseURL string) ([]string, error)
}

func (e *LinkExtractor) ExtractLinks(html string, baseURL string) ([]string, error) {
	return e.ExtractLinksFn(html, baseURL)
}

// Splitter is a mock implementation of docindex.Splitter.
type Splitter struct {
	SplitFn func(ctx context.Context, content string) ([]docindex.Chunk, error)
}

func (s *Splitter) Split(ctx context.Context, content string) ([]docindex.Chunk, error) {
	return s.SplitFn(ctx, content)
}

// Package pipeline turns fetched content into titled, chunked pages and
// the links to crawl next. HTML, Markdown and plain text each have their
// own pipeline; Registry picks one by MIME type.
package pipeline

import (
	"bytes"
	"context"
	"io"

	"github.com/fwojciec/docindex"
	"github.com/fwojciec/docindex/goquery"
	"github.com/fwojciec/docindex/htmltomarkdown"
	"github.com/fwojciec/docindex/readability"
	"github.com/fwojciec/docindex/trafilatura"
	"golang.org/x/net/html/charset"
)

// Ensure Registry implements docindex.ContentPipeline at compile time.
var _ docindex.ContentPipeline = (*Registry)(nil)

// Registry dispatches to the first pipeline that accepts a MIME type.
type Registry struct {
	pipelines []docindex.ContentPipeline
}

// NewRegistry creates a Registry trying pipelines in order.
func NewRegistry(pipelines ...docindex.ContentPipeline) *Registry {
	return &Registry{pipelines: pipelines}
}

// Config holds the tunables of NewDefault.
type Config struct {
	// MaxChunkSize bounds chunk size in bytes.
	MaxChunkSize int
	// Counter and MaxTokens bound chunk size in tokens when both are set.
	Counter   docindex.TokenCounter
	MaxTokens int
}

// NewDefault wires the HTML, Markdown and text pipelines.
func NewDefault(cfg Config) *Registry {
	md := &MarkdownSplitter{MaxSize: cfg.MaxChunkSize, Counter: cfg.Counter, MaxTokens: cfg.MaxTokens}
	return NewRegistry(
		&HTMLPipeline{
			Sanitizer: goquery.NewSanitizer(),
			Extractor: trafilatura.NewExtractor(),
			Fallback:  readability.NewExtractor(),
			Converter: htmltomarkdown.NewConverter(),
			Links:     goquery.NewLinkExtractor(),
			Splitter:  md,
		},
		&MarkdownPipeline{Splitter: md},
		&TextPipeline{MaxChunkSize: cfg.MaxChunkSize},
	)
}

// CanProcess reports whether any pipeline accepts mimeType.
func (r *Registry) CanProcess(mimeType string) bool {
	return r.find(mimeType) != nil
}

// Process runs the matching pipeline.
func (r *Registry) Process(ctx context.Context, raw *docindex.RawContent, opts docindex.ScraperOptions) (*docindex.PipelineResult, error) {
	p := r.find(raw.MimeType)
	if p == nil {
		return nil, docindex.Errorf(docindex.EINVALID, "unsupported content type %q", raw.MimeType)
	}
	return p.Process(ctx, raw, opts)
}

func (r *Registry) find(mimeType string) docindex.ContentPipeline {
	for _, p := range r.pipelines {
		if p.CanProcess(mimeType) {
			return p
		}
	}
	return nil
}

// decode returns content as UTF-8, honoring the declared charset and, for
// HTML, meta charset declarations.
func decode(content []byte, mimeType, cs string) string {
	contentType := mimeType
	if cs != "" {
		contentType += "; charset=" + cs
	}
	r, err := charset.NewReader(bytes.NewReader(content), contentType)
	if err != nil {
		return string(content)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return string(content)
	}
	return string(decoded)
}

func canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return docindex.ErrCanceled(err)
	}
	return nil
}

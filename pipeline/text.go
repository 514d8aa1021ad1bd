package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/fwojciec/docindex"
)

// Ensure TextPipeline implements docindex.ContentPipeline at compile time.
var _ docindex.ContentPipeline = (*TextPipeline)(nil)

// sourceTypes are MIME types whose chunks are marked as code.
var sourceTypes = map[string]bool{
	"text/x-go":              true,
	"text/x-python":          true,
	"text/javascript":        true,
	"application/javascript": true,
	"text/x-typescript":      true,
	"text/x-rust":            true,
	"application/json":       true,
	"text/yaml":              true,
}

// TextPipeline chunks plain text and source files by lines. It never
// produces links.
type TextPipeline struct {
	MaxChunkSize int
}

// CanProcess accepts any text type plus common structured text formats.
func (p *TextPipeline) CanProcess(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") || sourceTypes[mimeType]
}

// Process chunks a text document. The title is the file name.
func (p *TextPipeline) Process(ctx context.Context, raw *docindex.RawContent, opts docindex.ScraperOptions) (*docindex.PipelineResult, error) {
	if err := canceled(ctx); err != nil {
		return nil, err
	}

	content := decode(raw.Content, "text/plain", raw.Charset)

	kind := docindex.ChunkText
	if sourceTypes[raw.MimeType] {
		kind = docindex.ChunkCode
	}
	splitter := &TextSplitter{MaxSize: p.MaxChunkSize, Kind: kind}
	chunks, err := splitter.Split(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("splitting: %w", err)
	}

	return &docindex.PipelineResult{
		Title:   titleFromURL(raw.SourceURL),
		Content: content,
		Chunks:  chunks,
	}, nil
}

func titleFromURL(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	base := path.Base(strings.TrimRight(rawURL, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return base
}

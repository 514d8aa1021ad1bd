package docindex

import (
	"context"
	"net/url"
	"strings"
)

// PipelineResult is the processed form of a fetched resource.
type PipelineResult struct {
	Title   string
	Content string
	Chunks  []Chunk
	Links   []string
	// Errors are non-fatal problems hit while processing.
	Errors []error
}

// ContentPipeline turns raw content into title, chunks and links.
type ContentPipeline interface {
	// CanProcess reports whether the pipeline handles the MIME type.
	CanProcess(mimeType string) bool

	// Process converts raw content. Links are absolute URLs.
	Process(ctx context.Context, raw *RawContent, opts ScraperOptions) (*PipelineResult, error)
}

// LinkExtractor finds the links of an HTML page.
type LinkExtractor interface {
	// ExtractLinks returns absolute, fragment-free URLs in document order.
	ExtractLinks(html string, baseURL string) ([]string, error)
}

// nonNavigational are href prefixes that never lead to a page.
var nonNavigational = []string{"#", "javascript:", "mailto:", "tel:", "data:"}

// ResolveLink resolves href against base and strips the fragment. It
// reports false for empty, unparseable and non-navigational links, and for
// links that stay relative because base is nil.
func ResolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	lower := strings.ToLower(href)
	for _, prefix := range nonNavigational {
		if strings.HasPrefix(lower, prefix) {
			return "", false
		}
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if !ref.IsAbs() {
		return "", false
	}
	ref.Fragment = ""
	ref.RawFragment = ""
	return ref.String(), true
}

// Splitter splits markdown or text content into chunks.
type Splitter interface {
	Split(ctx context.Context, content string) ([]Chunk, error)
}

// TokenCounter measures text in model tokens. Splitters use it to keep
// chunks inside an embedding model's input limit.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

package crawl

import (
	"context"
	"fmt"

	"github.com/fwojciec/docindex"
)

// processContent runs raw content through the pipeline. Not-modified and
// not-found results pass through unprocessed.
func processContent(ctx context.Context, pipeline docindex.ContentPipeline, item docindex.QueueItem, raw *docindex.RawContent, opts docindex.ScraperOptions) (*ItemResult, error) {
	if raw.Status != docindex.FetchSuccess {
		return &ItemResult{Status: raw.Status}, nil
	}
	if !pipeline.CanProcess(raw.MimeType) {
		return nil, &docindex.ScraperError{
			Kind: docindex.ErrKindUnsupportedMime,
			URL:  item.URL,
			Err:  fmt.Errorf("unsupported content type %q", raw.MimeType),
		}
	}

	res, err := pipeline.Process(ctx, raw, opts)
	if err != nil {
		return nil, fmt.Errorf("processing %s: %w", item.URL, err)
	}

	out := &ItemResult{Status: docindex.FetchSuccess, Links: res.Links}
	if len(res.Chunks) > 0 {
		out.Page = &docindex.ProcessedPage{
			URL:          item.URL,
			Title:        res.Title,
			ContentType:  raw.MimeType,
			ETag:         raw.ETag,
			LastModified: raw.LastModified,
			Chunks:       res.Chunks,
			Links:        res.Links,
		}
	}
	return out, nil
}

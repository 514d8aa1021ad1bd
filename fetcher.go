package docindex

import (
	"context"
	"time"
)

// FetchStatus is the outcome of a successful fetch call.
type FetchStatus int

const (
	// FetchSuccess means Content holds the resource.
	FetchSuccess FetchStatus = iota
	// FetchNotModified means the resource still matches the given ETag.
	FetchNotModified
	// FetchNotFound means the resource no longer exists.
	FetchNotFound
)

func (s FetchStatus) String() string {
	switch s {
	case FetchSuccess:
		return "success"
	case FetchNotModified:
		return "not-modified"
	case FetchNotFound:
		return "not-found"
	}
	return "unknown"
}

// FetchOptions configures a single fetch.
type FetchOptions struct {
	// Headers are sent with the request and override generated ones.
	Headers map[string]string

	// ETag makes the fetch conditional.
	ETag string

	// DisableRedirects turns redirects into errors.
	DisableRedirects bool

	// Timeout bounds this fetch only. Zero uses the fetcher default.
	Timeout time.Duration
}

// RawContent is a fetched resource before any processing.
type RawContent struct {
	Content      []byte
	MimeType     string
	Charset      string
	ETag         string
	LastModified string
	// SourceURL is the final URL after redirects.
	SourceURL string
	Status    FetchStatus
}

// Fetcher retrieves raw content for a source URL.
type Fetcher interface {
	// CanFetch reports whether the fetcher handles the source.
	CanFetch(source string) bool

	// Fetch retrieves the source. A missing or unchanged resource is
	// reported through RawContent.Status, not as an error.
	Fetch(ctx context.Context, source string, opts FetchOptions) (*RawContent, error)

	// Close releases resources held by the fetcher.
	Close() error
}

// SitemapService lists the pages a site advertises in its sitemaps.
type SitemapService interface {
	// DiscoverURLs returns sitemap URLs on baseURL's host under its
	// directory. A site without sitemaps yields an empty list.
	DiscoverURLs(ctx context.Context, baseURL string) ([]string, error)
}

package docindex

import (
	"context"
	"net/url"
)

// Crawl defaults.
const (
	DefaultMaxPages       = 1000
	DefaultMaxDepth       = 3
	DefaultMaxConcurrency = 3
)

// Scope limits which discovered links a crawl follows.
type Scope string

const (
	// ScopeSubpages follows links on the same host under the root URL's directory.
	ScopeSubpages Scope = "subpages"
	// ScopeHostname follows links on the exact same host.
	ScopeHostname Scope = "hostname"
	// ScopeDomain follows links on the same registrable domain.
	ScopeDomain Scope = "domain"
)

// FetchMode selects how web pages are fetched.
type FetchMode string

const (
	// FetchAuto uses plain HTTP and escalates to the browser on bot challenges.
	FetchAuto FetchMode = "auto"
	// FetchHTTP never uses the browser.
	FetchHTTP FetchMode = "http"
	// FetchBrowser renders every page in the headless browser.
	FetchBrowser FetchMode = "browser"
)

// ScraperOptions is the source configuration of a crawl. It is stored with
// the version so a crawl can be reproduced.
type ScraperOptions struct {
	URL     string `json:"url"`
	Library string `json:"library"`
	Version string `json:"version"`

	MaxPages       int   `json:"maxPages"`
	// MaxDepth is the deepest link level followed; 0 crawls the root only.
	// Nil means DefaultMaxDepth.
	MaxDepth       *int  `json:"maxDepth,omitempty"`
	MaxConcurrency int   `json:"maxConcurrency"`
	Scope          Scope `json:"scope"`

	// DisableRedirects turns redirects into errors instead of following them.
	DisableRedirects bool `json:"disableRedirects,omitempty"`

	IncludePatterns []string `json:"includePatterns,omitempty"`
	ExcludePatterns []string `json:"excludePatterns,omitempty"`

	// AbortOnError makes the first per-page error abort the job. By default
	// such errors are logged and the page is skipped.
	AbortOnError bool `json:"abortOnError,omitempty"`

	FetchMode  FetchMode         `json:"fetchMode,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	UseSitemap bool              `json:"useSitemap,omitempty"`

	// Refresh runs only. Not persisted.
	IsRefresh    bool        `json:"-"`
	InitialQueue []QueueItem `json:"-"`
}

// WithDefaults returns a copy with zero-valued limits replaced by defaults.
// A crawl of only the root page is expressed with MaxPages 1.
func (o ScraperOptions) WithDefaults() ScraperOptions {
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	if o.MaxDepth == nil {
		o.MaxDepth = DepthLimit(DefaultMaxDepth)
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	if o.Scope == "" {
		o.Scope = ScopeSubpages
	}
	if o.FetchMode == "" {
		o.FetchMode = FetchAuto
	}
	return o
}

// Validate returns an error if the options cannot start a crawl.
func (o ScraperOptions) Validate() error {
	if o.URL == "" {
		return Errorf(EINVALID, "source URL required")
	}
	u, err := url.Parse(o.URL)
	if err != nil || u.Scheme == "" {
		return Errorf(EINVALID, "invalid source URL %q", o.URL)
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return Errorf(EINVALID, "invalid source URL %q", o.URL)
		}
	case "file":
	default:
		return Errorf(EINVALID, "unsupported URL scheme %q", u.Scheme)
	}
	if o.MaxDepth != nil && *o.MaxDepth < 0 {
		return Errorf(EINVALID, "max depth must not be negative")
	}
	switch o.Scope {
	case "", ScopeSubpages, ScopeHostname, ScopeDomain:
	default:
		return Errorf(EINVALID, "unknown scope %q", o.Scope)
	}
	switch o.FetchMode {
	case "", FetchAuto, FetchHTTP, FetchBrowser:
	default:
		return Errorf(EINVALID, "unknown fetch mode %q", o.FetchMode)
	}
	return nil
}

// MaxLinkDepth returns MaxDepth, or DefaultMaxDepth when unset.
func (o ScraperOptions) MaxLinkDepth() int {
	if o.MaxDepth == nil {
		return DefaultMaxDepth
	}
	return *o.MaxDepth
}

// DepthLimit returns a pointer to n for ScraperOptions.MaxDepth.
func DepthLimit(n int) *int {
	return &n
}

// QueueItem is a URL waiting in a crawl frontier. PageID and ETag are set
// for pages seeded from a previous run.
type QueueItem struct {
	URL    string `json:"url"`
	Depth  int    `json:"depth"`
	PageID int64  `json:"pageId,omitempty"`
	ETag   string `json:"etag,omitempty"`
}

// Chunk kinds.
const (
	ChunkText = "text"
	ChunkCode = "code"
)

// Chunk is a piece of page content ready for indexing. Path is the
// heading hierarchy the chunk sits under.
type Chunk struct {
	Content string   `json:"content"`
	Path    []string `json:"path,omitempty"`
	Kind    string   `json:"kind,omitempty"`
}

// ProcessedPage is the content produced for one crawled page.
type ProcessedPage struct {
	URL          string   `json:"url"`
	Title        string   `json:"title"`
	ContentType  string   `json:"contentType"`
	ETag         string   `json:"etag,omitempty"`
	LastModified string   `json:"lastModified,omitempty"`
	Chunks       []Chunk  `json:"chunks"`
	Links        []string `json:"links,omitempty"`
}

// ProgressEvent is emitted for every processed page. Result is set for new
// or changed content. Deleted with PageID marks a stored page that is gone.
// Neither set means the page was unchanged.
type ProgressEvent struct {
	PagesScraped    int            `json:"pagesScraped"`
	TotalPages      int            `json:"totalPages"`
	TotalDiscovered int            `json:"totalDiscovered"`
	CurrentURL      string         `json:"currentUrl"`
	Depth           int            `json:"depth"`
	MaxDepth        int            `json:"maxDepth"`
	Result          *ProcessedPage `json:"result,omitempty"`
	PageID          int64          `json:"pageId,omitempty"`
	Deleted         bool           `json:"deleted,omitempty"`
}

// ProgressFunc receives progress events. Returning an error aborts the crawl.
type ProgressFunc func(ctx context.Context, event ProgressEvent) error

// Scraper crawls a source and reports each processed page.
type Scraper interface {
	Scrape(ctx context.Context, opts ScraperOptions, progress ProgressFunc) error
}

// ScraperStrategy is a Scraper for one kind of source.
type ScraperStrategy interface {
	Scraper

	// Name identifies the strategy in logs.
	Name() string

	// CanHandle reports whether the strategy handles the root URL.
	CanHandle(rawURL string) bool
}

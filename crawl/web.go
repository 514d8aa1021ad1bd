package crawl

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/fwojciec/docindex"
)

var (
	_ docindex.ScraperStrategy = (*WebStrategy)(nil)
	_ ItemProcessor            = (*WebStrategy)(nil)
)

// WebStrategy crawls generic HTTP(S) documentation sites.
type WebStrategy struct {
	// Fetcher is used in auto mode and must be set.
	Fetcher docindex.Fetcher
	// HTTPFetcher and BrowserFetcher serve the forced fetch modes and
	// fall back to Fetcher when nil.
	HTTPFetcher    docindex.Fetcher
	BrowserFetcher docindex.Fetcher

	Pipeline docindex.ContentPipeline
	// Sitemaps, when set, adds sitemap URLs to the root page's links for
	// crawls with UseSitemap.
	Sitemaps docindex.SitemapService
	Walker   *Walker
	Logger   *slog.Logger
}

func (s *WebStrategy) Name() string { return "web" }

// CanHandle accepts any http or https URL.
func (s *WebStrategy) CanHandle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Scrape crawls the site breadth-first.
func (s *WebStrategy) Scrape(ctx context.Context, opts docindex.ScraperOptions, progress docindex.ProgressFunc) error {
	return s.walker().Walk(ctx, opts, s, progress)
}

// ProcessItem fetches one page and runs it through the pipeline.
func (s *WebStrategy) ProcessItem(ctx context.Context, item docindex.QueueItem, opts docindex.ScraperOptions) (*ItemResult, error) {
	raw, err := s.fetcherFor(opts.FetchMode).Fetch(ctx, item.URL, docindex.FetchOptions{
		Headers:          opts.Headers,
		ETag:             item.ETag,
		DisableRedirects: opts.DisableRedirects,
	})
	if err != nil {
		return nil, err
	}

	res, err := processContent(ctx, s.Pipeline, item, raw, opts)
	if err != nil {
		return nil, err
	}

	if item.Depth == 0 && opts.UseSitemap && s.Sitemaps != nil && res.Status == docindex.FetchSuccess {
		urls, err := s.Sitemaps.DiscoverURLs(ctx, opts.URL)
		if err != nil {
			s.logger().Warn("sitemap discovery failed", "url", opts.URL, "err", err)
		}
		res.Links = append(res.Links, urls...)
	}
	return res, nil
}

func (s *WebStrategy) fetcherFor(mode docindex.FetchMode) docindex.Fetcher {
	switch mode {
	case docindex.FetchHTTP:
		if s.HTTPFetcher != nil {
			return s.HTTPFetcher
		}
	case docindex.FetchBrowser:
		if s.BrowserFetcher != nil {
			return s.BrowserFetcher
		}
	}
	return s.Fetcher
}

func (s *WebStrategy) walker() *Walker {
	if s.Walker == nil {
		return &Walker{Logger: s.Logger}
	}
	return s.Walker
}

func (s *WebStrategy) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}

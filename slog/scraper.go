package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/docindex"
)

// Ensure LoggingScraper implements docindex.Scraper.
var _ docindex.Scraper = (*LoggingScraper)(nil)

// LoggingScraper wraps a Scraper with logging of each crawl and its pages.
type LoggingScraper struct {
	next   docindex.Scraper
	logger *slog.Logger
}

// NewLoggingScraper creates a new LoggingScraper.
func NewLoggingScraper(next docindex.Scraper, logger *slog.Logger) *LoggingScraper {
	return &LoggingScraper{next: next, logger: logger}
}

// Scrape delegates to the wrapped scraper, logging every progress event
// at debug level and a summary when the crawl ends.
func (s *LoggingScraper) Scrape(ctx context.Context, opts docindex.ScraperOptions, progress docindex.ProgressFunc) (err error) {
	var pages, deleted, unchanged int
	defer func(begin time.Time) {
		attrs := []any{
			"url", opts.URL,
			"library", opts.Library,
			"version", opts.Version,
			"refresh", opts.IsRefresh,
			"pages", pages,
			"deleted", deleted,
			"unchanged", unchanged,
			"duration", time.Since(begin),
		}
		if err != nil {
			s.logger.Error("crawl", append(attrs, "err", err)...)
			return
		}
		s.logger.Info("crawl", attrs...)
	}(time.Now())

	return s.next.Scrape(ctx, opts, func(ctx context.Context, e docindex.ProgressEvent) error {
		switch {
		case e.Result != nil:
			pages++
			s.logger.Debug("page processed",
				"url", e.CurrentURL,
				"depth", e.Depth,
				"chunks", len(e.Result.Chunks),
				"progress", e.PagesScraped,
				"total", e.TotalPages,
			)
		case e.Deleted:
			deleted++
			s.logger.Debug("page deleted", "url", e.CurrentURL, "page", e.PageID)
		default:
			unchanged++
		}
		return progress(ctx, e)
	})
}

package mock

import (
	"context"

	"github.com/fwojciec/docindex"
)

var (
	_ docindex.Scraper         = (*Scraper)(nil)
	_ docindex.ScraperStrategy = (*ScraperStrategy)(nil)
)

// Scraper is a mock implementation of docindex.Scraper.
type Scraper struct {
	ScrapeFn func(ctx context.Context, opts docindex.ScraperOptions, progress docindex.ProgressFunc) error
}

func (s *Scraper) Scrape(ctx context.Context, opts docindex.ScraperOptions, progress docindex.ProgressFunc) error {
	return s.ScrapeFn(ctx, opts, progress)
}

// ScraperStrategy is a mock implementation of docindex.ScraperStrategy.
type ScraperStrategy struct {
	NameFn      func() string
	CanHandleFn func(rawURL string) bool
	ScrapeFn    func(ctx context.Context, opts docindex.ScraperOptions, progress docindex.ProgressFunc) error
}

func (s *ScraperStrategy) Name() string {
	return s.NameFn()
}

func (s *ScraperStrategy) CanHandle(rawURL string) bool {
	return s.CanHandleFn(rawURL)
}

func (s *ScraperStrategy) Scrape(ctx context.Context, opts docindex.ScraperOptions, progress docindex.ProgressFunc) error {
	return s.ScrapeFn(ctx, opts, progress)
}

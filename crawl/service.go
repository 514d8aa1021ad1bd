// Package crawl implements breadth-first crawling of documentation sources.
// Strategies for web sites, GitHub repositories, package registries and
// local directories share a single Walker and differ only in how a queue
// item is fetched and parsed.
package crawl

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/docindex"
)

var _ docindex.Scraper = (*Service)(nil)

// Service selects the first strategy that can handle a root URL and
// delegates the crawl to it. Strategy order matters.
type Service struct {
	strategies []docindex.ScraperStrategy
	logger     *slog.Logger
}

// NewService creates a Service trying strategies in order.
func NewService(logger *slog.Logger, strategies ...docindex.ScraperStrategy) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{strategies: strategies, logger: logger}
}

// Strategy returns the strategy for the root URL.
// Returns EINVALID if no strategy handles it.
func (s *Service) Strategy(rawURL string) (docindex.ScraperStrategy, error) {
	for _, st := range s.strategies {
		if st.CanHandle(rawURL) {
			return st, nil
		}
	}
	return nil, docindex.Errorf(docindex.EINVALID, "no strategy can handle %q", rawURL)
}

// Scrape validates the options and runs the matching strategy.
func (s *Service) Scrape(ctx context.Context, opts docindex.ScraperOptions, progress docindex.ProgressFunc) (err error) {
	if err := opts.Validate(); err != nil {
		return err
	}
	st, err := s.Strategy(opts.URL)
	if err != nil {
		return err
	}

	defer func(begin time.Time) {
		s.logger.Info("scrape",
			"strategy", st.Name(),
			"url", opts.URL,
			"refresh", opts.IsRefresh,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return st.Scrape(ctx, opts, progress)
}

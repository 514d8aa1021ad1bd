package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/docindex"
)

var _ docindex.SitemapService = (*LoggingSitemapService)(nil)

// LoggingSitemapService logs each sitemap discovery. Failures are logged
// at warn level since a crawl continues without the sitemap.
type LoggingSitemapService struct {
	next   docindex.SitemapService
	logger *slog.Logger
}

// NewLoggingSitemapService creates a new LoggingSitemapService.
func NewLoggingSitemapService(next docindex.SitemapService, logger *slog.Logger) *LoggingSitemapService {
	return &LoggingSitemapService{next: next, logger: logger}
}

// DiscoverURLs delegates to the wrapped service.
func (s *LoggingSitemapService) DiscoverURLs(ctx context.Context, baseURL string) (urls []string, err error) {
	defer func(begin time.Time) {
		if err != nil {
			level := slog.LevelWarn
			if docindex.IsCanceled(err) {
				level = slog.LevelDebug
			}
			s.logger.Log(ctx, level, "sitemap", "url", baseURL, "duration", time.Since(begin), "err", err)
			return
		}
		s.logger.Debug("sitemap", "url", baseURL, "urls", len(urls), "duration", time.Since(begin))
	}(time.Now())
	return s.next.DiscoverURLs(ctx, baseURL)
}

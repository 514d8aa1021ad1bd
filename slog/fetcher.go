// Package slog wraps docindex services with structured logging.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/docindex"
)

// Ensure LoggingFetcher implements docindex.Fetcher.
var _ docindex.Fetcher = (*LoggingFetcher)(nil)

// LoggingFetcher wraps a Fetcher with debug logging.
type LoggingFetcher struct {
	next   docindex.Fetcher
	name   string
	logger *slog.Logger
}

// NewLoggingFetcher creates a new LoggingFetcher. name identifies the
// wrapped fetcher in log records.
func NewLoggingFetcher(next docindex.Fetcher, name string, logger *slog.Logger) *LoggingFetcher {
	return &LoggingFetcher{next: next, name: name, logger: logger}
}

// CanFetch delegates to the wrapped fetcher.
func (f *LoggingFetcher) CanFetch(source string) bool {
	return f.next.CanFetch(source)
}

// Fetch delegates to the wrapped fetcher and logs the operation.
func (f *LoggingFetcher) Fetch(ctx context.Context, source string, opts docindex.FetchOptions) (raw *docindex.RawContent, err error) {
	defer func(begin time.Time) {
		attrs := []any{
			"fetcher", f.name,
			"url", source,
			"conditional", opts.ETag != "",
			"duration", time.Since(begin),
		}
		if raw != nil {
			attrs = append(attrs, "status", raw.Status.String(), "bytes", len(raw.Content))
		}
		if err != nil {
			attrs = append(attrs, "err", err)
			f.logger.Warn("fetch", attrs...)
			return
		}
		f.logger.Debug("fetch", attrs...)
	}(time.Now())
	return f.next.Fetch(ctx, source, opts)
}

// Close delegates to the wrapped fetcher.
func (f *LoggingFetcher) Close() error {
	return f.next.Close()
}

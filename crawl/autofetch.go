package crawl

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fwojciec/docindex"
)

var _ docindex.Fetcher = (*AutoFetcher)(nil)

// AutoFetcher delegates to the first fetcher that can handle a source and
// retries in the browser when a bot challenge blocks plain HTTP.
type AutoFetcher struct {
	fetchers []docindex.Fetcher
	browser  docindex.Fetcher
	logger   *slog.Logger
}

// NewAutoFetcher creates an AutoFetcher. browser may be nil, in which case
// challenges are returned to the caller.
func NewAutoFetcher(logger *slog.Logger, browser docindex.Fetcher, fetchers ...docindex.Fetcher) *AutoFetcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AutoFetcher{fetchers: fetchers, browser: browser, logger: logger}
}

// CanFetch reports whether any wrapped fetcher handles the source.
func (f *AutoFetcher) CanFetch(source string) bool {
	return f.pick(source) != nil
}

// Fetch retrieves the source with the first capable fetcher.
func (f *AutoFetcher) Fetch(ctx context.Context, source string, opts docindex.FetchOptions) (*docindex.RawContent, error) {
	fetcher := f.pick(source)
	if fetcher == nil {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindInvalidURL, URL: source, Err: errors.New("no fetcher for source")}
	}

	raw, err := fetcher.Fetch(ctx, source, opts)
	if err == nil || !docindex.IsChallenge(err) || f.browser == nil || !f.browser.CanFetch(source) {
		return raw, err
	}

	f.logger.Info("challenge detected, retrying in browser", "url", source)
	return f.browser.Fetch(ctx, source, opts)
}

func (f *AutoFetcher) pick(source string) docindex.Fetcher {
	for _, fetcher := range f.fetchers {
		if fetcher.CanFetch(source) {
			return fetcher
		}
	}
	return nil
}

// Close closes every wrapped fetcher.
func (f *AutoFetcher) Close() error {
	var errs []error
	for _, fetcher := range f.fetchers {
		errs = append(errs, fetcher.Close())
	}
	if f.browser != nil {
		errs = append(errs, f.browser.Close())
	}
	return errors.Join(errs...)
}

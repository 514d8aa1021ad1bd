package mock

import (
	"context"

	"github.com/fwojciec/docindex"
)

var _ docindex.Fetcher = (*Fetcher)(nil)

// Fetcher is a mock implementation of docindex.Fetcher.
type Fetcher struct {
	CanFetchFn func(source string) bool
	FetchFn    func(ctx context.Context, source string, opts docindex.FetchOptions) (*docindex.RawContent, error)
	CloseFn    func() error
}

func (f *Fetcher) CanFetch(source string) bool {
	return f.CanFetchFn(source)
}

func (f *Fetcher) Fetch(ctx context.Context, source string, opts docindex.FetchOptions) (*docindex.RawContent, error) {
	return f.FetchFn(ctx, source, opts)
}

func (f *Fetcher) Close() error {
	return f.CloseFn()
}

package crawl_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/docindex"
	"github.com/fwojciec/docindex/crawl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// processorFunc adapts a function to crawl.ItemProcessor.
type processorFunc func(ctx context.Context, item docindex.QueueItem, opts docindex.ScraperOptions) (*crawl.ItemResult, error)

func (f processorFunc) ProcessItem(ctx context.Context, item docindex.QueueItem, opts docindex.ScraperOptions) (*crawl.ItemResult, error) {
	return f(ctx, item, opts)
}

// siteProcessor serves pages of a fake site given as URL -> links.
func siteProcessor(site map[string][]string) processorFunc {
	return func(_ context.Context, item docindex.QueueItem, _ docindex.ScraperOptions) (*crawl.ItemResult, error) {
		links, ok := site[item.URL]
		if !ok {
			return &crawl.ItemResult{Status: docindex.FetchNotFound}, nil
		}
		return &crawl.ItemResult{
			Status: docindex.FetchSuccess,
			Page: &docindex.ProcessedPage{
				URL:    item.URL,
				Chunks: []docindex.Chunk{{Content: "content of " + item.URL}},
			},
			Links: links,
		}, nil
	}
}

// recorder collects progress events.
type recorder struct {
	mu     sync.Mutex
	events []docindex.ProgressEvent
}

func (r *recorder) progress(_ context.Context, e docindex.ProgressEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) urls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var urls []string
	for _, e := range r.events {
		urls = append(urls, e.CurrentURL)
	}
	return urls
}

func (r *recorder) last() docindex.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func TestWalker_Walk(t *testing.T) {
	t.Parallel()

	t.Run("crawls every reachable in-scope page once", func(t *testing.T) {
		t.Parallel()

		site := map[string][]string{
			"https://x.com/docs/":  {"https://x.com/docs/a", "https://x.com/docs/b", "https://x.com/blog/post"},
			"https://x.com/docs/a": {"https://x.com/docs/", "https://x.com/docs/c", "https://x.com/docs/b#frag"},
			"https://x.com/docs/b": {"https://X.com/docs/a/"},
			"https://x.com/docs/c": nil,
		}
		rec := &recorder{}
		w := &crawl.Walker{}

		err := w.Walk(context.Background(), docindex.ScraperOptions{URL: "https://x.com/docs/"}, siteProcessor(site), rec.progress)

		require.NoError(t, err)
		assert.ElementsMatch(t, []string{
			"https://x.com/docs/", "https://x.com/docs/a", "https://x.com/docs/b", "https://x.com/docs/c",
		}, rec.urls())
		last := rec.last()
		assert.Equal(t, 4, last.PagesScraped)
		assert.Equal(t, 4, last.TotalDiscovered)
		assert.Equal(t, 4, last.TotalPages)
	})

	t.Run("caps processed pages and keeps counting discoveries", func(t *testing.T) {
		t.Parallel()

		root := "https://x.com/docs/"
		var links []string
		site := map[string][]string{}
		for _, p := range []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"} {
			links = append(links, root+p)
			site[root+p] = nil
		}
		site[root] = links
		rec := &recorder{}
		w := &crawl.Walker{}

		err := w.Walk(context.Background(), docindex.ScraperOptions{URL: root, MaxPages: 3}, siteProcessor(site), rec.progress)

		require.NoError(t, err)
		last := rec.last()
		assert.Equal(t, 3, last.PagesScraped)
		assert.Equal(t, 3, last.TotalPages)
		assert.Equal(t, 11, last.TotalDiscovered)
		for _, e := range rec.events {
			assert.LessOrEqual(t, e.TotalPages, 3)
			assert.GreaterOrEqual(t, e.TotalDiscovered, e.TotalPages)
		}
	})

	t.Run("skips items deeper than max depth", func(t *testing.T) {
		t.Parallel()

		site := map[string][]string{
			"https://x.com/":  {"https://x.com/a"},
			"https://x.com/a": {"https://x.com/b"},
			"https://x.com/b": {"https://x.com/c"},
			"https://x.com/c": nil,
		}
		rec := &recorder{}
		w := &crawl.Walker{}

		err := w.Walk(context.Background(), docindex.ScraperOptions{URL: "https://x.com/", MaxDepth: docindex.DepthLimit(1)}, siteProcessor(site), rec.progress)

		require.NoError(t, err)
		assert.Equal(t, []string{"https://x.com/", "https://x.com/a"}, rec.urls())
	})

	t.Run("crawls only the root page at max depth zero", func(t *testing.T) {
		t.Parallel()

		site := map[string][]string{
			"https://x.com/docs/":  {"https://x.com/docs/a"},
			"https://x.com/docs/a": {"https://x.com/docs/b"},
			"https://x.com/docs/b": nil,
		}
		rec := &recorder{}
		w := &crawl.Walker{}

		err := w.Walk(context.Background(), docindex.ScraperOptions{URL: "https://x.com/docs/", MaxDepth: docindex.DepthLimit(0)}, siteProcessor(site), rec.progress)

		require.NoError(t, err)
		assert.Equal(t, []string{"https://x.com/docs/"}, rec.urls())
		assert.Equal(t, 0, rec.last().MaxDepth)
	})

	t.Run("uses the default depth when max depth is unset", func(t *testing.T) {
		t.Parallel()

		site := map[string][]string{
			"https://x.com/":  {"https://x.com/a"},
			"https://x.com/a": {"https://x.com/b"},
			"https://x.com/b": {"https://x.com/c"},
			"https://x.com/c": {"https://x.com/d"},
			"https://x.com/d": nil,
		}
		rec := &recorder{}
		w := &crawl.Walker{}

		err := w.Walk(context.Background(), docindex.ScraperOptions{URL: "https://x.com/"}, siteProcessor(site), rec.progress)

		require.NoError(t, err)
		assert.Equal(t, []string{"https://x.com/", "https://x.com/a", "https://x.com/b", "https://x.com/c"}, rec.urls())
		assert.Equal(t, docindex.DefaultMaxDepth, rec.last().MaxDepth)
	})

	t.Run("never runs more items at once than max concurrency", func(t *testing.T) {
		t.Parallel()

		root := "https://x.com/"
		var links []string
		for _, p := range []string{"a", "b", "c", "d", "e", "f", "g"} {
			links = append(links, root+p)
		}
		var inFlight, peak atomic.Int32
		proc := processorFunc(func(_ context.Context, item docindex.QueueItem, _ docindex.ScraperOptions) (*crawl.ItemResult, error) {
			n := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			res := &crawl.ItemResult{Status: docindex.FetchSuccess, Page: &docindex.ProcessedPage{URL: item.URL, Chunks: []docindex.Chunk{{Content: "x"}}}}
			if item.URL == root {
				res.Links = links
			}
			return res, nil
		})
		w := &crawl.Walker{}

		err := w.Walk(context.Background(), docindex.ScraperOptions{URL: root, MaxConcurrency: 2}, proc, nil)

		require.NoError(t, err)
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("refresh reports an unchanged page once without content", func(t *testing.T) {
		t.Parallel()

		var gotETag string
		proc := processorFunc(func(_ context.Context, item docindex.QueueItem, _ docindex.ScraperOptions) (*crawl.ItemResult, error) {
			gotETag = item.ETag
			return &crawl.ItemResult{Status: docindex.FetchNotModified}, nil
		})
		rec := &recorder{}
		w := &crawl.Walker{}

		err := w.Walk(context.Background(), docindex.ScraperOptions{
			URL:          "https://x.com/docs",
			IsRefresh:    true,
			InitialQueue: []docindex.QueueItem{{URL: "https://x.com/docs", PageID: 7, ETag: "E"}},
		}, proc, rec.progress)

		require.NoError(t, err)
		assert.Equal(t, "E", gotETag)
		require.Len(t, rec.events, 1)
		assert.Nil(t, rec.events[0].Result)
		assert.False(t, rec.events[0].Deleted)
		assert.Equal(t, int64(7), rec.events[0].PageID)
	})

	t.Run("refresh reports a vanished page as deleted", func(t *testing.T) {
		t.Parallel()

		site := map[string][]string{"https://x.com/docs/": nil}
		rec := &recorder{}
		w := &crawl.Walker{}

		err := w.Walk(context.Background(), docindex.ScraperOptions{
			URL:       "https://x.com/docs/",
			IsRefresh: true,
			InitialQueue: []docindex.QueueItem{
				{URL: "https://x.com/docs/", PageID: 1},
				{URL: "https://x.com/docs/gone", PageID: 2, Depth: 1},
			},
		}, siteProcessor(site), rec.progress)

		require.NoError(t, err)
		require.Len(t, rec.events, 2)
		byURL := map[string]docindex.ProgressEvent{}
		for _, e := range rec.events {
			byURL[e.CurrentURL] = e
		}
		assert.NotNil(t, byURL["https://x.com/docs/"].Result)
		assert.True(t, byURL["https://x.com/docs/gone"].Deleted)
		assert.Equal(t, int64(2), byURL["https://x.com/docs/gone"].PageID)
	})

	t.Run("skips pages that fail with non-fatal errors", func(t *testing.T) {
		t.Parallel()

		site := map[string][]string{"https://x.com/": {"https://x.com/bad", "https://x.com/good"}, "https://x.com/good": nil}
		inner := siteProcessor(site)
		proc := processorFunc(func(ctx context.Context, item docindex.QueueItem, opts docindex.ScraperOptions) (*crawl.ItemResult, error) {
			if item.URL == "https://x.com/bad" {
				return nil, &docindex.ScraperError{Kind: docindex.ErrKindHTTPStatus, URL: item.URL, StatusCode: 401}
			}
			return inner(ctx, item, opts)
		})
		rec := &recorder{}
		w := &crawl.Walker{}

		err := w.Walk(context.Background(), docindex.ScraperOptions{URL: "https://x.com/"}, proc, rec.progress)

		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"https://x.com/", "https://x.com/good"}, rec.urls())
	})

	t.Run("fails when the root page fails and nothing was indexed", func(t *testing.T) {
		t.Parallel()

		refused := &docindex.ScraperError{Kind: docindex.ErrKindFetch, URL: "https://x.com/"}
		proc := processorFunc(func(context.Context, docindex.QueueItem, docindex.ScraperOptions) (*crawl.ItemResult, error) {
			return nil, refused
		})
		rec := &recorder{}
		w := &crawl.Walker{}

		err := w.Walk(context.Background(), docindex.ScraperOptions{URL: "https://x.com/"}, proc, rec.progress)

		require.ErrorIs(t, err, refused)
		assert.Empty(t, rec.events)
	})

	t.Run("fails when the root page does not exist", func(t *testing.T) {
		t.Parallel()

		w := &crawl.Walker{}

		err := w.Walk(context.Background(), docindex.ScraperOptions{URL: "https://x.com/missing/"}, siteProcessor(nil), nil)

		var scrapeErr *docindex.ScraperError
		require.ErrorAs(t, err, &scrapeErr)
		assert.Equal(t, docindex.ErrKindHTTPStatus, scrapeErr.Kind)
		assert.Equal(t, 404, scrapeErr.StatusCode)
	})

	t.Run("ignores a failing root page on refresh", func(t *testing.T) {
		t.Parallel()

		proc := processorFunc(func(_ context.Context, item docindex.QueueItem, _ docindex.ScraperOptions) (*crawl.ItemResult, error) {
			return nil, &docindex.ScraperError{Kind: docindex.ErrKindHTTPStatus, URL: item.URL, StatusCode: 500}
		})
		w := &crawl.Walker{}

		err := w.Walk(context.Background(), docindex.ScraperOptions{
			URL:          "https://x.com/",
			IsRefresh:    true,
			InitialQueue: []docindex.QueueItem{{URL: "https://x.com/", PageID: 3}},
		}, proc, nil)

		require.NoError(t, err)
	})

	t.Run("aborts on the first error when requested", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		proc := processorFunc(func(context.Context, docindex.QueueItem, docindex.ScraperOptions) (*crawl.ItemResult, error) {
			return nil, boom
		})
		w := &crawl.Walker{}

		err := w.Walk(context.Background(), docindex.ScraperOptions{URL: "https://x.com/", AbortOnError: true}, proc, nil)

		require.ErrorIs(t, err, boom)
	})

	t.Run("aborts on exhausted retries", func(t *testing.T) {
		t.Parallel()

		proc := processorFunc(func(_ context.Context, item docindex.QueueItem, _ docindex.ScraperOptions) (*crawl.ItemResult, error) {
			return nil, &docindex.ScraperError{Kind: docindex.ErrKindRetryExhausted, URL: item.URL, Retryable: true}
		})
		w := &crawl.Walker{}

		err := w.Walk(context.Background(), docindex.ScraperOptions{URL: "https://x.com/"}, proc, nil)

		require.Error(t, err)
		assert.True(t, docindex.IsRetryable(err))
	})

	t.Run("returns a cancellation error when cancelled mid-crawl", func(t *testing.T) {
		t.Parallel()

		site := map[string][]string{
			"https://x.com/":  {"https://x.com/a", "https://x.com/b"},
			"https://x.com/a": nil,
			"https://x.com/b": nil,
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		var calls int
		progress := func(context.Context, docindex.ProgressEvent) error {
			calls++
			cancel()
			return nil
		}
		w := &crawl.Walker{}

		err := w.Walk(ctx, docindex.ScraperOptions{URL: "https://x.com/", MaxConcurrency: 1}, siteProcessor(site), progress)

		require.Error(t, err)
		assert.True(t, docindex.IsCanceled(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("rejects an unparseable root URL", func(t *testing.T) {
		t.Parallel()

		w := &crawl.Walker{}

		err := w.Walk(context.Background(), docindex.ScraperOptions{URL: "::bad"}, siteProcessor(nil), nil)

		var scrapeErr *docindex.ScraperError
		require.ErrorAs(t, err, &scrapeErr)
		assert.Equal(t, docindex.ErrKindInvalidURL, scrapeErr.Kind)
	})
}

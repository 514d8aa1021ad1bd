package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"

	"github.com/fwojciec/docindex"
	"golang.org/x/sync/errgroup"
)

// ItemResult is what a strategy produced for one queue item.
type ItemResult struct {
	Status docindex.FetchStatus
	// Page is set when the item yielded content.
	Page *docindex.ProcessedPage
	// Links are absolute URLs discovered on the page.
	Links []string
}

// ItemProcessor fetches and processes a single queue item.
type ItemProcessor interface {
	ProcessItem(ctx context.Context, item docindex.QueueItem, opts docindex.ScraperOptions) (*ItemResult, error)
}

// LinkFilter is implemented by processors that decide themselves which
// links belong to the crawl, replacing the scope check. Include and
// exclude patterns still apply.
type LinkFilter interface {
	FollowLink(root, link *url.URL) bool
}

// Walker runs the breadth-first crawl loop shared by all strategies.
type Walker struct {
	Logger *slog.Logger
}

func (w *Walker) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.Logger
}

// walkRun is the state of one Walk call.
type walkRun struct {
	w        *Walker
	opts     docindex.ScraperOptions
	proc     docindex.ProgressFunc
	frontier *Frontier

	mu      sync.Mutex
	scraped int
	// rootErr is why the root item produced nothing.
	rootErr error
}

// Walk crawls from opts.URL breadth-first, calling proc for every item and
// progress for every page that counts toward MaxPages.
//
// Errors on individual pages are skipped, except on the root page: when it
// fails and no page was indexed, Walk returns that failure so a mistyped
// source does not end as an empty successful crawl.
//
// Items are processed in batches of at most MaxConcurrency. Links are
// merged into the frontier only after the whole batch has settled, in
// item order. Cancellation is checked at every batch boundary and around
// each item.
func (w *Walker) Walk(ctx context.Context, opts docindex.ScraperOptions, proc ItemProcessor, progress docindex.ProgressFunc) error {
	opts = opts.WithDefaults()

	root, err := url.Parse(opts.URL)
	if err != nil || root.Scheme == "" {
		return &docindex.ScraperError{Kind: docindex.ErrKindInvalidURL, URL: opts.URL, Err: err}
	}

	filter, err := NewPatternFilter(opts.IncludePatterns, opts.ExcludePatterns)
	if err != nil {
		return err
	}

	run := &walkRun{
		w:        w,
		opts:     opts,
		proc:     progress,
		frontier: NewFrontier(opts.MaxPages),
	}

	if opts.IsRefresh {
		for _, item := range opts.InitialQueue {
			run.frontier.Visit(item)
		}
	}
	run.frontier.Visit(docindex.QueueItem{URL: opts.URL, Depth: 0})

	for {
		if err := ctx.Err(); err != nil {
			return docindex.ErrCanceled(err)
		}

		remaining := opts.MaxPages - run.pagesScraped()
		if remaining <= 0 || run.frontier.Len() == 0 {
			break
		}

		batch := run.frontier.PopBatch(min(opts.MaxConcurrency, remaining))
		results, err := run.processBatch(ctx, batch, proc)
		if err != nil {
			if ctx.Err() != nil {
				return docindex.ErrCanceled(ctx.Err())
			}
			return err
		}

		for i, res := range results {
			if res == nil {
				continue
			}
			for _, link := range res.Links {
				run.admit(root, link, batch[i].Depth+1, proc, filter)
			}
		}
	}

	if err := run.rootFailure(); err != nil {
		return fmt.Errorf("crawling %s: %w", opts.URL, err)
	}

	visited, discovered, effective := run.frontier.Counts()
	w.logger().Info("crawl finished",
		"url", opts.URL,
		"pages", run.pagesScraped(),
		"visited", visited,
		"discovered", discovered,
		"effective", effective,
	)
	return nil
}

func (r *walkRun) pagesScraped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scraped
}

func (r *walkRun) rootFailure() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scraped > 0 {
		return nil
	}
	return r.rootErr
}

// noteFailure remembers a failure of the root item of a fresh crawl.
func (r *walkRun) noteFailure(item docindex.QueueItem, err error) {
	if item.Depth != 0 || item.PageID != 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rootErr = err
}

func (r *walkRun) processBatch(ctx context.Context, batch []docindex.QueueItem, proc ItemProcessor) ([]*ItemResult, error) {
	results := make([]*ItemResult, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range batch {
		g.Go(func() error {
			res, err := r.processItem(gctx, item, proc)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// processItem returns the result whose links should be followed, if any.
func (r *walkRun) processItem(ctx context.Context, item docindex.QueueItem, proc ItemProcessor) (*ItemResult, error) {
	if item.Depth > r.opts.MaxLinkDepth() {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, docindex.ErrCanceled(err)
	}

	res, err := proc.ProcessItem(ctx, item, r.opts)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, docindex.ErrCanceled(ctxErr)
	}
	if err != nil {
		if docindex.IsFatal(err) || r.opts.AbortOnError {
			return nil, err
		}
		r.w.logger().Warn("skipping page", "url", item.URL, "depth", item.Depth, "err", err)
		r.noteFailure(item, err)
		return nil, nil
	}
	if res == nil {
		return nil, nil
	}

	event := docindex.ProgressEvent{PageID: item.PageID}
	switch res.Status {
	case docindex.FetchNotModified:
		if item.PageID == 0 {
			return nil, nil
		}
	case docindex.FetchNotFound:
		if item.PageID == 0 {
			r.w.logger().Debug("page not found", "url", item.URL)
			r.noteFailure(item, &docindex.ScraperError{Kind: docindex.ErrKindHTTPStatus, URL: item.URL, StatusCode: 404})
			return nil, nil
		}
		event.Deleted = true
	case docindex.FetchSuccess:
		if res.Page == nil && item.PageID == 0 {
			return res, nil
		}
		event.Result = res.Page
	default:
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindUnknownStatus, URL: item.URL}
	}

	if err := r.emit(ctx, item, event); err != nil {
		return nil, err
	}
	if res.Status != docindex.FetchSuccess {
		return nil, nil
	}
	return res, nil
}

// emit counts the page and reports progress. Calls are serialized.
func (r *walkRun) emit(ctx context.Context, item docindex.QueueItem, event docindex.ProgressEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.scraped++
	_, discovered, effective := r.frontier.Counts()
	event.PagesScraped = r.scraped
	event.TotalPages = effective
	event.TotalDiscovered = discovered
	event.CurrentURL = item.URL
	event.Depth = item.Depth
	event.MaxDepth = r.opts.MaxLinkDepth()

	if r.proc == nil {
		return nil
	}
	return r.proc(ctx, event)
}

// admit adds an in-scope, unfiltered, unvisited link to the frontier.
func (r *walkRun) admit(root *url.URL, link string, depth int, proc ItemProcessor, filter *PatternFilter) {
	u, err := url.Parse(link)
	if err != nil {
		return
	}
	switch u.Scheme {
	case "http", "https", "file":
	default:
		return
	}
	if r.frontier.Visited(link) {
		return
	}
	if lf, ok := proc.(LinkFilter); ok {
		if !lf.FollowLink(root, u) {
			return
		}
	} else if !InScope(root, u, r.opts.Scope) {
		return
	}
	if !filter.Match(link) {
		return
	}
	r.frontier.Visit(docindex.QueueItem{URL: link, Depth: depth})
}

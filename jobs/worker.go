package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fwojciec/docindex"
)

// Callbacks receive what a Worker observes while running a job.
type Callbacks struct {
	// OnProgress is called for every progress event. Returning an error
	// aborts the job.
	OnProgress func(ctx context.Context, job *docindex.Job, e docindex.ProgressEvent) error
	// OnError is called for storage errors that did not abort the job.
	OnError func(ctx context.Context, job *docindex.Job, err error)
}

// Runner executes a single job to completion.
type Runner interface {
	ExecuteJob(ctx context.Context, job *docindex.Job, cb Callbacks) error
}

// Ensure Worker implements Runner at compile time.
var _ Runner = (*Worker)(nil)

// Worker runs one crawl job: it clears previous content unless the job is
// a refresh, drives the scraper and stores every page it reports.
type Worker struct {
	Store   docindex.DocumentStore
	Scraper docindex.Scraper
	Logger  *slog.Logger
}

func (w *Worker) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return w.Logger
}

// ExecuteJob runs job. Cancellation of ctx ends the run with a
// cancellation error.
func (w *Worker) ExecuteJob(ctx context.Context, job *docindex.Job, cb Callbacks) error {
	if err := ctx.Err(); err != nil {
		return docindex.ErrCanceled(err)
	}

	opts := job.Options
	if !opts.IsRefresh {
		if err := w.Store.RemoveAllDocuments(ctx, job.Library, job.Version); err != nil {
			return fmt.Errorf("removing documents: %w", err)
		}
	}

	err := w.Scraper.Scrape(ctx, opts, func(ctx context.Context, e docindex.ProgressEvent) error {
		if err := ctx.Err(); err != nil {
			return docindex.ErrCanceled(err)
		}

		if err := w.store(ctx, job, e); err != nil {
			if docindex.IsCanceled(err) {
				return err
			}
			w.logger().Error("storing page failed", "job", job.ID, "url", e.CurrentURL, "err", err)
			if cb.OnError != nil {
				cb.OnError(ctx, job, err)
			}
			if opts.AbortOnError {
				return err
			}
		}

		if cb.OnProgress != nil {
			return cb.OnProgress(ctx, job, e)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil && !docindex.IsCanceled(err) {
			return docindex.ErrCanceled(ctx.Err())
		}
		return err
	}
	if err := ctx.Err(); err != nil {
		return docindex.ErrCanceled(err)
	}
	return nil
}

// store applies one progress event to the document store.
func (w *Worker) store(ctx context.Context, job *docindex.Job, e docindex.ProgressEvent) error {
	switch {
	case e.Deleted && e.PageID != 0:
		if err := w.Store.DeletePage(ctx, e.PageID); err != nil && docindex.ErrorCode(err) != docindex.ENOTFOUND {
			return fmt.Errorf("deleting page %d: %w", e.PageID, err)
		}
	case e.Result != nil:
		if e.PageID != 0 {
			if err := w.Store.DeletePage(ctx, e.PageID); err != nil && docindex.ErrorCode(err) != docindex.ENOTFOUND {
				return fmt.Errorf("deleting page %d: %w", e.PageID, err)
			}
		}
		if err := w.Store.AddScrapeResult(ctx, job.Library, job.Version, e.Depth, e.Result); err != nil {
			return fmt.Errorf("storing %s: %w", e.Result.URL, err)
		}
	}
	return nil
}

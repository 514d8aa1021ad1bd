package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fwojciec/docindex"
)

// Run executes the scrape command.
func (c *ScrapeCmd) Run(deps *Dependencies) error {
	id, err := deps.Jobs.EnqueueScrapeJob(deps.Ctx, c.Library, c.Version, c.Options())
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", docindex.ErrorMessage(err))
		return err
	}
	fmt.Fprintf(deps.Stdout, "Queued job %s for %s\n", id, label(c.Library, c.Version))

	return runJobs(deps, id)
}

// runJobs waits for the jobs while printing their progress and reports
// each outcome. Interrupting the command cancels the jobs still running.
func runJobs(deps *Dependencies, ids ...string) error {
	stop := printProgress(deps)

	var errs []error
	for _, id := range ids {
		if err := waitJob(deps, id); err != nil {
			errs = append(errs, err)
		}
	}
	stop()

	for _, id := range ids {
		printSummary(deps, id)
	}
	return errors.Join(errs...)
}

func waitJob(deps *Dependencies, id string) error {
	err := deps.Jobs.WaitForJobCompletion(deps.Ctx, id)
	if err == nil || deps.Ctx.Err() == nil {
		return err
	}

	ctx := context.WithoutCancel(deps.Ctx)
	if err := deps.Jobs.CancelJob(ctx, id); err != nil {
		return err
	}
	return deps.Jobs.WaitForJobCompletion(ctx, id)
}

// printProgress prints job progress events until the returned function
// is called.
func printProgress(deps *Dependencies) func() {
	if deps.Events == nil {
		return func() {}
	}
	ch, unsubscribe := deps.Events.Subscribe(docindex.EventJobProgress)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range ch {
			if e.Progress == nil {
				continue
			}
			fmt.Fprintf(deps.Stdout, "[%d/%d] %s\n", e.Progress.PagesScraped, e.Progress.TotalPages, e.Progress.CurrentURL)
		}
	}()
	return func() {
		unsubscribe()
		<-done
	}
}

func printSummary(deps *Dependencies, id string) {
	job, err := deps.Jobs.GetJob(id)
	if err != nil {
		return
	}
	pages := 0
	if job.Progress != nil {
		pages = job.Progress.PagesScraped
	}
	switch job.Status {
	case docindex.JobFailed:
		fmt.Fprintf(deps.Stderr, "%s: failed after %d pages: %s\n", label(job.Library, job.Version), pages, job.Error)
	default:
		fmt.Fprintf(deps.Stdout, "%s: %s (%d pages)\n", label(job.Library, job.Version), job.Status, pages)
	}
}

func label(library, version string) string {
	if version == "" {
		return library
	}
	return library + "@" + version
}

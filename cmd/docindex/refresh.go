package main

import (
	"fmt"

	"github.com/fwojciec/docindex"
)

// Run executes the refresh command.
func (c *RefreshCmd) Run(deps *Dependencies) error {
	id, err := deps.Jobs.EnqueueRefreshJob(deps.Ctx, c.Library, c.Version)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", docindex.ErrorMessage(err))
		return err
	}
	fmt.Fprintf(deps.Stdout, "Queued refresh %s for %s\n", id, label(c.Library, c.Version))

	return runJobs(deps, id)
}

package main

import (
	"fmt"

	"github.com/fwojciec/docindex"
)

// Run executes the resume command. Interrupted jobs were re-queued when
// the job manager started.
func (c *ResumeCmd) Run(deps *Dependencies) error {
	recovered := deps.Jobs.GetJobs(docindex.JobFilter{})
	if len(recovered) == 0 {
		fmt.Fprintln(deps.Stdout, "No interrupted jobs.")
		return nil
	}

	ids := make([]string, len(recovered))
	for i, job := range recovered {
		ids[i] = job.ID
		fmt.Fprintf(deps.Stdout, "Resuming %s\n", label(job.Library, job.Version))
	}
	return runJobs(deps, ids...)
}

package mock

import (
	"context"

	"github.com/fwojciec/docindex"
)

var _ docindex.JobManager = (*JobManager)(nil)

// JobManager is a mock implementation of docindex.JobManager.
type JobManager struct {
	EnqueueScrapeJobFn      func(ctx context.Context, library, version string, opts docindex.ScraperOptions) (string, error)
	EnqueueRefreshJobFn     func(ctx context.Context, library, version string) (string, error)
	GetJobFn                func(id string) (*docindex.Job, error)
	GetJobsFn               func(filter docindex.JobFilter) []*docindex.Job
	CancelJobFn             func(ctx context.Context, id string) error
	WaitForJobCompletionFn func(ctx context.Context, id string) error
	ClearCompletedJobsFn   func() int
}

func (m *JobManager) EnqueueScrapeJob(ctx context.Context, library, version string, opts docindex.ScraperOptions) (string, error) {
	return m.EnqueueScrapeJobFn(ctx, library, version, opts)
}

func (m *JobManager) EnqueueRefreshJob(ctx context.Context, library, version string) (string, error) {
	return m.EnqueueRefreshJobFn(ctx, library, version)
}

func (m *JobManager) GetJob(id string) (*docindex.Job, error) {
	return m.GetJobFn(id)
}

func (m *JobManager) GetJobs(filter docindex.JobFilter) []*docindex.Job {
	return m.GetJobsFn(filter)
}

func (m *JobManager) CancelJob(ctx context.Context, id string) error {
	return m.CancelJobFn(ctx, id)
}

func (m *JobManager) WaitForJobCompletion(ctx context.Context, id string) error {
	return m.WaitForJobCompletionFn(ctx, id)
}

func (m *JobManager) ClearCompletedJobs() int {
	return m.ClearCompletedJobsFn()
}

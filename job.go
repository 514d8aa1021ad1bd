package docindex

import (
	"context"
	"time"
)

// JobStatus is the in-memory lifecycle state of an indexing job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobRunning    JobStatus = "running"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelling JobStatus = "cancelling"
	JobCancelled  JobStatus = "cancelled"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobQueued:     {JobRunning, JobCancelled},
	JobRunning:    {JobCompleted, JobFailed, JobCancelling},
	JobCancelling: {JobCancelled},
}

// CanTransitionTo reports whether a job in status s may move to next.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is a final status.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// IsActive reports whether a job in status s is queued or running.
func (s JobStatus) IsActive() bool {
	return s == JobQueued || s == JobRunning
}

// VersionStatus maps a job status to the coarser persisted status.
// Every write of a version's status goes through this mapping.
func (s JobStatus) VersionStatus() VersionStatus {
	switch s {
	case JobQueued:
		return VersionQueued
	case JobRunning, JobCancelling:
		return VersionRunning
	case JobCompleted:
		return VersionCompleted
	case JobFailed:
		return VersionFailed
	case JobCancelled:
		return VersionCancelled
	}
	return VersionNotIndexed
}

// JobProgress is the latest progress reported by a running job.
type JobProgress struct {
	PagesScraped    int    `json:"pagesScraped"`
	TotalPages      int    `json:"totalPages"`
	TotalDiscovered int    `json:"totalDiscovered"`
	CurrentURL      string `json:"currentUrl"`
	Depth           int    `json:"depth"`
	MaxDepth        int    `json:"maxDepth"`
}

// Job is a snapshot of one indexing run of a (library, version).
type Job struct {
	ID         string         `json:"id"`
	Library    string         `json:"library"`
	Version    string         `json:"version"`
	VersionID  int64          `json:"versionId"`
	Status     JobStatus      `json:"status"`
	Progress   *JobProgress   `json:"progress,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	StartedAt  *time.Time     `json:"startedAt,omitempty"`
	FinishedAt *time.Time     `json:"finishedAt,omitempty"`
	Options    ScraperOptions `json:"options"`
}

// JobFilter represents a filter for GetJobs.
type JobFilter struct {
	Status  []JobStatus
	Library *string
}

// Match reports whether j passes the filter.
func (f JobFilter) Match(j *Job) bool {
	if f.Library != nil && *f.Library != j.Library {
		return false
	}
	if len(f.Status) == 0 {
		return true
	}
	for _, s := range f.Status {
		if s == j.Status {
			return true
		}
	}
	return false
}

// JobManager schedules and tracks indexing jobs.
type JobManager interface {
	// EnqueueScrapeJob queues a full crawl of a library version.
	// An existing queued or running job for the same version is cancelled first.
	EnqueueScrapeJob(ctx context.Context, library, version string, opts ScraperOptions) (string, error)

	// EnqueueRefreshJob queues a conditional re-crawl seeded with the
	// pages already stored for the version.
	EnqueueRefreshJob(ctx context.Context, library, version string) (string, error)

	// GetJob returns a snapshot of a job.
	// Returns ENOTFOUND if the job does not exist.
	GetJob(id string) (*Job, error)

	// GetJobs returns snapshots of jobs matching the filter, oldest first.
	GetJobs(filter JobFilter) []*Job

	// CancelJob requests cancellation. Terminal jobs are left unchanged.
	CancelJob(ctx context.Context, id string) error

	// WaitForJobCompletion blocks until the job reaches a terminal status.
	// Cancelled jobs return nil; failed jobs return their error.
	WaitForJobCompletion(ctx context.Context, id string) error

	// ClearCompletedJobs removes terminal jobs and returns how many were removed.
	ClearCompletedJobs() int
}

// NormalizeVersion lower-cases and trims a version; empty means unversioned.
func NormalizeVersion(v string) string {
	return toLowerTrim(v)
}

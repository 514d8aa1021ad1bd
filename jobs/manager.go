// Package jobs schedules indexing jobs on a bounded worker pool and keeps
// their state in memory, mirrored to the document store.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/docindex"
	"github.com/google/uuid"
)

// DefaultConcurrency is the default number of jobs running at once.
const DefaultConcurrency = 3

// Ensure Manager implements docindex.JobManager at compile time.
var _ docindex.JobManager = (*Manager)(nil)

// Manager owns the job table and the FIFO queue. All mutation happens
// under mu; callers only ever see copies of jobs.
//
// Status changes are written through to the store and published on the
// event bus in the order they were applied.
type Manager struct {
	store       docindex.DocumentStore
	runner      Runner
	bus         docindex.EventBus
	logger      *slog.Logger
	concurrency int
	recover     bool
	newID       func() string
	now         func() time.Time

	// enqueueMu serializes enqueues so that at most one job per version
	// is active.
	enqueueMu sync.Mutex
	// persistMu is taken before mu is released so that store writes and
	// events follow transition order.
	persistMu sync.Mutex

	mu      sync.Mutex
	jobs    map[string]*record
	queue   []string
	active  int
	started bool
	seq     int
	wg      sync.WaitGroup
}

// record is the private state of a job.
type record struct {
	job    docindex.Job
	seq    int
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Option configures a Manager.
type Option func(*Manager)

// WithConcurrency bounds the number of running jobs.
func WithConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithEventBus publishes job events on bus.
func WithEventBus(bus docindex.EventBus) Option {
	return func(m *Manager) {
		m.bus = bus
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l
	}
}

// WithRecovery controls whether Start re-queues jobs interrupted by a
// previous process. Enabled by default.
func WithRecovery(enabled bool) Option {
	return func(m *Manager) {
		m.recover = enabled
	}
}

// NewManager creates a Manager. Jobs are not dispatched until Start.
func NewManager(store docindex.DocumentStore, runner Runner, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		runner:      runner,
		concurrency: DefaultConcurrency,
		recover:     true,
		newID:       uuid.NewString,
		now:         time.Now,
		jobs:        make(map[string]*record),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m
}

// Start recovers interrupted jobs if enabled and starts dispatching.
func (m *Manager) Start(ctx context.Context) error {
	if m.recover {
		if err := m.recoverJobs(ctx); err != nil {
			return fmt.Errorf("recovering jobs: %w", err)
		}
	}

	m.mu.Lock()
	m.started = true
	m.mu.Unlock()

	m.dispatch()
	return nil
}

// Stop halts dispatch of queued jobs. Running jobs are not interrupted.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.started = false
	m.mu.Unlock()
}

// Wait blocks until all dispatched jobs have returned.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// EnqueueScrapeJob queues a full crawl of library@version.
func (m *Manager) EnqueueScrapeJob(ctx context.Context, library, version string, opts docindex.ScraperOptions) (string, error) {
	library = strings.ToLower(strings.TrimSpace(library))
	if library == "" {
		return "", docindex.Errorf(docindex.EINVALID, "library name required")
	}
	version = docindex.NormalizeVersion(version)

	opts.Library, opts.Version = library, version
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return "", err
	}

	m.enqueueMu.Lock()
	defer m.enqueueMu.Unlock()

	if err := m.cancelExisting(ctx, library, version); err != nil {
		return "", err
	}

	versionID, err := m.store.EnsureLibraryAndVersion(ctx, library, version)
	if err != nil {
		return "", fmt.Errorf("ensuring library version: %w", err)
	}
	if err := m.store.StoreScraperOptions(ctx, versionID, opts); err != nil {
		m.logger.Error("storing scraper options failed", "library", library, "version", version, "err", err)
	}

	rec := m.newRecord(library, version, versionID, opts, m.now())

	m.mu.Lock()
	m.add(rec)
	m.unlockAndPersist(change{job: m.snapshot(rec), status: true, list: true, library: true})

	m.logger.Info("job queued", "job", rec.job.ID, "library", library, "version", version, "url", opts.URL, "refresh", opts.IsRefresh)
	m.dispatch()
	return rec.job.ID, nil
}

// EnqueueRefreshJob queues a re-crawl of library@version using its stored
// options. Known pages seed the crawl and are fetched conditionally;
// without known pages this is a normal scrape.
func (m *Manager) EnqueueRefreshJob(ctx context.Context, library, version string) (string, error) {
	library = strings.ToLower(strings.TrimSpace(library))
	version = docindex.NormalizeVersion(version)

	versions, err := m.store.FindVersions(ctx, library)
	if err != nil {
		return "", err
	}
	var v *docindex.Version
	for _, candidate := range versions {
		if candidate.Name == version {
			v = candidate
			break
		}
	}
	if v == nil {
		return "", docindex.Errorf(docindex.ENOTFOUND, "version %s@%s not found", library, version)
	}

	opts, err := m.store.GetScraperOptions(ctx, v.ID)
	if docindex.ErrorCode(err) == docindex.ENOTFOUND {
		return "", docindex.Errorf(docindex.EINVALID, "no stored scraper options for %s@%s", library, version)
	} else if err != nil {
		return "", err
	}

	pages, err := m.store.GetPagesByVersionID(ctx, v.ID)
	if err != nil {
		return "", err
	}
	if len(pages) == 0 {
		return m.EnqueueScrapeJob(ctx, library, version, *opts)
	}

	refresh := *opts
	refresh.IsRefresh = true
	refresh.InitialQueue = make([]docindex.QueueItem, 0, len(pages))
	for _, p := range pages {
		refresh.InitialQueue = append(refresh.InitialQueue, docindex.QueueItem{
			URL:    p.URL,
			Depth:  p.Depth,
			PageID: p.ID,
			ETag:   p.ETag,
		})
	}
	return m.EnqueueScrapeJob(ctx, library, version, refresh)
}

// cancelExisting cancels every unfinished job for library@version and
// waits for each to settle.
func (m *Manager) cancelExisting(ctx context.Context, library, version string) error {
	m.mu.Lock()
	var ids []string
	for id, rec := range m.jobs {
		if rec.job.Library == library && rec.job.Version == version && !rec.job.Status.IsTerminal() {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.logger.Info("cancelling existing job", "job", id, "library", library, "version", version)
		if err := m.CancelJob(ctx, id); err != nil {
			return err
		}
		if err := m.WaitForJobCompletion(ctx, id); err != nil && ctx.Err() != nil {
			return err
		}
	}
	return nil
}

// GetJob returns a snapshot of the job.
func (m *Manager) GetJob(id string) (*docindex.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.jobs[id]
	if !ok {
		return nil, docindex.Errorf(docindex.ENOTFOUND, "job %s not found", id)
	}
	j := m.snapshot(rec)
	return &j, nil
}

// GetJobs returns snapshots of matching jobs in creation order.
func (m *Manager) GetJobs(filter docindex.JobFilter) []*docindex.Job {
	m.mu.Lock()
	recs := make([]*record, 0, len(m.jobs))
	for _, rec := range m.jobs {
		if filter.Match(&rec.job) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	jobs := make([]*docindex.Job, len(recs))
	for i, rec := range recs {
		j := m.snapshot(rec)
		jobs[i] = &j
	}
	m.mu.Unlock()
	return jobs
}

// CancelJob cancels a queued job immediately and asks a running one to
// stop. Jobs already finishing or finished are left alone.
func (m *Manager) CancelJob(ctx context.Context, id string) error {
	m.mu.Lock()
	rec, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return docindex.Errorf(docindex.ENOTFOUND, "job %s not found", id)
	}

	switch rec.job.Status {
	case docindex.JobQueued:
		m.removeFromQueue(id)
		m.finish(rec, docindex.JobCancelled, nil)
		m.unlockAndPersist(change{job: m.snapshot(rec), status: true, list: true})
		close(rec.done)
		m.logger.Info("job cancelled", "job", id)
	case docindex.JobRunning:
		rec.job.Status = docindex.JobCancelling
		rec.cancel()
		m.unlockAndPersist(change{job: m.snapshot(rec), status: true, list: true})
		m.logger.Info("job cancelling", "job", id)
	default:
		m.mu.Unlock()
	}
	return nil
}

// WaitForJobCompletion blocks until the job is terminal. It returns the
// job's error if it failed and nil if it completed or was cancelled.
func (m *Manager) WaitForJobCompletion(ctx context.Context, id string) error {
	m.mu.Lock()
	rec, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return docindex.Errorf(docindex.ENOTFOUND, "job %s not found", id)
	}

	select {
	case <-rec.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.job.Status == docindex.JobFailed {
		return rec.err
	}
	return nil
}

// ClearCompletedJobs removes terminal jobs from the table.
func (m *Manager) ClearCompletedJobs() int {
	m.mu.Lock()
	n := 0
	for id, rec := range m.jobs {
		if rec.job.Status.IsTerminal() {
			delete(m.jobs, id)
			n++
		}
	}
	if n == 0 {
		m.mu.Unlock()
		return 0
	}
	m.unlockAndPersist(change{list: true})
	return n
}

// dispatch starts queued jobs while capacity remains.
func (m *Manager) dispatch() {
	m.mu.Lock()
	var changes []change
	var start []*record
	for m.started && m.active < m.concurrency && len(m.queue) > 0 {
		id := m.queue[0]
		m.queue = m.queue[1:]

		rec, ok := m.jobs[id]
		if !ok || rec.job.Status != docindex.JobQueued {
			continue
		}
		startedAt := m.now()
		rec.job.Status = docindex.JobRunning
		rec.job.StartedAt = &startedAt
		m.active++

		start = append(start, rec)
		changes = append(changes, change{job: m.snapshot(rec), status: true, list: true})
	}
	for _, rec := range start {
		m.wg.Add(1)
		go m.run(rec)
	}
	m.unlockAndPersist(changes...)
}

// run executes a job on the runner and settles its outcome.
func (m *Manager) run(rec *record) {
	defer m.wg.Done()

	m.mu.Lock()
	job := m.snapshot(rec)
	m.mu.Unlock()

	m.logger.Info("job started", "job", job.ID, "library", job.Library, "version", job.Version)

	err := m.execute(rec, &job)
	m.complete(rec, err)
	m.dispatch()
}

func (m *Manager) execute(rec *record, job *docindex.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return m.runner.ExecuteJob(rec.ctx, job, Callbacks{
		OnProgress: func(_ context.Context, _ *docindex.Job, e docindex.ProgressEvent) error {
			m.progress(rec, e)
			return nil
		},
		OnError: func(_ context.Context, job *docindex.Job, err error) {
			m.logger.Warn("job error", "job", job.ID, "err", err)
		},
	})
}

// complete maps a run's outcome to a terminal status.
func (m *Manager) complete(rec *record, err error) {
	m.mu.Lock()
	m.active--

	var changes []change
	status := rec.job.Status
	switch {
	case status == docindex.JobCancelling:
		m.finish(rec, docindex.JobCancelled, nil)
	case err != nil && docindex.IsCanceled(err):
		rec.job.Status = docindex.JobCancelling
		changes = append(changes, change{job: m.snapshot(rec), status: true})
		m.finish(rec, docindex.JobCancelled, nil)
	case err != nil:
		m.finish(rec, docindex.JobFailed, err)
	default:
		m.finish(rec, docindex.JobCompleted, nil)
	}
	changes = append(changes, change{job: m.snapshot(rec), status: true, list: true, library: rec.job.Status == docindex.JobCompleted})

	job := rec.job
	m.unlockAndPersist(changes...)
	close(rec.done)

	switch job.Status {
	case docindex.JobFailed:
		m.logger.Error("job failed", "job", job.ID, "library", job.Library, "version", job.Version, "err", err)
	default:
		m.logger.Info("job finished", "job", job.ID, "library", job.Library, "version", job.Version, "status", job.Status)
	}
}

// progress records a progress event on the job.
func (m *Manager) progress(rec *record, e docindex.ProgressEvent) {
	m.mu.Lock()
	if rec.job.Status.IsTerminal() {
		m.mu.Unlock()
		return
	}
	rec.job.Progress = &docindex.JobProgress{
		PagesScraped:    e.PagesScraped,
		TotalPages:      e.TotalPages,
		TotalDiscovered: e.TotalDiscovered,
		CurrentURL:      e.CurrentURL,
		Depth:           e.Depth,
		MaxDepth:        e.MaxDepth,
	}
	m.unlockAndPersist(change{job: m.snapshot(rec), progress: &e})
}

// finish moves rec to a terminal status. mu must be held. The caller
// closes rec.done once the change is persisted.
func (m *Manager) finish(rec *record, status docindex.JobStatus, err error) {
	if !rec.job.Status.CanTransitionTo(status) {
		m.logger.Warn("invalid job transition", "job", rec.job.ID, "from", rec.job.Status, "to", status)
	}
	finishedAt := m.now()
	rec.job.Status = status
	rec.job.FinishedAt = &finishedAt
	rec.err = err
	if err != nil {
		rec.job.Error = err.Error()
	}
	rec.cancel()
}

func (m *Manager) newRecord(library, version string, versionID int64, opts docindex.ScraperOptions, createdAt time.Time) *record {
	ctx, cancel := context.WithCancel(context.Background())
	return &record{
		job: docindex.Job{
			ID:        m.newID(),
			Library:   library,
			Version:   version,
			VersionID: versionID,
			Status:    docindex.JobQueued,
			CreatedAt: createdAt,
			Options:   opts,
		},
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// add inserts rec into the table and queue. mu must be held.
func (m *Manager) add(rec *record) {
	m.seq++
	rec.seq = m.seq
	m.jobs[rec.job.ID] = rec
	m.queue = append(m.queue, rec.job.ID)
}

// removeFromQueue drops id from the queue. mu must be held.
func (m *Manager) removeFromQueue(id string) {
	for i, qid := range m.queue {
		if qid == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

// snapshot copies a job for handing out. mu must be held.
func (m *Manager) snapshot(rec *record) docindex.Job {
	j := rec.job
	if j.Progress != nil {
		p := *j.Progress
		j.Progress = &p
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		j.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		j.FinishedAt = &t
	}
	return j
}

// change is a state change to mirror to the store and the event bus.
type change struct {
	job      docindex.Job
	status   bool
	list     bool
	library  bool
	progress *docindex.ProgressEvent
}

// unlockAndPersist releases mu and applies changes. persistMu is taken
// before mu is released.
func (m *Manager) unlockAndPersist(changes ...change) {
	m.persistMu.Lock()
	m.mu.Unlock()
	defer m.persistMu.Unlock()

	for _, c := range changes {
		m.apply(c)
	}
}

func (m *Manager) apply(c change) {
	// Store writes outlive the caller's context.
	ctx := context.Background()
	job := c.job

	if c.status {
		if err := m.store.UpdateVersionStatus(ctx, job.VersionID, job.Status.VersionStatus(), job.Error); err != nil {
			m.logger.Error("persisting job status failed", "job", job.ID, "status", job.Status, "err", err)
		}
		m.publish(docindex.Event{Type: docindex.EventJobStatusChange, Job: &job})
	}
	if c.progress != nil {
		if err := m.store.UpdateVersionProgress(ctx, job.VersionID, c.progress.PagesScraped, c.progress.TotalPages); err != nil {
			m.logger.Error("persisting job progress failed", "job", job.ID, "err", err)
		}
		m.publish(docindex.Event{Type: docindex.EventJobProgress, Job: &job, Progress: c.progress})
	}
	if c.library {
		m.publish(docindex.Event{Type: docindex.EventLibraryChange})
	}
	if c.list {
		m.publish(docindex.Event{Type: docindex.EventJobListChange})
	}
}

func (m *Manager) publish(e docindex.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

// recoverJobs demotes versions left running by a previous process and
// re-queues every queued version that has stored options.
func (m *Manager) recoverJobs(ctx context.Context) error {
	running, err := m.store.GetVersionsByStatus(ctx, []docindex.VersionStatus{docindex.VersionRunning})
	if err != nil {
		return err
	}
	for _, v := range running {
		if err := m.store.UpdateVersionStatus(ctx, v.ID, docindex.VersionQueued, ""); err != nil {
			return err
		}
		m.logger.Info("demoted interrupted job", "library", v.Library, "version", v.Name)
	}

	queued, err := m.store.GetVersionsByStatus(ctx, []docindex.VersionStatus{docindex.VersionQueued})
	if err != nil {
		return err
	}

	m.enqueueMu.Lock()
	defer m.enqueueMu.Unlock()

	recovered := 0
	for _, v := range queued {
		opts, err := m.store.GetScraperOptions(ctx, v.ID)
		if docindex.ErrorCode(err) == docindex.ENOTFOUND {
			msg := "no stored scraper options to recover from"
			if err := m.store.UpdateVersionStatus(ctx, v.ID, docindex.VersionFailed, msg); err != nil {
				return err
			}
			m.logger.Warn("cannot recover job", "library", v.Library, "version", v.Name)
			continue
		} else if err != nil {
			return err
		}

		o := *opts
		o.Library, o.Version = v.Library, v.Name
		o = o.WithDefaults()

		m.mu.Lock()
		if m.hasUnfinished(v.Library, v.Name) {
			m.mu.Unlock()
			continue
		}
		rec := m.newRecord(v.Library, v.Name, v.ID, o, v.CreatedAt)
		m.add(rec)
		m.unlockAndPersist(change{job: m.snapshot(rec), list: true})
		recovered++
	}

	if recovered > 0 {
		m.logger.Info("recovered jobs", "count", recovered)
	}
	return nil
}

// hasUnfinished reports whether library@version has a non-terminal job.
// mu must be held.
func (m *Manager) hasUnfinished(library, version string) bool {
	for _, rec := range m.jobs {
		if rec.job.Library == library && rec.job.Version == version && !rec.job.Status.IsTerminal() {
			return true
		}
	}
	return false
}

package jobs_test

import (
	"context"
	"sync"
	"time"

	"github.com/fwojciec/docindex"
	"github.com/fwojciec/docindex/jobs"
	"github.com/fwojciec/docindex/mock"
)

// memStore is an in-memory version table behind a mock.DocumentStore.
type memStore struct {
	mu       sync.Mutex
	versions []*docindex.Version
	history  map[int64][]docindex.VersionStatus
	messages map[int64]string
	options  map[int64]docindex.ScraperOptions
	pages    map[int64][]docindex.StoredPage
	progress map[int64][2]int
}

func newMemStore() *memStore {
	return &memStore{
		history:  make(map[int64][]docindex.VersionStatus),
		messages: make(map[int64]string),
		options:  make(map[int64]docindex.ScraperOptions),
		pages:    make(map[int64][]docindex.StoredPage),
		progress: make(map[int64][2]int),
	}
}

// addVersion seeds a version as a previous process would have left it.
func (s *memStore) addVersion(library, name string, status docindex.VersionStatus, opts *docindex.ScraperOptions) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(library, name, status, opts)
}

func (s *memStore) addLocked(library, name string, status docindex.VersionStatus, opts *docindex.ScraperOptions) int64 {
	id := int64(len(s.versions) + 1)
	s.versions = append(s.versions, &docindex.Version{
		ID:        id,
		Library:   library,
		Name:      name,
		Status:    status,
		CreatedAt: time.Now().Add(time.Duration(id) * time.Millisecond),
	})
	if opts != nil {
		s.options[id] = *opts
	}
	return id
}

func (s *memStore) statuses(id int64) []docindex.VersionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]docindex.VersionStatus(nil), s.history[id]...)
}

func (s *memStore) status(id int64) docindex.VersionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[id-1].Status
}

func (s *memStore) message(id int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id]
}

func (s *memStore) storedOptions(id int64) (docindex.ScraperOptions, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.options[id]
	return o, ok
}

func (s *memStore) storedProgress(id int64) [2]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress[id]
}

func (s *memStore) mock() *mock.DocumentStore {
	return &mock.DocumentStore{
		EnsureLibraryAndVersionFn: func(_ context.Context, library, version string) (int64, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			for _, v := range s.versions {
				if v.Library == library && v.Name == version {
					return v.ID, nil
				}
			}
			return s.addLocked(library, version, docindex.VersionNotIndexed, nil), nil
		},
		UpdateVersionStatusFn: func(_ context.Context, id int64, status docindex.VersionStatus, msg string) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			if id < 1 || int(id) > len(s.versions) {
				return docindex.Errorf(docindex.ENOTFOUND, "version not found")
			}
			s.versions[id-1].Status = status
			s.history[id] = append(s.history[id], status)
			s.messages[id] = msg
			return nil
		},
		UpdateVersionProgressFn: func(_ context.Context, id int64, pages, maxPages int) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.progress[id] = [2]int{pages, maxPages}
			return nil
		},
		StoreScraperOptionsFn: func(_ context.Context, id int64, opts docindex.ScraperOptions) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.options[id] = opts
			return nil
		},
		GetScraperOptionsFn: func(_ context.Context, id int64) (*docindex.ScraperOptions, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			o, ok := s.options[id]
			if !ok {
				return nil, docindex.Errorf(docindex.ENOTFOUND, "no options")
			}
			return &o, nil
		},
		GetPagesByVersionIDFn: func(_ context.Context, id int64) ([]docindex.StoredPage, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.pages[id], nil
		},
		GetVersionsByStatusFn: func(_ context.Context, statuses []docindex.VersionStatus) ([]*docindex.Version, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			var out []*docindex.Version
			for _, v := range s.versions {
				for _, st := range statuses {
					if v.Status == st {
						c := *v
						out = append(out, &c)
					}
				}
			}
			return out, nil
		},
		FindVersionsFn: func(_ context.Context, library string) ([]*docindex.Version, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			var out []*docindex.Version
			for _, v := range s.versions {
				if library == "" || v.Library == library {
					c := *v
					out = append(out, &c)
				}
			}
			return out, nil
		},
	}
}

// runnerFunc adapts a function to jobs.Runner.
type runnerFunc func(ctx context.Context, job *docindex.Job, cb jobs.Callbacks) error

func (f runnerFunc) ExecuteJob(ctx context.Context, job *docindex.Job, cb jobs.Callbacks) error {
	return f(ctx, job, cb)
}

// blockUntilCanceled is a runner that signals start and runs until its job
// is cancelled.
func blockUntilCanceled(started chan<- string) runnerFunc {
	return func(ctx context.Context, job *docindex.Job, _ jobs.Callbacks) error {
		started <- job.ID
		<-ctx.Done()
		return docindex.ErrCanceled(ctx.Err())
	}
}

func testOptions() docindex.ScraperOptions {
	return docindex.ScraperOptions{URL: "https://example.com/docs/"}
}

package rod

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/fwojciec/docindex"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// DefaultMaxPages is how many pages one Chrome process renders before it
// is replaced. Chrome's resident memory keeps growing under load even when
// every page is closed.
const DefaultMaxPages = 75

// session is one running Chrome process.
type session struct {
	browser *rod.Browser
	pid     int
	stop    func() error

	leases  int
	served  int
	retired bool
}

// BrowserManager hands out the shared Chrome process one page at a time.
// After maxPages pages a new process is started for later pages; the old
// one is shut down once its last page is released.
//
// BrowserManager is safe for concurrent use.
type BrowserManager struct {
	maxPages  int
	bin       string
	noSandbox bool
	logger    *slog.Logger
	start     func() (*session, error)

	mu      sync.Mutex
	current *session
	closed  bool
}

// ManagerOption configures a BrowserManager.
type ManagerOption func(*BrowserManager)

// WithMaxPages sets how many pages a browser renders before it is replaced.
func WithMaxPages(n int) ManagerOption {
	return func(bm *BrowserManager) {
		if n > 0 {
			bm.maxPages = n
		}
	}
}

// WithBrowserBin uses the Chrome binary at path instead of looking one up
// or downloading it.
func WithBrowserBin(path string) ManagerOption {
	return func(bm *BrowserManager) {
		bm.bin = path
	}
}

// WithNoSandbox disables the Chrome sandbox. Chrome refuses to start as
// root inside most containers otherwise.
func WithNoSandbox(v bool) ManagerOption {
	return func(bm *BrowserManager) {
		bm.noSandbox = v
	}
}

// WithManagerLogger logs browser starts, replacements and failures.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(bm *BrowserManager) {
		bm.logger = logger
	}
}

// NewBrowserManager starts a headless Chrome process. Close must be called
// when the manager is no longer needed.
func NewBrowserManager(opts ...ManagerOption) (*BrowserManager, error) {
	bm := &BrowserManager{
		maxPages: DefaultMaxPages,
		logger:   slog.New(slog.DiscardHandler),
	}
	bm.start = bm.launch
	for _, opt := range opts {
		opt(bm)
	}

	s, err := bm.start()
	if err != nil {
		return nil, err
	}
	bm.current = s
	bm.logger.Debug("browser started", "pid", s.pid)
	return bm, nil
}

// Acquire returns the browser to render one page on. The returned release
// func must be called once the page is closed.
func (bm *BrowserManager) Acquire() (*rod.Browser, func(), error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.closed {
		return nil, nil, docindex.Errorf(docindex.EINVALID, "browser manager is closed")
	}

	if bm.current == nil {
		s, err := bm.start()
		if err != nil {
			return nil, nil, err
		}
		bm.current = s
		bm.logger.Debug("browser started", "pid", s.pid)
	} else if bm.current.served >= bm.maxPages {
		bm.replaceLocked()
	}

	s := bm.current
	s.leases++
	s.served++

	var once sync.Once
	release := func() {
		once.Do(func() { bm.release(s) })
	}
	return s.browser, release, nil
}

// replaceLocked swaps in a fresh browser. If it cannot be started the
// current one keeps serving.
func (bm *BrowserManager) replaceLocked() {
	old := bm.current
	s, err := bm.start()
	if err != nil {
		bm.logger.Warn("browser restart failed", "pid", old.pid, "err", err)
		return
	}
	bm.current = s
	bm.logger.Debug("browser replaced", "old_pid", old.pid, "pid", s.pid, "pages", old.served)

	old.retired = true
	if old.leases == 0 {
		bm.shutdown(old)
	}
}

func (bm *BrowserManager) release(s *session) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	s.leases--
	if s.retired && s.leases == 0 {
		bm.shutdown(s)
	}
}

func (bm *BrowserManager) shutdown(s *session) {
	if err := s.stop(); err != nil {
		bm.logger.Warn("browser shutdown failed", "pid", s.pid, "err", err)
	}
}

// Close shuts down the running browser, including pages still open on it.
// Close is safe to call multiple times.
func (bm *BrowserManager) Close() error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.closed {
		return nil
	}
	bm.closed = true
	if bm.current == nil {
		return nil
	}
	s := bm.current
	bm.current = nil
	return s.stop()
}

// LauncherPID returns the process ID of the current browser, or 0 when none
// is running.
func (bm *BrowserManager) LauncherPID() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.current == nil {
		return 0
	}
	return bm.current.pid
}

// launch starts Chrome with flags that keep background tabs rendering at
// full speed.
func (bm *BrowserManager) launch() (*session, error) {
	l := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Set("disable-hang-monitor").
		Leakless(true).
		NoSandbox(bm.noSandbox).
		Headless(true)
	if bm.bin != "" {
		l = l.Bin(bm.bin)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	return &session{
		browser: browser,
		pid:     l.PID(),
		stop: func() error {
			err := browser.Close()
			l.Kill()
			return err
		},
	}, nil
}

// Package rod provides a docindex.Fetcher that renders pages in headless
// Chrome via go-rod. It is used for JavaScript-heavy sites and as the
// escalation target when plain HTTP hits a bot challenge.
package rod

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fwojciec/docindex"
	dochttp "github.com/fwojciec/docindex/http"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Defaults for a Fetcher.
const (
	// DefaultFetchTimeout bounds navigation and rendering of one page.
	// Kept consistent with http.DefaultFetchTimeout.
	DefaultFetchTimeout = 30 * time.Second
	// DefaultLoadingWait bounds how long to wait for loading indicators
	// to disappear after the load event.
	DefaultLoadingWait = 5 * time.Second
)

// loadingSelector matches common spinners and skeleton placeholders.
const loadingSelector = `[aria-busy="true"], .loading, .spinner, .skeleton, [data-loading="true"]`

// renderScript inlines same-origin iframes and open shadow roots into the
// light DOM, then returns the serialized document.
const renderScript = `() => {
  for (const frame of document.querySelectorAll('iframe')) {
    let doc = null;
    try { doc = frame.contentDocument; } catch (e) {}
    if (!doc || !doc.body) continue;
    const div = document.createElement('div');
    div.setAttribute('data-docindex-iframe', frame.getAttribute('src') || '');
    div.innerHTML = doc.body.innerHTML;
    frame.replaceWith(div);
  }
  const expand = (root) => {
    for (const el of root.querySelectorAll('*')) {
      if (!el.shadowRoot || el.hasAttribute('data-docindex-shadow')) continue;
      expand(el.shadowRoot);
      el.setAttribute('data-docindex-shadow', '');
      const div = document.createElement('div');
      div.innerHTML = el.shadowRoot.innerHTML;
      el.appendChild(div);
    }
  };
  expand(document);
  return '<!DOCTYPE html>' + document.documentElement.outerHTML;
}`

// Ensure Fetcher implements docindex.Fetcher at compile time.
var _ docindex.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves rendered HTML using Chrome browser automation.
// The browser is launched on first use. Fetcher never retries.
//
// Fetcher is safe for concurrent use by multiple goroutines.
type Fetcher struct {
	timeout     time.Duration
	loadingWait time.Duration
	cache       *ResourceCache
	managerOpts []ManagerOption
	launch      func(opts ...ManagerOption) (*BrowserManager, error)

	mu      sync.Mutex
	manager *BrowserManager
	closed  atomic.Bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithFetchTimeout sets the timeout for fetching a single page.
// Defaults to DefaultFetchTimeout if not specified.
func WithFetchTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithLoadingWait bounds the wait for loading indicators.
func WithLoadingWait(d time.Duration) Option {
	return func(f *Fetcher) {
		f.loadingWait = d
	}
}

// WithResourceCache serves sub-resources through c.
func WithResourceCache(c *ResourceCache) Option {
	return func(f *Fetcher) {
		f.cache = c
	}
}

// WithManagerOptions configures the BrowserManager launched by the Fetcher.
func WithManagerOptions(opts ...ManagerOption) Option {
	return func(f *Fetcher) {
		f.managerOpts = append(f.managerOpts, opts...)
	}
}

// NewFetcher creates a new Fetcher. No browser is started until the first
// Fetch. Close must be called when the Fetcher is no longer needed.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:     DefaultFetchTimeout,
		loadingWait: DefaultLoadingWait,
		launch:      NewBrowserManager,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CanFetch reports whether source is an http or https URL.
func (f *Fetcher) CanFetch(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// browserManager returns the running BrowserManager, launching it if needed.
func (f *Fetcher) browserManager() (*BrowserManager, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed.Load() {
		return nil, docindex.Errorf(docindex.EINVALID, "fetcher is closed")
	}
	if f.manager == nil {
		m, err := f.launch(f.managerOpts...)
		if err != nil {
			return nil, err
		}
		f.manager = m
	}
	return f.manager, nil
}

// Fetch navigates to source and returns the rendered HTML.
func (f *Fetcher) Fetch(ctx context.Context, source string, opts docindex.FetchOptions) (*docindex.RawContent, error) {
	if f.closed.Load() {
		return nil, docindex.Errorf(docindex.EINVALID, "fetcher is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, docindex.ErrCanceled(err)
	}
	if !f.CanFetch(source) {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindInvalidURL, URL: source}
	}

	bm, err := f.browserManager()
	if err != nil {
		if docindex.ErrorCode(err) == docindex.EINVALID {
			return nil, err
		}
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindFetch, URL: source, Err: err}
	}

	browser, release, err := bm.Acquire()
	if err != nil {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindFetch, URL: source, Err: err}
	}
	raw, err := f.render(ctx, browser, source, opts)
	release()
	if err != nil {
		if ctx.Err() != nil {
			return nil, docindex.ErrCanceled(ctx.Err())
		}
		return nil, err
	}
	return raw, nil
}

func (f *Fetcher) render(ctx context.Context, browser *rod.Browser, source string, opts docindex.FetchOptions) (*docindex.RawContent, error) {
	timeout := f.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	pageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindFetch, URL: source, Err: err}
	}
	defer page.Close()
	page = page.Context(pageCtx)

	if err := applyHeaders(page, opts.Headers); err != nil {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindFetch, URL: source, Err: err}
	}

	if f.cache != nil {
		router := page.HijackRequests()
		if err := router.Add("*", "", f.serveResource); err != nil {
			return nil, &docindex.ScraperError{Kind: docindex.ErrKindFetch, URL: source, Err: err}
		}
		go router.Run()
		defer func() { _ = router.Stop() }()
	}

	doc := &documentResponse{}
	go page.EachEvent(func(e *proto.NetworkResponseReceived) {
		if e.Type == proto.NetworkResourceTypeDocument && e.FrameID == page.FrameID {
			doc.set(e.Response)
		}
	})()

	if err := page.Navigate(source); err != nil {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindFetch, URL: source, Err: err}
	}
	if err := page.WaitLoad(); err != nil {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindFetch, URL: source, Err: err}
	}
	f.waitForContent(page)

	res, err := page.Eval(renderScript)
	if err != nil {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindFetch, URL: source, Err: err}
	}
	html := res.Value.Str()

	finalURL := source
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	status, header := doc.get()
	switch {
	case status == http.StatusNotFound:
		return &docindex.RawContent{Status: docindex.FetchNotFound, SourceURL: finalURL}, nil
	case status == http.StatusForbidden || status == http.StatusServiceUnavailable:
		if dochttp.IsChallenge(header, []byte(html)) {
			return nil, &docindex.ScraperError{Kind: docindex.ErrKindChallenge, URL: source, StatusCode: status}
		}
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindHTTPStatus, URL: source, StatusCode: status}
	case status >= 400:
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindHTTPStatus, URL: source, StatusCode: status}
	}

	return &docindex.RawContent{
		Content:      []byte(html),
		MimeType:     "text/html",
		Charset:      "utf-8",
		ETag:         header.Get("ETag"),
		LastModified: header.Get("Last-Modified"),
		SourceURL:    finalURL,
		Status:       docindex.FetchSuccess,
	}, nil
}

// waitForContent waits, bounded by loadingWait, for loading indicators to
// disappear. A timeout here is not an error.
func (f *Fetcher) waitForContent(page *rod.Page) {
	if f.loadingWait <= 0 {
		return
	}
	js := fmt.Sprintf(`() => document.querySelector(%q) === null`, loadingSelector)
	_ = page.Timeout(f.loadingWait).Wait(rod.Eval(js))
}

// serveResource answers cacheable sub-resource requests from the shared
// cache, loading and caching them on a miss.
func (f *Fetcher) serveResource(h *rod.Hijack) {
	if !Cacheable(h.Request.Type()) || h.Request.Method() != http.MethodGet {
		h.ContinueRequest(&proto.FetchContinueRequest{})
		return
	}

	key := h.Request.URL().String()
	if r, ok := f.cache.Get(key); ok {
		h.Response.SetHeader("Content-Type", r.ContentType)
		h.Response.SetBody(r.Body)
		return
	}

	if err := h.LoadResponse(http.DefaultClient, true); err != nil {
		h.Response.Fail(proto.NetworkErrorReasonFailed)
		return
	}
	if h.Response.Payload().ResponseCode == http.StatusOK {
		f.cache.Add(key, Resource{
			ContentType: h.Response.Headers().Get("Content-Type"),
			Body:        h.Response.Payload().Body,
		})
	}
}

// applyHeaders sends caller headers with every request of the page. A
// User-Agent header overrides the browser's own.
func applyHeaders(page *rod.Page, headers map[string]string) error {
	var dict []string
	for k, v := range headers {
		if strings.EqualFold(k, "User-Agent") {
			if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: v}); err != nil {
				return err
			}
			continue
		}
		dict = append(dict, k, v)
	}
	if len(dict) == 0 {
		return nil
	}
	_, err := page.SetExtraHeaders(dict)
	return err
}

// documentResponse records the main document's response.
type documentResponse struct {
	mu     sync.Mutex
	status int
	header http.Header
}

func (d *documentResponse) set(r *proto.NetworkResponse) {
	if r == nil {
		return
	}
	header := http.Header{}
	for k, v := range r.Headers {
		header.Set(k, v.Str())
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = r.Status
	d.header = header
}

func (d *documentResponse) get() (int, http.Header) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.header == nil {
		return d.status, http.Header{}
	}
	return d.status, d.header
}

// LauncherPID returns the process ID of the browser launcher, or 0 when no
// browser is running.
func (f *Fetcher) LauncherPID() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.manager == nil {
		return 0
	}
	return f.manager.LauncherPID()
}

// Close releases browser resources. Close is safe to call multiple times.
func (f *Fetcher) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.manager == nil {
		return nil
	}
	err := f.manager.Close()
	f.manager = nil
	return err
}

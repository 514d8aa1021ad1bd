// Package http provides the plain HTTP implementation of docindex.Fetcher
// and sitemap discovery. It does not execute JavaScript; pages behind bot
// challenges are reported so a browser fetcher can take over.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/fwojciec/docindex"
	"github.com/gabriel-vasile/mimetype"
)

// Defaults for a Fetcher.
const (
	// DefaultFetchTimeout bounds a single request attempt.
	// Kept consistent with rod.DefaultFetchTimeout.
	DefaultFetchTimeout = 30 * time.Second
	DefaultMaxRetries   = 6
	DefaultRetryDelay   = time.Second

	// maxBodySize caps how much of a response body is read.
	maxBodySize = 32 << 20
	// challengeSniffSize caps how much of a 403 body is inspected.
	challengeSniffSize = 64 << 10
)

// Ensure Fetcher implements docindex.Fetcher at compile time.
var _ docindex.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves web resources over HTTP with retries and exponential
// backoff. Every request carries a randomized but consistent browser
// header profile; caller headers take precedence.
type Fetcher struct {
	client     *http.Client
	noRedirect *http.Client
	transport  http.RoundTripper
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	limiter    docindex.DomainLimiter
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for a single request attempt.
// Defaults to DefaultFetchTimeout if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxRetries sets how many times a transient failure is retried.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithRetryDelay sets the base delay; attempt n waits base*2^n.
func WithRetryDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.retryDelay = d
	}
}

// WithRateLimiter throttles requests per host.
func WithRateLimiter(l docindex.DomainLimiter) Option {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// WithTransport replaces the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		f.transport = rt
	}
}

// WithSleep replaces the function used to wait between retries.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(f *Fetcher) {
		f.sleep = fn
	}
}

// NewFetcher creates a new HTTP Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:    DefaultFetchTimeout,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		transport:  http.DefaultTransport,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.client = &http.Client{Transport: f.transport}
	f.noRedirect = &http.Client{
		Transport: f.transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return f
}

// CanFetch reports whether source is an http or https URL.
func (f *Fetcher) CanFetch(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Fetch retrieves the resource at source. 304 and 404 responses are
// returned as FetchNotModified and FetchNotFound. Status codes 408, 429,
// 5xx and transient network errors are retried; other failures are not.
func (f *Fetcher) Fetch(ctx context.Context, source string, opts docindex.FetchOptions) (*docindex.RawContent, error) {
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindInvalidURL, URL: source, Err: err}
	}

	for attempt := 0; ; attempt++ {
		raw, retry, err := f.attempt(ctx, u, opts)
		if !retry {
			return raw, err
		}
		if attempt >= f.maxRetries {
			exhausted := &docindex.ScraperError{Kind: docindex.ErrKindRetryExhausted, URL: source, Retryable: true, Err: err}
			var statusErr *docindex.ScraperError
			if errors.As(err, &statusErr) {
				exhausted.StatusCode = statusErr.StatusCode
			}
			return nil, exhausted
		}
		if err := f.sleep(ctx, f.retryDelay<<attempt); err != nil {
			return nil, docindex.ErrCanceled(err)
		}
	}
}

// attempt performs one request. retry reports whether the failure is transient.
func (f *Fetcher) attempt(ctx context.Context, u *url.URL, opts docindex.FetchOptions) (raw *docindex.RawContent, retry bool, err error) {
	source := u.String()

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, u.Hostname()); err != nil {
			return nil, false, docindex.ErrCanceled(err)
		}
	}

	timeout := f.timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, source, nil)
	if err != nil {
		return nil, false, &docindex.ScraperError{Kind: docindex.ErrKindInvalidURL, URL: source, Err: err}
	}
	req.Header = randomHeaders()
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}
	if opts.ETag != "" {
		req.Header.Set("If-None-Match", opts.ETag)
	}

	client := f.client
	if opts.DisableRedirects {
		client = f.noRedirect
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, docindex.ErrCanceled(ctx.Err())
		}
		if isFatalNetError(err) {
			return nil, false, &docindex.ScraperError{Kind: docindex.ErrKindFetch, URL: source, Err: err}
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()
	status := resp.StatusCode

	switch {
	case status == http.StatusNotModified:
		return &docindex.RawContent{Status: docindex.FetchNotModified, SourceURL: finalURL, ETag: opts.ETag}, false, nil
	case status == http.StatusNotFound:
		return &docindex.RawContent{Status: docindex.FetchNotFound, SourceURL: finalURL}, false, nil
	case status >= 200 && status < 300:
		return readContent(resp, finalURL)
	case status >= 300 && status < 400:
		return nil, false, &docindex.ScraperError{
			Kind:       docindex.ErrKindRedirect,
			URL:        source,
			StatusCode: status,
			Err:        fmt.Errorf("redirect to %s", resp.Header.Get("Location")),
		}
	case status == http.StatusForbidden:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, challengeSniffSize))
		if IsChallenge(resp.Header, body) {
			return nil, false, &docindex.ScraperError{Kind: docindex.ErrKindChallenge, URL: source, StatusCode: status}
		}
		return nil, false, &docindex.ScraperError{Kind: docindex.ErrKindHTTPStatus, URL: source, StatusCode: status}
	case isRetryableStatus(status):
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, challengeSniffSize))
		return nil, true, &docindex.ScraperError{Kind: docindex.ErrKindHTTPStatus, URL: source, StatusCode: status, Retryable: true}
	default:
		return nil, false, &docindex.ScraperError{Kind: docindex.ErrKindHTTPStatus, URL: source, StatusCode: status}
	}
}

func readContent(resp *http.Response, finalURL string) (*docindex.RawContent, bool, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, true, fmt.Errorf("reading body: %w", err)
	}

	mimeType, charset := parseContentType(resp.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType, charset = parseContentType(mimetype.Detect(body).String())
	}

	return &docindex.RawContent{
		Content:      body,
		MimeType:     mimeType,
		Charset:      charset,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		SourceURL:    finalURL,
		Status:       docindex.FetchSuccess,
	}, false, nil
}

func parseContentType(v string) (mimeType, charset string) {
	if v == "" {
		return "", ""
	}
	mt, params, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(v, ";")[0])), ""
	}
	return mt, strings.ToLower(params["charset"])
}

// isRetryableStatus reports whether a status code is worth retrying.
// 525 is Cloudflare's SSL handshake failure.
func isRetryableStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status == 525 ||
		(status >= 500 && status < 600)
}

// isFatalNetError reports network errors that retrying cannot fix.
func isFatalNetError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Close releases resources. The underlying transport's idle connections
// are closed.
func (f *Fetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

package http

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/beevik/etree"
	"github.com/fwojciec/docindex"
)

// Sitemap limits.
const (
	DefaultMaxSitemaps    = 50
	DefaultMaxSitemapURLs = 50000
)

var _ docindex.SitemapService = (*SitemapService)(nil)

// SitemapService reads robots.txt and sitemaps through a docindex.Fetcher,
// so sitemap requests are paced and retried like page requests. XML
// sitemaps, sitemap indexes, gzip-compressed sitemaps and plain text URL
// lists are understood.
type SitemapService struct {
	fetcher     docindex.Fetcher
	maxSitemaps int
	maxURLs     int
}

// SitemapOption configures a SitemapService.
type SitemapOption func(*SitemapService)

// WithMaxSitemaps caps how many sitemap documents one discovery reads.
func WithMaxSitemaps(n int) SitemapOption {
	return func(s *SitemapService) {
		s.maxSitemaps = n
	}
}

// WithMaxSitemapURLs caps how many URLs one discovery returns.
func WithMaxSitemapURLs(n int) SitemapOption {
	return func(s *SitemapService) {
		s.maxURLs = n
	}
}

// NewSitemapService returns a SitemapService fetching with f. A nil f gets
// a plain Fetcher.
func NewSitemapService(f docindex.Fetcher, opts ...SitemapOption) *SitemapService {
	if f == nil {
		f = NewFetcher()
	}
	s := &SitemapService{
		fetcher:     f,
		maxSitemaps: DefaultMaxSitemaps,
		maxURLs:     DefaultMaxSitemapURLs,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DiscoverURLs returns the page URLs listed in the sitemaps of baseURL's
// host. Only URLs on that host (any port) and under baseURL's directory are
// returned.
// A site without sitemaps yields an empty list. A broken child sitemap is
// skipped; the error is returned only when no sitemap could be read.
func (s *SitemapService) DiscoverURLs(ctx context.Context, baseURL string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, docindex.ErrCanceled(err)
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindInvalidURL, URL: baseURL, Err: err}
	}

	d := &discovery{
		svc:      s,
		base:     base,
		prefix:   dirPrefix(base.Path),
		visited:  make(map[string]bool),
		seenURLs: make(map[string]bool),
		urls:     []string{},
	}

	candidates, err := d.candidates(ctx)
	if err != nil {
		return nil, err
	}

	var lastErr error
	read := 0
	for _, sm := range candidates {
		ok, err := d.read(ctx, sm, 0)
		if docindex.IsCanceled(err) {
			return nil, err
		}
		if err != nil {
			lastErr = err
		}
		if ok {
			read++
		}
		if d.full() {
			break
		}
	}
	if read == 0 && lastErr != nil {
		return nil, lastErr
	}
	return d.urls, nil
}

// maxIndexDepth bounds sitemap index nesting.
const maxIndexDepth = 3

// discovery is the state of one DiscoverURLs call.
type discovery struct {
	svc      *SitemapService
	base     *url.URL
	prefix   string
	visited  map[string]bool
	seenURLs map[string]bool
	urls     []string
}

func (d *discovery) full() bool {
	return d.svc.maxURLs > 0 && len(d.urls) >= d.svc.maxURLs
}

// candidates lists sitemap locations: those declared in robots.txt, or
// the conventional paths at the site root and under the base directory.
func (d *discovery) candidates(ctx context.Context) ([]string, error) {
	root := &url.URL{Scheme: d.base.Scheme, Host: d.base.Host}

	declared, err := d.robots(ctx, root.ResolveReference(&url.URL{Path: "/robots.txt"}).String())
	if err != nil {
		return nil, err
	}
	if len(declared) > 0 {
		return declared, nil
	}

	paths := []string{"/sitemap.xml", "/sitemap_index.xml"}
	if d.prefix != "/" {
		paths = append([]string{d.prefix + "sitemap.xml"}, paths...)
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = root.ResolveReference(&url.URL{Path: p}).String()
	}
	return out, nil
}

// robots returns the Sitemap directives of robots.txt. A missing or
// unreadable robots.txt is not an error.
func (d *discovery) robots(ctx context.Context, robotsURL string) ([]string, error) {
	body, err := d.fetch(ctx, robotsURL)
	if err != nil || body == nil {
		if docindex.IsCanceled(err) {
			return nil, err
		}
		return nil, nil
	}

	var out []string
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "sitemap") {
			continue
		}
		if v := strings.TrimSpace(value); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// read fetches one sitemap and collects its URLs. ok reports whether the
// document existed and parsed.
func (d *discovery) read(ctx context.Context, sitemapURL string, depth int) (ok bool, err error) {
	if d.visited[sitemapURL] || d.full() {
		return false, nil
	}
	if d.svc.maxSitemaps > 0 && len(d.visited) >= d.svc.maxSitemaps {
		return false, nil
	}
	d.visited[sitemapURL] = true

	body, err := d.fetch(ctx, sitemapURL)
	if err != nil || body == nil {
		return false, err
	}

	if !looksLikeXML(body) {
		for _, loc := range textLocations(body) {
			d.add(loc)
		}
		return true, nil
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return false, fmt.Errorf("parsing sitemap %s: %w", sitemapURL, err)
	}
	root := doc.Root()
	if root == nil {
		return false, fmt.Errorf("parsing sitemap %s: no root element", sitemapURL)
	}

	switch root.Tag {
	case "sitemapindex":
		if depth >= maxIndexDepth {
			return true, nil
		}
		for _, loc := range locations(root, "sitemap") {
			if _, err := d.read(ctx, loc, depth+1); docindex.IsCanceled(err) {
				return true, err
			}
		}
	case "urlset":
		for _, loc := range locations(root, "url") {
			d.add(loc)
		}
	default:
		return false, fmt.Errorf("parsing sitemap %s: unexpected root <%s>", sitemapURL, root.Tag)
	}
	return true, nil
}

// add records a page URL if it is in scope.
func (d *discovery) add(raw string) {
	if d.full() || d.seenURLs[raw] {
		return
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Hostname(), d.base.Hostname()) {
		return
	}
	if !underPrefix(u.Path, d.prefix) {
		return
	}
	d.seenURLs[raw] = true
	d.urls = append(d.urls, raw)
}

// fetch returns the body of target, nil when it does not exist.
// Compressed bodies are inflated.
func (d *discovery) fetch(ctx context.Context, target string) ([]byte, error) {
	raw, err := d.svc.fetcher.Fetch(ctx, target, docindex.FetchOptions{})
	if err != nil {
		return nil, err
	}
	if raw.Status != docindex.FetchSuccess {
		return nil, nil
	}
	body := raw.Content
	if isGzip(body) {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("inflating %s: %w", target, err)
		}
		defer zr.Close()
		if body, err = io.ReadAll(io.LimitReader(zr, maxBodySize)); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("inflating %s: %w", target, err)
		}
	}
	return body, nil
}

func locations(root *etree.Element, entry string) []string {
	var out []string
	for _, el := range root.SelectElements(entry) {
		if loc := el.SelectElement("loc"); loc != nil {
			if v := strings.TrimSpace(loc.Text()); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

// textLocations reads a plain text sitemap: one absolute URL per line.
func textLocations(body []byte) []string {
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			out = append(out, line)
		}
	}
	return out
}

func looksLikeXML(body []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))), []byte("<"))
}

func isGzip(body []byte) bool {
	return len(body) > 2 && body[0] == 0x1f && body[1] == 0x8b
}

// dirPrefix returns the directory of p with a trailing slash. A path
// without a file extension in its last segment is taken as a directory.
func dirPrefix(p string) string {
	if p == "" {
		return "/"
	}
	if strings.HasSuffix(p, "/") {
		return p
	}
	last := p[strings.LastIndexByte(p, '/')+1:]
	if strings.Contains(last, ".") {
		return p[:strings.LastIndexByte(p, '/')+1]
	}
	return p + "/"
}

// underPrefix reports whether p is prefix's directory or inside it.
// "/docs/" matches "/docs" and "/docs/intro" but not "/documentation".
func underPrefix(p, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return p+"/" == prefix || strings.HasPrefix(p, prefix)
}

package crawl

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fwojciec/docindex"
)

var (
	_ docindex.ScraperStrategy = (*LocalStrategy)(nil)
	_ LinkFilter               = (*LocalStrategy)(nil)
)

// LocalStrategy indexes a local directory tree or single file given as a
// file:// URL. Directories contribute their entries as links.
type LocalStrategy struct {
	Fetcher  docindex.Fetcher
	Pipeline docindex.ContentPipeline
	Walker   *Walker
}

func (s *LocalStrategy) Name() string { return "local" }

// CanHandle accepts file:// URLs.
func (s *LocalStrategy) CanHandle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && u.Scheme == "file"
}

func (s *LocalStrategy) Scrape(ctx context.Context, opts docindex.ScraperOptions, progress docindex.ProgressFunc) error {
	w := s.Walker
	if w == nil {
		w = &Walker{}
	}
	return w.Walk(ctx, opts, s, progress)
}

// ProcessItem lists directories and fetches files.
func (s *LocalStrategy) ProcessItem(ctx context.Context, item docindex.QueueItem, opts docindex.ScraperOptions) (*ItemResult, error) {
	u, err := url.Parse(item.URL)
	if err != nil {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindInvalidURL, URL: item.URL, Err: err}
	}
	p := filepath.FromSlash(u.Path)

	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return &ItemResult{Status: docindex.FetchNotFound}, nil
	} else if err != nil {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindFetch, URL: item.URL, Err: err}
	}
	if !info.IsDir() {
		raw, err := s.Fetcher.Fetch(ctx, item.URL, docindex.FetchOptions{ETag: item.ETag})
		if err != nil {
			return nil, err
		}
		res, err := processContent(ctx, s.Pipeline, item, raw, opts)
		if err != nil {
			return nil, err
		}
		res.Links = nil
		return res, nil
	}

	entries, err := os.ReadDir(p)
	if err != nil {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindFetch, URL: item.URL, Err: err}
	}
	res := &ItemResult{Status: docindex.FetchSuccess}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		child := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(p, e.Name()))}
		res.Links = append(res.Links, child.String())
	}
	return res, nil
}

// FollowLink keeps paths under the root directory.
func (s *LocalStrategy) FollowLink(root, link *url.URL) bool {
	if link.Scheme != "file" {
		return false
	}
	dir := strings.TrimSuffix(root.Path, "/") + "/"
	return strings.HasPrefix(link.Path, dir)
}

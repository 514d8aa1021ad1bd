package crawl

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/fwojciec/docindex"
)

var (
	_ docindex.ScraperStrategy = (*GitHubStrategy)(nil)
	_ LinkFilter               = (*GitHubStrategy)(nil)
)

// RawGitHubBaseURL serves raw repository file content.
const RawGitHubBaseURL = "https://raw.githubusercontent.com"

// documentationExtensions are the repository files indexed by default.
var documentationExtensions = map[string]string{
	".md":       "text/markdown",
	".mdx":      "text/markdown",
	".markdown": "text/markdown",
	".rst":      "text/plain",
	".txt":      "text/plain",
	".adoc":     "text/plain",
	".html":     "text/html",
	".htm":      "text/html",
}

// GitHubStrategy indexes the documentation files of a GitHub repository.
// The root item lists the repository tree; every file is then fetched
// from raw.githubusercontent.com.
type GitHubStrategy struct {
	Repos    docindex.RepositoryService
	Fetcher  docindex.Fetcher
	Pipeline docindex.ContentPipeline
	Walker   *Walker

	// RawBaseURL overrides RawGitHubBaseURL.
	RawBaseURL string
}

func (s *GitHubStrategy) Name() string { return "github" }

// CanHandle accepts https://github.com/{owner}/{repo} URLs.
func (s *GitHubStrategy) CanHandle(rawURL string) bool {
	_, err := parseGitHubURL(rawURL)
	return err == nil
}

func (s *GitHubStrategy) Scrape(ctx context.Context, opts docindex.ScraperOptions, progress docindex.ProgressFunc) error {
	w := s.Walker
	if w == nil {
		w = &Walker{}
	}
	return w.Walk(ctx, opts, s, progress)
}

// ProcessItem lists the tree for the repository root and fetches file
// content for blob URLs.
func (s *GitHubStrategy) ProcessItem(ctx context.Context, item docindex.QueueItem, opts docindex.ScraperOptions) (*ItemResult, error) {
	loc, err := parseGitHubURL(item.URL)
	if err != nil {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindInvalidURL, URL: item.URL, Err: err}
	}
	if loc.kind != "blob" {
		return s.listTree(ctx, loc)
	}
	return s.fetchFile(ctx, item, loc, opts)
}

func (s *GitHubStrategy) listTree(ctx context.Context, loc gitHubLocation) (*ItemResult, error) {
	tree, err := s.Repos.Tree(ctx, loc.owner, loc.repo, loc.ref)
	if err != nil {
		return nil, fmt.Errorf("listing %s/%s: %w", loc.owner, loc.repo, err)
	}

	res := &ItemResult{Status: docindex.FetchSuccess}
	for _, p := range tree.Paths {
		if _, ok := documentationExtensions[strings.ToLower(path.Ext(p))]; !ok {
			continue
		}
		if loc.path != "" && !strings.HasPrefix(p, loc.path+"/") {
			continue
		}
		res.Links = append(res.Links, fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", tree.Owner, tree.Repo, tree.Ref, p))
	}
	return res, nil
}

func (s *GitHubStrategy) fetchFile(ctx context.Context, item docindex.QueueItem, loc gitHubLocation, opts docindex.ScraperOptions) (*ItemResult, error) {
	base := s.RawBaseURL
	if base == "" {
		base = RawGitHubBaseURL
	}
	rawURL := fmt.Sprintf("%s/%s/%s/%s/%s", strings.TrimRight(base, "/"), loc.owner, loc.repo, loc.ref, loc.path)

	raw, err := s.Fetcher.Fetch(ctx, rawURL, docindex.FetchOptions{
		Headers: opts.Headers,
		ETag:    item.ETag,
	})
	if err != nil {
		return nil, err
	}
	if mimeType, ok := documentationExtensions[strings.ToLower(path.Ext(loc.path))]; ok {
		raw.MimeType = mimeType
	} else if t := mime.TypeByExtension(path.Ext(loc.path)); t != "" {
		raw.MimeType = t
	}

	res, err := processContent(ctx, s.Pipeline, item, raw, opts)
	if err != nil {
		return nil, err
	}
	// Links inside files are not followed; the tree is the source of truth.
	res.Links = nil
	return res, nil
}

// FollowLink keeps blob links of the root repository.
func (s *GitHubStrategy) FollowLink(root, link *url.URL) bool {
	r, err := parseGitHubURL(root.String())
	if err != nil {
		return false
	}
	l, err := parseGitHubURL(link.String())
	if err != nil {
		return false
	}
	return l.kind == "blob" && strings.EqualFold(r.owner, l.owner) && strings.EqualFold(r.repo, l.repo)
}

type gitHubLocation struct {
	owner string
	repo  string
	kind  string // "", "tree" or "blob"
	ref   string
	path  string
}

// parseGitHubURL parses github.com/{owner}/{repo}[/{tree|blob}/{ref}/{path}].
func parseGitHubURL(rawURL string) (gitHubLocation, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return gitHubLocation{}, err
	}
	host := strings.ToLower(u.Host)
	if host != "github.com" && host != "www.github.com" {
		return gitHubLocation{}, fmt.Errorf("not a GitHub URL: %s", rawURL)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return gitHubLocation{}, fmt.Errorf("missing owner or repository: %s", rawURL)
	}
	loc := gitHubLocation{owner: segments[0], repo: strings.TrimSuffix(segments[1], ".git")}
	if len(segments) >= 4 && (segments[2] == "tree" || segments[2] == "blob") {
		loc.kind = segments[2]
		loc.ref = segments[3]
		loc.path = strings.Join(segments[4:], "/")
	} else if len(segments) > 2 {
		return gitHubLocation{}, fmt.Errorf("unsupported GitHub URL: %s", rawURL)
	}
	return loc, nil
}

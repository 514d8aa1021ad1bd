// Package github lists repository files through the GitHub REST API.
package github

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/fwojciec/docindex"
	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// Ensure RepositoryService implements docindex.RepositoryService at compile time.
var _ docindex.RepositoryService = (*RepositoryService)(nil)

// RepositoryService implements docindex.RepositoryService on the GitHub API.
type RepositoryService struct {
	client *github.Client
	logger *slog.Logger
}

// Option configures a RepositoryService.
type Option func(*RepositoryService) error

// WithBaseURL points the client at a different API root, such as a GitHub
// Enterprise server.
func WithBaseURL(rawURL string) Option {
	return func(s *RepositoryService) error {
		if !strings.HasSuffix(rawURL, "/") {
			rawURL += "/"
		}
		u, err := url.Parse(rawURL)
		if err != nil {
			return docindex.Errorf(docindex.EINVALID, "invalid GitHub API URL %q", rawURL)
		}
		s.client.BaseURL = u
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *RepositoryService) error {
		s.logger = l
		return nil
	}
}

// NewRepositoryService creates a RepositoryService. An empty token uses
// unauthenticated requests, which GitHub rate limits heavily.
func NewRepositoryService(token string, opts ...Option) (*RepositoryService, error) {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(context.Background(), ts)
	}

	s := &RepositoryService{client: github.NewClient(hc)}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s, nil
}

// Tree returns the paths of all files in owner/repo at ref. An empty ref
// resolves to the repository's default branch.
func (s *RepositoryService) Tree(ctx context.Context, owner, repo, ref string) (*docindex.RepositoryTree, error) {
	if owner == "" || repo == "" {
		return nil, docindex.Errorf(docindex.EINVALID, "repository owner and name required")
	}

	if ref == "" {
		r, _, err := s.client.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return nil, wrapError(ctx, err, owner, repo)
		}
		ref = r.GetDefaultBranch()
	}

	tree, _, err := s.client.Git.GetTree(ctx, owner, repo, ref, true)
	if err != nil {
		return nil, wrapError(ctx, err, owner, repo)
	}
	if tree.GetTruncated() {
		s.logger.Warn("repository tree truncated", "owner", owner, "repo", repo, "ref", ref, "entries", len(tree.Entries))
	}

	paths := make([]string, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		paths = append(paths, entry.GetPath())
	}

	return &docindex.RepositoryTree{Owner: owner, Repo: repo, Ref: ref, Paths: paths}, nil
}

func wrapError(ctx context.Context, err error, owner, repo string) error {
	if ctx.Err() != nil {
		return docindex.ErrCanceled(ctx.Err())
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &docindex.ScraperError{Kind: docindex.ErrKindHTTPStatus, URL: githubURL(owner, repo), StatusCode: http.StatusForbidden, Retryable: true, Err: err}
	}

	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch code := respErr.Response.StatusCode; {
		case code == http.StatusNotFound:
			return docindex.Errorf(docindex.ENOTFOUND, "repository %s/%s not found", owner, repo)
		case code >= 500:
			return &docindex.ScraperError{Kind: docindex.ErrKindHTTPStatus, URL: githubURL(owner, repo), StatusCode: code, Retryable: true, Err: err}
		default:
			return &docindex.ScraperError{Kind: docindex.ErrKindHTTPStatus, URL: githubURL(owner, repo), StatusCode: code, Err: err}
		}
	}
	return &docindex.ScraperError{Kind: docindex.ErrKindFetch, URL: githubURL(owner, repo), Retryable: true, Err: err}
}

func githubURL(owner, repo string) string {
	return "https://github.com/" + owner + "/" + repo
}

package crawl_test

import (
	"context"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fwojciec/docindex"
	"github.com/fwojciec/docindex/crawl"
	dochttp "github.com/fwojciec/docindex/http"
	"github.com/fwojciec/docindex/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linkPipeline treats content as a newline-separated list of links and
// produces one chunk per resource.
func linkPipeline() *mock.ContentPipeline {
	return &mock.ContentPipeline{
		CanProcessFn: func(mimeType string) bool { return mimeType != "image/png" },
		ProcessFn: func(_ context.Context, raw *docindex.RawContent, _ docindex.ScraperOptions) (*docindex.PipelineResult, error) {
			var links []string
			for _, l := range strings.Split(string(raw.Content), "\n") {
				if l = strings.TrimSpace(l); strings.Contains(l, "://") {
					links = append(links, l)
				}
			}
			return &docindex.PipelineResult{
				Title:  raw.SourceURL,
				Chunks: []docindex.Chunk{{Content: string(raw.Content)}},
				Links:  links,
			}, nil
		},
	}
}

func TestWebStrategy(t *testing.T) {
	t.Parallel()

	t.Run("handles http and https only", func(t *testing.T) {
		t.Parallel()

		s := &crawl.WebStrategy{}

		assert.True(t, s.CanHandle("https://x.com/docs"))
		assert.True(t, s.CanHandle("http://x.com"))
		assert.False(t, s.CanHandle("file:///tmp"))
	})

	t.Run("crawls pages through the fetcher and pipeline", func(t *testing.T) {
		t.Parallel()

		pages := map[string]string{
			"https://x.com/docs/":  "https://x.com/docs/a\nhttps://x.com/other",
			"https://x.com/docs/a": "leaf",
		}
		var gotHeaders map[string]string
		fetcher := &mock.Fetcher{
			FetchFn: func(_ context.Context, source string, opts docindex.FetchOptions) (*docindex.RawContent, error) {
				gotHeaders = opts.Headers
				body, ok := pages[source]
				if !ok {
					return &docindex.RawContent{Status: docindex.FetchNotFound}, nil
				}
				return &docindex.RawContent{Content: []byte(body), MimeType: "text/html", SourceURL: source, ETag: "v1"}, nil
			},
		}
		s := &crawl.WebStrategy{Fetcher: fetcher, Pipeline: linkPipeline()}
		rec := &recorder{}

		err := s.Scrape(context.Background(), docindex.ScraperOptions{
			URL:     "https://x.com/docs/",
			Headers: map[string]string{"Authorization": "Bearer t"},
		}, rec.progress)

		require.NoError(t, err)
		assert.Equal(t, []string{"https://x.com/docs/", "https://x.com/docs/a"}, rec.urls())
		assert.Equal(t, "v1", rec.last().Result.ETag)
		assert.Equal(t, "Bearer t", gotHeaders["Authorization"])
	})

	t.Run("adds sitemap URLs to the root page links", func(t *testing.T) {
		t.Parallel()

		fetcher := &mock.Fetcher{
			FetchFn: func(_ context.Context, source string, _ docindex.FetchOptions) (*docindex.RawContent, error) {
				return &docindex.RawContent{Content: []byte("page"), MimeType: "text/html", SourceURL: source}, nil
			},
		}
		sitemaps := &mock.SitemapService{
			DiscoverURLsFn: func(_ context.Context, baseURL string) ([]string, error) {
				return []string{"https://x.com/docs/from-sitemap"}, nil
			},
		}
		s := &crawl.WebStrategy{Fetcher: fetcher, Pipeline: linkPipeline(), Sitemaps: sitemaps}
		rec := &recorder{}

		err := s.Scrape(context.Background(), docindex.ScraperOptions{URL: "https://x.com/docs/", UseSitemap: true}, rec.progress)

		require.NoError(t, err)
		assert.Equal(t, []string{"https://x.com/docs/", "https://x.com/docs/from-sitemap"}, rec.urls())
		assert.Equal(t, 1, rec.last().Depth)
	})

	t.Run("uses the browser fetcher in browser mode", func(t *testing.T) {
		t.Parallel()

		var used string
		fetch := func(name string) *mock.Fetcher {
			return &mock.Fetcher{FetchFn: func(_ context.Context, source string, _ docindex.FetchOptions) (*docindex.RawContent, error) {
				used = name
				return &docindex.RawContent{Content: []byte("x"), MimeType: "text/html", SourceURL: source}, nil
			}}
		}
		s := &crawl.WebStrategy{Fetcher: fetch("auto"), BrowserFetcher: fetch("browser"), Pipeline: linkPipeline()}

		err := s.Scrape(context.Background(), docindex.ScraperOptions{URL: "https://x.com/", FetchMode: docindex.FetchBrowser}, nil)

		require.NoError(t, err)
		assert.Equal(t, "browser", used)
	})

	t.Run("fails when the root page is unreachable", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(nil)
		root := srv.URL + "/docs/"
		srv.Close()
		s := &crawl.WebStrategy{
			Fetcher:  dochttp.NewFetcher(dochttp.WithMaxRetries(0)),
			Pipeline: linkPipeline(),
		}
		rec := &recorder{}

		err := s.Scrape(context.Background(), docindex.ScraperOptions{URL: root, FetchMode: docindex.FetchHTTP}, rec.progress)

		require.Error(t, err)
		assert.Empty(t, rec.events)
	})

	t.Run("skips content the pipeline cannot process", func(t *testing.T) {
		t.Parallel()

		fetcher := &mock.Fetcher{
			FetchFn: func(_ context.Context, source string, _ docindex.FetchOptions) (*docindex.RawContent, error) {
				if strings.HasSuffix(source, ".png") {
					return &docindex.RawContent{Content: []byte{0x89}, MimeType: "image/png", SourceURL: source}, nil
				}
				return &docindex.RawContent{Content: []byte("https://x.com/logo.png"), MimeType: "text/html", SourceURL: source}, nil
			},
		}
		s := &crawl.WebStrategy{Fetcher: fetcher, Pipeline: linkPipeline()}
		rec := &recorder{}

		err := s.Scrape(context.Background(), docindex.ScraperOptions{URL: "https://x.com/", Scope: docindex.ScopeHostname}, rec.progress)

		require.NoError(t, err)
		assert.Equal(t, []string{"https://x.com/"}, rec.urls())
	})
}

func TestRegistryStrategy(t *testing.T) {
	t.Parallel()

	s := &crawl.RegistryStrategy{}

	t.Run("handles npm and PyPI package pages", func(t *testing.T) {
		t.Parallel()

		assert.True(t, s.CanHandle("https://www.npmjs.com/package/react"))
		assert.True(t, s.CanHandle("https://www.npmjs.com/package/@types/node"))
		assert.True(t, s.CanHandle("https://pypi.org/project/requests/"))
		assert.False(t, s.CanHandle("https://www.npmjs.com/search?q=react"))
		assert.False(t, s.CanHandle("https://docs.x.com/"))
	})

	t.Run("follows links of the same package only", func(t *testing.T) {
		t.Parallel()

		root, _ := url.Parse("https://www.npmjs.com/package/@types/node")
		same, _ := url.Parse("https://www.npmjs.com/package/@types/node/v/20.0.0")
		other, _ := url.Parse("https://www.npmjs.com/package/@types/react")
		prefixed, _ := url.Parse("https://www.npmjs.com/package/@types/node-fetch")
		withPort, _ := url.Parse("https://www.npmjs.com:443/package/@types/node/v/21.0.0")

		assert.True(t, s.FollowLink(root, same))
		assert.True(t, s.FollowLink(root, withPort))
		assert.False(t, s.FollowLink(root, other))
		assert.False(t, s.FollowLink(root, prefixed))
	})

	t.Run("drops query string links", func(t *testing.T) {
		t.Parallel()

		fetcher := &mock.Fetcher{
			FetchFn: func(_ context.Context, source string, _ docindex.FetchOptions) (*docindex.RawContent, error) {
				body := "https://pypi.org/project/requests/?tab=history\nhttps://pypi.org/project/requests/2.0/"
				return &docindex.RawContent{Content: []byte(body), MimeType: "text/html", SourceURL: source}, nil
			},
		}
		s := &crawl.RegistryStrategy{Web: &crawl.WebStrategy{Fetcher: fetcher, Pipeline: linkPipeline()}}
		rec := &recorder{}

		err := s.Scrape(context.Background(), docindex.ScraperOptions{URL: "https://pypi.org/project/requests/"}, rec.progress)

		require.NoError(t, err)
		assert.Equal(t, []string{"https://pypi.org/project/requests/", "https://pypi.org/project/requests/2.0/"}, rec.urls())
	})
}

func TestGitHubStrategy(t *testing.T) {
	t.Parallel()

	t.Run("handles repository URLs", func(t *testing.T) {
		t.Parallel()

		s := &crawl.GitHubStrategy{}

		assert.True(t, s.CanHandle("https://github.com/owner/repo"))
		assert.True(t, s.CanHandle("https://github.com/owner/repo/tree/main/docs"))
		assert.False(t, s.CanHandle("https://github.com/owner"))
		assert.False(t, s.CanHandle("https://gitlab.com/owner/repo"))
	})

	t.Run("indexes documentation files from the repository tree", func(t *testing.T) {
		t.Parallel()

		repos := &mock.RepositoryService{
			TreeFn: func(_ context.Context, owner, repo, ref string) (*docindex.RepositoryTree, error) {
				assert.Equal(t, "main", ref)
				return &docindex.RepositoryTree{
					Owner: owner, Repo: repo, Ref: ref,
					Paths: []string{"README.md", "docs/guide.md", "docs/api.rst", "docs/logo.png", "main.go"},
				}, nil
			},
		}
		var fetched []string
		fetcher := &mock.Fetcher{
			FetchFn: func(_ context.Context, source string, _ docindex.FetchOptions) (*docindex.RawContent, error) {
				fetched = append(fetched, source)
				return &docindex.RawContent{Content: []byte("# Doc"), MimeType: "text/plain", SourceURL: source}, nil
			},
		}
		var mimeTypes []string
		pipeline := &mock.ContentPipeline{
			CanProcessFn: func(string) bool { return true },
			ProcessFn: func(_ context.Context, raw *docindex.RawContent, _ docindex.ScraperOptions) (*docindex.PipelineResult, error) {
				mimeTypes = append(mimeTypes, raw.MimeType)
				return &docindex.PipelineResult{Chunks: []docindex.Chunk{{Content: "x"}}, Links: []string{"https://elsewhere.com"}}, nil
			},
		}
		s := &crawl.GitHubStrategy{Repos: repos, Fetcher: fetcher, Pipeline: pipeline}
		rec := &recorder{}

		err := s.Scrape(context.Background(), docindex.ScraperOptions{
			URL:            "https://github.com/owner/repo/tree/main/docs",
			MaxConcurrency: 1,
		}, rec.progress)

		require.NoError(t, err)
		assert.Equal(t, []string{
			"https://github.com/owner/repo/blob/main/docs/guide.md",
			"https://github.com/owner/repo/blob/main/docs/api.rst",
		}, rec.urls())
		assert.Equal(t, []string{
			"https://raw.githubusercontent.com/owner/repo/main/docs/guide.md",
			"https://raw.githubusercontent.com/owner/repo/main/docs/api.rst",
		}, fetched)
		assert.Equal(t, []string{"text/markdown", "text/plain"}, mimeTypes)
	})
}

func TestLocalStrategy(t *testing.T) {
	t.Parallel()

	t.Run("indexes files below the root directory", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "guide"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("readme"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "guide", "intro.md"), []byte("intro"), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.md"), []byte("hidden"), 0o644))

		fetcher := &mock.Fetcher{
			FetchFn: func(_ context.Context, source string, _ docindex.FetchOptions) (*docindex.RawContent, error) {
				u, err := url.Parse(source)
				require.NoError(t, err)
				data, err := os.ReadFile(filepath.FromSlash(u.Path))
				require.NoError(t, err)
				return &docindex.RawContent{Content: data, MimeType: "text/markdown", SourceURL: source}, nil
			},
		}
		s := &crawl.LocalStrategy{Fetcher: fetcher, Pipeline: linkPipeline()}
		rec := &recorder{}
		root := (&url.URL{Scheme: "file", Path: filepath.ToSlash(dir)}).String()

		err := s.Scrape(context.Background(), docindex.ScraperOptions{URL: root}, rec.progress)

		require.NoError(t, err)
		assert.ElementsMatch(t, []string{root + "/README.md", root + "/guide/intro.md"}, rec.urls())
		assert.Equal(t, 2, rec.last().PagesScraped)
	})

	t.Run("reports missing files as not found", func(t *testing.T) {
		t.Parallel()

		s := &crawl.LocalStrategy{}
		missing := (&url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(t.TempDir(), "gone.md"))}).String()

		res, err := s.ProcessItem(context.Background(), docindex.QueueItem{URL: missing, PageID: 3}, docindex.ScraperOptions{})

		require.NoError(t, err)
		assert.Equal(t, docindex.FetchNotFound, res.Status)
	})
}

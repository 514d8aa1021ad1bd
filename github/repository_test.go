package github_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fwojciec/docindex"
	"github.com/fwojciec/docindex/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, token string, h http.Handler) *github.RepositoryService {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	s, err := github.NewRepositoryService(token, github.WithBaseURL(srv.URL))
	require.NoError(t, err)
	return s
}

const treeJSON = `{
  "sha": "abc",
  "truncated": false,
  "tree": [
    {"path": "README.md", "type": "blob"},
    {"path": "docs", "type": "tree"},
    {"path": "docs/intro.md", "type": "blob"}
  ]
}`

func TestRepositoryService_Tree(t *testing.T) {
	t.Parallel()

	t.Run("resolves the default branch and lists files", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"name": "widgets", "default_branch": "trunk"}`))
		})
		mux.HandleFunc("/repos/acme/widgets/git/trees/trunk", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "1", r.URL.Query().Get("recursive"))
			_, _ = w.Write([]byte(treeJSON))
		})
		s := newService(t, "", mux)

		tree, err := s.Tree(context.Background(), "acme", "widgets", "")

		require.NoError(t, err)
		assert.Equal(t, "trunk", tree.Ref)
		assert.Equal(t, "acme", tree.Owner)
		assert.Equal(t, "widgets", tree.Repo)
		assert.Equal(t, []string{"README.md", "docs/intro.md"}, tree.Paths)
	})

	t.Run("uses the given ref without resolving the default branch", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
			t.Error("default branch lookup not expected")
		})
		mux.HandleFunc("/repos/acme/widgets/git/trees/v2", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(treeJSON))
		})
		s := newService(t, "", mux)

		tree, err := s.Tree(context.Background(), "acme", "widgets", "v2")

		require.NoError(t, err)
		assert.Equal(t, "v2", tree.Ref)
		assert.Len(t, tree.Paths, 2)
	})

	t.Run("sends the token", func(t *testing.T) {
		t.Parallel()

		var auth string
		mux := http.NewServeMux()
		mux.HandleFunc("/repos/acme/widgets/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(treeJSON))
		})
		s := newService(t, "secret", mux)

		_, err := s.Tree(context.Background(), "acme", "widgets", "main")

		require.NoError(t, err)
		assert.Equal(t, "Bearer secret", auth)
	})

	t.Run("missing repository is not found", func(t *testing.T) {
		t.Parallel()

		s := newService(t, "", http.NotFoundHandler())

		_, err := s.Tree(context.Background(), "acme", "nope", "main")

		assert.Equal(t, docindex.ENOTFOUND, docindex.ErrorCode(err))
	})

	t.Run("server error is retryable", func(t *testing.T) {
		t.Parallel()

		s := newService(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))

		_, err := s.Tree(context.Background(), "acme", "widgets", "main")

		require.Error(t, err)
		assert.True(t, docindex.IsRetryable(err))
	})

	t.Run("empty owner is invalid", func(t *testing.T) {
		t.Parallel()

		s, err := github.NewRepositoryService("")
		require.NoError(t, err)

		_, err = s.Tree(context.Background(), "", "widgets", "")

		assert.Equal(t, docindex.EINVALID, docindex.ErrorCode(err))
	})

	t.Run("canceled context is a cancellation", func(t *testing.T) {
		t.Parallel()

		s := newService(t, "", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(treeJSON))
		}))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.Tree(ctx, "acme", "widgets", "main")

		assert.True(t, docindex.IsCanceled(err))
	})
}

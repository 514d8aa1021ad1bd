package crawl_test

import (
	"net/url"
	"testing"

	"github.com/fwojciec/docindex"
	"github.com/fwojciec/docindex/crawl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestInScope(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		root   string
		target string
		scope  docindex.Scope
		want   bool
	}{
		{"subpages admits pages under the root directory", "https://docs.x.com/guide/", "https://docs.x.com/guide/intro", docindex.ScopeSubpages, true},
		{"subpages rejects sibling directories", "https://docs.x.com/guide/", "https://docs.x.com/blog/post", docindex.ScopeSubpages, false},
		{"subpages uses the directory of a file root", "https://docs.x.com/guide/start.html", "https://docs.x.com/guide/next.html", docindex.ScopeSubpages, true},
		{"subpages rejects other hosts", "https://docs.x.com/guide/", "https://api.x.com/guide/intro", docindex.ScopeSubpages, false},
		{"subpages ignores the port", "https://docs.x.com/guide/", "https://docs.x.com:443/guide/intro", docindex.ScopeSubpages, true},
		{"hostname ignores the port", "https://docs.x.com:8443/guide/", "https://docs.x.com/blog/post", docindex.ScopeHostname, true},
		{"hostname admits any path on the host", "https://docs.x.com/guide/", "https://docs.x.com/blog/post", docindex.ScopeHostname, true},
		{"hostname rejects subdomains", "https://docs.x.com/guide/", "https://api.x.com/ref", docindex.ScopeHostname, false},
		{"domain admits sibling subdomains", "https://docs.x.com/guide/", "https://api.x.com/ref", docindex.ScopeDomain, true},
		{"domain rejects other domains", "https://docs.x.com/guide/", "https://y.com/", docindex.ScopeDomain, false},
		{"domain respects multi-part public suffixes", "https://a.example.co.uk/", "https://b.other.co.uk/", docindex.ScopeDomain, false},
		{"protocol must match", "https://docs.x.com/guide/", "http://docs.x.com/guide/intro", docindex.ScopeHostname, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, crawl.InScope(mustParse(t, tt.root), mustParse(t, tt.target), tt.scope))
		})
	}
}

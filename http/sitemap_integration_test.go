//go:build integration

package http_test

import (
	"context"
	"strings"
	"testing"
	"time"

	dochttp "github.com/fwojciec/docindex/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSitemapService_Integration(t *testing.T) {
	t.Parallel()

	svc := dochttp.NewSitemapService(dochttp.NewFetcher())

	t.Run("htmx.org declares its sitemap in robots.txt", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		urls, err := svc.DiscoverURLs(ctx, "https://htmx.org")
		require.NoError(t, err)
		assert.NotEmpty(t, urls)
		t.Logf("found %d urls", len(urls))
	})

	t.Run("docs prefix narrows the result", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		urls, err := svc.DiscoverURLs(ctx, "https://htmx.org/docs/")
		require.NoError(t, err)
		require.NotEmpty(t, urls)
		for _, u := range urls {
			assert.True(t, strings.Contains(u, "/docs"), u)
		}
	})
}

package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fwojciec/docindex"
	"github.com/fwojciec/docindex/goquery"
	"github.com/fwojciec/docindex/mock"
	"github.com/fwojciec/docindex/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHTMLPipeline(extract, fallback *mock.Extractor, convert *mock.Converter, links *mock.LinkExtractor) *pipeline.HTMLPipeline {
	p := &pipeline.HTMLPipeline{
		Sanitizer: goquery.NewSanitizer(),
		Extractor: extract,
		Converter: convert,
		Links:     links,
		Splitter:  &pipeline.MarkdownSplitter{},
	}
	if fallback != nil {
		p.Fallback = fallback
	}
	return p
}

func noLinks() *mock.LinkExtractor {
	return &mock.LinkExtractor{
		ExtractLinksFn: func(string, string) ([]string, error) { return nil, nil },
	}
}

func TestHTMLPipeline_CanProcess(t *testing.T) {
	t.Parallel()

	p := &pipeline.HTMLPipeline{}
	assert.True(t, p.CanProcess("text/html"))
	assert.True(t, p.CanProcess("application/xhtml+xml"))
	assert.False(t, p.CanProcess("text/markdown"))
}

func TestHTMLPipeline_Process(t *testing.T) {
	t.Parallel()

	t.Run("extracts converts and splits", func(t *testing.T) {
		t.Parallel()

		var convertedFrom, convertBase string
		p := newHTMLPipeline(
			&mock.Extractor{ExtractFn: func(html, pageURL string) (*docindex.ExtractResult, error) {
				assert.Equal(t, "https://example.com/docs/", pageURL)
				return &docindex.ExtractResult{Title: "Guide", ContentHTML: "<p>Body</p>"}, nil
			}},
			nil,
			&mock.Converter{ConvertFn: func(html, baseURL string) (string, error) {
				convertedFrom, convertBase = html, baseURL
				return "# Guide\n\nBody text.", nil
			}},
			&mock.LinkExtractor{ExtractLinksFn: func(html, baseURL string) ([]string, error) {
				return []string{"https://example.com/docs/a"}, nil
			}},
		)

		res, err := p.Process(context.Background(), &docindex.RawContent{
			Content:   []byte("<html><body><nav>menu</nav><p>Body</p></body></html>"),
			MimeType:  "text/html",
			SourceURL: "https://example.com/docs/",
		}, docindex.ScraperOptions{})

		require.NoError(t, err)
		assert.Equal(t, "<p>Body</p>", convertedFrom)
		assert.Equal(t, "https://example.com/docs/", convertBase)
		assert.Equal(t, "Guide", res.Title)
		assert.Equal(t, []string{"https://example.com/docs/a"}, res.Links)
		require.Len(t, res.Chunks, 1)
		assert.Equal(t, []string{"Guide"}, res.Chunks[0].Path)
	})

	t.Run("extractor sees sanitized html", func(t *testing.T) {
		t.Parallel()

		var seen string
		p := newHTMLPipeline(
			&mock.Extractor{ExtractFn: func(html, _ string) (*docindex.ExtractResult, error) {
				seen = html
				return &docindex.ExtractResult{}, nil
			}},
			nil,
			&mock.Converter{},
			noLinks(),
		)

		_, err := p.Process(context.Background(), &docindex.RawContent{
			Content:  []byte("<html><body><nav>Site menu</nav><p>Body</p></body></html>"),
			MimeType: "text/html",
		}, docindex.ScraperOptions{})

		require.NoError(t, err)
		assert.Contains(t, seen, "Body")
		assert.NotContains(t, seen, "Site menu")
	})

	t.Run("links see the decoded page", func(t *testing.T) {
		t.Parallel()

		var seen string
		p := newHTMLPipeline(
			&mock.Extractor{ExtractFn: func(string, string) (*docindex.ExtractResult, error) {
				return &docindex.ExtractResult{}, nil
			}},
			nil,
			&mock.Converter{},
			&mock.LinkExtractor{ExtractLinksFn: func(html, _ string) ([]string, error) {
				seen = html
				return nil, nil
			}},
		)

		_, err := p.Process(context.Background(), &docindex.RawContent{
			Content:  []byte("<html><body><p>caf\xe9</p></body></html>"),
			MimeType: "text/html",
			Charset:  "iso-8859-1",
		}, docindex.ScraperOptions{})

		require.NoError(t, err)
		assert.Contains(t, seen, "café")
	})

	t.Run("falls back when extractor fails", func(t *testing.T) {
		t.Parallel()

		var convertedFrom string
		p := newHTMLPipeline(
			&mock.Extractor{ExtractFn: func(string, string) (*docindex.ExtractResult, error) {
				return nil, errors.New("no content")
			}},
			&mock.Extractor{ExtractFn: func(string, string) (*docindex.ExtractResult, error) {
				return &docindex.ExtractResult{ContentHTML: "<p>fallback</p>"}, nil
			}},
			&mock.Converter{ConvertFn: func(html, _ string) (string, error) {
				convertedFrom = html
				return "fallback", nil
			}},
			noLinks(),
		)

		res, err := p.Process(context.Background(), &docindex.RawContent{
			Content:  []byte("<html><body><p>x</p></body></html>"),
			MimeType: "text/html",
		}, docindex.ScraperOptions{})

		require.NoError(t, err)
		assert.Equal(t, "<p>fallback</p>", convertedFrom)
		require.Len(t, res.Chunks, 1)
	})

	t.Run("falls back when extractor finds nothing and keeps its title", func(t *testing.T) {
		t.Parallel()

		p := newHTMLPipeline(
			&mock.Extractor{ExtractFn: func(string, string) (*docindex.ExtractResult, error) {
				return &docindex.ExtractResult{Title: "From primary"}, nil
			}},
			&mock.Extractor{ExtractFn: func(string, string) (*docindex.ExtractResult, error) {
				return &docindex.ExtractResult{ContentHTML: "<p>fallback</p>"}, nil
			}},
			&mock.Converter{ConvertFn: func(string, string) (string, error) { return "fallback", nil }},
			noLinks(),
		)

		res, err := p.Process(context.Background(), &docindex.RawContent{
			Content:  []byte("<html><body><p>x</p></body></html>"),
			MimeType: "text/html",
		}, docindex.ScraperOptions{})

		require.NoError(t, err)
		assert.Equal(t, "From primary", res.Title)
	})

	t.Run("title falls back to first heading", func(t *testing.T) {
		t.Parallel()

		p := newHTMLPipeline(
			&mock.Extractor{ExtractFn: func(string, string) (*docindex.ExtractResult, error) {
				return &docindex.ExtractResult{ContentHTML: "<h2>Sub</h2><h1>Main</h1>"}, nil
			}},
			nil,
			&mock.Converter{ConvertFn: func(string, string) (string, error) {
				return "## Sub\n\ntext\n\n# Main\n\nmore", nil
			}},
			noLinks(),
		)

		res, err := p.Process(context.Background(), &docindex.RawContent{
			Content:  []byte("<html><body></body></html>"),
			MimeType: "text/html",
		}, docindex.ScraperOptions{})

		require.NoError(t, err)
		assert.Equal(t, "Main", res.Title)
	})

	t.Run("empty content yields no chunks but keeps links", func(t *testing.T) {
		t.Parallel()

		p := newHTMLPipeline(
			&mock.Extractor{ExtractFn: func(string, string) (*docindex.ExtractResult, error) {
				return &docindex.ExtractResult{}, nil
			}},
			nil,
			&mock.Converter{},
			&mock.LinkExtractor{ExtractLinksFn: func(string, string) ([]string, error) {
				return []string{"https://example.com/next"}, nil
			}},
		)

		res, err := p.Process(context.Background(), &docindex.RawContent{
			Content:  []byte("<html><body><a href=\"/next\">next</a></body></html>"),
			MimeType: "text/html",
		}, docindex.ScraperOptions{})

		require.NoError(t, err)
		assert.Empty(t, res.Chunks)
		assert.Equal(t, []string{"https://example.com/next"}, res.Links)
	})

	t.Run("link extraction errors are non-fatal", func(t *testing.T) {
		t.Parallel()

		p := newHTMLPipeline(
			&mock.Extractor{ExtractFn: func(string, string) (*docindex.ExtractResult, error) {
				return &docindex.ExtractResult{}, nil
			}},
			nil,
			&mock.Converter{},
			&mock.LinkExtractor{ExtractLinksFn: func(string, string) ([]string, error) {
				return nil, errors.New("bad base")
			}},
		)

		res, err := p.Process(context.Background(), &docindex.RawContent{
			Content:  []byte("<html></html>"),
			MimeType: "text/html",
		}, docindex.ScraperOptions{})

		require.NoError(t, err)
		require.Len(t, res.Errors, 1)
	})

	t.Run("converter error is returned", func(t *testing.T) {
		t.Parallel()

		p := newHTMLPipeline(
			&mock.Extractor{ExtractFn: func(string, string) (*docindex.ExtractResult, error) {
				return &docindex.ExtractResult{ContentHTML: "<p>x</p>"}, nil
			}},
			nil,
			&mock.Converter{ConvertFn: func(string, string) (string, error) {
				return "", errors.New("convert failed")
			}},
			noLinks(),
		)

		_, err := p.Process(context.Background(), &docindex.RawContent{
			Content:  []byte("<html><body><p>x</p></body></html>"),
			MimeType: "text/html",
		}, docindex.ScraperOptions{})

		assert.ErrorContains(t, err, "convert failed")
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := (&pipeline.HTMLPipeline{}).Process(ctx, &docindex.RawContent{MimeType: "text/html"}, docindex.ScraperOptions{})
		assert.True(t, docindex.IsCanceled(err))
	})
}

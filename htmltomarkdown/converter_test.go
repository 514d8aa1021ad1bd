package htmltomarkdown_test

import (
	"testing"

	"github.com/fwojciec/docindex"
	"github.com/fwojciec/docindex/htmltomarkdown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConverter_Convert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		html string
		want []string
	}{
		{name: "headings", html: `<h1>Title</h1><h2>Subtitle</h2>`, want: []string{"# Title", "## Subtitle"}},
		{name: "links", html: `<p>Visit <a href="https://example.com">Example</a>.</p>`, want: []string{"[Example](https://example.com)"}},
		{name: "lists", html: `<ul><li>First</li><li>Second</li></ul><ol><li>One</li></ol>`, want: []string{"- First", "- Second", "1. One"}},
		{name: "inline code", html: `<p>Run <code>go build</code> to compile.</p>`, want: []string{"`go build`"}},
		{name: "fenced code with language", html: "<pre><code class=\"language-go\">package main\n</code></pre>", want: []string{"```go", "package main"}},
		{name: "tables", html: `<table><thead><tr><th>Name</th></tr></thead><tbody><tr><td>Alice</td></tr></tbody></table>`, want: []string{"Name", "Alice", "|", "---"}},
		{name: "strikethrough", html: `<p><del>old</del> new</p>`, want: []string{"~~old~~ new"}},
		{name: "blockquotes", html: `<blockquote><p>This is a quote.</p></blockquote>`, want: []string{"> This is a quote."}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			md, err := htmltomarkdown.NewConverter().Convert(tt.html, "")
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, md, w)
			}
		})
	}
}

func TestConverter_Convert_ResolvesRelativeLinks(t *testing.T) {
	t.Parallel()

	md, err := htmltomarkdown.NewConverter().Convert(`<p>See <a href="/docs/install">install</a>.</p>`, "https://example.com")
	require.NoError(t, err)
	assert.Contains(t, md, "[install](https://example.com/docs/install)")
}

func TestConverter_Convert_RejectsEmptyInput(t *testing.T) {
	t.Parallel()

	_, err := htmltomarkdown.NewConverter().Convert("  ", "")
	require.Error(t, err)
	assert.Equal(t, docindex.EINVALID, docindex.ErrorCode(err))
}

func TestConverter_Convert_Images(t *testing.T) {
	t.Parallel()

	html := `<p>Diagram:</p><img src="/img/flow.png" alt="Request flow"><img src="data:image/png;base64,AAAA" alt="pixel"><p>After.</p>`

	t.Run("images are reduced to alt text by default", func(t *testing.T) {
		t.Parallel()

		md, err := htmltomarkdown.NewConverter().Convert(html, "https://example.com/docs/")
		require.NoError(t, err)
		assert.Contains(t, md, "Request flow")
		assert.NotContains(t, md, "flow.png")
		assert.NotContains(t, md, "base64")
	})

	t.Run("kept images are absolute and data uris are dropped", func(t *testing.T) {
		t.Parallel()

		md, err := htmltomarkdown.NewConverter(htmltomarkdown.WithImages(true)).Convert(html, "https://example.com/docs/")
		require.NoError(t, err)
		assert.Contains(t, md, "![Request flow](https://example.com/img/flow.png)")
		assert.NotContains(t, md, "base64")
	})
}

func TestConverter_Convert_CollapsesBlankLines(t *testing.T) {
	t.Parallel()

	md, err := htmltomarkdown.NewConverter().Convert(`<p>One</p><div><br><br><br></div><p>Two</p>`, "")
	require.NoError(t, err)
	assert.NotContains(t, md, "\n\n\n")
}

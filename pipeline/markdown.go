package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fwojciec/docindex"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Ensure MarkdownPipeline implements docindex.ContentPipeline at compile time.
var _ docindex.ContentPipeline = (*MarkdownPipeline)(nil)

// MarkdownPipeline splits Markdown documents by heading and collects
// their links.
type MarkdownPipeline struct {
	Splitter docindex.Splitter
}

// CanProcess accepts Markdown and MDX.
func (p *MarkdownPipeline) CanProcess(mimeType string) bool {
	switch mimeType {
	case "text/markdown", "text/x-markdown", "text/mdx":
		return true
	}
	return false
}

// Process converts a Markdown document.
func (p *MarkdownPipeline) Process(ctx context.Context, raw *docindex.RawContent, opts docindex.ScraperOptions) (*docindex.PipelineResult, error) {
	if err := canceled(ctx); err != nil {
		return nil, err
	}

	content := decode(raw.Content, "text/plain", raw.Charset)
	content = stripFrontMatter(content)

	chunks, err := p.Splitter.Split(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("splitting: %w", err)
	}

	src := []byte(content)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	return &docindex.PipelineResult{
		Title:   title(headings(doc, src)),
		Content: content,
		Chunks:  chunks,
		Links:   markdownLinks(doc, src, raw.SourceURL),
	}, nil
}

// markdownLinks returns the absolute destinations of links and autolinks
// in document order without duplicates.
func markdownLinks(doc ast.Node, src []byte, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}

	seen := make(map[string]bool)
	var links []string
	add := func(href string) {
		link, ok := docindex.ResolveLink(base, href)
		if !ok || seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Link:
			add(string(v.Destination))
		case *ast.AutoLink:
			if v.AutoLinkType == ast.AutoLinkURL {
				add(string(v.URL(src)))
			}
		}
		return ast.WalkContinue, nil
	})

	return links
}

// stripFrontMatter removes a leading YAML front matter block.
func stripFrontMatter(s string) string {
	if !strings.HasPrefix(s, "---\n") {
		return s
	}
	end := strings.Index(s[4:], "\n---")
	if end < 0 {
		return s
	}
	rest := s[4+end+4:]
	return strings.TrimLeft(rest, "\r\n")
}

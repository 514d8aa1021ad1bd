package pipeline

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/fwojciec/docindex"
)

// DefaultChunkSize is the default maximum chunk size in bytes.
const DefaultChunkSize = 1500

var (
	_ docindex.Splitter = (*MarkdownSplitter)(nil)
	_ docindex.Splitter = (*TextSplitter)(nil)
)

// MarkdownSplitter splits markdown along its heading structure. Each chunk
// carries the heading path it sits under. Paragraphs of one section are
// packed together up to MaxSize; fenced code blocks become chunks of their
// own. When Counter and MaxTokens are set, chunks over the token budget
// are halved until they fit.
type MarkdownSplitter struct {
	MaxSize   int
	Counter   docindex.TokenCounter
	MaxTokens int
}

func (s *MarkdownSplitter) maxSize() int {
	if s.MaxSize <= 0 {
		return DefaultChunkSize
	}
	return s.MaxSize
}

// Split splits content into chunks.
func (s *MarkdownSplitter) Split(ctx context.Context, content string) ([]docindex.Chunk, error) {
	maxSize := s.maxSize()

	var chunks []docindex.Chunk
	var buf strings.Builder
	var bufPath []string
	bufHasBody := false

	flush := func() {
		if bufHasBody {
			chunks = append(chunks, docindex.Chunk{
				Content: strings.TrimSpace(buf.String()),
				Path:    bufPath,
				Kind:    docindex.ChunkText,
			})
		}
		buf.Reset()
		bufHasBody = false
	}

	for _, b := range parseBlocks(content) {
		switch {
		case b.heading:
			flush()
		case b.kind == docindex.ChunkCode:
			flush()
			for _, part := range splitLines(b.text, maxSize) {
				chunks = append(chunks, docindex.Chunk{Content: part, Path: b.path, Kind: docindex.ChunkCode})
			}
			continue
		case len(b.text) > maxSize:
			flush()
			for _, part := range splitLines(b.text, maxSize) {
				chunks = append(chunks, docindex.Chunk{Content: part, Path: b.path, Kind: docindex.ChunkText})
			}
			continue
		case buf.Len() > 0 && buf.Len()+len(b.text)+2 > maxSize:
			flush()
		}

		if buf.Len() == 0 {
			bufPath = b.path
		} else {
			buf.WriteString("\n\n")
		}
		buf.WriteString(b.text)
		if !b.heading {
			bufHasBody = true
		}
	}
	flush()

	if s.Counter != nil && s.MaxTokens > 0 {
		return fitTokens(ctx, s.Counter, s.MaxTokens, chunks)
	}
	return chunks, nil
}

// TextSplitter packs lines into chunks of at most MaxSize bytes.
type TextSplitter struct {
	MaxSize int
	// Kind is set on every chunk; ChunkText when empty.
	Kind string
}

// Split splits content into chunks.
func (s *TextSplitter) Split(ctx context.Context, content string) ([]docindex.Chunk, error) {
	maxSize := s.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultChunkSize
	}
	kind := s.Kind
	if kind == "" {
		kind = docindex.ChunkText
	}

	var chunks []docindex.Chunk
	for _, part := range splitLines(strings.TrimSpace(content), maxSize) {
		if err := ctx.Err(); err != nil {
			return nil, docindex.ErrCanceled(err)
		}
		chunks = append(chunks, docindex.Chunk{Content: part, Kind: kind})
	}
	return chunks, nil
}

type block struct {
	text    string
	path    []string
	kind    string
	heading bool
}

// parseBlocks splits markdown into headings, paragraphs and fenced code
// blocks, tracking the heading path of each.
func parseBlocks(content string) []block {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	var blocks []block
	var levels [6]string
	var path []string
	var para []string

	flushPara := func() {
		if len(para) > 0 {
			blocks = append(blocks, block{text: strings.Join(para, "\n"), path: path, kind: docindex.ChunkText})
			para = nil
		}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if fence := fenceMarker(line); fence != "" {
			flushPara()
			start := i
			for i++; i < len(lines) && !strings.HasPrefix(strings.TrimSpace(lines[i]), fence); i++ {
			}
			end := min(i, len(lines)-1)
			blocks = append(blocks, block{text: strings.Join(lines[start:end+1], "\n"), path: path, kind: docindex.ChunkCode})
			continue
		}

		if level, title, ok := parseHeading(line); ok {
			flushPara()
			levels[level-1] = title
			for j := level; j < len(levels); j++ {
				levels[j] = ""
			}
			path = nil
			for _, l := range levels {
				if l != "" {
					path = append(path, l)
				}
			}
			blocks = append(blocks, block{text: strings.TrimSpace(line), path: path, kind: docindex.ChunkText, heading: true})
			continue
		}

		if strings.TrimSpace(line) == "" {
			flushPara()
			continue
		}
		para = append(para, line)
	}
	flushPara()

	return blocks
}

func fenceMarker(line string) string {
	trimmed := strings.TrimLeft(line, " ")
	switch {
	case strings.HasPrefix(trimmed, "```"):
		return "```"
	case strings.HasPrefix(trimmed, "~~~"):
		return "~~~"
	}
	return ""
}

// parseHeading recognizes ATX headings.
func parseHeading(line string) (level int, title string, ok bool) {
	trimmed := strings.TrimLeft(line, " ")
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0, "", false
	}
	rest := trimmed[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return 0, "", false
	}
	title = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(rest), "#"))
	if title == "" {
		return 0, "", false
	}
	return level, title, true
}

// splitLines packs whole lines into parts of at most maxSize bytes. Lines
// longer than maxSize are cut at rune boundaries.
func splitLines(text string, maxSize int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= maxSize {
		return []string{text}
	}

	var parts []string
	var buf strings.Builder
	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			parts = append(parts, s)
		}
		buf.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		if len(line) > maxSize {
			flush()
			parts = append(parts, cutRunes(line, maxSize)...)
			continue
		}
		if buf.Len() > 0 && buf.Len()+len(line)+1 > maxSize {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(line)
	}
	flush()
	return parts
}

func cutRunes(s string, maxSize int) []string {
	var parts []string
	for len(s) > maxSize {
		cut := maxSize
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = maxSize
		}
		parts = append(parts, s[:cut])
		s = s[cut:]
	}
	if s != "" {
		parts = append(parts, s)
	}
	return parts
}

// fitTokens halves chunks until each is within maxTokens.
func fitTokens(ctx context.Context, counter docindex.TokenCounter, maxTokens int, chunks []docindex.Chunk) ([]docindex.Chunk, error) {
	var out []docindex.Chunk
	for len(chunks) > 0 {
		c := chunks[0]
		chunks = chunks[1:]

		n, err := counter.CountTokens(ctx, c.Content)
		if err != nil {
			return nil, err
		}
		if n <= maxTokens {
			out = append(out, c)
			continue
		}

		a, b, ok := halve(c.Content)
		if !ok {
			out = append(out, c)
			continue
		}
		first, second := c, c
		first.Content, second.Content = a, b
		chunks = append([]docindex.Chunk{first, second}, chunks...)
	}
	return out, nil
}

// halve splits s in two at a line boundary, or at a rune boundary for a
// single line.
func halve(s string) (string, string, bool) {
	lines := strings.Split(s, "\n")
	if len(lines) > 1 {
		mid := len(lines) / 2
		return strings.Join(lines[:mid], "\n"), strings.Join(lines[mid:], "\n"), true
	}
	runes := []rune(s)
	if len(runes) < 2 {
		return "", "", false
	}
	mid := len(runes) / 2
	return string(runes[:mid]), string(runes[mid:]), true
}

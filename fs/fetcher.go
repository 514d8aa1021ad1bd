// Package fs provides a docindex.Fetcher for local files addressed by
// file:// URLs.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/fwojciec/docindex"
	"github.com/gabriel-vasile/mimetype"
)

// maxFileSize caps how much of a file is read.
const maxFileSize = 32 << 20

// Ensure Fetcher implements docindex.Fetcher at compile time.
var _ docindex.Fetcher = (*Fetcher)(nil)

// Fetcher reads local files. Its ETag is derived from modification time
// and size, so an unchanged file is reported as not modified without
// reading it.
type Fetcher struct{}

// NewFetcher creates a new file Fetcher.
func NewFetcher() *Fetcher {
	return &Fetcher{}
}

// extensionTypes maps documentation and source extensions to MIME types.
// Anything else is sniffed from content.
var extensionTypes = map[string]string{
	".md":       "text/markdown",
	".mdx":      "text/markdown",
	".markdown": "text/markdown",
	".rst":      "text/x-rst",
	".adoc":     "text/asciidoc",
	".txt":      "text/plain",
	".html":     "text/html",
	".htm":      "text/html",
	".json":     "application/json",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".js":       "text/javascript",
	".ts":       "text/x-typescript",
	".rs":       "text/x-rust",
}

// FilePath returns the local path a file:// URL refers to.
func FilePath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("not a file URL: %s", rawURL)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("remote file host not supported: %s", u.Host)
	}
	return filepath.FromSlash(u.Path), nil
}

// CanFetch reports whether source is a file:// URL.
func (f *Fetcher) CanFetch(source string) bool {
	return strings.HasPrefix(strings.ToLower(source), "file://")
}

// Fetch reads the file at source. Missing files are FetchNotFound.
func (f *Fetcher) Fetch(ctx context.Context, source string, opts docindex.FetchOptions) (*docindex.RawContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, docindex.ErrCanceled(err)
	}

	p, err := FilePath(source)
	if err != nil {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindInvalidURL, URL: source, Err: err}
	}

	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return &docindex.RawContent{Status: docindex.FetchNotFound, SourceURL: source}, nil
	} else if err != nil {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindFetch, URL: source, Err: err}
	}
	if info.IsDir() {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindFetch, URL: source, Err: errors.New("is a directory")}
	}
	if info.Size() > maxFileSize {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindFetch, URL: source, Err: fmt.Errorf("file too large: %d bytes", info.Size())}
	}

	etag := fileETag(info)
	lastModified := info.ModTime().UTC().Format(http.TimeFormat)
	if opts.ETag != "" && opts.ETag == etag {
		return &docindex.RawContent{
			Status:       docindex.FetchNotModified,
			SourceURL:    source,
			ETag:         etag,
			LastModified: lastModified,
		}, nil
	}

	content, err := os.ReadFile(p)
	if err != nil {
		return nil, &docindex.ScraperError{Kind: docindex.ErrKindFetch, URL: source, Err: err}
	}

	mimeType, charset := detectType(p, content)
	return &docindex.RawContent{
		Content:      content,
		MimeType:     mimeType,
		Charset:      charset,
		ETag:         etag,
		LastModified: lastModified,
		SourceURL:    source,
		Status:       docindex.FetchSuccess,
	}, nil
}

// Close is a no-op.
func (f *Fetcher) Close() error {
	return nil
}

func fileETag(info fs.FileInfo) string {
	h := xxhash.Sum64String(fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size()))
	return fmt.Sprintf(`"%016x"`, h)
}

func detectType(path string, content []byte) (mimeType, charset string) {
	detected := mimetype.Detect(content)
	_, params, _ := mime.ParseMediaType(detected.String())
	charset = params["charset"]

	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t, charset
	}
	mt, _, err := mime.ParseMediaType(detected.String())
	if err != nil {
		return detected.String(), charset
	}
	return mt, charset
}

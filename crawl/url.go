package crawl

import (
	"net/url"
	"path"
	"strings"
)

// indexFiles are directory index documents dropped during normalization.
var indexFiles = []string{"index.html", "index.htm"}

// NormalizeURL returns the form of rawURL used for visited-set membership:
// lower-cased, fragment removed, trailing slash and index document dropped.
// The query string is kept. NormalizeURL is idempotent. Unparseable input
// is returned lower-cased and trimmed.
func NormalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(rawURL)
	}
	u.Fragment = ""
	u.RawFragment = ""

	p := u.EscapedPath()
	base := path.Base(p)
	for _, idx := range indexFiles {
		if strings.EqualFold(base, idx) {
			p = strings.TrimSuffix(p, base)
			break
		}
	}
	p = strings.TrimRight(p, "/")

	var sb strings.Builder
	if u.Scheme != "" {
		sb.WriteString(u.Scheme)
		sb.WriteString(":")
	}
	if u.Scheme == "file" || u.Host != "" {
		sb.WriteString("//")
		sb.WriteString(u.Host)
	}
	sb.WriteString(p)
	if u.RawQuery != "" {
		sb.WriteString("?")
		sb.WriteString(u.RawQuery)
	}
	return strings.ToLower(sb.String())
}

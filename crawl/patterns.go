package crawl

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/fwojciec/docindex"
	"github.com/gobwas/glob"
)

// DefaultExcludePatterns apply when a crawl supplies no exclude patterns.
var DefaultExcludePatterns = []string{
	"**/CHANGELOG*",
	"**/changelog*",
	"**/LICENSE*",
	"**/license*",
	"**/CODE_OF_CONDUCT*",
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/archive/**",
	"**/archived/**",
	"**/deprecated/**",
	"**/legacy/**",
	"**/i18n/**",
	"**/*.min.js",
	"**/*.map",
	"**/*.lock",
	"**/package-lock.json",
	"**/go.sum",
}

// matcher matches a single include or exclude pattern.
type matcher interface {
	Match(s string) bool
}

type regexMatcher struct {
	re *regexp.Regexp
}

func (m regexMatcher) Match(s string) bool { return m.re.MatchString(s) }

// PatternFilter decides whether a URL passes include and exclude patterns.
// A pattern wrapped in slashes is a regular expression; anything else is
// a glob where "*" stays within a path segment and "**" crosses segments.
type PatternFilter struct {
	include []matcher
	exclude []matcher
}

// NewPatternFilter compiles the patterns. When exclude is empty the
// default exclude set is used.
func NewPatternFilter(include, exclude []string) (*PatternFilter, error) {
	if len(exclude) == 0 {
		exclude = DefaultExcludePatterns
	}
	f := &PatternFilter{}
	var err error
	if f.include, err = compilePatterns(include); err != nil {
		return nil, err
	}
	if f.exclude, err = compilePatterns(exclude); err != nil {
		return nil, err
	}
	return f, nil
}

func compilePatterns(patterns []string) ([]matcher, error) {
	matchers := make([]matcher, 0, len(patterns))
	for _, p := range patterns {
		m, err := compilePattern(p)
		if err != nil {
			return nil, err
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}

func compilePattern(p string) (matcher, error) {
	if len(p) > 2 && strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/") {
		re, err := regexp.Compile(p[1 : len(p)-1])
		if err != nil {
			return nil, docindex.Errorf(docindex.EINVALID, "invalid pattern %q: %v", p, err)
		}
		return regexMatcher{re: re}, nil
	}
	g, err := glob.Compile(p, '/')
	if err != nil {
		return nil, docindex.Errorf(docindex.EINVALID, "invalid pattern %q: %v", p, err)
	}
	return g, nil
}

// Match reports whether rawURL passes the filter. Exclusion wins over
// inclusion. With no include patterns every non-excluded URL passes.
func (f *PatternFilter) Match(rawURL string) bool {
	candidates := matchCandidates(rawURL)
	if matchesAny(f.exclude, candidates) {
		return false
	}
	if len(f.include) == 0 {
		return true
	}
	return matchesAny(f.include, candidates)
}

// matchCandidates returns the strings a pattern is tested against: the
// full URL, its path (with query) and, for file URLs, the base name.
func matchCandidates(rawURL string) []string {
	candidates := []string{rawURL}
	u, err := url.Parse(rawURL)
	if err != nil {
		return candidates
	}
	p := u.Path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if u.RawQuery != "" {
		candidates = append(candidates, p+"?"+u.RawQuery)
	}
	candidates = append(candidates, p)
	if u.Scheme == "file" {
		candidates = append(candidates, path.Base(u.Path))
	}
	return candidates
}

func matchesAny(matchers []matcher, candidates []string) bool {
	for _, m := range matchers {
		for _, c := range candidates {
			if m.Match(c) {
				return true
			}
		}
	}
	return false
}

package crawl

import (
	"context"
	"net/url"
	"strings"

	"github.com/fwojciec/docindex"
)

var (
	_ docindex.ScraperStrategy = (*RegistryStrategy)(nil)
	_ LinkFilter               = (*RegistryStrategy)(nil)
)

// registryHosts maps package registry hosts to the path prefix of a package page.
var registryHosts = map[string]string{
	"www.npmjs.com": "/package/",
	"npmjs.com":     "/package/",
	"pypi.org":      "/project/",
}

// RegistryStrategy crawls a package page on npm or PyPI, staying inside
// that package's pages. Fetching and parsing is done by the web strategy.
type RegistryStrategy struct {
	Web *WebStrategy
}

func (s *RegistryStrategy) Name() string { return "registry" }

// CanHandle accepts npm and PyPI package URLs.
func (s *RegistryStrategy) CanHandle(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := packageRoot(u)
	return ok
}

func (s *RegistryStrategy) Scrape(ctx context.Context, opts docindex.ScraperOptions, progress docindex.ProgressFunc) error {
	return s.Web.walker().Walk(ctx, opts, s, progress)
}

// ProcessItem delegates to the web strategy and drops query-string links,
// which on registries only select tabs of the same page.
func (s *RegistryStrategy) ProcessItem(ctx context.Context, item docindex.QueueItem, opts docindex.ScraperOptions) (*ItemResult, error) {
	res, err := s.Web.ProcessItem(ctx, item, opts)
	if err != nil || res == nil {
		return res, err
	}
	links := res.Links[:0:0]
	for _, link := range res.Links {
		if !strings.Contains(link, "?") {
			links = append(links, link)
		}
	}
	res.Links = links
	return res, nil
}

// FollowLink keeps links under the same package on the same host.
func (s *RegistryStrategy) FollowLink(root, link *url.URL) bool {
	if !sameHost(root, link) {
		return false
	}
	prefix, ok := packageRoot(root)
	if !ok {
		return false
	}
	return link.Path == prefix || strings.HasPrefix(link.Path, prefix+"/")
}

// packageRoot returns the path of the package page, e.g. /package/react.
// Scoped npm packages keep both segments.
func packageRoot(u *url.URL) (string, bool) {
	prefix, ok := registryHosts[strings.ToLower(u.Host)]
	if !ok || !strings.HasPrefix(u.Path, prefix) {
		return "", false
	}
	segments := strings.Split(strings.TrimPrefix(u.Path, prefix), "/")
	if segments[0] == "" {
		return "", false
	}
	n := 1
	if strings.HasPrefix(segments[0], "@") && len(segments) > 1 && segments[1] != "" {
		n = 2
	}
	return prefix + strings.Join(segments[:n], "/"), true
}

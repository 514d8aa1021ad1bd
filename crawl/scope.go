package crawl

import (
	"net/url"
	"strings"

	"github.com/fwojciec/docindex"
	"golang.org/x/net/publicsuffix"
)

// InScope reports whether target may be followed from a crawl rooted at base.
// Protocols must match. Hosts are compared without their port. For
// ScopeSubpages the target must be on the same host and under the directory
// of the root URL's path.
func InScope(base, target *url.URL, scope docindex.Scope) bool {
	if !strings.EqualFold(base.Scheme, target.Scheme) {
		return false
	}
	switch scope {
	case docindex.ScopeHostname:
		return sameHost(base, target)
	case docindex.ScopeDomain:
		return registrableDomain(base.Hostname()) == registrableDomain(target.Hostname())
	default:
		if !sameHost(base, target) {
			return false
		}
		return strings.HasPrefix(target.Path, baseDirectory(base.Path))
	}
}

func sameHost(a, b *url.URL) bool {
	return strings.EqualFold(a.Hostname(), b.Hostname())
}

// baseDirectory returns the directory part of a URL path, with a trailing slash.
func baseDirectory(p string) string {
	if p == "" {
		return "/"
	}
	if strings.HasSuffix(p, "/") {
		return p
	}
	return p[:strings.LastIndex(p, "/")+1]
}

// registrableDomain returns the eTLD+1 of host, falling back to the
// lower-cased host for IPs, localhost and public suffixes themselves.
func registrableDomain(host string) string {
	host = strings.ToLower(host)
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

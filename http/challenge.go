package http

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// challengeTitles are page titles of known bot-challenge interstitials.
var challengeTitles = []string{
	"just a moment...",
	"attention required! | cloudflare",
	"ddos-guard",
	"please wait while we verify",
	"vercel security checkpoint",
}

// challengeSelector matches elements of known bot-challenge pages.
const challengeSelector = "#challenge-form, #challenge-running, #cf-challenge-running, " +
	".cf-browser-verification, #challenge-platform, script[src*='/cdn-cgi/challenge-platform/']"

// IsChallenge reports whether a 403 response is a bot challenge that a
// real browser could pass.
func IsChallenge(header http.Header, body []byte) bool {
	if strings.EqualFold(header.Get("Cf-Mitigated"), "challenge") ||
		strings.EqualFold(header.Get("X-Vercel-Mitigated"), "challenge") {
		return true
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
		for _, t := range challengeTitles {
			if strings.Contains(title, t) {
				return true
			}
		}
		if doc.Find(challengeSelector).Length() > 0 {
			return true
		}
	}

	server := strings.ToLower(header.Get("Server"))
	return strings.Contains(server, "cloudflare") && bytes.Contains(body, []byte("cf-chl"))
}

package http

import (
	"math/rand/v2"
	"net/http"
)

// browserProfile is a consistent set of headers sent by one real browser.
type browserProfile struct {
	userAgent string
	accept    string
	secChUA   string
	platform  string
}

var browserProfiles = []browserProfile{
	{
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		secChUA:   `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
		platform:  `"Windows"`,
	},
	{
		userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		secChUA:   `"Google Chrome";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
		platform:  `"macOS"`,
	},
	{
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
		accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8",
		secChUA:   `"Microsoft Edge";v="131", "Chromium";v="131", "Not_A Brand";v="24"`,
		platform:  `"Windows"`,
	},
	{
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
		accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	},
	{
		userAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:133.0) Gecko/20100101 Firefox/133.0",
		accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	},
	{
		userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15",
		accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	},
}

var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9,en-US;q=0.8",
	"en-US,en;q=0.8",
}

// randomHeaders returns the headers of a randomly chosen browser profile.
func randomHeaders() http.Header {
	p := browserProfiles[rand.IntN(len(browserProfiles))]
	h := http.Header{}
	h.Set("User-Agent", p.userAgent)
	h.Set("Accept", p.accept)
	h.Set("Accept-Language", acceptLanguages[rand.IntN(len(acceptLanguages))])
	h.Set("Upgrade-Insecure-Requests", "1")
	if p.secChUA != "" {
		h.Set("Sec-Ch-Ua", p.secChUA)
		h.Set("Sec-Ch-Ua-Mobile", "?0")
		h.Set("Sec-Ch-Ua-Platform", p.platform)
		h.Set("Sec-Fetch-Dest", "document")
		h.Set("Sec-Fetch-Mode", "navigate")
		h.Set("Sec-Fetch-Site", "none")
		h.Set("Sec-Fetch-User", "?1")
	}
	return h
}

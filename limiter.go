package docindex

import "context"

// DomainLimiter paces outgoing requests per host so a crawl stays polite
// to every server it touches.
type DomainLimiter interface {
	// Wait blocks until a request to host may be sent. It fails only when
	// ctx ends first.
	Wait(ctx context.Context, host string) error
}

package crawl

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/docindex"
	"golang.org/x/time/rate"
)

var _ docindex.DomainLimiter = (*DomainLimiter)(nil)

// defaultIdleTTL is how long an unused host bucket is kept.
const defaultIdleTTL = 10 * time.Minute

// DomainLimiter keeps one token bucket per host. Hosts are compared
// case-insensitively without port or a leading "www.". A rate of zero or
// less disables limiting for that host.
type DomainLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	rps       float64
	burst     int
	overrides map[string]float64
	idleTTL   time.Duration
	now       func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// LimiterOption configures a DomainLimiter.
type LimiterOption func(*DomainLimiter)

// WithBurst allows n requests to a host back to back before pacing starts.
func WithBurst(n int) LimiterOption {
	return func(d *DomainLimiter) {
		if n > 0 {
			d.burst = n
		}
	}
}

// WithHostRate sets a rate for one host, replacing the default.
func WithHostRate(host string, rps float64) LimiterOption {
	return func(d *DomainLimiter) {
		d.overrides[normalizeHost(host)] = rps
	}
}

// WithIdleTTL sets how long a bucket may sit unused before it is dropped.
func WithIdleTTL(ttl time.Duration) LimiterOption {
	return func(d *DomainLimiter) {
		d.idleTTL = ttl
	}
}

// NewDomainLimiter returns a limiter allowing rps requests per second to
// each host.
func NewDomainLimiter(rps float64, opts ...LimiterOption) *DomainLimiter {
	d := &DomainLimiter{
		buckets:   make(map[string]*bucket),
		rps:       rps,
		burst:     1,
		overrides: make(map[string]float64),
		idleTTL:   defaultIdleTTL,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Wait blocks until host's bucket has a token.
func (d *DomainLimiter) Wait(ctx context.Context, host string) error {
	l := d.limiter(normalizeHost(host))
	if l == nil {
		if err := ctx.Err(); err != nil {
			return docindex.ErrCanceled(err)
		}
		return nil
	}
	if err := l.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return docindex.ErrCanceled(ctx.Err())
		}
		// rate.Limiter reports a deadline it cannot meet before it expires.
		return docindex.ErrCanceled(context.DeadlineExceeded)
	}
	return nil
}

// Len returns the number of hosts currently tracked.
func (d *DomainLimiter) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buckets)
}

func (d *DomainLimiter) limiter(host string) *rate.Limiter {
	rps, ok := d.overrides[host]
	if !ok {
		rps = d.rps
	}
	if rps <= 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	d.evictLocked(now)

	b, ok := d.buckets[host]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(rps), d.burst)}
		d.buckets[host] = b
	}
	b.lastUsed = now
	return b.limiter
}

func (d *DomainLimiter) evictLocked(now time.Time) {
	if d.idleTTL <= 0 {
		return
	}
	for host, b := range d.buckets {
		// A bucket idle this long has refilled, so dropping it loses nothing.
		if now.Sub(b.lastUsed) > d.idleTTL {
			delete(d.buckets, host)
		}
	}
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	switch {
	case strings.HasPrefix(host, "["):
		if i := strings.IndexByte(host, ']'); i > 0 {
			host = host[1:i]
		}
	case strings.Count(host, ":") == 1:
		host = host[:strings.IndexByte(host, ':')]
	}
	return strings.TrimPrefix(host, "www.")
}

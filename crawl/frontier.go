package crawl

import (
	"sync"

	"github.com/fwojciec/docindex"
	"github.com/fwojciec/docindex/bloom"
)

// Initial sizing of the Bloom pre-check of the visited set. The filter
// grows past this on large sites.
const (
	frontierInitialURLs       = 1024
	frontierFalsePositiveRate = 0.01
)

// Frontier is the per-run crawl state: a FIFO queue of items and the set
// of normalized URLs already visited. It also tracks the number of URLs
// discovered and the number admitted to the queue.
// It is safe for concurrent use by multiple goroutines.
type Frontier struct {
	mu sync.Mutex
	// seen answers most misses without touching visited, which stays the
	// exact record so the visited count equals the discovered count.
	seen    *bloom.Filter
	visited map[string]struct{}
	queue   []docindex.QueueItem

	maxPages   int
	discovered int
	effective  int
}

// NewFrontier creates an empty frontier that stops admitting items to the
// queue once maxPages items have been admitted.
func NewFrontier(maxPages int) *Frontier {
	return &Frontier{
		seen:     bloom.NewFilter(frontierInitialURLs, frontierFalsePositiveRate),
		visited:  make(map[string]struct{}),
		maxPages: maxPages,
	}
}

// Visit marks the URL visited and counts it as discovered. When the
// admission cap has not been reached the item is queued. Returns false if
// the URL was already visited.
func (f *Frontier) Visit(item docindex.QueueItem) bool {
	key := NormalizeURL(item.URL)

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.seen.TestAndAdd(key) {
		if _, ok := f.visited[key]; ok {
			return false
		}
	}
	f.visited[key] = struct{}{}
	f.discovered++
	if f.effective < f.maxPages {
		f.effective++
		f.queue = append(f.queue, item)
	}
	return true
}

// Visited reports whether the URL has been visited.
func (f *Frontier) Visited(rawURL string) bool {
	key := NormalizeURL(rawURL)

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.seen.Test(key) {
		return false
	}
	_, ok := f.visited[key]
	return ok
}

// PopBatch removes up to n items from the head of the queue.
func (f *Frontier) PopBatch(n int) []docindex.QueueItem {
	f.mu.Lock()
	defer f.mu.Unlock()

	n = min(n, len(f.queue))
	if n <= 0 {
		return nil
	}
	batch := make([]docindex.QueueItem, n)
	copy(batch, f.queue[:n])
	f.queue = f.queue[n:]
	return batch
}

// Len returns the number of queued items.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Counts returns the number of visited URLs, the number of discovered URLs
// and the number admitted to the queue (capped at maxPages).
func (f *Frontier) Counts() (visited, discovered, effective int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited), f.discovered, f.effective
}

// Package bloom provides a probabilistic membership pre-check for crawl
// visited sets. The filter grows with the crawl so its false positive rate
// holds without knowing the site size up front.
package bloom

import (
	"math"

	"github.com/bits-and-blooms/bloom/v3"
)

// Growth parameters. Each new layer holds growthFactor times the keys of
// the previous one at tighteningRatio times its false positive rate, so the
// compound rate stays below the configured one.
const (
	growthFactor    = 2
	tighteningRatio = 0.5
)

type layer struct {
	f        *bloom.BloomFilter
	capacity uint
	keys     uint
}

// Filter is a scalable Bloom filter. Keys are only ever added to the
// newest layer; lookups check every layer.
type Filter struct {
	layers []*layer
	fpRate float64
	added  uint
}

// NewFilter creates a filter whose first layer holds n keys at the given
// false positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	if n == 0 {
		n = 1
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.01
	}
	f := &Filter{fpRate: fpRate * (1 - tighteningRatio)}
	f.grow(n)
	return f
}

func (f *Filter) grow(capacity uint) {
	rate := f.fpRate * math.Pow(tighteningRatio, float64(len(f.layers)))
	f.layers = append(f.layers, &layer{
		f:        bloom.NewWithEstimates(capacity, rate),
		capacity: capacity,
	})
}

// Add adds a key.
func (f *Filter) Add(key string) {
	f.TestAndAdd(key)
}

// Test reports whether the key might have been added. False positives are
// possible; false negatives are not.
func (f *Filter) Test(key string) bool {
	for _, l := range f.layers {
		if l.f.TestString(key) {
			return true
		}
	}
	return false
}

// TestAndAdd adds the key and reports whether it might have been present
// before.
func (f *Filter) TestAndAdd(key string) bool {
	if f.Test(key) {
		return true
	}
	last := f.layers[len(f.layers)-1]
	if last.keys >= last.capacity {
		f.grow(last.capacity * growthFactor)
		last = f.layers[len(f.layers)-1]
	}
	last.f.AddString(key)
	last.keys++
	f.added++
	return false
}

// Len returns the number of keys added. Keys mistaken for present ones
// are not counted.
func (f *Filter) Len() uint {
	return f.added
}

// Layers returns how many times the filter has been sized, including the
// first.
func (f *Filter) Layers() int {
	return len(f.layers)
}

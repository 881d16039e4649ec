package ruleset

import "github.com/haukened/rr-block/internal/block/domain"

// BloomSizer computes Bloom filter parameters from capacity (n) and target
// FP rate (p): m bits and k hash functions.
type BloomSizer interface {
	Size(n uint64, p float64) (m uint64, k uint8)
}

// BloomFilter is the minimal interface the engine needs from a Bloom filter.
type BloomFilter interface {
	Add(key []byte)
	MightContain(key []byte) bool
}

// BloomFactory builds filters sized for a dataset.
type BloomFactory interface {
	New(capacity uint64, fpRate float64) BloomFilter
}

// DecisionCache memoizes match decisions keyed by resource type and URL.
type DecisionCache interface {
	Get(key string) (domain.BlockDecision, bool)
	Put(key string, d domain.BlockDecision)
	Len() int
	Purge()
	Stats() (hits, misses, evictions uint64)
}

// Stats is a snapshot of engine counters.
type Stats struct {
	Rules     int    `json:"rules"`
	Version   uint64 `json:"version"` // incremented on every successful update
	Hits      uint64 `json:"cache_hits"`
	Misses    uint64 `json:"cache_misses"`
	Evictions uint64 `json:"cache_evictions"`
}

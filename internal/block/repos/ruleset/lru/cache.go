package lru

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/haukened/rr-block/internal/block/domain"
	"github.com/haukened/rr-block/internal/block/repos/ruleset"
)

// decisionCache is an LRU-backed ruleset.DecisionCache that counts hits,
// misses and evictions.
type decisionCache struct {
	lru       *lru.Cache[string, domain.BlockDecision]
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// disabledCache always misses. Used when size <= 0.
type disabledCache struct{}

// newLRU is a seam for tests.
var newLRU = func(size int, onEvict func(string, domain.BlockDecision)) (*lru.Cache[string, domain.BlockDecision], error) {
	return lru.NewWithEvict(size, onEvict)
}

// New creates a DecisionCache holding up to size decisions. A size <= 0
// yields a disabled cache.
func New(size int) (ruleset.DecisionCache, error) {
	if size <= 0 {
		return disabledCache{}, nil
	}
	dc := &decisionCache{}
	cache, err := newLRU(size, func(string, domain.BlockDecision) {
		dc.evictions.Add(1)
	})
	if err != nil {
		return nil, err
	}
	dc.lru = cache
	return dc, nil
}

func (c *decisionCache) Get(key string) (domain.BlockDecision, bool) {
	if v, ok := c.lru.Get(key); ok {
		c.hits.Add(1)
		return v, true
	}
	c.misses.Add(1)
	return domain.BlockDecision{}, false
}

func (c *decisionCache) Put(key string, d domain.BlockDecision) { c.lru.Add(key, d) }

func (c *decisionCache) Len() int { return c.lru.Len() }

// Purge drops every entry; each one counts as an eviction.
func (c *decisionCache) Purge() { c.lru.Purge() }

func (c *decisionCache) Stats() (hits, misses, evictions uint64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load()
}

func (disabledCache) Get(string) (domain.BlockDecision, bool) { return domain.BlockDecision{}, false }
func (disabledCache) Put(string, domain.BlockDecision)        {}
func (disabledCache) Len() int                                { return 0 }
func (disabledCache) Purge()                                  {}
func (disabledCache) Stats() (uint64, uint64, uint64)         { return 0, 0, 0 }

var _ ruleset.DecisionCache = (*decisionCache)(nil)
var _ ruleset.DecisionCache = disabledCache{}

package ruleset

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/haukened/rr-block/internal/block/common/utils"
	"github.com/haukened/rr-block/internal/block/domain"
)

// gram is the length of the filter prefix indexed in the Bloom prefilter.
// Filters shorter than gram bypass the prefilter.
const gram = 3

// snapshot is an immutable installed rule set plus its derived indexes.
type snapshot struct {
	rules   []domain.Rule // ordered by id
	byID    map[int]domain.Rule
	filters []string // lowercased URLFilter, parallel to rules
	bloom   BloomFilter
	short   bool // at least one filter is shorter than gram
}

// Engine is an in-process declarative rule engine. Rule sets are replaced
// as a whole: every UpdateRules call either installs its full batch or
// leaves the previous set untouched. Match applies a bloom → cache → scan
// pipeline over the current snapshot.
type Engine struct {
	mu       sync.RWMutex
	snap     *snapshot
	version  uint64
	capacity int
	cache    DecisionCache
	factory  BloomFactory
	fpRate   float64
}

// NewEngine constructs an empty Engine with ids addressable in [1, capacity].
func NewEngine(capacity int, cache DecisionCache, factory BloomFactory, fpRate float64) *Engine {
	return &Engine{
		snap:     &snapshot{byID: map[int]domain.Rule{}},
		capacity: capacity,
		cache:    cache,
		factory:  factory,
		fpRate:   fpRate,
	}
}

// Capacity returns the size of the addressable id range.
func (e *Engine) Capacity() int { return e.capacity }

// UpdateRules removes RemoveIDs, then adds Add, as one atomic batch.
// Removing an id that is not installed is a no-op. Any invalid rule,
// duplicate id, or capacity overrun rejects the whole batch.
func (e *Engine) UpdateRules(ctx context.Context, u domain.RuleUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := make(map[int]domain.Rule, len(e.snap.byID)+len(u.Add))
	for id, r := range e.snap.byID {
		next[id] = r
	}
	for _, id := range u.RemoveIDs {
		delete(next, id)
	}
	for _, r := range u.Add {
		if err := r.Validate(e.capacity); err != nil {
			return err
		}
		if _, dup := next[r.ID]; dup {
			return fmt.Errorf("%w: duplicate rule id %d", domain.ErrInvalidRule, r.ID)
		}
		next[r.ID] = cloneRule(r)
	}
	if len(next) > e.capacity {
		return fmt.Errorf("%w: %d rules, capacity %d", domain.ErrCapacityExceeded, len(next), e.capacity)
	}

	e.snap = e.buildSnapshot(next)
	e.version++
	if e.cache != nil {
		e.cache.Purge()
	}
	return nil
}

func (e *Engine) buildSnapshot(byID map[int]domain.Rule) *snapshot {
	s := &snapshot{byID: byID}
	for _, r := range byID {
		s.rules = append(s.rules, r)
	}
	sort.Slice(s.rules, func(i, j int) bool { return s.rules[i].ID < s.rules[j].ID })

	s.filters = make([]string, len(s.rules))
	var n uint64
	for i, r := range s.rules {
		s.filters[i] = strings.ToLower(r.URLFilter)
		if len(s.filters[i]) < gram {
			s.short = true
		} else {
			n++
		}
	}
	if e.factory != nil && n > 0 {
		s.bloom = e.factory.New(n, e.fpRate)
		for _, f := range s.filters {
			if len(f) >= gram {
				s.bloom.Add([]byte(f[:gram]))
			}
		}
	}
	return s
}

// Rules returns the installed rules ordered by id.
func (e *Engine) Rules() []domain.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]domain.Rule, 0, len(e.snap.rules))
	for _, r := range e.snap.rules {
		out = append(out, cloneRule(r))
	}
	return out
}

// Match decides whether a request for rawURL of type rt is blocked.
// Filters match case-insensitively anywhere in the URL; among matching
// rules the lowest id wins.
func (e *Engine) Match(rawURL string, rt domain.ResourceType) domain.BlockDecision {
	e.mu.RLock()
	s := e.snap
	e.mu.RUnlock()

	if len(s.rules) == 0 {
		return domain.AllowDecision()
	}
	lower := strings.ToLower(rawURL)

	// 1) checkBloom: early-allow when no filter prefix occurs in the URL
	if !s.mightMatch(lower) {
		return domain.AllowDecision()
	}
	// 2) checkCache
	key := string(rt) + " " + lower
	if d, ok := e.checkCache(key); ok {
		return d
	}
	// 3) scan
	dec := domain.AllowDecision()
	for i, r := range s.rules {
		if r.AppliesTo(rt) && strings.Contains(lower, s.filters[i]) {
			dec = domain.BlockDecision{
				Blocked:   true,
				RuleID:    r.ID,
				URLFilter: r.URLFilter,
				Site:      utils.SiteOf(rawURL),
			}
			break
		}
	}
	e.updateCache(s, key, dec)
	return dec
}

// mightMatch reports whether any window of the URL is a possible filter
// prefix. Without a filter, or with a filter too short to index, it
// always answers true.
func (s *snapshot) mightMatch(lower string) bool {
	if s.bloom == nil || s.short {
		return true
	}
	for i := 0; i+gram <= len(lower); i++ {
		if s.bloom.MightContain([]byte(lower[i : i+gram])) {
			return true
		}
	}
	return false
}

func (e *Engine) checkCache(key string) (domain.BlockDecision, bool) {
	if e.cache == nil {
		return domain.BlockDecision{}, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cache.Get(key)
}

// updateCache stores dec unless the snapshot it was computed from has
// already been replaced.
func (e *Engine) updateCache(s *snapshot, key string, dec domain.BlockDecision) {
	if e.cache == nil {
		return
	}
	e.mu.Lock()
	if e.snap == s {
		e.cache.Put(key, dec)
	}
	e.mu.Unlock()
}

// Stats returns engine counters.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	st := Stats{Rules: len(e.snap.rules), Version: e.version}
	if e.cache != nil {
		st.Hits, st.Misses, st.Evictions = e.cache.Stats()
	}
	return st
}

func cloneRule(r domain.Rule) domain.Rule {
	r.ResourceTypes = append([]domain.ResourceType(nil), r.ResourceTypes...)
	return r
}

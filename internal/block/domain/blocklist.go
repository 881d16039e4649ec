package domain

import (
	"fmt"

	"github.com/haukened/rr-block/internal/block/common/utils"
)

// BlockEntry is a single website substring and whether it is blocked.
type BlockEntry struct {
	Site    string `json:"site"`
	Enabled bool   `json:"enabled"`
}

// BlockList is an ordered mapping of site substrings to enabled flags.
// Keys are unique and case-sensitive. Iteration follows insertion order,
// which is what makes rule id assignment deterministic.
//
// The zero value is an empty list ready for use. A BlockList is not safe for
// concurrent mutation; callers own synchronization.
type BlockList struct {
	order   []string
	enabled map[string]bool
}

// NewBlockList builds a list from entries in order. Entries are normalized
// and must be non-empty and unique.
func NewBlockList(entries ...BlockEntry) (*BlockList, error) {
	l := &BlockList{}
	for _, e := range entries {
		if err := l.Add(e.Site); err != nil {
			return nil, err
		}
		if !e.Enabled {
			l.enabled[utils.NormalizeEntry(e.Site)] = false
		}
	}
	return l, nil
}

// Add appends site as a new enabled entry.
func (l *BlockList) Add(site string) error {
	site = utils.NormalizeEntry(site)
	if site == "" {
		return fmt.Errorf("%w: site must not be empty", ErrInvalidEntry)
	}
	if l.enabled == nil {
		l.enabled = make(map[string]bool)
	}
	if _, ok := l.enabled[site]; ok {
		return fmt.Errorf("%w: %q", ErrEntryExists, site)
	}
	l.order = append(l.order, site)
	l.enabled[site] = true
	return nil
}

// Remove deletes site from the list.
func (l *BlockList) Remove(site string) error {
	site = utils.NormalizeEntry(site)
	if _, ok := l.enabled[site]; !ok {
		return fmt.Errorf("%w: %q", ErrEntryNotFound, site)
	}
	delete(l.enabled, site)
	for i, s := range l.order {
		if s == site {
			l.order = append(l.order[:i:i], l.order[i+1:]...)
			break
		}
	}
	return nil
}

// SetEnabled updates the flag of an existing entry.
func (l *BlockList) SetEnabled(site string, enabled bool) error {
	site = utils.NormalizeEntry(site)
	if _, ok := l.enabled[site]; !ok {
		return fmt.Errorf("%w: %q", ErrEntryNotFound, site)
	}
	l.enabled[site] = enabled
	return nil
}

// Enabled reports the flag for site and whether the entry exists.
func (l *BlockList) Enabled(site string) (enabled, ok bool) {
	if l == nil {
		return false, false
	}
	enabled, ok = l.enabled[utils.NormalizeEntry(site)]
	return enabled, ok
}

// Len returns the number of entries.
func (l *BlockList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.order)
}

// Entries returns a copy of all entries in insertion order.
func (l *BlockList) Entries() []BlockEntry {
	if l == nil {
		return nil
	}
	out := make([]BlockEntry, 0, len(l.order))
	for _, s := range l.order {
		out = append(out, BlockEntry{Site: s, Enabled: l.enabled[s]})
	}
	return out
}

// Sites returns every site in insertion order, enabled or not.
func (l *BlockList) Sites() []string {
	if l == nil {
		return nil
	}
	return append([]string(nil), l.order...)
}

// Active returns the enabled sites in insertion order.
func (l *BlockList) Active() []string {
	if l == nil {
		return nil
	}
	var out []string
	for _, s := range l.order {
		if l.enabled[s] {
			out = append(out, s)
		}
	}
	return out
}

// Clone returns a deep copy.
func (l *BlockList) Clone() *BlockList {
	c := &BlockList{}
	if l == nil {
		return c
	}
	c.order = append([]string(nil), l.order...)
	c.enabled = make(map[string]bool, len(l.enabled))
	for k, v := range l.enabled {
		c.enabled[k] = v
	}
	return c
}

// Equal reports whether both lists hold the same entries in the same order.
func (l *BlockList) Equal(o *BlockList) bool {
	if l.Len() != o.Len() {
		return false
	}
	for i, s := range l.Sites() {
		if o.order[i] != s || o.enabled[s] != l.enabled[s] {
			return false
		}
	}
	return true
}

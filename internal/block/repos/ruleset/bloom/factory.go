package bloom

import (
	bitsbloom "github.com/bits-and-blooms/bloom/v3"

	"github.com/haukened/rr-block/internal/block/repos/ruleset"
)

// factory implements ruleset.BloomFactory on top of a BloomSizer.
type factory struct {
	sizer ruleset.BloomSizer
}

// NewFactory returns a BloomFactory that sizes filters from capacity and FP rate.
func NewFactory() ruleset.BloomFactory { return factory{sizer: NewSizer()} }

// New constructs a filter sized for capacity keys at the target fpRate.
func (f factory) New(capacity uint64, fpRate float64) ruleset.BloomFilter {
	m, k := f.sizer.Size(capacity, fpRate)
	return &filter{bf: bitsbloom.New(uint(m), uint(k))}
}

package blocklist

import (
	"context"

	"github.com/haukened/rr-block/internal/block/domain"
	"github.com/haukened/rr-block/internal/block/services/synchronizer"
)

// StateStore is the key-value store holding the block list and global flag.
// Load on an empty store returns domain.DefaultState.
type StateStore interface {
	Load(ctx context.Context) (domain.State, error)
	Save(ctx context.Context, st domain.State) error
	Close() error
}

// Synchronizer projects a state onto installed rules and open tabs.
type Synchronizer interface {
	Synchronize(ctx context.Context, st domain.State) (synchronizer.Report, error)
}

// InstalledRules reports what the rule engine actually has installed.
type InstalledRules interface {
	Rules() []domain.Rule
}

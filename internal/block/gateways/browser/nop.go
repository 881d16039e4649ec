package browser

import (
	"context"

	"github.com/haukened/rr-block/internal/block/domain"
	"github.com/haukened/rr-block/internal/block/services/synchronizer"
)

// NoopInventory reports no tabs. Used when no browser is attached.
type NoopInventory struct{}

func (NoopInventory) Tabs(context.Context) ([]domain.Tab, error) { return nil, nil }

func (NoopInventory) Reload(context.Context, string) error { return nil }

var _ synchronizer.TabInventory = NoopInventory{}
var _ synchronizer.TabInventory = (*Gateway)(nil)

package synchronizer

import (
	"context"

	"github.com/haukened/rr-block/internal/block/domain"
)

// RuleEngine installs declarative rules. UpdateRules must apply the whole
// batch or nothing.
type RuleEngine interface {
	UpdateRules(ctx context.Context, u domain.RuleUpdate) error
	Rules() []domain.Rule
}

// TabInventory lists open tabs and reloads them by id.
type TabInventory interface {
	Tabs(ctx context.Context) ([]domain.Tab, error)
	Reload(ctx context.Context, id string) error
}

// TabRefresher reloads the open tabs matching any of entries.
type TabRefresher interface {
	RefreshMatchingTabs(ctx context.Context, entries []string) (RefreshReport, error)
}

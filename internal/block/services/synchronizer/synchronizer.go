package synchronizer

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/haukened/rr-block/internal/block/common/log"
	"github.com/haukened/rr-block/internal/block/domain"
)

// RefreshScope selects which block-list entries drive tab refresh.
type RefreshScope uint8

const (
	// RefreshActive uses only enabled entries.
	RefreshActive RefreshScope = iota
	// RefreshAll uses every known entry, enabled or not.
	RefreshAll
)

// ParseRefreshScope accepts "active" or "all" (case-insensitive).
func ParseRefreshScope(s string) (RefreshScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return RefreshActive, nil
	case "all":
		return RefreshAll, nil
	default:
		return 0, fmt.Errorf("unsupported RefreshScope: %q", s)
	}
}

// Report describes one Synchronize call.
type Report struct {
	Installed  []domain.Rule
	Dropped    []string // entries cut by OverflowTruncate
	Refresh    RefreshReport
	RefreshErr error // non-fatal, wraps domain.ErrTabRefresh
}

// Synchronizer reconciles a State with the installed rules and open tabs.
// Calls are serialized: a later call never interleaves with an earlier one.
type Synchronizer struct {
	mu        sync.Mutex
	engine    RuleEngine
	refresher TabRefresher
	logger    log.Logger
	capacity  int
	overflow  domain.OverflowPolicy
	scope     RefreshScope
}

type Options struct {
	Engine    RuleEngine
	Refresher TabRefresher
	Logger    log.Logger
	Capacity  int
	Overflow  domain.OverflowPolicy
	Scope     RefreshScope
}

func New(opts Options) *Synchronizer {
	if opts.Capacity < 1 {
		opts.Capacity = domain.DefaultRuleCapacity
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Synchronizer{
		engine:    opts.Engine,
		refresher: opts.Refresher,
		logger:    opts.Logger,
		capacity:  opts.Capacity,
		overflow:  opts.Overflow,
		scope:     opts.Scope,
	}
}

// Synchronize installs the rules projected from state, replacing every id
// in [1, capacity] in one batch, then reloads matching tabs. A rejected
// batch returns an error wrapping domain.ErrRuleInstall and skips the
// refresh. Refresh failures never fail the call; they are in Report.
func (s *Synchronizer) Synchronize(ctx context.Context, state domain.State) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rep Report
	rules, dropped, err := domain.BuildRules(state.DesiredEntries(), s.capacity, s.overflow)
	if err != nil {
		return rep, fmt.Errorf("%w: %w", domain.ErrRuleInstall, err)
	}
	if len(dropped) > 0 {
		s.logger.Warn(map[string]any{"dropped": dropped, "capacity": s.capacity}, "Block list exceeds rule capacity, truncating")
	}
	rep.Dropped = dropped

	update := domain.RuleUpdate{Add: rules, RemoveIDs: domain.RuleIDRange(s.capacity)}
	if err := s.engine.UpdateRules(ctx, update); err != nil {
		s.logger.Error(map[string]any{"error": err, "rules": len(rules)}, "Rule update rejected")
		return rep, fmt.Errorf("%w: %w", domain.ErrRuleInstall, err)
	}
	rep.Installed = rules
	s.logger.Info(map[string]any{"rules": len(rules), "enabled": state.GlobalEnabled}, "Blocking rules installed")

	if s.refresher == nil {
		return rep, nil
	}
	entries := state.BlockList.Active()
	if s.scope == RefreshAll {
		entries = state.BlockList.Sites()
	}
	rep.Refresh, rep.RefreshErr = s.refresher.RefreshMatchingTabs(ctx, entries)
	if rep.RefreshErr != nil {
		s.logger.Warn(map[string]any{"error": rep.RefreshErr, "failed": rep.Refresh.Failed}, "Tab refresh incomplete")
	}
	return rep, nil
}

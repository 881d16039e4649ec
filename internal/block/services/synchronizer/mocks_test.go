package synchronizer

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/haukened/rr-block/internal/block/domain"
)

// fakeEngine records the installed rule set the way a real engine would.
type fakeEngine struct {
	mu      sync.Mutex
	rules   map[int]domain.Rule
	updates []domain.RuleUpdate
	err     error
}

func newFakeEngine() *fakeEngine { return &fakeEngine{rules: map[int]domain.Rule{}} }

func (e *fakeEngine) UpdateRules(_ context.Context, u domain.RuleUpdate) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updates = append(e.updates, u)
	if e.err != nil {
		return e.err
	}
	for _, id := range u.RemoveIDs {
		delete(e.rules, id)
	}
	for _, r := range u.Add {
		e.rules[r.ID] = r
	}
	return nil
}

func (e *fakeEngine) Rules() []domain.Rule {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.Rule, 0, len(e.rules))
	for id := 1; len(out) < len(e.rules); id++ {
		if r, ok := e.rules[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

type MockTabs struct {
	mock.Mock
}

func (m *MockTabs) Tabs(ctx context.Context) ([]domain.Tab, error) {
	args := m.Called(ctx)
	tabs, _ := args.Get(0).([]domain.Tab)
	return tabs, args.Error(1)
}

func (m *MockTabs) Reload(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) RefreshMatchingTabs(ctx context.Context, entries []string) (RefreshReport, error) {
	args := m.Called(ctx, entries)
	return args.Get(0).(RefreshReport), args.Error(1)
}

package synchronizer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/haukened/rr-block/internal/block/domain"
)

func state(t *testing.T, enabled bool, entries ...domain.BlockEntry) domain.State {
	t.Helper()
	l, err := domain.NewBlockList(entries...)
	require.NoError(t, err)
	return domain.State{BlockList: l, GlobalEnabled: enabled}
}

func newSync(engine RuleEngine, refresher TabRefresher) *Synchronizer {
	return New(Options{Engine: engine, Refresher: refresher, Capacity: 100})
}

func TestSynchronize_ExampleYoutubeFacebook(t *testing.T) {
	engine := newFakeEngine()
	tabs := &MockTabs{}
	tabs.On("Tabs", mock.Anything).Return([]domain.Tab{
		{ID: "yt", URL: "https://www.youtube.com/watch?v=x"},
		{ID: "fb", URL: "https://www.facebook.com"},
	}, nil)
	tabs.On("Reload", mock.Anything, "yt").Return(nil)

	s := newSync(engine, NewRefresher(tabs, nil, 2))
	st := state(t, true,
		domain.BlockEntry{Site: "youtube.com", Enabled: true},
		domain.BlockEntry{Site: "facebook.com", Enabled: false},
	)

	rep, err := s.Synchronize(context.Background(), st)
	require.NoError(t, err)

	rules := engine.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, 1, rules[0].ID)
	assert.Equal(t, "youtube.com", rules[0].URLFilter)
	assert.Equal(t, rules, rep.Installed)
	assert.Equal(t, 1, rep.Refresh.Reloaded)
	tabs.AssertExpectations(t)
	tabs.AssertNotCalled(t, "Reload", mock.Anything, "fb")

	// toggling facebook.com on yields ids {1,2}
	require.NoError(t, st.BlockList.SetEnabled("facebook.com", true))
	tabs.On("Reload", mock.Anything, "fb").Return(nil)
	_, err = s.Synchronize(context.Background(), st)
	require.NoError(t, err)
	rules = engine.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, []int{1, 2}, []int{rules[0].ID, rules[1].ID})
	assert.Equal(t, []string{"youtube.com", "facebook.com"}, []string{rules[0].URLFilter, rules[1].URLFilter})

	// removing youtube.com renumbers the remaining rule to 1
	require.NoError(t, st.BlockList.Remove("youtube.com"))
	_, err = s.Synchronize(context.Background(), st)
	require.NoError(t, err)
	rules = engine.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, 1, rules[0].ID)
	assert.Equal(t, "facebook.com", rules[0].URLFilter)
}

func TestSynchronize_AlwaysRemovesFullRange(t *testing.T) {
	engine := newFakeEngine()
	s := New(Options{Engine: engine, Capacity: 7})
	_, err := s.Synchronize(context.Background(), state(t, true, domain.BlockEntry{Site: "a.com", Enabled: true}))
	require.NoError(t, err)
	require.Len(t, engine.updates, 1)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, engine.updates[0].RemoveIDs)
}

func TestSynchronize_GlobalDisabledInstallsNothing(t *testing.T) {
	engine := newFakeEngine()
	_ = engine.UpdateRules(context.Background(), domain.RuleUpdate{Add: []domain.Rule{domain.NewBlockRule(1, "old.com")}})
	refresher := &MockRefresher{}
	refresher.On("RefreshMatchingTabs", mock.Anything, []string{"youtube.com"}).Return(RefreshReport{}, nil)

	s := newSync(engine, refresher)
	rep, err := s.Synchronize(context.Background(), state(t, false, domain.BlockEntry{Site: "youtube.com", Enabled: true}))
	require.NoError(t, err)
	assert.Empty(t, engine.Rules())
	assert.Empty(t, rep.Installed)
	refresher.AssertExpectations(t)
}

func TestSynchronize_NoActiveEntriesInstallsNothing(t *testing.T) {
	engine := newFakeEngine()
	refresher := &MockRefresher{}
	refresher.On("RefreshMatchingTabs", mock.Anything, []string(nil)).Return(RefreshReport{}, nil)

	s := newSync(engine, refresher)
	_, err := s.Synchronize(context.Background(), state(t, true, domain.BlockEntry{Site: "youtube.com", Enabled: false}))
	require.NoError(t, err)
	assert.Empty(t, engine.Rules())
}

func TestSynchronize_Idempotent(t *testing.T) {
	engine := newFakeEngine()
	s := newSync(engine, nil)
	st := state(t, true,
		domain.BlockEntry{Site: "a.com", Enabled: true},
		domain.BlockEntry{Site: "b.com", Enabled: true},
	)
	_, err := s.Synchronize(context.Background(), st)
	require.NoError(t, err)
	first := engine.Rules()
	_, err = s.Synchronize(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, first, engine.Rules())
}

func TestSynchronize_RefreshScope(t *testing.T) {
	st := state(t, true,
		domain.BlockEntry{Site: "a.com", Enabled: true},
		domain.BlockEntry{Site: "b.com", Enabled: false},
	)

	active := &MockRefresher{}
	active.On("RefreshMatchingTabs", mock.Anything, []string{"a.com"}).Return(RefreshReport{}, nil)
	_, err := New(Options{Engine: newFakeEngine(), Refresher: active, Scope: RefreshActive}).Synchronize(context.Background(), st)
	require.NoError(t, err)
	active.AssertExpectations(t)

	all := &MockRefresher{}
	all.On("RefreshMatchingTabs", mock.Anything, []string{"a.com", "b.com"}).Return(RefreshReport{}, nil)
	_, err = New(Options{Engine: newFakeEngine(), Refresher: all, Scope: RefreshAll}).Synchronize(context.Background(), st)
	require.NoError(t, err)
	all.AssertExpectations(t)
}

func TestSynchronize_EngineRejectionSkipsRefresh(t *testing.T) {
	engine := newFakeEngine()
	engine.err = fmt.Errorf("%w: quota", domain.ErrInvalidRule)
	refresher := &MockRefresher{}

	s := newSync(engine, refresher)
	_, err := s.Synchronize(context.Background(), state(t, true, domain.BlockEntry{Site: "a.com", Enabled: true}))
	assert.ErrorIs(t, err, domain.ErrRuleInstall)
	assert.ErrorIs(t, err, domain.ErrInvalidRule)
	refresher.AssertNotCalled(t, "RefreshMatchingTabs", mock.Anything, mock.Anything)
	assert.Len(t, engine.updates, 1, "no per-rule retry")
}

func TestSynchronize_RefreshErrorIsNonFatal(t *testing.T) {
	refresher := &MockRefresher{}
	refreshErr := fmt.Errorf("%w: reload failed", domain.ErrTabRefresh)
	refresher.On("RefreshMatchingTabs", mock.Anything, mock.Anything).Return(RefreshReport{Matched: 1, Failed: 1}, refreshErr)

	s := newSync(newFakeEngine(), refresher)
	rep, err := s.Synchronize(context.Background(), state(t, true, domain.BlockEntry{Site: "a.com", Enabled: true}))
	require.NoError(t, err)
	assert.ErrorIs(t, rep.RefreshErr, domain.ErrTabRefresh)
	assert.Equal(t, 1, rep.Refresh.Failed)
}

func TestSynchronize_Overflow(t *testing.T) {
	st := state(t, true,
		domain.BlockEntry{Site: "a.com", Enabled: true},
		domain.BlockEntry{Site: "b.com", Enabled: true},
		domain.BlockEntry{Site: "c.com", Enabled: true},
	)

	engine := newFakeEngine()
	_, err := New(Options{Engine: engine, Capacity: 2, Overflow: domain.OverflowReject}).Synchronize(context.Background(), st)
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
	assert.ErrorIs(t, err, domain.ErrRuleInstall)
	assert.Empty(t, engine.updates, "engine untouched on reject")

	engine = newFakeEngine()
	rep, err := New(Options{Engine: engine, Capacity: 2, Overflow: domain.OverflowTruncate}).Synchronize(context.Background(), st)
	require.NoError(t, err)
	assert.Equal(t, []string{"c.com"}, rep.Dropped)
	assert.Len(t, engine.Rules(), 2)
}

// blockingEngine parks the first update until released so a second
// Synchronize can be started while the first is in flight.
type blockingEngine struct {
	*fakeEngine
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingEngine) UpdateRules(ctx context.Context, u domain.RuleUpdate) error {
	first := false
	b.once.Do(func() { first = true })
	if first {
		close(b.entered)
		<-b.release
	}
	return b.fakeEngine.UpdateRules(ctx, u)
}

func TestSynchronize_SerializesCalls(t *testing.T) {
	engine := &blockingEngine{fakeEngine: newFakeEngine(), entered: make(chan struct{}), release: make(chan struct{})}
	s := newSync(engine, nil)

	older := state(t, true, domain.BlockEntry{Site: "old.com", Enabled: true})
	newer := state(t, true, domain.BlockEntry{Site: "new.com", Enabled: true})

	done := make(chan error, 2)
	go func() { _, err := s.Synchronize(context.Background(), older); done <- err }()
	<-engine.entered
	go func() { _, err := s.Synchronize(context.Background(), newer); done <- err }()
	close(engine.release)
	require.NoError(t, <-done)
	require.NoError(t, <-done)

	rules := engine.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "new.com", rules[0].URLFilter)
}

func TestParseRefreshScope(t *testing.T) {
	got, err := ParseRefreshScope(" ALL ")
	require.NoError(t, err)
	assert.Equal(t, RefreshAll, got)
	got, err = ParseRefreshScope("active")
	require.NoError(t, err)
	assert.Equal(t, RefreshActive, got)
	_, err = ParseRefreshScope("some")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrRuleInstall))
}

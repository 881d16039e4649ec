package synchronizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/haukened/rr-block/internal/block/common/log"
	"github.com/haukened/rr-block/internal/block/domain"
)

func TestRefresher_EmptyEntriesSkipsEnumeration(t *testing.T) {
	tabs := &MockTabs{}
	r := NewRefresher(tabs, log.NewNoopLogger(), 2)

	rep, err := r.RefreshMatchingTabs(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, RefreshReport{}, rep)
	tabs.AssertNotCalled(t, "Tabs", mock.Anything)
}

func TestRefresher_ReloadsOnlyMatchingTabs(t *testing.T) {
	tabs := &MockTabs{}
	tabs.On("Tabs", mock.Anything).Return([]domain.Tab{
		{ID: "1", URL: "https://www.youtube.com/watch?v=x"},
		{ID: "2", URL: "https://www.facebook.com/"},
		{ID: "3", URL: "https://music.youtube.com/"},
		{ID: "4", URL: "about:blank"},
	}, nil)
	tabs.On("Reload", mock.Anything, "1").Return(nil)
	tabs.On("Reload", mock.Anything, "3").Return(nil)

	r := NewRefresher(tabs, nil, 4)
	rep, err := r.RefreshMatchingTabs(context.Background(), []string{"youtube.com"})

	assert.NoError(t, err)
	assert.Equal(t, RefreshReport{Matched: 2, Reloaded: 2}, rep)
	tabs.AssertExpectations(t)
	tabs.AssertNotCalled(t, "Reload", mock.Anything, "2")
	tabs.AssertNotCalled(t, "Reload", mock.Anything, "4")
}

func TestRefresher_TabMatchingSeveralEntriesReloadedOnce(t *testing.T) {
	tabs := &MockTabs{}
	tabs.On("Tabs", mock.Anything).Return([]domain.Tab{{ID: "7", URL: "https://www.youtube.com/"}}, nil)
	tabs.On("Reload", mock.Anything, "7").Return(nil).Once()

	r := NewRefresher(tabs, nil, 1)
	rep, err := r.RefreshMatchingTabs(context.Background(), []string{"youtube", "youtube.com"})
	assert.NoError(t, err)
	assert.Equal(t, 1, rep.Reloaded)
	tabs.AssertNumberOfCalls(t, "Reload", 1)
}

func TestRefresher_FailureDoesNotStopOthers(t *testing.T) {
	tabs := &MockTabs{}
	tabs.On("Tabs", mock.Anything).Return([]domain.Tab{
		{ID: "a", URL: "https://x.test/"},
		{ID: "b", URL: "https://x.test/1"},
		{ID: "c", URL: "https://x.test/2"},
	}, nil)
	tabs.On("Reload", mock.Anything, "a").Return(errors.New("target closed"))
	tabs.On("Reload", mock.Anything, "b").Return(nil)
	tabs.On("Reload", mock.Anything, "c").Return(errors.New("detached"))

	r := NewRefresher(tabs, nil, 1)
	rep, err := r.RefreshMatchingTabs(context.Background(), []string{"x.test"})

	assert.ErrorIs(t, err, domain.ErrTabRefresh)
	assert.Equal(t, RefreshReport{Matched: 3, Reloaded: 1, Failed: 2}, rep)
	tabs.AssertNumberOfCalls(t, "Reload", 3)
}

func TestRefresher_ListError(t *testing.T) {
	tabs := &MockTabs{}
	boom := errors.New("no browser")
	tabs.On("Tabs", mock.Anything).Return(nil, boom)

	r := NewRefresher(tabs, nil, 0)
	_, err := r.RefreshMatchingTabs(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, domain.ErrTabRefresh)
	assert.ErrorIs(t, err, boom)
}

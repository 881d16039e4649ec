package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestBlockList_AddNormalizesAndPreservesOrder(t *testing.T) {
	var l BlockList
	for _, s := range []string{"  youtube.com ", "facebook.com", "Reddit.com"} {
		if err := l.Add(s); err != nil {
			t.Fatalf("Add(%q): %v", s, err)
		}
	}
	want := []string{"youtube.com", "facebook.com", "Reddit.com"}
	if got := l.Sites(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Sites=%v want %v", got, want)
	}
	if got := l.Active(); !reflect.DeepEqual(got, want) {
		t.Fatalf("new entries must be enabled: Active=%v", got)
	}
}

func TestBlockList_AddErrors(t *testing.T) {
	var l BlockList
	if err := l.Add("   "); !errors.Is(err, ErrInvalidEntry) {
		t.Fatalf("expected ErrInvalidEntry, got %v", err)
	}
	if err := l.Add("youtube.com"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := l.Add(" youtube.com"); !errors.Is(err, ErrEntryExists) {
		t.Fatalf("expected ErrEntryExists, got %v", err)
	}
	// keys are case-sensitive
	if err := l.Add("YouTube.com"); err != nil {
		t.Fatalf("case variant should be a distinct entry: %v", err)
	}
	if l.Len() != 2 {
		t.Fatalf("Len=%d want 2", l.Len())
	}
}

func TestBlockList_SetEnabledAndActive(t *testing.T) {
	l, err := NewBlockList(
		BlockEntry{Site: "youtube.com", Enabled: true},
		BlockEntry{Site: "facebook.com", Enabled: false},
	)
	if err != nil {
		t.Fatalf("NewBlockList: %v", err)
	}
	if got := l.Active(); !reflect.DeepEqual(got, []string{"youtube.com"}) {
		t.Fatalf("Active=%v", got)
	}
	if err := l.SetEnabled("facebook.com", true); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	if got := l.Active(); !reflect.DeepEqual(got, []string{"youtube.com", "facebook.com"}) {
		t.Fatalf("Active=%v", got)
	}
	if err := l.SetEnabled("missing.com", true); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
	enabled, ok := l.Enabled("facebook.com")
	if !ok || !enabled {
		t.Fatalf("Enabled(facebook.com)=%v,%v", enabled, ok)
	}
}

func TestBlockList_Remove(t *testing.T) {
	l, _ := NewBlockList(
		BlockEntry{Site: "a.com", Enabled: true},
		BlockEntry{Site: "b.com", Enabled: true},
		BlockEntry{Site: "c.com", Enabled: false},
	)
	clone := l.Clone()
	if err := l.Remove("a.com"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if got := l.Entries(); !reflect.DeepEqual(got, []BlockEntry{{"b.com", true}, {"c.com", false}}) {
		t.Fatalf("Entries=%v", got)
	}
	if err := l.Remove("a.com"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
	if clone.Len() != 3 {
		t.Fatalf("clone was mutated: %v", clone.Sites())
	}
}

func TestBlockList_NewBlockListDuplicate(t *testing.T) {
	_, err := NewBlockList(BlockEntry{Site: "a.com"}, BlockEntry{Site: "a.com "})
	if !errors.Is(err, ErrEntryExists) {
		t.Fatalf("expected ErrEntryExists, got %v", err)
	}
}

func TestBlockList_NilAndEqual(t *testing.T) {
	var nl *BlockList
	if nl.Len() != 0 || nl.Active() != nil || nl.Sites() != nil || nl.Entries() != nil {
		t.Fatalf("nil list should behave as empty")
	}
	if _, ok := nl.Enabled("x"); ok {
		t.Fatalf("nil list has no entries")
	}
	a, _ := NewBlockList(BlockEntry{"a.com", true}, BlockEntry{"b.com", false})
	b, _ := NewBlockList(BlockEntry{"a.com", true}, BlockEntry{"b.com", false})
	c, _ := NewBlockList(BlockEntry{"b.com", false}, BlockEntry{"a.com", true})
	if !a.Equal(b) {
		t.Fatalf("expected equal lists")
	}
	if a.Equal(c) {
		t.Fatalf("order must matter for equality")
	}
	if !nl.Equal(&BlockList{}) {
		t.Fatalf("nil and empty should be equal")
	}
}

package domain

import "time"

// State is everything the user controls: the block list and the global
// switch. UpdatedAt is set whenever the state is persisted.
type State struct {
	BlockList     *BlockList
	GlobalEnabled bool
	UpdatedAt     time.Time
}

// DefaultState is what an empty store yields: no entries, blocking off.
func DefaultState() State {
	return State{BlockList: &BlockList{}}
}

// Clone returns a copy that shares nothing mutable with s.
func (s State) Clone() State {
	return State{
		BlockList:     s.BlockList.Clone(),
		GlobalEnabled: s.GlobalEnabled,
		UpdatedAt:     s.UpdatedAt,
	}
}

// DesiredEntries is the list of sites that should be turned into rules:
// the active entries when blocking is on, nothing otherwise.
func (s State) DesiredEntries() []string {
	if !s.GlobalEnabled {
		return nil
	}
	return s.BlockList.Active()
}

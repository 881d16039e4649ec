// Package memstore is a process-local state store. State does not survive a
// restart; it backs the "memory" state backend and tests.
package memstore

import (
	"context"
	"sync"

	"github.com/haukened/rr-block/internal/block/domain"
)

type Store struct {
	mu    sync.Mutex
	state domain.State
	saved bool
}

func New() *Store { return &Store{} }

// Load returns a copy of the last saved state, or domain.DefaultState.
func (s *Store) Load(ctx context.Context) (domain.State, error) {
	if err := ctx.Err(); err != nil {
		return domain.State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.saved {
		return domain.DefaultState(), nil
	}
	return s.state.Clone(), nil
}

func (s *Store) Save(ctx context.Context, st domain.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st.Clone()
	s.saved = true
	return nil
}

func (s *Store) Close() error { return nil }

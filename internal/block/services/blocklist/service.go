// Package blocklist owns the user's block-list state. Every mutation runs
// mutate → persist → synchronize, each step gating the next.
package blocklist

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/haukened/rr-block/internal/block/common/clock"
	"github.com/haukened/rr-block/internal/block/common/log"
	"github.com/haukened/rr-block/internal/block/domain"
)

// Status is the view handed to the UI shell. Rules are the engine's
// installed rules, which can lag Entries after a failed install.
type Status struct {
	Enabled   bool                `json:"enabled"`
	Entries   []domain.BlockEntry `json:"entries"`
	Rules     []domain.Rule       `json:"rules"`
	LastError string              `json:"last_error,omitempty"`
}

type Service struct {
	mu        sync.Mutex
	store     StateStore
	syncer    Synchronizer
	installed InstalledRules
	clock     clock.Clock
	logger    log.Logger

	state   domain.State
	loaded  bool // state came from the store; until then nothing is saved
	lastErr error
}

type Options struct {
	Store     StateStore
	Sync      Synchronizer
	Installed InstalledRules
	Clock     clock.Clock
	Logger    log.Logger
}

func NewService(opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Service{
		store:     opts.Store,
		syncer:    opts.Sync,
		installed: opts.Installed,
		clock:     opts.Clock,
		logger:    opts.Logger,
		state:     domain.DefaultState(),
	}
}

// Start loads the persisted state and installs its rules once. After a
// failed load every mutation retries the load first and is rejected while
// it keeps failing, so the persisted list is never overwritten blind.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx); err != nil {
		return err
	}
	return s.synchronizeLocked(ctx)
}

func (s *Service) loadLocked(ctx context.Context) error {
	st, err := s.store.Load(ctx)
	if err != nil {
		s.lastErr = fmt.Errorf("%w: %w: %w", domain.ErrStorage, domain.ErrNotLoaded, err)
		s.logger.Error(map[string]any{"error": err}, "Failed to load block list")
		return s.lastErr
	}
	if st.BlockList == nil {
		st.BlockList = &domain.BlockList{}
	}
	s.state = st
	s.loaded = true
	s.logger.Info(map[string]any{
		"entries": st.BlockList.Len(),
		"active":  len(st.BlockList.Active()),
		"enabled": st.GlobalEnabled,
	}, "Block list loaded")
	return nil
}

// State returns a copy of the in-memory state.
func (s *Service) State() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Status returns the UI view of the current state.
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *Service) statusLocked() Status {
	st := Status{
		Enabled: s.state.GlobalEnabled,
		Entries: s.state.BlockList.Entries(),
	}
	if s.installed != nil {
		st.Rules = s.installed.Rules()
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// AddEntry appends site as an enabled entry.
func (s *Service) AddEntry(ctx context.Context, site string) (Status, error) {
	return s.apply(ctx, "add", site, func(st *domain.State) error {
		return st.BlockList.Add(site)
	})
}

// RemoveEntry deletes site.
func (s *Service) RemoveEntry(ctx context.Context, site string) (Status, error) {
	return s.apply(ctx, "remove", site, func(st *domain.State) error {
		return st.BlockList.Remove(site)
	})
}

// SetEntryEnabled flips the flag of an existing entry.
func (s *Service) SetEntryEnabled(ctx context.Context, site string, enabled bool) (Status, error) {
	return s.apply(ctx, "set_entry", site, func(st *domain.State) error {
		return st.BlockList.SetEnabled(site, enabled)
	})
}

// SetGlobalEnabled turns blocking on or off as a whole.
func (s *Service) SetGlobalEnabled(ctx context.Context, enabled bool) (Status, error) {
	return s.apply(ctx, "set_enabled", "", func(st *domain.State) error {
		st.GlobalEnabled = enabled
		return nil
	})
}

// ImportEntries appends every site not already listed as an enabled entry,
// in one persist-and-synchronize round, and returns how many were added.
// Sites already present are skipped; any invalid site rejects the import.
// An empty import changes nothing.
func (s *Service) ImportEntries(ctx context.Context, sites []string) (int, Status, error) {
	if len(sites) == 0 {
		return 0, s.Status(), nil
	}
	added := 0
	st, err := s.apply(ctx, "import", "", func(st *domain.State) error {
		n := 0
		for _, site := range sites {
			err := st.BlockList.Add(site)
			switch {
			case err == nil:
				n++
			case errors.Is(err, domain.ErrEntryExists):
			default:
				return err
			}
		}
		added = n
		return nil
	})
	return added, st, err
}

// Resync re-persists the in-memory state and reinstalls its rules. It is
// the retry path after a storage or rule-install failure.
func (s *Service) Resync(ctx context.Context) (Status, error) {
	return s.apply(ctx, "resync", "", func(*domain.State) error { return nil })
}

// apply runs one mutation. A rejected mutation leaves the state untouched.
// Once accepted, the in-memory state is authoritative even when persisting
// or installing rules fails.
func (s *Service) apply(ctx context.Context, op, site string, mutate func(*domain.State) error) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		if err := s.loadLocked(ctx); err != nil {
			return s.statusLocked(), err
		}
	}

	next := s.state.Clone()
	if err := mutate(&next); err != nil {
		return s.statusLocked(), err
	}
	next.UpdatedAt = s.clock.Now()
	s.state = next

	fields := map[string]any{"op": op, "enabled": next.GlobalEnabled, "entries": next.BlockList.Len()}
	if site != "" {
		fields["site"] = site
	}

	if err := s.store.Save(ctx, next); err != nil {
		s.lastErr = fmt.Errorf("%w: save: %w", domain.ErrStorage, err)
		fields["error"] = err
		s.logger.Error(fields, "Failed to persist block list")
		return s.statusLocked(), s.lastErr
	}
	s.logger.Debug(fields, "Block list persisted")

	err := s.synchronizeLocked(ctx)
	return s.statusLocked(), err
}

func (s *Service) synchronizeLocked(ctx context.Context) error {
	if _, err := s.syncer.Synchronize(ctx, s.state); err != nil {
		s.lastErr = err
		return err
	}
	s.lastErr = nil
	return nil
}

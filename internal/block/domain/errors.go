package domain

import "errors"

var (
	// ErrStorage reports a failed read or write of the key-value store.
	ErrStorage = errors.New("storage error")
	// ErrNotLoaded reports that the persisted state could not be read, so no
	// mutation was applied. Always wrapped together with ErrStorage.
	ErrNotLoaded = errors.New("block list not loaded")
	// ErrRuleInstall reports that the rule engine rejected a batched update.
	ErrRuleInstall = errors.New("rule install error")
	// ErrTabRefresh reports that one or more tab reloads failed. Non-fatal.
	ErrTabRefresh = errors.New("tab refresh error")
	// ErrCapacityExceeded reports more rules than the configured capacity.
	ErrCapacityExceeded = errors.New("rule capacity exceeded")
	// ErrInvalidRule reports a rule that fails validation.
	ErrInvalidRule = errors.New("invalid rule")

	ErrInvalidEntry  = errors.New("invalid block-list entry")
	ErrEntryExists   = errors.New("block-list entry already exists")
	ErrEntryNotFound = errors.New("block-list entry not found")
)

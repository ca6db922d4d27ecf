// Package store provides in-memory implementations of the storage
// interfaces, for tests and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/recurrence"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements recurrence.RunStore, ledger.Store, and
// ledger.AccountStore in one struct, the same shape the SQLite store has.
type Memory struct {
	mu           sync.RWMutex
	definitions  map[recurrence.DefinitionID]recurrence.Definition
	entries      []ledger.Entry
	fingerprints map[string]bool
	accounts     map[ledger.AccountID]ledger.Account
}

func NewMemory() *Memory {
	return &Memory{
		definitions:  make(map[recurrence.DefinitionID]recurrence.Definition),
		fingerprints: make(map[string]bool),
		accounts:     make(map[ledger.AccountID]ledger.Account),
	}
}

// =============================================================================
// DEFINITION STORE
// =============================================================================

func (m *Memory) SaveDefinition(_ context.Context, def recurrence.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.definitions[def.ID] = def
	return nil
}

func (m *Memory) GetDefinition(_ context.Context, id recurrence.DefinitionID) (*recurrence.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	def, ok := m.definitions[id]
	if !ok {
		return nil, recurrence.ErrDefinitionNotFound
	}
	copied := def
	return &copied, nil
}

func (m *Memory) ListDefinitions(_ context.Context, owner ledger.OwnerID, activeOnly bool) ([]recurrence.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []recurrence.Definition
	for _, def := range m.definitions {
		if owner != "" && def.OwnerID != owner {
			continue
		}
		if activeOnly && !def.IsActive {
			continue
		}
		result = append(result, def)
	}
	sortDefinitions(result)
	return result, nil
}

func (m *Memory) ListDue(_ context.Context, owner ledger.OwnerID, target ledger.Date) ([]recurrence.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []recurrence.Definition
	for _, def := range m.definitions {
		if owner != "" && def.OwnerID != owner {
			continue
		}
		if def.Due(target) {
			result = append(result, def)
		}
	}
	sortDefinitions(result)
	return result, nil
}

func sortDefinitions(defs []recurrence.Definition) {
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (m *Memory) InsertBatch(_ context.Context, entries []ledger.Entry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(entries)
}

func (m *Memory) insertLocked(entries []ledger.Entry) (int, error) {
	// Validate everything before touching state (atomic batch).
	for _, e := range entries {
		if e.Amount == 0 {
			return 0, ledger.ErrZeroAmount
		}
	}

	inserted := 0
	for _, e := range entries {
		if m.fingerprints[e.Fingerprint] {
			// Expected collision from a retried run; no-op.
			continue
		}
		m.entries = append(m.entries, e)
		m.fingerprints[e.Fingerprint] = true
		inserted++
	}
	return inserted, nil
}

func (m *Memory) ListByOwner(_ context.Context, owner ledger.OwnerID, month string) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Entry
	for _, e := range m.entries {
		if e.OwnerID != owner {
			continue
		}
		if month != "" && e.Month != month {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[j].Date.Before(result[i].Date) })
	return result, nil
}

func (m *Memory) ExistsFingerprint(_ context.Context, fingerprint string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fingerprints[fingerprint], nil
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func (m *Memory) SaveAccount(_ context.Context, account ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = account
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id ledger.AccountID) (*ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.accounts[id]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	copied := account
	return &copied, nil
}

func (m *Memory) ListAccounts(_ context.Context, owner ledger.OwnerID) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Account
	for _, a := range m.accounts {
		if owner == "" || a.OwnerID == owner {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// =============================================================================
// RUN TRANSACTION
// =============================================================================

// WithRunTx simulates an atomic commit with a snapshot + rollback on error.
func (m *Memory) WithRunTx(_ context.Context, fn func(tx recurrence.RunTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&memoryRunTx{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	definitions  map[recurrence.DefinitionID]recurrence.Definition
	entries      []ledger.Entry
	fingerprints map[string]bool
}

func (m *Memory) snapshot() memorySnapshot {
	defs := make(map[recurrence.DefinitionID]recurrence.Definition, len(m.definitions))
	for k, v := range m.definitions {
		defs[k] = v
	}
	fps := make(map[string]bool, len(m.fingerprints))
	for k, v := range m.fingerprints {
		fps[k] = v
	}
	return memorySnapshot{
		definitions:  defs,
		entries:      append([]ledger.Entry{}, m.entries...),
		fingerprints: fps,
	}
}

func (m *Memory) restore(s memorySnapshot) {
	m.definitions = s.definitions
	m.entries = s.entries
	m.fingerprints = s.fingerprints
}

type memoryRunTx struct {
	parent *Memory
}

func (tx *memoryRunTx) InsertEntries(_ context.Context, entries []ledger.Entry) (int, error) {
	return tx.parent.insertLocked(entries)
}

func (tx *memoryRunTx) SaveDefinition(_ context.Context, def recurrence.Definition) error {
	tx.parent.definitions[def.ID] = def
	return nil
}

// Package store defines the persistence port of the ledger and an in-memory
// adapter. File and database adapters live in sub-packages.
package store

import (
	"context"
	"sync"

	"github.com/atharvakonge/trading-ledger/internal/models"
)

// Part selects which record kinds a Save rewrites
type Part uint8

const (
	Users Part = 1 << iota
	Holdings
	Transactions
	Instruments

	All = Users | Holdings | Transactions | Instruments
)

// Has reports whether p includes q
func (p Part) Has(q Part) bool { return p&q != 0 }

// Snapshot is the full persisted state. Holdings travel inside their users.
type Snapshot struct {
	Users        []models.User
	Instruments  []models.Instrument
	Transactions []models.Transaction
}

// Store loads and saves ledger state.
//
// Save replaces the stored records of every selected part with the ones in
// the snapshot. Parts not selected are left untouched.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot, parts Part) error
}

// Memory keeps snapshots in process. It is used by tests and for throwaway
// sessions.
type Memory struct {
	mu   sync.RWMutex
	snap Snapshot

	// SaveErr, when set, is returned by every Save without storing anything
	SaveErr error
}

// NewMemory creates a Memory store holding snap
func NewMemory(snap Snapshot) *Memory {
	return &Memory{snap: cloneSnapshot(snap)}
}

func (m *Memory) Load(_ context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneSnapshot(m.snap), nil
}

func (m *Memory) Save(_ context.Context, snap Snapshot, parts Part) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	snap = cloneSnapshot(snap)
	if parts.Has(Users) || parts.Has(Holdings) {
		m.snap.Users = mergeUsers(m.snap.Users, snap.Users, parts)
	}
	if parts.Has(Instruments) {
		m.snap.Instruments = snap.Instruments
	}
	if parts.Has(Transactions) {
		m.snap.Transactions = snap.Transactions
	}
	return nil
}

// mergeUsers takes user rows and holdings independently, as the file and
// table adapters store them separately.
func mergeUsers(old, next []models.User, parts Part) []models.User {
	if parts.Has(Users) && parts.Has(Holdings) {
		return next
	}
	prevHoldings := make(map[int][]models.Holding, len(old))
	for _, u := range old {
		prevHoldings[u.ID] = u.Holdings
	}
	if parts.Has(Users) {
		out := make([]models.User, len(next))
		for i, u := range next {
			u.Holdings = prevHoldings[u.ID]
			out[i] = u
		}
		return out
	}
	nextHoldings := make(map[int][]models.Holding, len(next))
	for _, u := range next {
		nextHoldings[u.ID] = u.Holdings
	}
	out := make([]models.User, len(old))
	for i, u := range old {
		u.Holdings = nextHoldings[u.ID]
		out[i] = u
	}
	return out
}

func cloneSnapshot(s Snapshot) Snapshot {
	out := Snapshot{
		Instruments:  append([]models.Instrument(nil), s.Instruments...),
		Transactions: append([]models.Transaction(nil), s.Transactions...),
	}
	if s.Users != nil {
		out.Users = make([]models.User, len(s.Users))
		for i, u := range s.Users {
			out.Users[i] = u.Clone()
		}
	}
	return out
}

// Package ledger owns the per-client account state and transaction history for
// a single processing run.
package ledger

import (
	"github.com/example/txn-engine/internal/account"
	"github.com/example/txn-engine/internal/disputes"
	"github.com/example/txn-engine/internal/model"
)

// Entry pairs a client's balances with the transactions that produced them
type Entry struct {
	State   *account.State
	History *disputes.History
}

// Ledger maps client ids to entries. Entries are created on first reference and
// never removed. It is not safe for concurrent use; the engine owns it
// exclusively for the run.
type Ledger struct {
	entries map[model.ClientID]*Entry
	order   []model.ClientID
}

// New creates an empty ledger
func New() *Ledger {
	return &Ledger{
		entries: make(map[model.ClientID]*Entry),
	}
}

// GetOrCreate returns the entry for clientID, inserting a zero-balance,
// unlocked entry when the client has not been seen before.
func (l *Ledger) GetOrCreate(clientID model.ClientID) *Entry {
	if entry, ok := l.entries[clientID]; ok {
		return entry
	}

	entry := &Entry{
		State:   account.NewState(clientID),
		History: disputes.NewHistory(),
	}
	l.entries[clientID] = entry
	l.order = append(l.order, clientID)
	return entry
}

// Get returns the entry for clientID without creating one
func (l *Ledger) Get(clientID model.ClientID) (*Entry, bool) {
	entry, ok := l.entries[clientID]
	return entry, ok
}

// Len returns the number of clients seen
func (l *Ledger) Len() int {
	return len(l.order)
}

// Range visits entries in the order clients were first seen. Returning false
// from fn stops the iteration.
func (l *Ledger) Range(fn func(clientID model.ClientID, entry *Entry) bool) {
	for _, id := range l.order {
		if !fn(id, l.entries[id]) {
			return
		}
	}
}

// Snapshots returns the current state of every client in ledger order
func (l *Ledger) Snapshots() []model.Snapshot {
	out := make([]model.Snapshot, 0, len(l.order))
	l.Range(func(_ model.ClientID, entry *Entry) bool {
		out = append(out, entry.State.Snapshot())
		return true
	})
	return out
}

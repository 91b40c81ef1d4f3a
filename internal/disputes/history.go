// Package disputes tracks applied transactions per client and the dispute
// lifecycle that later dispute, resolve and chargeback records drive.
package disputes

import (
	"github.com/shopspring/decimal"

	"github.com/example/txn-engine/internal/model"
)

// History maps transaction ids to the records of one client.
type History struct {
	records map[model.TransactionID]*Record
}

// NewHistory creates an empty history
func NewHistory() *History {
	return &History{records: make(map[model.TransactionID]*Record)}
}

// Record stores an applied deposit or withdrawal. A repeated id replaces the
// earlier record.
func (h *History) Record(id model.TransactionID, amount decimal.Decimal, t model.TransactionType) *Record {
	rec := NewRecord(amount, t)
	h.records[id] = rec
	return rec
}

// Lookup returns the record for id, if any
func (h *History) Lookup(id model.TransactionID) (*Record, bool) {
	rec, ok := h.records[id]
	return rec, ok
}

// Len returns the number of recorded transactions
func (h *History) Len() int {
	return len(h.records)
}

// DisputedTotal sums the amounts of records currently under dispute
func (h *History) DisputedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, rec := range h.records {
		if rec.State == StateDisputed {
			total = total.Add(rec.Amount)
		}
	}
	return total
}

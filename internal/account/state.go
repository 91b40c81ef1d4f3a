// Package account implements the per-client balance record and its operations.
package account

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/example/txn-engine/internal/model"
)

var (
	// ErrInvalidAmount rejects negative amounts and amounts finer than
	// model.AmountPrecision.
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountLocked     = errors.New("account locked")
)

// State tracks available, held and total funds for one client.
// Every successful operation keeps Total == Available + Held. A failed
// operation leaves the state untouched.
type State struct {
	clientID  model.ClientID
	available decimal.Decimal
	held      decimal.Decimal
	total     decimal.Decimal
	locked    bool
}

// NewState returns an empty, unlocked account.
func NewState(clientID model.ClientID) *State {
	return &State{
		clientID:  clientID,
		available: decimal.Zero,
		held:      decimal.Zero,
		total:     decimal.Zero,
	}
}

func (s *State) ClientID() model.ClientID   { return s.clientID }
func (s *State) Available() decimal.Decimal { return s.available }
func (s *State) Held() decimal.Decimal      { return s.held }
func (s *State) Total() decimal.Decimal     { return s.total }
func (s *State) Locked() bool               { return s.locked }

// Deposit credits available funds. Locked accounts still accept deposits.
func (s *State) Deposit(amount decimal.Decimal) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}

	s.available = s.available.Add(amount)
	s.total = s.total.Add(amount)
	return nil
}

// Withdraw debits available funds.
func (s *State) Withdraw(amount decimal.Decimal) error {
	if s.locked {
		return ErrAccountLocked
	}
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	if s.available.LessThan(amount) {
		return ErrInsufficientFunds
	}

	s.available = s.available.Sub(amount)
	s.total = s.total.Sub(amount)
	return nil
}

// DisputeDeposit moves the disputed amount from available to held. Available
// may go negative when the deposited funds were already withdrawn.
func (s *State) DisputeDeposit(amount decimal.Decimal) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}

	s.available = s.available.Sub(amount)
	s.held = s.held.Add(amount)
	return nil
}

// Resolve releases held funds back to available.
func (s *State) Resolve(amount decimal.Decimal) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	if s.held.LessThan(amount) {
		return ErrInsufficientFunds
	}

	s.available = s.available.Add(amount)
	s.held = s.held.Sub(amount)
	return nil
}

// Chargeback removes held funds and locks the account for good.
func (s *State) Chargeback(amount decimal.Decimal) error {
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	if s.held.LessThan(amount) {
		return ErrInsufficientFunds
	}

	s.held = s.held.Sub(amount)
	s.total = s.total.Sub(amount)
	s.locked = true
	return nil
}

func validAmount(amount decimal.Decimal) bool {
	return !amount.IsNegative() && model.WithinPrecision(amount)
}

// Snapshot copies the current balances into an exportable record.
func (s *State) Snapshot() model.Snapshot {
	return model.Snapshot{
		ClientID:  s.clientID,
		Available: s.available,
		Held:      s.held,
		Total:     s.total,
		Locked:    s.locked,
	}
}

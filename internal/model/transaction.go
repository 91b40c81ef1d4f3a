// Package model holds the records exchanged between importers, the engine and exporters.
package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ClientID identifies the owner of an account.
type ClientID uint16

// TransactionID identifies a transaction within a client's history.
type TransactionID uint32

func (c ClientID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

func (t TransactionID) String() string {
	return strconv.FormatUint(uint64(t), 10)
}

// ParseClientID parses a decimal client identifier.
func ParseClientID(raw string) (ClientID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid client id %q: %w", raw, err)
	}
	return ClientID(v), nil
}

// ParseTransactionID parses a decimal transaction identifier.
func ParseTransactionID(raw string) (TransactionID, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid transaction id %q: %w", raw, err)
	}
	return TransactionID(v), nil
}

// TransactionType is the kind of operation a record requests.
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeDispute    TransactionType = "dispute"
	TypeResolve    TransactionType = "resolve"
	TypeChargeback TransactionType = "chargeback"
)

// ParseTransactionType matches a type name case-insensitively.
func ParseTransactionType(raw string) (TransactionType, error) {
	switch t := TransactionType(strings.ToLower(strings.TrimSpace(raw))); t {
	case TypeDeposit, TypeWithdrawal, TypeDispute, TypeResolve, TypeChargeback:
		return t, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", raw)
	}
}

// RequiresAmount reports whether records of this type must carry an amount.
func (t TransactionType) RequiresAmount() bool {
	return t == TypeDeposit || t == TypeWithdrawal
}

// Transaction is a single input record.
type Transaction struct {
	Type          TransactionType
	ClientID      ClientID
	TransactionID TransactionID
	// Amount is nil for dispute, resolve and chargeback records.
	Amount *decimal.Decimal
}

// AmountPrecision is the number of fractional digits an amount may carry.
const AmountPrecision = 4

// WithinPrecision reports whether d has no significant digits past
// AmountPrecision. Trailing zeros are allowed.
func WithinPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(AmountPrecision))
}

// ParseAmount parses an optional decimal amount. Blank input yields nil.
// Amounts finer than AmountPrecision are rejected so balances never need
// rounding on output.
func ParseAmount(raw string) (*decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if !WithinPrecision(amount) {
		return nil, fmt.Errorf("invalid amount %q: more than %d fractional digits", raw, AmountPrecision)
	}
	amount = amount.Truncate(AmountPrecision)
	return &amount, nil
}

// Snapshot is the exported view of one client's account.
type Snapshot struct {
	ClientID  ClientID
	Available decimal.Decimal
	Held      decimal.Decimal
	Total     decimal.Decimal
	Locked    bool
}

// SnapshotPrecision is the number of fractional digits written for balances.
const SnapshotPrecision = AmountPrecision

// FormatAmount renders a balance with fixed precision.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(SnapshotPrecision)
}

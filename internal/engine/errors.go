package engine

import (
	"fmt"

	"github.com/example/txn-engine/internal/model"
)

// ErrorKind classifies a ProcessingError.
type ErrorKind string

const (
	KindImport                    ErrorKind = "import"
	KindExport                    ErrorKind = "export"
	KindCanceled                  ErrorKind = "canceled"
	KindMissingAmount             ErrorKind = "missing_amount"
	KindCannotDispute             ErrorKind = "cannot_dispute"
	KindCannotResolveOrChargeBack ErrorKind = "cannot_resolve_or_chargeback"
	KindTransaction               ErrorKind = "transaction"
)

// ProcessingError is returned by Run for fatal failures and collected in the
// Report for transactions that were skipped.
type ProcessingError struct {
	Kind          ErrorKind
	ClientID      model.ClientID
	TransactionID model.TransactionID
	Err           error

	// seq is the input position of the offending record, used to restore
	// input order when errors are gathered from several shards.
	seq int
}

func newTransactionError(kind ErrorKind, tx model.Transaction, err error) *ProcessingError {
	return &ProcessingError{
		Kind:          kind,
		ClientID:      tx.ClientID,
		TransactionID: tx.TransactionID,
		Err:           err,
	}
}

func (e *ProcessingError) Error() string {
	switch e.Kind {
	case KindImport:
		return fmt.Sprintf("transaction import error: %v", e.Err)
	case KindExport:
		return fmt.Sprintf("client state export error: %v", e.Err)
	case KindCanceled:
		return fmt.Sprintf("processing canceled: %v", e.Err)
	case KindMissingAmount:
		return fmt.Sprintf("missing amount for transaction: %s", e.TransactionID)
	case KindCannotDispute, KindCannotResolveOrChargeBack:
		return e.Err.Error()
	default:
		return fmt.Sprintf("error for transaction %s: %v", e.TransactionID, e.Err)
	}
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error aborted the run. Every other kind is
// recoverable and only skips the offending transaction.
func (e *ProcessingError) Fatal() bool {
	switch e.Kind {
	case KindImport, KindExport, KindCanceled:
		return true
	default:
		return false
	}
}

package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/txn-engine/internal/account"
	"github.com/example/txn-engine/internal/disputes"
	"github.com/example/txn-engine/internal/ledger"
	"github.com/example/txn-engine/internal/model"
)

// apply dispatches one transaction against its client's entry. A nil error
// means the transaction was applied or, for an unknown dispute reference,
// ignored.
func apply(entry *ledger.Entry, tx model.Transaction) (model.Outcome, *ProcessingError) {
	switch tx.Type {
	case model.TypeDeposit, model.TypeWithdrawal:
		return applyFunds(entry, tx)
	case model.TypeDispute, model.TypeResolve, model.TypeChargeback:
		return applyDispute(entry, tx)
	default:
		return model.OutcomeRejected, unsupportedType(tx)
	}
}

func unsupportedType(tx model.Transaction) *ProcessingError {
	return newTransactionError(KindTransaction, tx, fmt.Errorf("unsupported transaction type %q", tx.Type))
}

func applyFunds(entry *ledger.Entry, tx model.Transaction) (model.Outcome, *ProcessingError) {
	if tx.Amount == nil {
		return model.OutcomeRejected, newTransactionError(KindMissingAmount, tx, nil)
	}
	amount := *tx.Amount

	var err error
	if tx.Type == model.TypeDeposit {
		err = entry.State.Deposit(amount)
	} else {
		err = entry.State.Withdraw(amount)
	}
	if err != nil {
		return model.OutcomeRejected, newTransactionError(KindTransaction, tx, err)
	}

	entry.History.Record(tx.TransactionID, amount, tx.Type)
	return model.OutcomeApplied, nil
}

func applyDispute(entry *ledger.Entry, tx model.Transaction) (model.Outcome, *ProcessingError) {
	op, ok := disputes.OperationFor(tx.Type)
	if !ok {
		return model.OutcomeRejected, unsupportedType(tx)
	}

	rec, ok := entry.History.Lookup(tx.TransactionID)
	if !ok {
		return model.OutcomeIgnored, nil
	}

	if err := rec.ValidateOperation(tx.TransactionID, op); err != nil {
		kind := KindCannotResolveOrChargeBack
		if op == disputes.OpDispute {
			kind = KindCannotDispute
		}
		return model.OutcomeRejected, newTransactionError(kind, tx, err)
	}

	if err := applyOperation(entry.State, op, rec.Amount); err != nil {
		return model.OutcomeRejected, newTransactionError(KindTransaction, tx, err)
	}

	// the account accepted the change, so the lifecycle follows
	if err := rec.Transition(tx.TransactionID, disputes.TargetState(op)); err != nil {
		return model.OutcomeRejected, newTransactionError(KindTransaction, tx, err)
	}
	return model.OutcomeApplied, nil
}

func applyOperation(state *account.State, op disputes.Operation, amount decimal.Decimal) error {
	switch op {
	case disputes.OpDispute:
		return state.DisputeDeposit(amount)
	case disputes.OpResolve:
		return state.Resolve(amount)
	case disputes.OpChargeback:
		return state.Chargeback(amount)
	default:
		return fmt.Errorf("unknown operation: %s", op)
	}
}

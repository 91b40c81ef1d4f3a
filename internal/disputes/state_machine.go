package disputes

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/example/txn-engine/internal/model"
)

// Lifecycle represents where a recorded transaction is in the dispute process
type Lifecycle string

const (
	StateApplied     Lifecycle = "APPLIED"
	StateDisputed    Lifecycle = "DISPUTED"
	StateChargedBack Lifecycle = "CHARGED_BACK"
)

// Operation names a dispute-family request
type Operation string

const (
	OpDispute    Operation = "dispute"
	OpResolve    Operation = "resolve"
	OpChargeback Operation = "chargeback"
)

// OperationFor maps a dispute-family transaction type to its operation.
func OperationFor(t model.TransactionType) (Operation, bool) {
	switch t {
	case model.TypeDispute:
		return OpDispute, true
	case model.TypeResolve:
		return OpResolve, true
	case model.TypeChargeback:
		return OpChargeback, true
	default:
		return "", false
	}
}

// InvalidStateTransitionError represents a transition the lifecycle table forbids
type InvalidStateTransitionError struct {
	FromState     Lifecycle
	ToState       Lifecycle
	TransactionID model.TransactionID
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s for transaction %s", e.FromState, e.ToState, e.TransactionID)
}

// CannotDisputeError is returned when a record is not an applied deposit
type CannotDisputeError struct {
	TransactionID model.TransactionID
	Type          model.TransactionType
	State         Lifecycle
}

func (e *CannotDisputeError) Error() string {
	return fmt.Sprintf("transaction cannot be disputed: %s (%s, %s)", e.TransactionID, e.Type, e.State)
}

// CannotResolveOrChargeBackError is returned when a record is not under dispute
type CannotResolveOrChargeBackError struct {
	TransactionID model.TransactionID
	Operation     Operation
	State         Lifecycle
}

func (e *CannotResolveOrChargeBackError) Error() string {
	return fmt.Sprintf("transaction cannot be resolved or charged back: %s (%s while %s)", e.TransactionID, e.Operation, e.State)
}

// AllowedTransitions defines valid lifecycle transitions
func AllowedTransitions() map[Lifecycle][]Lifecycle {
	return map[Lifecycle][]Lifecycle{
		StateApplied:     {StateDisputed},
		StateDisputed:    {StateApplied, StateChargedBack},
		StateChargedBack: {}, // Terminal state
	}
}

// IsValidTransition checks if a lifecycle transition is allowed
func IsValidTransition(fromState, toState Lifecycle) bool {
	for _, allowed := range AllowedTransitions()[fromState] {
		if allowed == toState {
			return true
		}
	}
	return false
}

// Record is what the history remembers about an applied deposit or withdrawal
type Record struct {
	Amount decimal.Decimal
	Type   model.TransactionType
	State  Lifecycle
}

// NewRecord creates a record in the applied state
func NewRecord(amount decimal.Decimal, t model.TransactionType) *Record {
	return &Record{
		Amount: amount,
		Type:   t,
		State:  StateApplied,
	}
}

// CanDispute reports whether the record may be disputed. Only deposits are
// disputable; withdrawal records exist but are rejected here.
func (r *Record) CanDispute() bool {
	return r.Type == model.TypeDeposit && r.State == StateApplied
}

// CanResolveOrChargeBack reports whether the record is under dispute
func (r *Record) CanResolveOrChargeBack() bool {
	return r.State == StateDisputed
}

// ValidateOperation checks if an operation is allowed for the record's current state
func (r *Record) ValidateOperation(id model.TransactionID, op Operation) error {
	switch op {
	case OpDispute:
		if !r.CanDispute() {
			return &CannotDisputeError{TransactionID: id, Type: r.Type, State: r.State}
		}
	case OpResolve, OpChargeback:
		if !r.CanResolveOrChargeBack() {
			return &CannotResolveOrChargeBackError{TransactionID: id, Operation: op, State: r.State}
		}
	default:
		return fmt.Errorf("unknown operation: %s", op)
	}
	return nil
}

// TargetState returns the state a successful operation moves the record to
func TargetState(op Operation) Lifecycle {
	switch op {
	case OpDispute:
		return StateDisputed
	case OpResolve:
		return StateApplied
	case OpChargeback:
		return StateChargedBack
	default:
		return ""
	}
}

// Transition moves the record to the given state, enforcing the lifecycle table
func (r *Record) Transition(id model.TransactionID, toState Lifecycle) error {
	if !IsValidTransition(r.State, toState) {
		return &InvalidStateTransitionError{FromState: r.State, ToState: toState, TransactionID: id}
	}
	r.State = toState
	return nil
}

// StateDescription provides human-readable descriptions of states
func StateDescription(state Lifecycle) string {
	switch state {
	case StateApplied:
		return "Transaction has been applied and is eligible for dispute"
	case StateDisputed:
		return "Transaction is under dispute with its funds held"
	case StateChargedBack:
		return "Transaction was charged back and the account locked"
	default:
		return "Unknown state"
	}
}

// OperationDescription provides human-readable descriptions of operations
func OperationDescription(op Operation) string {
	switch op {
	case OpDispute:
		return "Hold the funds of a prior deposit pending investigation"
	case OpResolve:
		return "Release held funds back to the available balance"
	case OpChargeback:
		return "Reverse a disputed deposit and lock the account"
	default:
		return "Unknown operation"
	}
}

package ledger

import (
	"fmt"

	"github.com/example/txn-engine/internal/model"
)

// ValidationResult represents the result of a validation check
type ValidationResult struct {
	IsValid        bool                   `json:"is_valid"`
	ValidationType string                 `json:"validation_type"`
	Message        string                 `json:"message"`
	ClientID       model.ClientID         `json:"client_id"`
	Details        map[string]interface{} `json:"details,omitempty"`
}

// Validator checks ledger invariants after a run
type Validator struct {
	ledger *Ledger
}

// NewValidator creates a new validator instance
func NewValidator(ledger *Ledger) *Validator {
	return &Validator{ledger: ledger}
}

// ValidateBalanceConsistency checks total == available + held for one entry
func (v *Validator) ValidateBalanceConsistency(clientID model.ClientID, entry *Entry) *ValidationResult {
	s := entry.State
	expected := s.Available().Add(s.Held())
	if !s.Total().Equal(expected) {
		return &ValidationResult{
			IsValid:        false,
			ValidationType: "balance_consistency",
			Message: fmt.Sprintf("total %s != available %s + held %s",
				model.FormatAmount(s.Total()), model.FormatAmount(s.Available()), model.FormatAmount(s.Held())),
			ClientID: clientID,
			Details: map[string]interface{}{
				"difference": s.Total().Sub(expected).String(),
			},
		}
	}

	return &ValidationResult{
		IsValid:        true,
		ValidationType: "balance_consistency",
		Message:        "total equals available plus held",
		ClientID:       clientID,
	}
}

// ValidateHeldFunds checks that held funds match the disputed records still on
// file. A record replaced by a later transaction with the same id drops out of
// the sum, so a mismatch is reported as a warning rather than corruption.
func (v *Validator) ValidateHeldFunds(clientID model.ClientID, entry *Entry) *ValidationResult {
	disputed := entry.History.DisputedTotal()
	if !disputed.Equal(entry.State.Held()) {
		return &ValidationResult{
			IsValid:        false,
			ValidationType: "held_funds",
			Message: fmt.Sprintf("held %s != disputed amounts %s",
				model.FormatAmount(entry.State.Held()), model.FormatAmount(disputed)),
			ClientID: clientID,
		}
	}

	return &ValidationResult{
		IsValid:        true,
		ValidationType: "held_funds",
		Message:        "held funds match open disputes",
		ClientID:       clientID,
	}
}

// ComprehensiveValidation runs the balance checks for every client and returns
// only the failures
func (v *Validator) ComprehensiveValidation() []*ValidationResult {
	var failures []*ValidationResult
	v.ledger.Range(func(clientID model.ClientID, entry *Entry) bool {
		if result := v.ValidateBalanceConsistency(clientID, entry); !result.IsValid {
			failures = append(failures, result)
		}
		if result := v.ValidateHeldFunds(clientID, entry); !result.IsValid {
			failures = append(failures, result)
		}
		return true
	})
	return failures
}

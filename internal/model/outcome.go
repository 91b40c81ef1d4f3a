package model

// Outcome is the pass/fail result of applying one transaction.
type Outcome string

const (
	// OutcomeApplied means the transaction changed the account.
	OutcomeApplied Outcome = "applied"
	// OutcomeRejected means the transaction failed validation and was skipped.
	OutcomeRejected Outcome = "rejected"
	// OutcomeIgnored means a dispute-family record referenced an unknown transaction.
	OutcomeIgnored Outcome = "ignored"
)

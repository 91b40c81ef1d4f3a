package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/txn-engine/internal/ledger"
	"github.com/example/txn-engine/internal/model"
)

func TestApply_UnsupportedType(t *testing.T) {
	entry := ledger.New().GetOrCreate(1)

	outcome, perr := apply(entry, model.Transaction{Type: "transfer", ClientID: 1, TransactionID: 3})
	assert.Equal(t, model.OutcomeRejected, outcome)
	require.NotNil(t, perr)
	assert.Equal(t, KindTransaction, perr.Kind)
	assert.Equal(t, `error for transaction 3: unsupported transaction type "transfer"`, perr.Error())
}

func TestApplyDispute_RejectsFundsTypes(t *testing.T) {
	entry := ledger.New().GetOrCreate(1)
	outcome, perr := apply(entry, deposit(1, 1, "2"))
	require.Nil(t, perr)
	require.Equal(t, model.OutcomeApplied, outcome)

	// a deposit routed to the dispute path must not be treated as a dispute
	outcome, perr = applyDispute(entry, deposit(1, 1, "2"))
	assert.Equal(t, model.OutcomeRejected, outcome)
	require.NotNil(t, perr)
	assert.Equal(t, KindTransaction, perr.Kind)
	assert.Contains(t, perr.Error(), `unsupported transaction type "deposit"`)
	assert.True(t, entry.State.Held().IsZero())
}

package audit

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/txn-engine/internal/model"
)

func TestChainLogger(t *testing.T) {
	logger := NewChainLogger()

	e1 := logger.Append("client=1 tx=1 type=deposit outcome=applied")
	e2 := logger.Append("client=1 tx=2 type=withdrawal outcome=rejected")
	e3 := logger.Append("client=1 tx=9 type=dispute outcome=ignored")

	assert.Equal(t, ZeroHash, e1.PreviousHash)
	assert.Equal(t, []int{1, 2, 3}, []int{e1.Seq, e2.Seq, e3.Seq})
	head, n := logger.Head()
	assert.Equal(t, e3.Hash, head)
	assert.Equal(t, 3, n)

	require.NoError(t, VerifyRun([]*LogEntry{e1, e2, e3}))
	require.NoError(t, VerifyRun(nil))
}

func TestVerifyRun_DetectsTampering(t *testing.T) {
	build := func() []*LogEntry {
		logger := NewChainLogger()
		return []*LogEntry{
			logger.Append("client=1 tx=1 type=deposit outcome=applied"),
			logger.Append("client=1 tx=2 type=withdrawal outcome=rejected"),
			logger.Append("client=1 tx=9 type=dispute outcome=ignored"),
		}
	}

	tests := []struct {
		name   string
		mutate func([]*LogEntry) []*LogEntry
		index  int
		reason string
	}{
		{
			name: "payload edited",
			mutate: func(e []*LogEntry) []*LogEntry {
				e[1].Payload = "client=1 tx=2 type=withdrawal outcome=applied"
				return e
			},
			index:  1,
			reason: "hash does not match",
		},
		{
			name: "hash replaced",
			mutate: func(e []*LogEntry) []*LogEntry {
				e[1].Hash = strings.Repeat("de", 32)
				return e
			},
			index:  1,
			reason: "hash does not match",
		},
		{
			name: "leading entry removed",
			mutate: func(e []*LogEntry) []*LogEntry {
				return e[1:]
			},
			index:  0,
			reason: "zero hash",
		},
		{
			name: "middle entry removed",
			mutate: func(e []*LogEntry) []*LogEntry {
				return []*LogEntry{e[0], e[2]}
			},
			index:  1,
			reason: "previous hash",
		},
		{
			name: "sequence rewritten",
			mutate: func(e []*LogEntry) []*LogEntry {
				e[2].Seq = 7
				return e
			},
			index:  2,
			reason: "sequence 7, want 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyRun(tt.mutate(build()))
			var chainErr *ChainError
			require.ErrorAs(t, err, &chainErr)
			assert.Equal(t, tt.index, chainErr.Index)
			assert.Contains(t, chainErr.Error(), tt.reason)
		})
	}
}

func TestTransactionAuditor_WritesVerifiableLog(t *testing.T) {
	var sink bytes.Buffer
	auditor := NewTransactionAuditor(NewChainLogger(), &sink)
	runID := uuid.New()

	amount := decimal.NewFromInt(2)
	auditor.Audit(runID, model.Transaction{Type: model.TypeDeposit, ClientID: 1, TransactionID: 1, Amount: &amount}, model.OutcomeApplied, nil)
	auditor.Audit(runID, model.Transaction{Type: model.TypeWithdrawal, ClientID: 1, TransactionID: 2, Amount: &amount}, model.OutcomeRejected, errors.New("insufficient funds"))
	auditor.Audit(runID, model.Transaction{Type: model.TypeDispute, ClientID: 1, TransactionID: 7}, model.OutcomeIgnored, nil)
	require.NoError(t, auditor.Close())

	entries, err := ReadEntries(&sink)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.NoError(t, VerifyRun(entries))

	assert.Equal(t, "run="+runID.String()+" client=1 tx=1 type=deposit outcome=applied", entries[0].Payload)
	assert.Contains(t, entries[1].Payload, `outcome=rejected reason="insufficient funds"`)
	assert.Contains(t, entries[2].Payload, "outcome=ignored")

	head, n := auditor.Head()
	assert.Equal(t, entries[2].Hash, head)
	assert.Equal(t, 3, n)
}

func TestTransactionAuditor_ConcurrentAppendsStayChained(t *testing.T) {
	var sink bytes.Buffer
	auditor := NewTransactionAuditor(NewChainLogger(), &sink)
	runID := uuid.New()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(client model.ClientID) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				auditor.Audit(runID, model.Transaction{Type: model.TypeDispute, ClientID: client, TransactionID: model.TransactionID(i)}, model.OutcomeIgnored, nil)
			}
		}(model.ClientID(w))
	}
	wg.Wait()
	require.NoError(t, auditor.Close())

	entries, err := ReadEntries(&sink)
	require.NoError(t, err)
	assert.Len(t, entries, 200)
	assert.NoError(t, VerifyRun(entries))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("read-only file system") }

func TestTransactionAuditor_SinkFailure(t *testing.T) {
	auditor := NewTransactionAuditor(NewChainLogger(), failingWriter{})
	auditor.Audit(uuid.New(), model.Transaction{Type: model.TypeDeposit, ClientID: 1, TransactionID: 1}, model.OutcomeRejected, nil)

	err := auditor.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only file system")

	// the chain still advances without a sink
	_, n := auditor.Head()
	assert.Equal(t, 1, n)
}

func TestTransactionAuditor_NoSink(t *testing.T) {
	auditor := NewTransactionAuditor(NewChainLogger(), nil)
	auditor.Audit(uuid.New(), model.Transaction{Type: model.TypeDeposit, ClientID: 1, TransactionID: 1}, model.OutcomeApplied, nil)
	require.NoError(t, auditor.Close())
	head, n := auditor.Head()
	assert.NotEqual(t, ZeroHash, head)
	assert.Equal(t, 1, n)
}

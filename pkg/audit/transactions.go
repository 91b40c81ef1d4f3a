package audit

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/example/txn-engine/internal/model"
)

// TransactionAuditor appends the pass/fail outcome of every transaction to a
// hash chain and streams each entry to a sink as one JSON object per line.
// It is safe for concurrent use.
type TransactionAuditor struct {
	chain *ChainLogger

	mu  sync.Mutex
	buf *bufio.Writer
	enc *json.Encoder
	err error
}

// NewTransactionAuditor writes entries to sink. A nil sink keeps only the
// chain head.
func NewTransactionAuditor(chain *ChainLogger, sink io.Writer) *TransactionAuditor {
	a := &TransactionAuditor{chain: chain}
	if sink != nil {
		a.buf = bufio.NewWriter(sink)
		a.enc = json.NewEncoder(a.buf)
	}
	return a
}

// Payload renders the audited facts of one transaction.
func Payload(runID uuid.UUID, tx model.Transaction, outcome model.Outcome, cause error) string {
	payload := fmt.Sprintf("run=%s client=%s tx=%s type=%s outcome=%s",
		runID, tx.ClientID, tx.TransactionID, tx.Type, outcome)
	if cause != nil {
		payload += fmt.Sprintf(" reason=%q", cause.Error())
	}
	return payload
}

func (a *TransactionAuditor) Audit(runID uuid.UUID, tx model.Transaction, outcome model.Outcome, cause error) {
	// hold the lock across append and write so the sink sees chain order
	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.chain.Append(Payload(runID, tx, outcome, cause))
	if a.enc == nil || a.err != nil {
		return
	}
	if err := a.enc.Encode(entry); err != nil {
		a.err = fmt.Errorf("write audit entry: %w", err)
	}
}

// Close flushes buffered entries and returns the first write error.
func (a *TransactionAuditor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.buf != nil && a.err == nil {
		if err := a.buf.Flush(); err != nil {
			a.err = fmt.Errorf("flush audit log: %w", err)
		}
	}
	return a.err
}

// Head returns the latest chain hash and the number of audited transactions.
func (a *TransactionAuditor) Head() (string, int) {
	return a.chain.Head()
}

// ReadEntries decodes a JSON-lines audit log.
func ReadEntries(r io.Reader) ([]*LogEntry, error) {
	dec := json.NewDecoder(r)
	var entries []*LogEntry
	for {
		var entry LogEntry
		if err := dec.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				return entries, nil
			}
			return nil, fmt.Errorf("decode audit entry %d: %w", len(entries)+1, err)
		}
		entries = append(entries, &entry)
	}
}

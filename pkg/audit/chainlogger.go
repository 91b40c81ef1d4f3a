package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LogEntry is one link of a run's audit chain. Seq counts from 1 within the
// run and is covered by the hash together with the timestamp and payload.
type LogEntry struct {
	Seq          int    `json:"seq"`
	Timestamp    string `json:"timestamp"`
	PreviousHash string `json:"previous_hash"`
	Payload      string `json:"payload"`
	Hash         string `json:"hash"`
}

// ZeroHash anchors every run: the first entry of a run links to it.
var ZeroHash = strings.Repeat("0", 64)

// ChainLogger builds the audit chain of a single run.
type ChainLogger struct {
	mu   sync.Mutex
	head string
	seq  int
	now  func() time.Time
}

func NewChainLogger() *ChainLogger {
	return &ChainLogger{head: ZeroHash, now: time.Now}
}

// Append links payload to the current head and returns the new entry.
func (c *ChainLogger) Append(payload string) *LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	entry := &LogEntry{
		Seq:          c.seq,
		Timestamp:    c.now().UTC().Format(time.RFC3339Nano),
		PreviousHash: c.head,
		Payload:      payload,
	}
	entry.Hash = entry.digest()
	c.head = entry.Hash
	return entry
}

// Head returns the hash of the latest entry and the number of entries.
func (c *ChainLogger) Head() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head, c.seq
}

func (e *LogEntry) digest() string {
	h := sha256.New()
	for _, part := range []string{strconv.Itoa(e.Seq), e.PreviousHash, e.Timestamp, e.Payload} {
		h.Write([]byte(part))
		h.Write([]byte{'|'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ChainError locates the first entry that does not verify.
type ChainError struct {
	Index  int
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("audit entry %d: %s", e.Index, e.Reason)
}

// VerifyRun checks that entries are one complete run: anchored at ZeroHash,
// numbered from 1 without gaps, each linked to its predecessor and carrying
// its own hash. An empty slice is a valid, empty run.
func VerifyRun(entries []*LogEntry) error {
	prev := ZeroHash
	for i, entry := range entries {
		switch {
		case entry.PreviousHash != prev && i == 0:
			return &ChainError{Index: i, Reason: "run does not start from the zero hash"}
		case entry.PreviousHash != prev:
			return &ChainError{Index: i, Reason: "previous hash does not match"}
		case entry.Seq != i+1:
			return &ChainError{Index: i, Reason: fmt.Sprintf("sequence %d, want %d", entry.Seq, i+1)}
		case entry.digest() != entry.Hash:
			return &ChainError{Index: i, Reason: "hash does not match contents"}
		}
		prev = entry.Hash
	}
	return nil
}

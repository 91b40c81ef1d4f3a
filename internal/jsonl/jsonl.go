// Package jsonl reads transactions from and writes account snapshots to
// newline-delimited JSON, one object per line.
package jsonl

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/example/txn-engine/internal/model"
)

const maxLineBytes = 1 << 20

type transactionRecord struct {
	Type   string          `json:"type"`
	Client *uint16         `json:"client"`
	Tx     *uint32         `json:"tx"`
	Amount json.RawMessage `json:"amount,omitempty"`
}

type snapshotRecord struct {
	Client    model.ClientID `json:"client"`
	Available string         `json:"available"`
	Held      string         `json:"held"`
	Total     string         `json:"total"`
	Locked    bool           `json:"locked"`
}

// Importer decodes one transaction per non-blank line. Each line is checked
// against the transaction schema before decoding.
type Importer struct {
	scanner   *bufio.Scanner
	validator *schemaValidator
	line      int
}

func NewImporter(r io.Reader) (*Importer, error) {
	validator, err := newSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("compile transaction schema: %w", err)
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Importer{scanner: scanner, validator: validator}, nil
}

// Next returns the next transaction, or io.EOF at the end of input.
func (imp *Importer) Next() (model.Transaction, error) {
	for imp.scanner.Scan() {
		imp.line++
		raw := bytes.TrimSpace(imp.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		if err := imp.validator.validate(raw); err != nil {
			return model.Transaction{}, fmt.Errorf("line %d: %w", imp.line, err)
		}
		tx, err := decode(raw)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("line %d: %w", imp.line, err)
		}
		return tx, nil
	}
	if err := imp.scanner.Err(); err != nil {
		return model.Transaction{}, fmt.Errorf("read jsonl record: %w", err)
	}
	return model.Transaction{}, io.EOF
}

func decode(raw []byte) (model.Transaction, error) {
	var rec transactionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.Transaction{}, fmt.Errorf("decode transaction: %w", err)
	}

	t, err := model.ParseTransactionType(rec.Type)
	if err != nil {
		return model.Transaction{}, err
	}
	if rec.Client == nil {
		return model.Transaction{}, fmt.Errorf("missing field %q", "client")
	}
	if rec.Tx == nil {
		return model.Transaction{}, fmt.Errorf("missing field %q", "tx")
	}

	amount, err := model.ParseAmount(amountText(rec.Amount))
	if err != nil {
		return model.Transaction{}, err
	}

	return model.Transaction{
		Type:          t,
		ClientID:      model.ClientID(*rec.Client),
		TransactionID: model.TransactionID(*rec.Tx),
		Amount:        amount,
	}, nil
}

// amountText accepts the amount either as a JSON string or a bare number.
func amountText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	if trimmed[0] == '"' {
		if s, err := strconv.Unquote(string(trimmed)); err == nil {
			return s
		}
	}
	return string(trimmed)
}

// Exporter writes one JSON object per snapshot with amounts as fixed
// four-digit strings.
type Exporter struct {
	buf *bufio.Writer
	enc *json.Encoder
}

func NewExporter(w io.Writer) *Exporter {
	buf := bufio.NewWriter(w)
	return &Exporter{buf: buf, enc: json.NewEncoder(buf)}
}

func (e *Exporter) Export(_ context.Context, s model.Snapshot) error {
	rec := snapshotRecord{
		Client:    s.ClientID,
		Available: model.FormatAmount(s.Available),
		Held:      model.FormatAmount(s.Held),
		Total:     model.FormatAmount(s.Total),
		Locked:    s.Locked,
	}
	if err := e.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode snapshot for client %s: %w", s.ClientID, err)
	}
	return nil
}

func (e *Exporter) Flush(context.Context) error {
	if err := e.buf.Flush(); err != nil {
		return fmt.Errorf("flush jsonl: %w", err)
	}
	return nil
}

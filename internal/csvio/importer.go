// Package csvio reads transactions from and writes account snapshots to CSV.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/example/txn-engine/internal/model"
)

// Column names of the transaction input.
const (
	ColumnType   = "type"
	ColumnClient = "client"
	ColumnTx     = "tx"
	ColumnAmount = "amount"
)

// Importer decodes one transaction per CSV row. Columns are located by header
// name and surrounding whitespace is ignored in headers and fields.
type Importer struct {
	reader *csv.Reader
	closer io.Closer
	cols   map[string]int
	empty  bool
}

// Open creates an importer over the named file. Close releases it.
func Open(path string) (*Importer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}

	imp, err := NewImporter(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	imp.closer = file
	return imp, nil
}

// NewImporter reads the header row from r and returns an importer for the
// remaining rows.
func NewImporter(r io.Reader) (*Importer, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	imp := &Importer{reader: reader, cols: make(map[string]int)}

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		imp.empty = true
		return imp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	for i, name := range header {
		imp.cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{ColumnType, ColumnClient, ColumnTx} {
		if _, ok := imp.cols[required]; !ok {
			return nil, fmt.Errorf("csv header is missing column %q", required)
		}
	}
	return imp, nil
}

// Next returns the next transaction, or io.EOF after the last row.
func (imp *Importer) Next() (model.Transaction, error) {
	if imp.empty {
		return model.Transaction{}, io.EOF
	}

	record, err := imp.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return model.Transaction{}, io.EOF
		}
		return model.Transaction{}, fmt.Errorf("read csv record: %w", err)
	}

	line, _ := imp.reader.FieldPos(0)
	tx, err := imp.decode(record)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("line %d: %w", line, err)
	}
	return tx, nil
}

func (imp *Importer) field(record []string, name string) string {
	i, ok := imp.cols[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (imp *Importer) decode(record []string) (model.Transaction, error) {
	t, err := model.ParseTransactionType(imp.field(record, ColumnType))
	if err != nil {
		return model.Transaction{}, err
	}
	client, err := model.ParseClientID(imp.field(record, ColumnClient))
	if err != nil {
		return model.Transaction{}, err
	}
	id, err := model.ParseTransactionID(imp.field(record, ColumnTx))
	if err != nil {
		return model.Transaction{}, err
	}
	amount, err := model.ParseAmount(imp.field(record, ColumnAmount))
	if err != nil {
		return model.Transaction{}, err
	}

	return model.Transaction{
		Type:          t,
		ClientID:      client,
		TransactionID: id,
		Amount:        amount,
	}, nil
}

// Close closes the underlying file when the importer was created by Open.
func (imp *Importer) Close() error {
	if imp.closer == nil {
		return nil
	}
	return imp.closer.Close()
}

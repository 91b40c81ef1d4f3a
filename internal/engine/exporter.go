package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/example/txn-engine/internal/model"
)

// Importer yields transactions in input order. Next returns io.EOF once the
// input is exhausted; any other error is fatal to the run.
type Importer interface {
	Next() (model.Transaction, error)
}

// Exporter accepts one client snapshot at a time. Flush is called once after
// the last snapshot.
type Exporter interface {
	Export(ctx context.Context, snapshot model.Snapshot) error
	Flush(ctx context.Context) error
}

// MultiExporter writes every snapshot to each exporter in turn, stopping at
// the first failure.
type MultiExporter []Exporter

func (m MultiExporter) Export(ctx context.Context, snapshot model.Snapshot) error {
	for i, exp := range m {
		if err := exp.Export(ctx, snapshot); err != nil {
			return fmt.Errorf("exporter %d: %w", i, err)
		}
	}
	return nil
}

func (m MultiExporter) Flush(ctx context.Context) error {
	for i, exp := range m {
		if err := exp.Flush(ctx); err != nil {
			return fmt.Errorf("exporter %d: flush: %w", i, err)
		}
	}
	return nil
}

// SliceImporter replays a fixed list of transactions.
type SliceImporter struct {
	txs []model.Transaction
	pos int
}

func NewSliceImporter(txs ...model.Transaction) *SliceImporter {
	return &SliceImporter{txs: txs}
}

func (s *SliceImporter) Next() (model.Transaction, error) {
	if s.pos >= len(s.txs) {
		return model.Transaction{}, io.EOF
	}
	tx := s.txs[s.pos]
	s.pos++
	return tx, nil
}

// SliceExporter collects snapshots in memory.
type SliceExporter struct {
	Snapshots []model.Snapshot
	Flushed   bool
}

func (s *SliceExporter) Export(_ context.Context, snapshot model.Snapshot) error {
	s.Snapshots = append(s.Snapshots, snapshot)
	return nil
}

func (s *SliceExporter) Flush(context.Context) error {
	s.Flushed = true
	return nil
}

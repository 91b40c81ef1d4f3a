// Package sqlite keeps a copy of each run's account snapshots in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/example/txn-engine/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS account_snapshots (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	client INTEGER NOT NULL,
	available TEXT NOT NULL,
	held TEXT NOT NULL,
	total TEXT NOT NULL,
	locked BOOLEAN NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE (run_id, client)
);

CREATE INDEX IF NOT EXISTS idx_account_snapshots_run_id ON account_snapshots(run_id);
`

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the snapshot table if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply sqlite schema: %w", err)
	}
	return nil
}

// SnapshotStore writes the snapshots of one run inside a single SQL
// transaction that is committed by Flush. Nothing is visible to readers until
// then.
type SnapshotStore struct {
	db    *sql.DB
	runID uuid.UUID
	tx    *sql.Tx
	now   func() time.Time
}

func NewSnapshotStore(db *sql.DB, runID uuid.UUID) *SnapshotStore {
	return &SnapshotStore{db: db, runID: runID, now: time.Now}
}

func (s *SnapshotStore) begin(ctx context.Context) error {
	if s.tx != nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	s.tx = tx
	return nil
}

func (s *SnapshotStore) Export(ctx context.Context, snap model.Snapshot) error {
	if err := s.begin(ctx); err != nil {
		return err
	}

	query := `
		INSERT INTO account_snapshots (run_id, client, available, held, total, locked, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.tx.ExecContext(ctx, query,
		s.runID.String(), int(snap.ClientID),
		model.FormatAmount(snap.Available), model.FormatAmount(snap.Held), model.FormatAmount(snap.Total),
		snap.Locked, s.now().UTC())
	if err != nil {
		s.rollback()
		return fmt.Errorf("database insert failed for client %s: %w", snap.ClientID, err)
	}
	return nil
}

// Flush commits the run. A run with no clients commits an empty transaction.
func (s *SnapshotStore) Flush(ctx context.Context) error {
	if err := s.begin(ctx); err != nil {
		return err
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return fmt.Errorf("failed to commit snapshots: %w", err)
	}
	return nil
}

// Close discards a run that was exported but never flushed, for instance when
// another exporter failed first. It is a no-op after Flush.
func (s *SnapshotStore) Close() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back snapshots: %w", err)
	}
	return nil
}

func (s *SnapshotStore) rollback() {
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
}

// LoadRun returns the committed snapshots of a run in client order.
func LoadRun(ctx context.Context, db *sql.DB, runID uuid.UUID) ([]model.Snapshot, error) {
	query := `
		SELECT client, available, held, total, locked
		FROM account_snapshots
		WHERE run_id = ?
		ORDER BY client
	`
	rows, err := db.QueryContext(ctx, query, runID.String())
	if err != nil {
		return nil, fmt.Errorf("database query failed: %w", err)
	}
	defer rows.Close()

	var out []model.Snapshot
	for rows.Next() {
		var (
			client                 int
			available, held, total string
			snap                   model.Snapshot
		)
		if err := rows.Scan(&client, &available, &held, &total, &snap.Locked); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		snap.ClientID = model.ClientID(client)
		if snap.Available, err = decimal.NewFromString(available); err != nil {
			return nil, fmt.Errorf("client %d available: %w", client, err)
		}
		if snap.Held, err = decimal.NewFromString(held); err != nil {
			return nil, fmt.Errorf("client %d held: %w", client, err)
		}
		if snap.Total, err = decimal.NewFromString(total); err != nil {
			return nil, fmt.Errorf("client %d total: %w", client, err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

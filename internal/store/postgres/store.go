// Package postgres keeps a copy of each run's account snapshots in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/example/txn-engine/internal/model"
)

// Pool is the subset of *pgxpool.Pool the store needs.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS account_snapshots (
	id BIGSERIAL PRIMARY KEY,
	run_id UUID NOT NULL,
	client INTEGER NOT NULL CHECK (client >= 0 AND client <= 65535),
	available NUMERIC(28, 4) NOT NULL,
	held NUMERIC(28, 4) NOT NULL,
	total NUMERIC(28, 4) NOT NULL CHECK (total = available + held),
	locked BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (run_id, client)
);

CREATE INDEX IF NOT EXISTS idx_account_snapshots_run_id ON account_snapshots(run_id);
`

const insertSnapshot = `
	INSERT INTO account_snapshots (run_id, client, available, held, total, locked)
	VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6)
`

const (
	maxRetries              = 3
	serializationFailure    = "40001"
	defaultOperationTimeout = 30 * time.Second
)

// Migrate creates the snapshot table if it does not exist.
func Migrate(ctx context.Context, pool Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

// SnapshotStore buffers the snapshots of one run and writes them in a single
// transaction on Flush.
type SnapshotStore struct {
	pool    Pool
	runID   uuid.UUID
	pending []model.Snapshot
	timeout time.Duration
}

func NewSnapshotStore(pool Pool, runID uuid.UUID) *SnapshotStore {
	return &SnapshotStore{pool: pool, runID: runID, timeout: defaultOperationTimeout}
}

func (s *SnapshotStore) Export(_ context.Context, snap model.Snapshot) error {
	s.pending = append(s.pending, snap)
	return nil
}

// Flush writes every buffered snapshot, retrying the whole transaction on
// serialization failures.
func (s *SnapshotStore) Flush(ctx context.Context) error {
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := s.write(ctx)
		if err == nil {
			s.pending = nil
			return nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == serializationFailure {
			if attempt == maxRetries-1 {
				return fmt.Errorf("failed to write snapshots after %d retries due to serialization failure: %w", maxRetries, err)
			}
			time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
			continue
		}
		return fmt.Errorf("failed to write snapshots: %w", err)
	}
	return nil
}

func (s *SnapshotStore) write(ctx context.Context) error {
	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.pool.Begin(queryCtx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(queryCtx)

	for _, snap := range s.pending {
		_, err := tx.Exec(queryCtx, insertSnapshot,
			s.runID, int32(snap.ClientID),
			model.FormatAmount(snap.Available), model.FormatAmount(snap.Held), model.FormatAmount(snap.Total),
			snap.Locked)
		if err != nil {
			return fmt.Errorf("insert snapshot for client %s: %w", snap.ClientID, err)
		}
	}

	if err := tx.Commit(queryCtx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadRun returns the committed snapshots of a run in client order.
func LoadRun(ctx context.Context, pool Pool, runID uuid.UUID) ([]model.Snapshot, error) {
	rows, err := pool.Query(ctx, `
		SELECT client, available::text, held::text, total::text, locked
		FROM account_snapshots
		WHERE run_id = $1
		ORDER BY client
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []model.Snapshot
	for rows.Next() {
		var (
			client                 int32
			available, held, total string
			snap                   model.Snapshot
		)
		if err := rows.Scan(&client, &available, &held, &total, &snap.Locked); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.ClientID = model.ClientID(client)
		for _, f := range []struct {
			dst *decimal.Decimal
			raw string
		}{{&snap.Available, available}, {&snap.Held, held}, {&snap.Total, total}} {
			if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
				return nil, fmt.Errorf("client %d: %w", client, err)
			}
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

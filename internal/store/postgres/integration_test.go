//go:build integration

package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/example/txn-engine/internal/model"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_PASSWORD": "secret", "POSTGRES_USER": "postgres", "POSTGRES_DB": "engine"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	exitCode := 0
	if err := connect(ctx, container); err != nil {
		fmt.Fprintf(os.Stderr, "postgres integration tests skipped: %v\n", err)
	} else {
		exitCode = m.Run()
		testPool.Close()
	}

	_ = container.Terminate(ctx)
	os.Exit(exitCode)
}

func connect(ctx context.Context, container testcontainers.Container) error {
	host, err := container.Host(ctx)
	if err != nil {
		return fmt.Errorf("container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return fmt.Errorf("container port: %w", err)
	}
	dsn := fmt.Sprintf("postgres://postgres:secret@%s:%s/engine?sslmode=disable", host, port.Port())

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return err
	}
	testPool = pool
	return nil
}

func TestIntegration_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	runID := uuid.New()
	store := NewSnapshotStore(testPool, runID)

	require.NoError(t, store.Export(ctx, model.Snapshot{
		ClientID:  2,
		Available: decimal.NewFromInt(-1),
		Held:      decimal.Zero,
		Total:     decimal.NewFromInt(-1),
		Locked:    true,
	}))
	require.NoError(t, store.Export(ctx, model.Snapshot{
		ClientID:  1,
		Available: decimal.RequireFromString("0.1235"),
		Held:      decimal.NewFromInt(3),
		Total:     decimal.RequireFromString("3.1235"),
	}))
	require.NoError(t, store.Flush(ctx))

	snaps, err := LoadRun(ctx, testPool, runID)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, model.ClientID(1), snaps[0].ClientID)
	assert.Equal(t, "0.1235", model.FormatAmount(snaps[0].Available))
	assert.Equal(t, model.ClientID(2), snaps[1].ClientID)
	assert.True(t, snaps[1].Locked)
}

func TestIntegration_InconsistentSnapshotRejected(t *testing.T) {
	ctx := context.Background()
	runID := uuid.New()
	store := NewSnapshotStore(testPool, runID)

	require.NoError(t, store.Export(ctx, model.Snapshot{ClientID: 1, Available: decimal.NewFromInt(1), Total: decimal.NewFromInt(1)}))
	require.NoError(t, store.Export(ctx, model.Snapshot{
		ClientID:  2,
		Available: decimal.NewFromInt(1),
		Total:     decimal.NewFromInt(5),
	}))
	require.Error(t, store.Flush(ctx))

	// the whole run is rolled back
	snaps, err := LoadRun(ctx, testPool, runID)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

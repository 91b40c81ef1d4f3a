package main

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/txn-engine/internal/config"
	"github.com/example/txn-engine/internal/model"
	"github.com/example/txn-engine/internal/store/sqlite"
	"github.com/example/txn-engine/pkg/audit"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENGINE_CONFIG", "APP_ENV", "ENGINE_LOG_LEVEL", "ENGINE_INPUT_FORMAT", "ENGINE_OUTPUT_FORMAT",
		"ENGINE_SQLITE_PATH", "DATABASE_URL", "ENGINE_WORKERS", "ENGINE_AUDIT", "OTEL_EXPORTER_OTLP_ENDPOINT",
		"ENGINE_AUDIT_PATH", "ENGINE_REDIS_ADDR", "ENGINE_REDIS_TTL",
	} {
		t.Setenv(key, "")
	}
}

func writeInput(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const scenarioCSV = `type, client, tx, amount
deposit, 1, 1, 1.0
deposit, 2, 2, 2.0
deposit, 1, 3, 2.0
withdrawal, 1, 4, 1.5
withdrawal, 2, 5, 3.0
`

func TestRun_CSV(t *testing.T) {
	clearEnv(t)
	input := writeInput(t, "tx.csv", scenarioCSV)

	for _, workers := range []string{"1", "4"} {
		t.Run("workers="+workers, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), []string{"-workers", workers, input}, &stdout, &stderr)

			require.Equal(t, 0, code, stderr.String())
			assert.Equal(t, "client,available,held,total,locked\n"+
				"1,1.5000,0.0000,1.5000,false\n"+
				"2,2.0000,0.0000,2.0000,false\n", stdout.String())
			assert.Contains(t, stderr.String(), "error for transaction 5: insufficient funds")
		})
	}
}

func TestRun_JSONLWithSinks(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "snapshots.db")
	auditPath := filepath.Join(dir, "audit.log")

	t.Setenv("ENGINE_INPUT_FORMAT", "jsonl")
	t.Setenv("ENGINE_OUTPUT_FORMAT", "jsonl")
	t.Setenv("ENGINE_SQLITE_PATH", dbPath)
	t.Setenv("ENGINE_AUDIT", "true")
	t.Setenv("ENGINE_AUDIT_PATH", auditPath)

	input := writeInput(t, "tx.jsonl", `{"type":"deposit","client":7,"tx":1,"amount":"10.5"}
{"type":"dispute","client":7,"tx":1}
{"type":"chargeback","client":7,"tx":1}
{"type":"deposit","client":7,"tx":2,"amount":1}
`)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{input}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.JSONEq(t, `{"client":7,"available":"1.0000","held":"0.0000","total":"1.0000","locked":true}`, stdout.String())
	assert.Contains(t, stderr.String(), "audit chain closed")

	file, err := os.Open(auditPath)
	require.NoError(t, err)
	defer file.Close()
	entries, err := audit.ReadEntries(file)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
	assert.NoError(t, audit.VerifyRun(entries))

	db, err := sqlite.Open(context.Background(), dbPath)
	require.NoError(t, err)
	defer db.Close()
	var locked bool
	err = db.QueryRow(`SELECT locked FROM account_snapshots WHERE client = ?`, 7).Scan(&locked)
	require.NoError(t, err)
	assert.True(t, locked)
	assertRowCount(t, db, 1)
}

func assertRowCount(t *testing.T, db *sql.DB, want int) {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM account_snapshots`).Scan(&n))
	assert.Equal(t, want, n)
}

func TestRun_FatalErrors(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		args    func(t *testing.T) []string
		code    int
		message string
	}{
		{
			name:    "no input",
			args:    func(*testing.T) []string { return nil },
			code:    2,
			message: "usage: engine",
		},
		{
			name: "missing file",
			args: func(t *testing.T) []string {
				return []string{filepath.Join(t.TempDir(), "absent.csv")}
			},
			code:    1,
			message: "error:",
		},
		{
			name: "unknown transaction type",
			args: func(t *testing.T) []string {
				return []string{writeInput(t, "bad.csv", "type,client,tx,amount\ndeposit,1,1,1\ntransfer,1,2,1\n")}
			},
			code:    1,
			message: "transaction import error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tt.args(t), &stdout, &stderr)
			assert.Equal(t, tt.code, code)
			assert.Contains(t, stderr.String(), tt.message)
		})
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENGINE_WORKERS", "many")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{writeInput(t, "tx.csv", scenarioCSV)}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "ENGINE_WORKERS")
	assert.Empty(t, stdout.String())
}

func TestOpenSinks_CloseDiscardsUnflushedSQLiteRun(t *testing.T) {
	clearEnv(t)
	ctx := context.Background()
	cfg := config.Default()
	cfg.SQLitePath = filepath.Join(t.TempDir(), "snapshots.db")
	runID := uuid.New()

	var stdout bytes.Buffer
	sinks, err := openSinks(ctx, cfg, runID, &stdout, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	require.NoError(t, err)
	require.Len(t, sinks.exporter, 2)

	// the stdout exporter succeeded, then the run aborted before Flush
	require.NoError(t, sinks.exporter.Export(ctx, model.Snapshot{ClientID: 1}))
	sinks.close()

	db, err := sqlite.Open(ctx, cfg.SQLitePath)
	require.NoError(t, err)
	defer db.Close()
	snaps, err := sqlite.LoadRun(ctx, db, runID)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}

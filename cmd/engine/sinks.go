package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/example/txn-engine/internal/config"
	"github.com/example/txn-engine/internal/csvio"
	"github.com/example/txn-engine/internal/engine"
	"github.com/example/txn-engine/internal/jsonl"
	"github.com/example/txn-engine/internal/store/postgres"
	"github.com/example/txn-engine/internal/store/redisstore"
	"github.com/example/txn-engine/internal/store/sqlite"
)

func openImporter(format, path string) (engine.Importer, func(), error) {
	switch format {
	case config.FormatJSONL:
		file, err := openFile(path)
		if err != nil {
			return nil, nil, err
		}
		imp, err := jsonl.NewImporter(file)
		if err != nil {
			file.Close()
			return nil, nil, err
		}
		return imp, func() { file.Close() }, nil
	default:
		imp, err := csvio.Open(path)
		if err != nil {
			return nil, nil, err
		}
		return imp, func() { imp.Close() }, nil
	}
}

// sinks is the exporter chain for a run plus the connections behind it.
type sinks struct {
	exporter engine.MultiExporter
	closers  []func()
}

func (s *sinks) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openSinks(ctx context.Context, cfg *config.Config, runID uuid.UUID, stdout io.Writer, logger *slog.Logger) (*sinks, error) {
	s := &sinks{}
	if cfg.OutputFormat == config.FormatJSONL {
		s.exporter = append(s.exporter, jsonl.NewExporter(stdout))
	} else {
		s.exporter = append(s.exporter, csvio.NewExporter(stdout))
	}

	if cfg.SQLitePath != "" {
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			s.close()
			return nil, err
		}
		s.closers = append(s.closers, func() { closeDB(db, logger) })
		store := sqlite.NewSnapshotStore(db, runID)
		// closers run in reverse, so an unflushed run is rolled back before db.Close
		s.closers = append(s.closers, func() {
			if err := store.Close(); err != nil {
				logger.Warn("failed to discard sqlite snapshots", "error", err)
			}
		})
		s.exporter = append(s.exporter, store)
		logger.Debug("sqlite snapshot sink enabled", "path", cfg.SQLitePath)
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("failed to create database pool: %w", err)
		}
		s.closers = append(s.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			s.close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			s.close()
			return nil, err
		}
		s.exporter = append(s.exporter, postgres.NewSnapshotStore(pool, runID))
		logger.Debug("postgres snapshot sink enabled")
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		s.closers = append(s.closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			s.close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		s.exporter = append(s.exporter, redisstore.NewSnapshotStore(rdb, runID, cfg.RedisTTL))
		logger.Debug("redis snapshot sink enabled", "addr", cfg.RedisAddr)
	}

	return s, nil
}

func closeDB(db *sql.DB, logger *slog.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("failed to close sqlite database", "error", err)
	}
}

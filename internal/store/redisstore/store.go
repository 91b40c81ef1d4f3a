// Package redisstore publishes each run's account snapshots as Redis hashes.
//
// For run R the store writes one hash per client at <prefix>:run:R:client:C
// with the fields available, held, total and locked, plus a list
// <prefix>:run:R:clients holding client ids in export order. Every key
// expires after the configured TTL.
package redisstore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/example/txn-engine/internal/model"
)

const DefaultPrefix = "txn-engine"

// SnapshotStore buffers one run's snapshots and writes them in a single
// MULTI/EXEC block on Flush.
type SnapshotStore struct {
	Redis  redis.Cmdable
	Prefix string
	TTL    time.Duration

	runID   uuid.UUID
	pending []model.Snapshot
}

func NewSnapshotStore(client redis.Cmdable, runID uuid.UUID, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{Redis: client, Prefix: DefaultPrefix, TTL: ttl, runID: runID}
}

func (s *SnapshotStore) runKey() string {
	return s.Prefix + ":run:" + s.runID.String()
}

// ClientKey returns the hash key for one client of the run.
func (s *SnapshotStore) ClientKey(clientID model.ClientID) string {
	return s.runKey() + ":client:" + clientID.String()
}

// IndexKey returns the list key holding the run's client ids.
func (s *SnapshotStore) IndexKey() string {
	return s.runKey() + ":clients"
}

func (s *SnapshotStore) Export(_ context.Context, snap model.Snapshot) error {
	s.pending = append(s.pending, snap)
	return nil
}

func (s *SnapshotStore) Flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	ids := make([]interface{}, 0, len(s.pending))
	_, err := s.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, snap := range s.pending {
			key := s.ClientKey(snap.ClientID)
			pipe.HSet(ctx, key,
				"available", model.FormatAmount(snap.Available),
				"held", model.FormatAmount(snap.Held),
				"total", model.FormatAmount(snap.Total),
				"locked", strconv.FormatBool(snap.Locked),
			)
			if s.TTL > 0 {
				pipe.Expire(ctx, key, s.TTL)
			}
			ids = append(ids, snap.ClientID.String())
		}

		pipe.RPush(ctx, s.IndexKey(), ids...)
		if s.TTL > 0 {
			pipe.Expire(ctx, s.IndexKey(), s.TTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write snapshots to redis: %w", err)
	}

	s.pending = nil
	return nil
}

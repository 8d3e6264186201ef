package store

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// Sync-state records advance monotonically: the graph projector writes one
// per (kind, id) after a successful node upsert and compares content
// hashes to skip unchanged entities.

// GetSyncState reads the sync record for an entity. A missing record is
// reported as NotFound — it means the entity was never projected.
func (s *Store) GetSyncState(ctx context.Context, project, kind, id string) (SyncState, error) {
	raw, err := s.rdb.HGetAll(ctx, SyncStateKey(project, kind, id)).Result()
	if err != nil {
		return SyncState{}, wrapErr(err, "reading sync state %s:%s", kind, id)
	}
	if len(raw) == 0 {
		return SyncState{}, cwerr.E(cwerr.NotFound, "no sync state for %s:%s", kind, id)
	}
	version, _ := strconv.ParseInt(raw["sync_version"], 10, 64)
	return SyncState{
		LastSyncedAt: raw["last_synced_at"],
		SyncVersion:  version,
		ContentHash:  raw["content_hash"],
	}, nil
}

// AdvanceSyncState records a successful projection of an entity,
// incrementing the sync version and storing the new content hash.
func (s *Store) AdvanceSyncState(ctx context.Context, project, kind, id, contentHash string) error {
	key := SyncStateKey(project, kind, id)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "last_synced_at", s.nowRFC3339(), "content_hash", contentHash)
		pipe.HIncrBy(ctx, key, "sync_version", 1)
		return nil
	})
	return wrapErr(err, "advancing sync state %s:%s", kind, id)
}

// DeleteSyncState drops an entity's sync record (entity deleted, or full
// rebuild resetting the projection).
func (s *Store) DeleteSyncState(ctx context.Context, project, kind, id string) error {
	err := s.rdb.Del(ctx, SyncStateKey(project, kind, id)).Err()
	return wrapErr(err, "deleting sync state %s:%s", kind, id)
}

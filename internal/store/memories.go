package store

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// defaultConfidence is the confidence assigned to fresh memories and
// observations.
const defaultConfidence = 0.8

// AddMemory writes a new memory nugget.
func (s *Store) AddMemory(ctx context.Context, project, kind, content string) (Memory, error) {
	if content == "" {
		return Memory{}, cwerr.E(cwerr.InvalidArguments, "memory content must not be empty")
	}
	if !ValidEnum(kind, MemoryKinds) {
		return Memory{}, cwerr.E(cwerr.InvalidArguments, "invalid memory kind %q", kind)
	}
	now := s.now()
	memory := Memory{
		ID:         NewID(),
		ProjectID:  project,
		Kind:       kind,
		Content:    content,
		Confidence: defaultConfidence,
		Version:    1,
		CreatedAt:  now.UTC().Format(timeLayout),
		UpdatedAt:  now.UTC().Format(timeLayout),
	}
	err := s.txPut(ctx, MemoryKey(project, memory.ID), memory, func(pipe redis.Pipeliner) {
		pipe.ZAdd(ctx, MemoriesAllKey(project), redis.Z{Score: float64(now.UnixNano()), Member: memory.ID})
	})
	if err != nil {
		return Memory{}, err
	}
	return memory, nil
}

// GetMemory loads a memory by id.
func (s *Store) GetMemory(ctx context.Context, project, id string) (Memory, error) {
	return getDoc[Memory](ctx, s, MemoryKey(project, id), "memory "+id)
}

// ListMemories returns memories newest-first, bounded by limit (0 = all).
func (s *Store) ListMemories(ctx context.Context, project string, limit int64) ([]Memory, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}
	ids, err := s.rdb.ZRevRange(ctx, MemoriesAllKey(project), 0, stop).Result()
	if err != nil {
		return nil, wrapErr(err, "listing memories")
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = MemoryKey(project, id)
	}
	return getDocs[Memory](ctx, s, keys, "memories")
}

// UpdateMemory applies a partial update under CAS.
func (s *Store) UpdateMemory(ctx context.Context, project, id string, mutate func(Memory) (Memory, error)) (Memory, error) {
	return updateDoc(ctx, s, MemoryKey(project, id), "memory "+id, func(m Memory) (Memory, error) {
		updated, err := mutate(m)
		if err != nil {
			return m, err
		}
		if updated.Confidence < 0 || updated.Confidence > 1 {
			return m, cwerr.E(cwerr.InvalidArguments, "confidence %f out of [0,1]", updated.Confidence)
		}
		updated.Version = m.Version + 1
		updated.UpdatedAt = s.nowRFC3339()
		return updated, nil
	}, nil)
}

// DeleteMemory physically removes a memory and its index entry.
func (s *Store) DeleteMemory(ctx context.Context, project, id string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, MemoryKey(project, id))
		pipe.ZRem(ctx, MemoriesAllKey(project), id)
		pipe.SRem(ctx, PendingEmbeddingsKey(project), "memory:"+id)
		return nil
	})
	return wrapErr(err, "deleting memory %s", id)
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// Generic document plumbing. Every entity is a JSON document stored in the
// "data" field of its hash key; these helpers keep serialization and CAS
// discipline in one place.

const dataField = "data"

// sortBy stable-sorts a slice with a less function. Set-backed listings
// use it to give callers a deterministic order.
func sortBy[T any](items []T, less func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

// marshalDoc serializes an entity document.
func marshalDoc(doc any) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, cwerr.Wrap(cwerr.Internal, err, "marshaling document")
	}
	return data, nil
}

// getDoc loads and decodes a document.
func getDoc[T any](ctx context.Context, s *Store, key, what string) (T, error) {
	var doc T
	raw, err := s.rdb.HGet(ctx, key, dataField).Result()
	if err != nil {
		return doc, wrapErr(err, "%s not found", what)
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return doc, cwerr.Wrap(cwerr.Internal, err, "corrupt %s document at %s", what, key)
	}
	return doc, nil
}

// getDocs loads many documents, skipping ids whose key has vanished
// (consumers tolerate intermediate states on cross-entity reads).
func getDocs[T any](ctx context.Context, s *Store, keys []string, what string) ([]T, error) {
	out := make([]T, 0, len(keys))
	for _, key := range keys {
		raw, err := s.rdb.HGet(ctx, key, dataField).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, wrapErr(err, "listing %s", what)
		}
		var doc T
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

// putDoc writes a document (no version check — create paths only).
func putDoc(ctx context.Context, s *Store, key string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return cwerr.Wrap(cwerr.Internal, err, "marshaling document")
	}
	if err := s.rdb.HSet(ctx, key, dataField, data).Err(); err != nil {
		return wrapErr(err, "writing %s", key)
	}
	return nil
}

// updateDoc runs an optimistic compare-and-set loop on a single document.
// mutate receives the current document and returns the new one (or an
// error to abort). mutate must advance the document's Version in the
// returned value; updateDoc re-reads and re-applies
// on interference and fails with Conflict after maxRetries attempts.
//
// extra, when non-nil, appends additional writes to the same transaction
// so multi-key updates (index maintenance) commit atomically with the
// document.
func updateDoc[T any](
	ctx context.Context,
	s *Store,
	key, what string,
	mutate func(T) (T, error),
	extra func(pipe redis.Pipeliner, updated T) error,
) (T, error) {
	var result T
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.HGet(ctx, key, dataField).Result()
			if err != nil {
				return wrapErr(err, "%s not found", what)
			}
			var doc T
			if err := json.Unmarshal([]byte(raw), &doc); err != nil {
				return cwerr.Wrap(cwerr.Internal, err, "corrupt %s document", what)
			}
			updated, err := mutate(doc)
			if err != nil {
				return err
			}
			data, err := json.Marshal(updated)
			if err != nil {
				return cwerr.Wrap(cwerr.Internal, err, "marshaling %s", what)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.HSet(ctx, key, dataField, data)
				if extra != nil {
					if err := extra(pipe, updated); err != nil {
						return err
					}
				}
				return nil
			})
			if err == nil {
				result = updated
			}
			return err
		}, key)

		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // interference; re-read and retry
		}
		var zero T
		return zero, err
	}
	var zero T
	return zero, cwerr.E(cwerr.Conflict, "concurrent update on %s", what)
}

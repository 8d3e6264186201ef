// Package store implements the primary key-value store layer.
//
// All authoritative state lives in Redis under the documented key schema
// (cwa:<project_id>:...). Entities are JSON documents in the "data" field
// of a hash, indexed by sorted sets scored on creation time. The store also
// owns the per-project pub/sub event bus that drives the websocket
// broadcaster and the graph projector.
//
// Every other store in the system (graph, vector) is a projection that can
// be discarded and rebuilt from here.
package store

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// idLength is the length of generated entity identifiers.
const idLength = 12

// timeLayout is the canonical timestamp format for entity fields.
const timeLayout = time.RFC3339

// maxRetries bounds the exponential-backoff retry loop for transient
// failures and the optimistic CAS loop for version conflicts.
const maxRetries = 5

// Store is the primary store client. Safe for concurrent use; the
// underlying go-redis client pools connections internally.
type Store struct {
	rdb *redis.Client
	now func() time.Time
}

// New connects to the primary store. The URL follows the redis:// scheme.
// Pool size defaults to twice the expected parallelism with a floor of 4.
func New(url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, cwerr.Wrap(cwerr.InvalidArguments, err, "invalid primary store URL %q", url)
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = 2 * runtime.GOMAXPROCS(0)
	}
	if opts.PoolSize < 4 {
		opts.PoolSize = 4
	}
	return &Store{rdb: redis.NewClient(opts), now: time.Now}, nil
}

// NewWithClient wraps an existing client. Used by tests with miniredis.
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, now: time.Now}
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping verifies connectivity; failure classifies as Unavailable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return cwerr.Wrap(cwerr.Unavailable, err, "primary store unreachable")
	}
	return nil
}

// NewID generates a short, URL-safe, collision-resistant identifier.
func NewID() string {
	id, err := gonanoid.New(idLength)
	if err != nil {
		// gonanoid only fails if the system entropy source is broken.
		panic(fmt.Sprintf("id generation: %v", err))
	}
	return id
}

// nowRFC3339 is the canonical timestamp format for entity fields.
func (s *Store) nowRFC3339() string {
	return s.now().UTC().Format(time.RFC3339)
}

// wrapErr classifies a raw redis error into the taxonomy: redis.Nil means
// the key is absent, everything else is a transport problem.
func wrapErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, redis.Nil) {
		return cwerr.E(cwerr.NotFound, format, args...)
	}
	return cwerr.Wrap(cwerr.Unavailable, err, format, args...)
}

// Retry runs fn up to maxRetries times with exponential backoff while it
// reports Unavailable. Conflict and every other kind return immediately —
// conflict retries are the caller's decision (they require a re-read).
func Retry(ctx context.Context, fn func() error) error {
	delay := 50 * time.Millisecond
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = fn()
		if err == nil || !cwerr.IsKind(err, cwerr.Unavailable) {
			return err
		}
		select {
		case <-ctx.Done():
			return cwerr.Wrap(cwerr.Unavailable, ctx.Err(), "retry canceled")
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

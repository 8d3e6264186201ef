// Package memory implements the memory and observation lifecycle:
// capture, confidence decay, compaction, progressive disclosure
// (timeline vs. get), summarization, and the four search modes.
//
// The primary store owns the records; the vector index and graph
// projection are derived. Embedding failures never block a write — the
// entity lands in the primary store without an embedding_id, joins the
// pending-embeddings set, and stays keyword-searchable until FlushPending
// fills the vector. Nothing in the server schedules FlushPending on its own.
package memory

import (
	"context"
	"log"

	"github.com/HendryAvila/cwa/internal/cwerr"
	"github.com/HendryAvila/cwa/internal/store"
	"github.com/HendryAvila/cwa/internal/vector"
)

// Embedder is the narrow embedding capability the service depends on.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is the slice of the vector store the service uses.
type VectorIndex interface {
	Upsert(ctx context.Context, collection, entityID, project string, vec []float32, payload map[string]any) error
	Search(ctx context.Context, collection, project string, vec []float32, topK uint64) ([]vector.SearchResult, error)
	Delete(ctx context.Context, collection, entityID string) error
}

// GraphRemover lets compaction evict deleted entities from the graph
// projection without the memory package depending on the projector.
type GraphRemover interface {
	RemoveEntity(ctx context.Context, project, kind, id string) error
}

// Service is the memory subsystem. Embedder, vectors, and graph are
// optional: a nil dependency degrades the corresponding capability
// (semantic search, graph eviction) without disabling the rest.
type Service struct {
	store    *store.Store
	embedder Embedder
	vectors  VectorIndex
	graph    GraphRemover
}

// New creates the memory service.
func New(s *store.Store, embedder Embedder, vectors VectorIndex, graph GraphRemover) *Service {
	return &Service{store: s, embedder: embedder, vectors: vectors, graph: graph}
}

// semanticReady reports whether vector search can run at all.
func (svc *Service) semanticReady() bool {
	return svc.embedder != nil && svc.vectors != nil
}

// embedAndIndex computes an embedding and upserts it. On embedding
// failure the entity is queued for a later pass and the write succeeds
// without an embedding id. Returns the embedding id ("" when deferred).
func (svc *Service) embedAndIndex(ctx context.Context, project, kind, collection, id, text string, payload map[string]any) string {
	if !svc.semanticReady() {
		return ""
	}
	vec, err := svc.embedder.EmbedOne(ctx, text)
	if err != nil {
		log.Printf("WARNING: embedding %s %s deferred: %v", kind, id, err)
		if qerr := svc.store.EnqueuePendingEmbedding(ctx, project, kind, id); qerr != nil {
			log.Printf("WARNING: enqueue pending embedding: %v", qerr)
		}
		return ""
	}
	if err := svc.vectors.Upsert(ctx, collection, id, project, vec, payload); err != nil {
		log.Printf("WARNING: vector upsert for %s %s deferred: %v", kind, id, err)
		if qerr := svc.store.EnqueuePendingEmbedding(ctx, project, kind, id); qerr != nil {
			log.Printf("WARNING: enqueue pending embedding: %v", qerr)
		}
		return ""
	}
	return vector.PointID(id)
}

// collectionFor maps an entity kind to its vector collection.
func collectionFor(kind string) (string, error) {
	switch kind {
	case "memory":
		return vector.MemoriesCollection, nil
	case "observation":
		return vector.ObservationsCollection, nil
	case "term":
		return vector.TermsCollection, nil
	default:
		return "", cwerr.E(cwerr.InvalidArguments, "no vector collection for kind %q", kind)
	}
}

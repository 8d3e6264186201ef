// Package vector persists embeddings in Qdrant and runs filtered top-k
// cosine searches. One collection per embedded entity kind; point ids are
// deterministic UUIDs derived from entity ids so primary-store entities
// and vector points stay 1:1.
package vector

import (
	"context"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// Collection names, one per embedded entity kind.
const (
	MemoriesCollection     = "cwa_memories"
	TermsCollection        = "cwa_terms"
	ObservationsCollection = "cwa_observations"
)

// Collections lists every collection the indexer manages.
var Collections = []string{MemoriesCollection, TermsCollection, ObservationsCollection}

// SearchResult is one hit from a similarity query.
type SearchResult struct {
	ID      string         `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Store is the Qdrant-backed vector indexer.
type Store struct {
	client *qdrant.Client
	dim    uint64
}

// New connects to Qdrant over gRPC at host:port.
func New(host string, port int, dim int) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, cwerr.Wrap(cwerr.Unavailable, err, "creating vector store client")
	}
	return &Store{client: client, dim: uint64(dim)}, nil
}

// Close releases the gRPC connection.
func (s *Store) Close() error { return s.client.Close() }

// Ping reports vector-store health.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return cwerr.Wrap(cwerr.Unavailable, err, "vector store unreachable")
	}
	return nil
}

// EnsureCollections creates every managed collection that does not exist
// yet, with cosine distance at the configured dimensionality.
func (s *Store) EnsureCollections(ctx context.Context) error {
	for _, collection := range Collections {
		exists, err := s.client.CollectionExists(ctx, collection)
		if err != nil {
			return cwerr.Wrap(cwerr.Unavailable, err, "checking collection %s", collection)
		}
		if exists {
			continue
		}
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.dim,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return cwerr.Wrap(cwerr.Unavailable, err, "creating collection %s", collection)
		}
	}
	return nil
}

// PointID derives the deterministic UUID Qdrant point id for an entity id.
// Entity ids are nanoids, not UUIDs, so they are mapped through UUIDv5 in
// a fixed namespace — the same entity always lands on the same point.
func PointID(entityID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(entityID)).String()
}

// Upsert writes a vector with its payload. The payload always carries the
// primary-store entity id and project id for filtered search.
func (s *Store) Upsert(ctx context.Context, collection, entityID, project string, vec []float32, payload map[string]any) error {
	if payload == nil {
		payload = make(map[string]any)
	}
	payload["id"] = entityID
	payload["project_id"] = project

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(PointID(entityID)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return cwerr.Wrap(cwerr.Unavailable, err, "upserting vector %s into %s", entityID, collection)
	}
	return nil
}

// Search runs a filtered top-k cosine query and returns entity-id scored
// hits, highest score first.
func (s *Store) Search(ctx context.Context, collection, project string, vec []float32, topK uint64) ([]SearchResult, error) {
	if topK == 0 {
		topK = 10
	}
	var filter *qdrant.Filter
	if project != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("project_id", project)},
		}
	}
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &topK,
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, cwerr.Wrap(cwerr.Unavailable, err, "searching %s", collection)
	}

	results := make([]SearchResult, 0, len(points))
	for _, point := range points {
		payload := payloadToMap(point.Payload)
		id, _ := payload["id"].(string)
		if id == "" {
			continue
		}
		results = append(results, SearchResult{ID: id, Score: point.Score, Payload: payload})
	}
	return results, nil
}

// GetByEntityID fetches a single point by its entity id, or NotFound.
func (s *Store) GetByEntityID(ctx context.Context, collection, entityID string) (SearchResult, error) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collection,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(PointID(entityID))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return SearchResult{}, cwerr.Wrap(cwerr.Unavailable, err, "fetching vector %s", entityID)
	}
	if len(points) == 0 {
		return SearchResult{}, cwerr.E(cwerr.NotFound, "no vector for %s in %s", entityID, collection)
	}
	return SearchResult{ID: entityID, Payload: payloadToMap(points[0].Payload)}, nil
}

// Delete removes an entity's point from a collection.
func (s *Store) Delete(ctx context.Context, collection, entityID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: qdrant.NewPointsSelector(
			qdrant.NewIDUUID(PointID(entityID)),
		),
	})
	if err != nil {
		return cwerr.Wrap(cwerr.Unavailable, err, "deleting vector %s from %s", entityID, collection)
	}
	return nil
}

// Count returns the number of points in a collection.
func (s *Store) Count(ctx context.Context, collection string) (uint64, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{CollectionName: collection})
	if err != nil {
		return 0, cwerr.Wrap(cwerr.Unavailable, err, "counting %s", collection)
	}
	return count, nil
}

// payloadToMap flattens a Qdrant payload into plain Go values.
func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		switch kind := value.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[key] = kind.StringValue
		case *qdrant.Value_DoubleValue:
			out[key] = kind.DoubleValue
		case *qdrant.Value_IntegerValue:
			out[key] = kind.IntegerValue
		case *qdrant.Value_BoolValue:
			out[key] = kind.BoolValue
		}
	}
	return out
}

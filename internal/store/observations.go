package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// CreateObservationParams holds the input for recording an observation.
type CreateObservationParams struct {
	SessionID         string
	Kind              string
	Title             string
	Narrative         string
	Facts             []string
	Concepts          []string
	FilesModified     []string
	FilesRead         []string
	RelatedEntityKind string
	RelatedEntityID   string
}

// CreateObservation writes a new observation at default confidence and
// appends it to both the sorted-set index (which the timeline reads) and
// the observation stream.
func (s *Store) CreateObservation(ctx context.Context, project string, p CreateObservationParams) (Observation, error) {
	if p.Title == "" {
		return Observation{}, cwerr.E(cwerr.InvalidArguments, "observation title must not be empty")
	}
	if !ValidEnum(p.Kind, ObsKinds) {
		return Observation{}, cwerr.E(cwerr.InvalidArguments, "invalid observation kind %q", p.Kind)
	}
	now := s.now()
	obs := Observation{
		ID:                NewID(),
		ProjectID:         project,
		SessionID:         p.SessionID,
		Kind:              p.Kind,
		Title:             p.Title,
		Narrative:         p.Narrative,
		Facts:             p.Facts,
		Concepts:          p.Concepts,
		FilesModified:     p.FilesModified,
		FilesRead:         p.FilesRead,
		RelatedEntityKind: p.RelatedEntityKind,
		RelatedEntityID:   p.RelatedEntityID,
		Confidence:        defaultConfidence,
		Version:           1,
		CreatedAt:         now.UTC().Format(timeLayout),
		UpdatedAt:         now.UTC().Format(timeLayout),
	}
	data, err := marshalDoc(obs)
	if err != nil {
		return Observation{}, err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, ObservationKey(project, obs.ID), dataField, data)
		pipe.ZAdd(ctx, ObservationsAllKey(project), redis.Z{Score: float64(now.UnixNano()), Member: obs.ID})
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: ObservationStreamKey(project),
			Values: map[string]any{"id": obs.ID, "kind": obs.Kind, "title": obs.Title},
		})
		return nil
	})
	if err != nil {
		return Observation{}, wrapErr(err, "creating observation")
	}
	return obs, nil
}

// GetObservation loads one observation by id.
func (s *Store) GetObservation(ctx context.Context, project, id string) (Observation, error) {
	return getDoc[Observation](ctx, s, ObservationKey(project, id), "observation "+id)
}

// GetObservations loads the full records for the given ids (progressive
// disclosure: expensive detail tier). Unknown ids are skipped.
func (s *Store) GetObservations(ctx context.Context, project string, ids []string) ([]Observation, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = ObservationKey(project, id)
	}
	return getDocs[Observation](ctx, s, keys, "observations")
}

// Timeline returns compact rows newest-first (progressive disclosure:
// cheap browse tier). days bounds the window (0 = unbounded); limit caps
// the row count (0 = 50).
func (s *Store) Timeline(ctx context.Context, project string, days int, limit int64) ([]ObservationIndex, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := s.rdb.ZRevRange(ctx, ObservationsAllKey(project), 0, limit*2-1).Result()
	if err != nil {
		return nil, wrapErr(err, "reading timeline")
	}
	var cutoff time.Time
	if days > 0 {
		cutoff = s.now().UTC().AddDate(0, 0, -days)
	}
	rows := make([]ObservationIndex, 0, limit)
	for _, id := range ids {
		if int64(len(rows)) >= limit {
			break
		}
		obs, err := s.GetObservation(ctx, project, id)
		if err != nil {
			continue
		}
		if days > 0 {
			created, err := time.Parse(timeLayout, obs.CreatedAt)
			if err != nil || created.Before(cutoff) {
				continue
			}
		}
		rows = append(rows, ObservationIndex{
			ID:         obs.ID,
			Kind:       obs.Kind,
			Title:      obs.Title,
			Confidence: obs.Confidence,
			CreatedAt:  obs.CreatedAt,
		})
	}
	return rows, nil
}

// ListObservations returns full observations newest-first (limit 0 = all).
func (s *Store) ListObservations(ctx context.Context, project string, limit int64) ([]Observation, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}
	ids, err := s.rdb.ZRevRange(ctx, ObservationsAllKey(project), 0, stop).Result()
	if err != nil {
		return nil, wrapErr(err, "listing observations")
	}
	return s.GetObservations(ctx, project, ids)
}

// ListHighConfidence returns up to limit observations at or above the
// threshold, newest-first.
func (s *Store) ListHighConfidence(ctx context.Context, project string, min float64, limit int) ([]Observation, error) {
	all, err := s.ListObservations(ctx, project, 0)
	if err != nil {
		return nil, err
	}
	out := make([]Observation, 0, limit)
	for _, obs := range all {
		if obs.Confidence >= min {
			out = append(out, obs)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// UpdateObservation applies a partial update under CAS, holding the
// confidence invariant.
func (s *Store) UpdateObservation(ctx context.Context, project, id string, mutate func(Observation) (Observation, error)) (Observation, error) {
	return updateDoc(ctx, s, ObservationKey(project, id), "observation "+id, func(o Observation) (Observation, error) {
		updated, err := mutate(o)
		if err != nil {
			return o, err
		}
		if updated.Confidence < 0 || updated.Confidence > 1 {
			return o, cwerr.E(cwerr.InvalidArguments, "confidence %f out of [0,1]", updated.Confidence)
		}
		updated.Version = o.Version + 1
		updated.UpdatedAt = s.nowRFC3339()
		return updated, nil
	}, nil)
}

// DeleteObservation physically removes an observation and its index
// entries. There is no tombstone.
func (s *Store) DeleteObservation(ctx context.Context, project, id string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, ObservationKey(project, id))
		pipe.ZRem(ctx, ObservationsAllKey(project), id)
		pipe.SRem(ctx, PendingEmbeddingsKey(project), "observation:"+id)
		return nil
	})
	return wrapErr(err, "deleting observation %s", id)
}

// --- Summaries ---

// CreateSummary persists a digest over a window of observations.
func (s *Store) CreateSummary(ctx context.Context, project, content string, count int, rangeStart, rangeEnd string) (Summary, error) {
	if content == "" {
		return Summary{}, cwerr.E(cwerr.InvalidArguments, "summary content must not be empty")
	}
	now := s.now()
	summary := Summary{
		ID:                NewID(),
		ProjectID:         project,
		Content:           content,
		ObservationsCount: count,
		TimeRangeStart:    rangeStart,
		TimeRangeEnd:      rangeEnd,
		Version:           1,
		CreatedAt:         now.UTC().Format(timeLayout),
	}
	err := s.txPut(ctx, SummaryKey(project, summary.ID), summary, func(pipe redis.Pipeliner) {
		pipe.ZAdd(ctx, SummariesAllKey(project), redis.Z{Score: float64(now.UnixNano()), Member: summary.ID})
	})
	if err != nil {
		return Summary{}, err
	}
	return summary, nil
}

// RecentSummaries returns the latest summaries, newest-first.
func (s *Store) RecentSummaries(ctx context.Context, project string, limit int64) ([]Summary, error) {
	if limit <= 0 {
		limit = 1
	}
	ids, err := s.rdb.ZRevRange(ctx, SummariesAllKey(project), 0, limit-1).Result()
	if err != nil {
		return nil, wrapErr(err, "listing summaries")
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = SummaryKey(project, id)
	}
	return getDocs[Summary](ctx, s, keys, "summaries")
}

// SetSummaryEmbedding attaches an embedding id to a summary.
func (s *Store) SetSummaryEmbedding(ctx context.Context, project, id, embeddingID string) error {
	_, err := updateDoc(ctx, s, SummaryKey(project, id), "summary "+id, func(sm Summary) (Summary, error) {
		sm.EmbeddingID = embeddingID
		sm.Version++
		return sm, nil
	}, nil)
	return err
}

// --- Pending embeddings ---

// EnqueuePendingEmbedding marks an entity as awaiting its embedding.
// Entries are "<kind>:<id>".
func (s *Store) EnqueuePendingEmbedding(ctx context.Context, project, kind, id string) error {
	err := s.rdb.SAdd(ctx, PendingEmbeddingsKey(project), kind+":"+id).Err()
	return wrapErr(err, "enqueueing pending embedding")
}

// PendingEmbeddings lists entities still awaiting embeddings.
func (s *Store) PendingEmbeddings(ctx context.Context, project string) ([]string, error) {
	entries, err := s.rdb.SMembers(ctx, PendingEmbeddingsKey(project)).Result()
	if err != nil {
		return nil, wrapErr(err, "listing pending embeddings")
	}
	sortBy(entries, func(a, b string) bool { return a < b })
	return entries, nil
}

// ClearPendingEmbedding removes an entry once its embedding is stored.
func (s *Store) ClearPendingEmbedding(ctx context.Context, project, entry string) error {
	err := s.rdb.SRem(ctx, PendingEmbeddingsKey(project), entry).Err()
	return wrapErr(err, "clearing pending embedding")
}

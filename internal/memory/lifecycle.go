package memory

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/HendryAvila/cwa/internal/cwerr"
	"github.com/HendryAvila/cwa/internal/store"
	"github.com/HendryAvila/cwa/internal/vector"
)

// defaultCompactThreshold is the confidence below which compaction
// deletes entries when the caller doesn't supply one.
const defaultCompactThreshold = 0.3

// Add records a memory nugget and indexes its embedding.
func (svc *Service) Add(ctx context.Context, project, kind, content string) (store.Memory, error) {
	memory, err := svc.store.AddMemory(ctx, project, kind, content)
	if err != nil {
		return store.Memory{}, err
	}
	embeddingID := svc.embedAndIndex(ctx, project, "memory", mustCollection("memory"), memory.ID, content, map[string]any{
		"kind":    kind,
		"content": content,
	})
	if embeddingID != "" {
		memory, err = svc.store.UpdateMemory(ctx, project, memory.ID, func(m store.Memory) (store.Memory, error) {
			m.EmbeddingID = embeddingID
			return m, nil
		})
		if err != nil {
			return store.Memory{}, err
		}
	}
	return memory, nil
}

// Observe records a structured observation and indexes its embedding.
func (svc *Service) Observe(ctx context.Context, project string, p store.CreateObservationParams) (store.Observation, error) {
	obs, err := svc.store.CreateObservation(ctx, project, p)
	if err != nil {
		return store.Observation{}, err
	}
	embeddingID := svc.embedAndIndex(ctx, project, "observation", mustCollection("observation"), obs.ID, observationText(obs), map[string]any{
		"kind":  obs.Kind,
		"title": obs.Title,
	})
	if embeddingID != "" {
		obs, err = svc.store.UpdateObservation(ctx, project, obs.ID, func(o store.Observation) (store.Observation, error) {
			o.EmbeddingID = embeddingID
			return o, nil
		})
		if err != nil {
			return store.Observation{}, err
		}
	}
	return obs, nil
}

// observationText is the canonical text embedded for an observation.
func observationText(obs store.Observation) string {
	parts := []string{obs.Title}
	if obs.Narrative != "" {
		parts = append(parts, obs.Narrative)
	}
	parts = append(parts, obs.Facts...)
	return strings.Join(parts, "\n")
}

// Timeline returns compact rows (cheap browse tier).
func (svc *Service) Timeline(ctx context.Context, project string, days int, limit int64) ([]store.ObservationIndex, error) {
	return svc.store.Timeline(ctx, project, days, limit)
}

// Get returns full records for the given ids (expensive detail tier).
func (svc *Service) Get(ctx context.Context, project string, ids []string) ([]store.Observation, error) {
	if len(ids) == 0 {
		return nil, cwerr.E(cwerr.InvalidArguments, "at least one observation id is required")
	}
	return svc.store.GetObservations(ctx, project, ids)
}

// Decay multiplies every observation's confidence by factor ∈ (0,1].
// Returns the number of observations touched.
func (svc *Service) Decay(ctx context.Context, project string, factor float64) (int, error) {
	if factor <= 0 || factor > 1 {
		return 0, cwerr.E(cwerr.InvalidArguments, "decay factor %f out of (0,1]", factor)
	}
	observations, err := svc.store.ListObservations(ctx, project, 0)
	if err != nil {
		return 0, err
	}
	for _, obs := range observations {
		if _, err := svc.store.UpdateObservation(ctx, project, obs.ID, func(o store.Observation) (store.Observation, error) {
			o.Confidence *= factor
			return o, nil
		}); err != nil {
			return 0, err
		}
	}
	return len(observations), nil
}

// CompactResult reports what a compaction removed.
type CompactResult struct {
	Deleted   []string `json:"deleted"`
	Threshold float64  `json:"threshold"`
	Memories  int      `json:"memories"`
	Reviewed  int      `json:"reviewed"`
	Degraded  bool     `json:"degraded,omitempty"`
}

// Compact physically deletes every memory and observation whose
// confidence is strictly below min — from the primary store, the vector
// index, and the graph projection. min <= 0 applies the default 0.3.
func (svc *Service) Compact(ctx context.Context, project string, min float64) (CompactResult, error) {
	if min <= 0 {
		min = defaultCompactThreshold
	}
	if min > 1 {
		return CompactResult{}, cwerr.E(cwerr.InvalidArguments, "min confidence %f out of (0,1]", min)
	}
	result := CompactResult{Threshold: min}

	observations, err := svc.store.ListObservations(ctx, project, 0)
	if err != nil {
		return CompactResult{}, err
	}
	result.Reviewed += len(observations)
	for _, obs := range observations {
		if obs.Confidence >= min {
			continue
		}
		if err := svc.store.DeleteObservation(ctx, project, obs.ID); err != nil {
			return result, err
		}
		svc.evictDerived(ctx, project, "observation", obs.ID, &result)
		result.Deleted = append(result.Deleted, obs.ID)
	}

	memories, err := svc.store.ListMemories(ctx, project, 0)
	if err != nil {
		return result, err
	}
	result.Reviewed += len(memories)
	for _, m := range memories {
		if m.Confidence >= min {
			continue
		}
		if err := svc.store.DeleteMemory(ctx, project, m.ID); err != nil {
			return result, err
		}
		svc.evictDerived(ctx, project, "memory", m.ID, &result)
		result.Deleted = append(result.Deleted, m.ID)
		result.Memories++
	}
	return result, nil
}

// evictDerived removes a deleted entity from the vector index and graph.
// Derived-store failures degrade the result instead of aborting: the
// primary delete already committed and the projections rebuild from it.
func (svc *Service) evictDerived(ctx context.Context, project, kind, id string, result *CompactResult) {
	if svc.vectors != nil {
		collection, err := collectionFor(kind)
		if err == nil {
			if err := svc.vectors.Delete(ctx, collection, id); err != nil {
				log.Printf("WARNING: vector eviction of %s %s: %v", kind, id, err)
				result.Degraded = true
			}
		}
	}
	if svc.graph != nil {
		if err := svc.graph.RemoveEntity(ctx, project, kind, id); err != nil {
			log.Printf("WARNING: graph eviction of %s %s: %v", kind, id, err)
			result.Degraded = true
		}
	}
}

// Summarize selects the most recent n observations, composes a digest
// preserving titles and key facts, persists it as a Summary, and emits an
// embedding for it.
func (svc *Service) Summarize(ctx context.Context, project string, n int) (store.Summary, error) {
	if n <= 0 {
		return store.Summary{}, cwerr.E(cwerr.InvalidArguments, "summary window must be positive")
	}
	observations, err := svc.store.ListObservations(ctx, project, int64(n))
	if err != nil {
		return store.Summary{}, err
	}
	if len(observations) == 0 {
		return store.Summary{}, cwerr.E(cwerr.NotFound, "no observations to summarize")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Summary of %d observations\n\n", len(observations))
	for i := len(observations) - 1; i >= 0; i-- { // oldest first reads as a narrative
		obs := observations[i]
		fmt.Fprintf(&b, "- [%s] %s", obs.Kind, obs.Title)
		if obs.Narrative != "" {
			fmt.Fprintf(&b, " — %s", firstLine(obs.Narrative))
		}
		b.WriteString("\n")
		for _, fact := range obs.Facts {
			fmt.Fprintf(&b, "  * %s\n", fact)
		}
	}

	// observations are newest-first: [0] is the range end.
	rangeEnd := observations[0].CreatedAt
	rangeStart := observations[len(observations)-1].CreatedAt

	summary, err := svc.store.CreateSummary(ctx, project, b.String(), len(observations), rangeStart, rangeEnd)
	if err != nil {
		return store.Summary{}, err
	}

	if svc.semanticReady() {
		if vec, err := svc.embedder.EmbedOne(ctx, summary.Content); err == nil {
			if err := svc.vectors.Upsert(ctx, mustCollection("observation"), summary.ID, project, vec, map[string]any{
				"kind":  "summary",
				"title": fmt.Sprintf("Summary over %d observations", len(observations)),
			}); err == nil {
				if err := svc.store.SetSummaryEmbedding(ctx, project, summary.ID, summary.ID); err != nil {
					log.Printf("WARNING: recording summary embedding: %v", err)
				}
			}
		}
	}
	return summary, nil
}

// IndexTerm embeds a glossary term into the terms collection. Failures
// queue the term for a later pass, like any other embedding.
func (svc *Service) IndexTerm(ctx context.Context, project string, term, definition string) {
	svc.embedAndIndex(ctx, project, "term", mustCollection("term"), term, term+": "+definition, map[string]any{
		"kind":  "term",
		"title": term,
	})
}

// FlushPending retries embeddings for entities queued while the embedding
// service was down. Returns how many were filled.
func (svc *Service) FlushPending(ctx context.Context, project string) (int, error) {
	if !svc.semanticReady() {
		return 0, nil
	}
	pending, err := svc.store.PendingEmbeddings(ctx, project)
	if err != nil {
		return 0, err
	}
	filled := 0
	for _, entry := range pending {
		kind, id, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		var text string
		var payload map[string]any
		switch kind {
		case "memory":
			m, err := svc.store.GetMemory(ctx, project, id)
			if err != nil {
				_ = svc.store.ClearPendingEmbedding(ctx, project, entry)
				continue
			}
			text = m.Content
			payload = map[string]any{"kind": m.Kind, "content": m.Content}
		case "observation":
			o, err := svc.store.GetObservation(ctx, project, id)
			if err != nil {
				_ = svc.store.ClearPendingEmbedding(ctx, project, entry)
				continue
			}
			text = observationText(o)
			payload = map[string]any{"kind": o.Kind, "title": o.Title}
		case "term":
			term, err := svc.store.GetGlossaryTerm(ctx, project, id)
			if err != nil {
				_ = svc.store.ClearPendingEmbedding(ctx, project, entry)
				continue
			}
			text = term.Term + ": " + term.Definition
			payload = map[string]any{"kind": "term", "title": term.Term}
		default:
			continue
		}

		collection, err := collectionFor(kind)
		if err != nil {
			continue
		}
		vec, err := svc.embedder.EmbedOne(ctx, text)
		if err != nil {
			return filled, err // still down; keep the rest queued
		}
		if err := svc.vectors.Upsert(ctx, collection, id, project, vec, payload); err != nil {
			return filled, err
		}
		embeddingID := vector.PointID(id)
		switch kind {
		case "memory":
			_, err = svc.store.UpdateMemory(ctx, project, id, func(m store.Memory) (store.Memory, error) {
				m.EmbeddingID = embeddingID
				return m, nil
			})
		case "observation":
			_, err = svc.store.UpdateObservation(ctx, project, id, func(o store.Observation) (store.Observation, error) {
				o.EmbeddingID = embeddingID
				return o, nil
			})
		}
		if err != nil {
			return filled, err
		}
		if err := svc.store.ClearPendingEmbedding(ctx, project, entry); err != nil {
			return filled, err
		}
		filled++
	}
	return filled, nil
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

func mustCollection(kind string) string {
	collection, err := collectionFor(kind)
	if err != nil {
		panic(err)
	}
	return collection
}

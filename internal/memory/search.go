package memory

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// DefaultAlpha is the hybrid blend weight: α·vector + (1−α)·keyword.
const DefaultAlpha = 0.7

// Hit is one scored search result.
type Hit struct {
	ID    string  `json:"id"`
	Kind  string  `json:"kind"`
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

// KeywordSearch runs a lexical match over observations. The score is an
// IDF-weighted term-match ratio: rare query terms count for more than
// terms appearing in every record.
func (svc *Service) KeywordSearch(ctx context.Context, project, query string, limit int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, cwerr.E(cwerr.InvalidArguments, "query must not be empty")
	}
	observations, err := svc.store.ListObservations(ctx, project, 0)
	if err != nil {
		return nil, err
	}
	docs := make([]scoredDoc, len(observations))
	for i, obs := range observations {
		docs[i] = scoredDoc{id: obs.ID, kind: obs.Kind, title: obs.Title, text: observationText(obs)}
	}
	return keywordScore(docs, query, limit), nil
}

// keywordMemories scores memories lexically for SearchAll.
func (svc *Service) keywordMemories(ctx context.Context, project, query string, limit int) ([]Hit, error) {
	memories, err := svc.store.ListMemories(ctx, project, 0)
	if err != nil {
		return nil, err
	}
	docs := make([]scoredDoc, len(memories))
	for i, m := range memories {
		docs[i] = scoredDoc{id: m.ID, kind: m.Kind, title: firstLine(m.Content), text: m.Content}
	}
	return keywordScore(docs, query, limit), nil
}

type scoredDoc struct {
	id, kind, title, text string
}

// keywordScore computes IDF-like scores: each query term contributes
// log(1 + N/df) when present, and the document score is normalized by the
// maximum achievable sum so results land in [0,1].
func keywordScore(docs []scoredDoc, query string, limit int) []Hit {
	terms := tokenize(query)
	if len(terms) == 0 || len(docs) == 0 {
		return nil
	}
	n := float64(len(docs))

	tokenized := make([]map[string]bool, len(docs))
	for i, doc := range docs {
		tokenized[i] = tokenSet(doc.text)
	}

	// Document frequency per query term.
	df := make(map[string]float64, len(terms))
	for _, term := range terms {
		for _, tokens := range tokenized {
			if tokens[term] {
				df[term]++
			}
		}
	}

	var maxScore float64
	weights := make(map[string]float64, len(terms))
	for _, term := range terms {
		w := math.Log(1 + n/math.Max(df[term], 1))
		weights[term] = w
		maxScore += w
	}

	hits := make([]Hit, 0, len(docs))
	for i, doc := range docs {
		var score float64
		for _, term := range terms {
			if tokenized[i][term] {
				score += weights[term]
			}
		}
		if score == 0 {
			continue
		}
		hits = append(hits, Hit{ID: doc.id, Kind: doc.kind, Title: doc.title, Score: score / maxScore})
	}
	sortHits(hits)
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// SemanticSearch embeds the query and runs a filtered top-k cosine search
// over the given collection ("observation", "memory", or "term" kinds).
func (svc *Service) SemanticSearch(ctx context.Context, project, kind, query string, topK int) ([]Hit, error) {
	if !svc.semanticReady() {
		return nil, cwerr.E(cwerr.Unavailable, "semantic search requires the embedding service and vector store")
	}
	collection, err := collectionFor(kind)
	if err != nil {
		return nil, err
	}
	vec, err := svc.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 10
	}
	results, err := svc.vectors.Search(ctx, collection, project, vec, uint64(topK))
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hit := Hit{ID: r.ID, Score: float64(r.Score)}
		if k, ok := r.Payload["kind"].(string); ok {
			hit.Kind = k
		}
		if title, ok := r.Payload["title"].(string); ok {
			hit.Title = title
		} else if content, ok := r.Payload["content"].(string); ok {
			hit.Title = firstLine(content)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// HybridSearch unions keyword and semantic hits, normalizes both score
// sets into [0,1], blends α·vec + (1−α)·kw, stable-sorts descending, and
// deduplicates by id. alpha < 0 applies the default 0.7.
func (svc *Service) HybridSearch(ctx context.Context, project, query string, alpha float64, topK int) ([]Hit, error) {
	if alpha < 0 {
		alpha = DefaultAlpha
	}
	if alpha > 1 {
		return nil, cwerr.E(cwerr.InvalidArguments, "alpha %f out of [0,1]", alpha)
	}
	if topK <= 0 {
		topK = 10
	}

	keyword, err := svc.KeywordSearch(ctx, project, query, 0)
	if err != nil && !cwerr.IsKind(err, cwerr.NotFound) {
		return nil, err
	}

	var semantic []Hit
	if svc.semanticReady() {
		semantic, err = svc.SemanticSearch(ctx, project, "observation", query, topK*3)
		if err != nil && !cwerr.IsKind(err, cwerr.Unavailable) {
			return nil, err
		}
	}

	hits := Blend(semantic, keyword, alpha)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

// Blend fuses semantic and keyword hit lists under the α weight. Both
// score sets are normalized to [0,1] by their maxima first (scores
// already in range pass through), then every id present in either list
// gets α·vec + (1−α)·kw. The result is stable-sorted descending and
// deduplicated by id.
func Blend(semantic, keyword []Hit, alpha float64) []Hit {
	normalize(semantic)
	normalize(keyword)

	type blended struct {
		hit Hit
		vec float64
		kw  float64
	}
	order := make([]string, 0, len(semantic)+len(keyword))
	byID := make(map[string]*blended)

	for _, h := range semantic {
		if _, ok := byID[h.ID]; !ok {
			byID[h.ID] = &blended{hit: h}
			order = append(order, h.ID)
		}
		byID[h.ID].vec = h.Score
	}
	for _, h := range keyword {
		entry, ok := byID[h.ID]
		if !ok {
			byID[h.ID] = &blended{hit: h}
			order = append(order, h.ID)
			entry = byID[h.ID]
		}
		entry.kw = h.Score
		if entry.hit.Title == "" {
			entry.hit.Title = h.Title
		}
	}

	hits := make([]Hit, 0, len(order))
	for _, id := range order {
		entry := byID[id]
		entry.hit.Score = alpha*entry.vec + (1-alpha)*entry.kw
		hits = append(hits, entry.hit)
	}
	sortHits(hits)
	return hits
}

// normalize scales scores into [0,1] when any exceed the range.
func normalize(hits []Hit) {
	var max float64
	for _, h := range hits {
		if h.Score > max {
			max = h.Score
		}
	}
	if max <= 1 {
		return
	}
	for i := range hits {
		hits[i].Score /= max
	}
}

// sortHits stable-sorts by score descending with id as the tie-break, so
// equal scores always come out in the same order.
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
}

// SearchAll runs hybrid search across observations and keyword search
// across memories, fusing into one ranked list.
func (svc *Service) SearchAll(ctx context.Context, project, query string, topK int) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}
	observationHits, err := svc.HybridSearch(ctx, project, query, -1, topK)
	if err != nil {
		return nil, err
	}
	memoryHits, err := svc.keywordMemories(ctx, project, query, topK)
	if err != nil {
		return nil, err
	}
	if svc.semanticReady() {
		semantic, err := svc.SemanticSearch(ctx, project, "memory", query, topK)
		if err == nil {
			memoryHits = Blend(semantic, memoryHits, DefaultAlpha)
		}
	}

	all := append(observationHits, memoryHits...)
	sortHits(all)
	// Dedupe by id keeping the best-scored entry.
	seen := make(map[string]bool, len(all))
	out := all[:0]
	for _, h := range all {
		if seen[h.ID] {
			continue
		}
		seen[h.ID] = true
		out = append(out, h)
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// tokenize lower-cases and splits on non-alphanumerics.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	// Dedupe while preserving order.
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenize(text) {
		set[tok] = true
	}
	return set
}

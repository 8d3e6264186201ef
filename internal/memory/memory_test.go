package memory

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/cwa/internal/cwerr"
	"github.com/HendryAvila/cwa/internal/store"
	"github.com/HendryAvila/cwa/internal/vector"
)

// --- Fakes ---

// fakeEmbedder returns a fixed vector, or fails when down.
type fakeEmbedder struct {
	down  bool
	calls int
}

func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.down {
		return nil, cwerr.E(cwerr.Unavailable, "embedding service unreachable")
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// fakeIndex records upserts/deletes and serves canned search results.
type fakeIndex struct {
	upserts map[string]string // entityID → collection
	deletes []string
	results []vector.SearchResult
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{upserts: make(map[string]string)}
}

func (f *fakeIndex) Upsert(ctx context.Context, collection, entityID, project string, vec []float32, payload map[string]any) error {
	f.upserts[entityID] = collection
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, collection, project string, vec []float32, topK uint64) ([]vector.SearchResult, error) {
	return f.results, nil
}

func (f *fakeIndex) Delete(ctx context.Context, collection, entityID string) error {
	f.deletes = append(f.deletes, entityID)
	return nil
}

type fakeGraph struct {
	removed []string
}

func (f *fakeGraph) RemoveEntity(ctx context.Context, project, kind, id string) error {
	f.removed = append(f.removed, kind+":"+id)
	return nil
}

func newTestService(t *testing.T) (*Service, *store.Store, *fakeEmbedder, *fakeIndex, *fakeGraph) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := store.NewWithClient(rdb)
	emb := &fakeEmbedder{}
	idx := newFakeIndex()
	g := &fakeGraph{}
	return New(s, emb, idx, g), s, emb, idx, g
}

// --- Lifecycle ---

func TestObserve_IndexesEmbedding(t *testing.T) {
	svc, _, _, idx, _ := newTestService(t)
	ctx := context.Background()

	obs, err := svc.Observe(ctx, "demo", store.CreateObservationParams{Kind: "decision", Title: "Use X"})
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	if obs.Confidence != 0.8 {
		t.Errorf("Confidence = %f, want 0.8", obs.Confidence)
	}
	if obs.EmbeddingID == "" {
		t.Error("EmbeddingID not set")
	}
	if idx.upserts[obs.ID] != vector.ObservationsCollection {
		t.Errorf("upserted into %s", idx.upserts[obs.ID])
	}
}

func TestObserve_EmbeddingDownGoesPending(t *testing.T) {
	svc, s, emb, _, _ := newTestService(t)
	emb.down = true
	ctx := context.Background()

	obs, err := svc.Observe(ctx, "demo", store.CreateObservationParams{Kind: "discovery", Title: "Found it"})
	if err != nil {
		t.Fatalf("Observe must succeed without embeddings: %v", err)
	}
	if obs.EmbeddingID != "" {
		t.Error("EmbeddingID must be empty when the embedder is down")
	}
	pending, _ := s.PendingEmbeddings(ctx, "demo")
	if len(pending) != 1 || pending[0] != "observation:"+obs.ID {
		t.Errorf("pending = %v", pending)
	}
}

func TestFlushPending_FillsEmbeddings(t *testing.T) {
	svc, s, emb, idx, _ := newTestService(t)
	ctx := context.Background()

	emb.down = true
	obs, _ := svc.Observe(ctx, "demo", store.CreateObservationParams{Kind: "discovery", Title: "Found it"})

	emb.down = false
	filled, err := svc.FlushPending(ctx, "demo")
	if err != nil {
		t.Fatalf("FlushPending failed: %v", err)
	}
	if filled != 1 {
		t.Errorf("filled = %d, want 1", filled)
	}
	if idx.upserts[obs.ID] == "" {
		t.Error("vector not upserted on flush")
	}
	got, _ := s.GetObservation(ctx, "demo", obs.ID)
	if got.EmbeddingID == "" {
		t.Error("EmbeddingID still empty after flush")
	}
	pending, _ := s.PendingEmbeddings(ctx, "demo")
	if len(pending) != 0 {
		t.Errorf("pending not cleared: %v", pending)
	}
}

// Add two observations at 0.8, decay(0.5) → 0.4,
// compact(0.5) → both deleted, vector store no longer returns them.
func TestDecayThenCompact_Scenario(t *testing.T) {
	svc, s, _, idx, g := newTestService(t)
	ctx := context.Background()

	first, _ := svc.Observe(ctx, "demo", store.CreateObservationParams{Kind: "decision", Title: "Use X", Narrative: "one"})
	second, _ := svc.Observe(ctx, "demo", store.CreateObservationParams{Kind: "decision", Title: "Use X", Narrative: "two"})

	touched, err := svc.Decay(ctx, "demo", 0.5)
	if err != nil {
		t.Fatalf("Decay failed: %v", err)
	}
	if touched != 2 {
		t.Errorf("touched = %d, want 2", touched)
	}
	for _, id := range []string{first.ID, second.ID} {
		obs, _ := s.GetObservation(ctx, "demo", id)
		if math.Abs(obs.Confidence-0.4) > 1e-9 {
			t.Errorf("confidence = %f, want 0.4", obs.Confidence)
		}
	}

	result, err := svc.Compact(ctx, "demo", 0.5)
	if err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	if len(result.Deleted) != 2 {
		t.Errorf("deleted = %v, want both", result.Deleted)
	}
	if len(idx.deletes) != 2 {
		t.Errorf("vector deletes = %v", idx.deletes)
	}
	if len(g.removed) != 2 {
		t.Errorf("graph removals = %v", g.removed)
	}
	if _, err := s.GetObservation(ctx, "demo", first.ID); !cwerr.IsKind(err, cwerr.NotFound) {
		t.Error("observation not physically deleted")
	}
}

// Boundary: compact 0.3 removes exactly the entries whose confidence is
// strictly below 0.3.
func TestCompact_StrictThreshold(t *testing.T) {
	svc, s, _, _, _ := newTestService(t)
	ctx := context.Background()

	kept, _ := svc.Observe(ctx, "demo", store.CreateObservationParams{Kind: "insight", Title: "kept"})
	dropped, _ := svc.Observe(ctx, "demo", store.CreateObservationParams{Kind: "insight", Title: "dropped"})

	// kept lands exactly on the threshold, dropped strictly below it.
	_, _ = s.UpdateObservation(ctx, "demo", kept.ID, func(o store.Observation) (store.Observation, error) {
		o.Confidence = 0.3
		return o, nil
	})
	_, _ = s.UpdateObservation(ctx, "demo", dropped.ID, func(o store.Observation) (store.Observation, error) {
		o.Confidence = 0.29
		return o, nil
	})

	result, err := svc.Compact(ctx, "demo", 0.3)
	if err != nil {
		t.Fatalf("Compact failed: %v", err)
	}
	if len(result.Deleted) != 1 || result.Deleted[0] != dropped.ID {
		t.Errorf("deleted = %v, want only %s", result.Deleted, dropped.ID)
	}
	if _, err := s.GetObservation(ctx, "demo", kept.ID); err != nil {
		t.Errorf("threshold-equal observation must survive: %v", err)
	}
}

func TestDecay_InvalidFactor(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	if _, err := svc.Decay(context.Background(), "demo", 1.5); !cwerr.IsKind(err, cwerr.InvalidArguments) {
		t.Errorf("factor 1.5 = %v, want InvalidArguments", err)
	}
	if _, err := svc.Decay(context.Background(), "demo", 0); !cwerr.IsKind(err, cwerr.InvalidArguments) {
		t.Errorf("factor 0 = %v, want InvalidArguments", err)
	}
}

func TestSummarize(t *testing.T) {
	svc, s, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, _ = svc.Observe(ctx, "demo", store.CreateObservationParams{Kind: "bugfix", Title: "Fixed race", Facts: []string{"mutex added"}})
	_, _ = svc.Observe(ctx, "demo", store.CreateObservationParams{Kind: "feature", Title: "Added login"})

	summary, err := svc.Summarize(ctx, "demo", 2)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.ObservationsCount != 2 {
		t.Errorf("ObservationsCount = %d", summary.ObservationsCount)
	}
	for _, want := range []string{"Fixed race", "Added login", "mutex added"} {
		if !contains(summary.Content, want) {
			t.Errorf("summary missing %q", want)
		}
	}

	recent, _ := s.RecentSummaries(ctx, "demo", 1)
	if len(recent) != 1 {
		t.Fatalf("summaries = %d, want 1", len(recent))
	}
}

func TestSummarize_Empty(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	if _, err := svc.Summarize(context.Background(), "demo", 5); !cwerr.IsKind(err, cwerr.NotFound) {
		t.Errorf("empty summarize = %v, want NotFound", err)
	}
}

// --- Search ---

func TestKeywordSearch_RanksMatches(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, _ = svc.Observe(ctx, "demo", store.CreateObservationParams{Kind: "decision", Title: "JWT auth middleware", Narrative: "tokens expire after 15 minutes"})
	_, _ = svc.Observe(ctx, "demo", store.CreateObservationParams{Kind: "bugfix", Title: "Fix N+1 in user list"})

	hits, err := svc.KeywordSearch(ctx, "demo", "auth tokens", 10)
	if err != nil {
		t.Fatalf("KeywordSearch failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	if hits[0].Title != "JWT auth middleware" {
		t.Errorf("top hit = %s", hits[0].Title)
	}
	if hits[0].Score <= 0 || hits[0].Score > 1 {
		t.Errorf("score = %f out of (0,1]", hits[0].Score)
	}
}

func TestKeywordSearch_EmptyQuery(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	if _, err := svc.KeywordSearch(context.Background(), "demo", "  ", 5); !cwerr.IsKind(err, cwerr.InvalidArguments) {
		t.Errorf("empty query = %v, want InvalidArguments", err)
	}
}

// vec {A:0.9, B:0.5, C:0.1}, kw {C:1.0}. α=0.7 →
// A(0.63), C(0.37), B(0.35).
func TestBlend_SpecScenario(t *testing.T) {
	semantic := []Hit{
		{ID: "A", Score: 0.9},
		{ID: "B", Score: 0.5},
		{ID: "C", Score: 0.1},
	}
	keyword := []Hit{
		{ID: "C", Score: 1.0},
	}
	hits := Blend(semantic, keyword, 0.7)
	if len(hits) != 3 {
		t.Fatalf("hits = %d, want 3", len(hits))
	}
	wantOrder := []string{"A", "C", "B"}
	wantScore := []float64{0.63, 0.37, 0.35}
	for i := range wantOrder {
		if hits[i].ID != wantOrder[i] {
			t.Errorf("hits[%d] = %s, want %s", i, hits[i].ID, wantOrder[i])
		}
		if math.Abs(hits[i].Score-wantScore[i]) > 1e-9 {
			t.Errorf("score[%d] = %f, want %f", i, hits[i].Score, wantScore[i])
		}
	}
}

// α=1.0 equals pure semantic; α=0.0 equals pure keyword.
func TestBlend_AlphaExtremes(t *testing.T) {
	semantic := []Hit{{ID: "A", Score: 0.9}, {ID: "B", Score: 0.4}}
	keyword := []Hit{{ID: "B", Score: 1.0}, {ID: "C", Score: 0.5}}

	pure := Blend(semantic, keyword, 1.0)
	if pure[0].ID != "A" || math.Abs(pure[0].Score-0.9) > 1e-9 {
		t.Errorf("α=1 top = %+v, want A at 0.9", pure[0])
	}
	for _, h := range pure {
		if h.ID == "C" && h.Score != 0 {
			t.Errorf("α=1 must ignore keyword-only hits' scores, C = %f", h.Score)
		}
	}

	kw := Blend(semantic, keyword, 0.0)
	if kw[0].ID != "B" || math.Abs(kw[0].Score-1.0) > 1e-9 {
		t.Errorf("α=0 top = %+v, want B at 1.0", kw[0])
	}
}

func TestBlend_DeduplicatesByID(t *testing.T) {
	hits := Blend([]Hit{{ID: "X", Score: 0.8}}, []Hit{{ID: "X", Score: 0.6}}, 0.5)
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want 1", len(hits))
	}
	if math.Abs(hits[0].Score-0.7) > 1e-9 {
		t.Errorf("blended score = %f, want 0.7", hits[0].Score)
	}
}

func TestHybridSearch_UsesVectorResults(t *testing.T) {
	svc, _, _, idx, _ := newTestService(t)
	ctx := context.Background()

	obs, _ := svc.Observe(ctx, "demo", store.CreateObservationParams{Kind: "decision", Title: "Use Redis"})
	idx.results = []vector.SearchResult{
		{ID: obs.ID, Score: 0.95, Payload: map[string]any{"title": "Use Redis", "kind": "decision"}},
	}

	hits, err := svc.HybridSearch(ctx, "demo", "redis", -1, 5)
	if err != nil {
		t.Fatalf("HybridSearch failed: %v", err)
	}
	if len(hits) == 0 || hits[0].ID != obs.ID {
		t.Errorf("hits = %v", hits)
	}
	// keyword match + vector hit both contribute.
	if hits[0].Score <= 0.65 {
		t.Errorf("blended score = %f, expected above pure-α share", hits[0].Score)
	}
}

func TestHybridSearch_InvalidAlpha(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	if _, err := svc.HybridSearch(context.Background(), "demo", "q", 1.5, 5); !cwerr.IsKind(err, cwerr.InvalidArguments) {
		t.Errorf("alpha 1.5 = %v, want InvalidArguments", err)
	}
}

// --- Progressive disclosure ---

func TestTimelineThenGet(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()

	obs, _ := svc.Observe(ctx, "demo", store.CreateObservationParams{
		Kind: "decision", Title: "Use X", Narrative: "a long narrative body",
		Facts: []string{"fact one", "fact two"},
	})

	rows, err := svc.Timeline(ctx, "demo", 0, 10)
	if err != nil {
		t.Fatalf("Timeline failed: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != obs.ID {
		t.Fatalf("rows = %v", rows)
	}

	full, err := svc.Get(ctx, "demo", []string{obs.ID})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if full[0].Narrative != "a long narrative body" || len(full[0].Facts) != 2 {
		t.Errorf("full record = %+v", full[0])
	}
}

func TestGet_RequiresIDs(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	if _, err := svc.Get(context.Background(), "demo", nil); !cwerr.IsKind(err, cwerr.InvalidArguments) {
		t.Errorf("empty ids = %v, want InvalidArguments", err)
	}
}

// --- Next steps ---

func TestGetNextSteps(t *testing.T) {
	svc, s, _, _, _ := newTestService(t)
	ctx := context.Background()

	spec, _ := s.CreateSpec(ctx, "demo", store.CreateSpecParams{Title: "Auth", AcceptanceCriteria: []string{"a", "b"}})
	_, _ = s.UpdateSpec(ctx, "demo", spec.ID, func(sp store.Spec) (store.Spec, error) {
		sp.Status = "active"
		return sp, nil
	})
	task, _ := s.CreateTask(ctx, "demo", store.CreateTaskParams{Title: "work", CriterionIndex: -1})
	_, _ = s.UpdateTask(ctx, "demo", task.ID, func(tk store.Task) (store.Task, error) {
		tk.Status = "in_progress"
		return tk, nil
	})

	steps, err := svc.GetNextSteps(ctx, "demo")
	if err != nil {
		t.Fatalf("GetNextSteps failed: %v", err)
	}
	if steps.CurrentTask == nil || steps.CurrentTask.ID != task.ID {
		t.Errorf("CurrentTask = %+v", steps.CurrentTask)
	}
	if len(steps.UncoveredSpecs) != 1 || steps.UncoveredSpecs[0] != spec.ID {
		t.Errorf("UncoveredSpecs = %v", steps.UncoveredSpecs)
	}
}

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}

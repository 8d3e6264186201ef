package store

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// CreateDecisionParams holds the input for recording a decision.
type CreateDecisionParams struct {
	Title        string
	Rationale    string
	Alternatives []string
	Status       string
	Supersedes   string
	SpecIDs      []string
}

// CreateDecision records an architectural decision. When it supersedes an
// earlier decision, the earlier one is flipped to superseded in the same
// call (two entity writes; each atomic — cross-entity state is documented
// as non-transactional).
func (s *Store) CreateDecision(ctx context.Context, project string, p CreateDecisionParams) (Decision, error) {
	if p.Title == "" {
		return Decision{}, cwerr.E(cwerr.InvalidArguments, "decision title must not be empty")
	}
	if p.Status == "" {
		p.Status = "proposed"
	}
	if !ValidEnum(p.Status, DecisionStates) {
		return Decision{}, cwerr.E(cwerr.InvalidArguments, "invalid decision status %q", p.Status)
	}
	now := s.now()
	decision := Decision{
		ID:           NewID(),
		ProjectID:    project,
		Title:        p.Title,
		Rationale:    p.Rationale,
		Alternatives: p.Alternatives,
		Status:       p.Status,
		Supersedes:   p.Supersedes,
		SpecIDs:      p.SpecIDs,
		Version:      1,
		CreatedAt:    now.UTC().Format(timeLayout),
		UpdatedAt:    now.UTC().Format(timeLayout),
	}
	err := s.txPut(ctx, DecisionKey(project, decision.ID), decision, func(pipe redis.Pipeliner) {
		pipe.ZAdd(ctx, DecisionsAllKey(project), redis.Z{Score: float64(now.UnixNano()), Member: decision.ID})
	})
	if err != nil {
		return Decision{}, err
	}

	if p.Supersedes != "" {
		if _, err := s.UpdateDecision(ctx, project, p.Supersedes, func(old Decision) (Decision, error) {
			old.Status = "superseded"
			return old, nil
		}); err != nil && !cwerr.IsKind(err, cwerr.NotFound) {
			return decision, err
		}
	}
	return decision, nil
}

// GetDecision loads a decision by id.
func (s *Store) GetDecision(ctx context.Context, project, id string) (Decision, error) {
	return getDoc[Decision](ctx, s, DecisionKey(project, id), "decision "+id)
}

// ListDecisions returns decisions in creation order.
func (s *Store) ListDecisions(ctx context.Context, project string) ([]Decision, error) {
	ids, err := s.rdb.ZRange(ctx, DecisionsAllKey(project), 0, -1).Result()
	if err != nil {
		return nil, wrapErr(err, "listing decisions")
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = DecisionKey(project, id)
	}
	return getDocs[Decision](ctx, s, keys, "decisions")
}

// UpdateDecision applies a partial update under CAS.
func (s *Store) UpdateDecision(ctx context.Context, project, id string, mutate func(Decision) (Decision, error)) (Decision, error) {
	return updateDoc(ctx, s, DecisionKey(project, id), "decision "+id, func(d Decision) (Decision, error) {
		updated, err := mutate(d)
		if err != nil {
			return d, err
		}
		updated.Version = d.Version + 1
		updated.UpdatedAt = s.nowRFC3339()
		return updated, nil
	}, nil)
}

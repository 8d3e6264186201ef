package store

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// CreateSpecParams holds the input for creating a spec.
type CreateSpecParams struct {
	Title              string
	Description        string
	Priority           string
	AcceptanceCriteria []string
	Dependencies       []string
	ContextID          string
}

// CreateSpec writes a new spec in draft status and indexes it.
func (s *Store) CreateSpec(ctx context.Context, project string, p CreateSpecParams) (Spec, error) {
	if p.Title == "" {
		return Spec{}, cwerr.E(cwerr.InvalidArguments, "spec title must not be empty")
	}
	if p.Priority == "" {
		p.Priority = "medium"
	}
	if !ValidEnum(p.Priority, Priorities) {
		return Spec{}, cwerr.E(cwerr.InvalidArguments, "invalid priority %q", p.Priority)
	}
	now := s.now()
	spec := Spec{
		ID:                 NewID(),
		ProjectID:          project,
		Title:              p.Title,
		Description:        p.Description,
		Status:             "draft",
		Priority:           p.Priority,
		AcceptanceCriteria: p.AcceptanceCriteria,
		Dependencies:       p.Dependencies,
		ContextID:          p.ContextID,
		Version:            1,
		CreatedAt:          now.UTC().Format(timeLayout),
		UpdatedAt:          now.UTC().Format(timeLayout),
	}
	err := s.txPut(ctx, SpecKey(project, spec.ID), spec, func(pipe redis.Pipeliner) {
		pipe.ZAdd(ctx, SpecsAllKey(project), redis.Z{Score: float64(now.UnixNano()), Member: spec.ID})
	})
	if err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// GetSpec loads a spec by id.
func (s *Store) GetSpec(ctx context.Context, project, id string) (Spec, error) {
	return getDoc[Spec](ctx, s, SpecKey(project, id), "spec "+id)
}

// ListSpecs returns all specs in creation order.
func (s *Store) ListSpecs(ctx context.Context, project string) ([]Spec, error) {
	ids, err := s.rdb.ZRange(ctx, SpecsAllKey(project), 0, -1).Result()
	if err != nil {
		return nil, wrapErr(err, "listing specs")
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = SpecKey(project, id)
	}
	return getDocs[Spec](ctx, s, keys, "specs")
}

// UpdateSpec applies a partial update under CAS and bumps the version.
func (s *Store) UpdateSpec(ctx context.Context, project, id string, mutate func(Spec) (Spec, error)) (Spec, error) {
	return updateDoc(ctx, s, SpecKey(project, id), "spec "+id, func(spec Spec) (Spec, error) {
		updated, err := mutate(spec)
		if err != nil {
			return spec, err
		}
		updated.Version = spec.Version + 1
		updated.UpdatedAt = s.nowRFC3339()
		return updated, nil
	}, nil)
}

// ArchiveSpec soft-deletes a spec by moving it to archived status.
// Tasks referencing the spec block the archive: the caller passes the
// dependent task ids it found and the archive fails with Conflict if any
// exist (cascading is forbidden).
func (s *Store) ArchiveSpec(ctx context.Context, project, id string, dependentTasks []string) (Spec, error) {
	if len(dependentTasks) > 0 {
		return Spec{}, cwerr.E(cwerr.Conflict, "spec %s has dependent tasks", id).
			WithData("task_ids", dependentTasks)
	}
	return s.UpdateSpec(ctx, project, id, func(spec Spec) (Spec, error) {
		spec.Status = "archived"
		return spec, nil
	})
}

// txPut writes a document and index entries in one MULTI/EXEC.
func (s *Store) txPut(ctx context.Context, key string, doc any, index func(pipe redis.Pipeliner)) error {
	data, err := marshalDoc(doc)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, dataField, data)
		if index != nil {
			index(pipe)
		}
		return nil
	})
	if err != nil {
		return wrapErr(err, "writing %s", key)
	}
	return nil
}

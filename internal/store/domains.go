package store

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// CreateContext writes a new bounded context. Names are unique per
// project; a duplicate name is a Conflict.
func (s *Store) CreateContext(ctx context.Context, project, name, description string) (BoundedContext, error) {
	if name == "" {
		return BoundedContext{}, cwerr.E(cwerr.InvalidArguments, "context name must not be empty")
	}
	existing, err := s.ListContexts(ctx, project)
	if err != nil {
		return BoundedContext{}, err
	}
	for _, c := range existing {
		if c.Name == name {
			return BoundedContext{}, cwerr.E(cwerr.Conflict, "context %q already exists", name)
		}
	}
	now := s.nowRFC3339()
	bc := BoundedContext{
		ID:          NewID(),
		ProjectID:   project,
		Name:        name,
		Description: description,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.txPut(ctx, ContextKey(project, bc.ID), bc, func(pipe redis.Pipeliner) {
		pipe.SAdd(ctx, ContextsAllKey(project), bc.ID)
	})
	if err != nil {
		return BoundedContext{}, err
	}
	return bc, nil
}

// GetContext loads a bounded context by id.
func (s *Store) GetContext(ctx context.Context, project, id string) (BoundedContext, error) {
	return getDoc[BoundedContext](ctx, s, ContextKey(project, id), "context "+id)
}

// ListContexts returns every bounded context, ordered by name for stable
// output (sets have no intrinsic order).
func (s *Store) ListContexts(ctx context.Context, project string) ([]BoundedContext, error) {
	ids, err := s.rdb.SMembers(ctx, ContextsAllKey(project)).Result()
	if err != nil {
		return nil, wrapErr(err, "listing contexts")
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = ContextKey(project, id)
	}
	contexts, err := getDocs[BoundedContext](ctx, s, keys, "contexts")
	if err != nil {
		return nil, err
	}
	sortBy(contexts, func(a, b BoundedContext) bool { return a.Name < b.Name })
	return contexts, nil
}

// UpdateContext applies a partial update under CAS.
func (s *Store) UpdateContext(ctx context.Context, project, id string, mutate func(BoundedContext) (BoundedContext, error)) (BoundedContext, error) {
	return updateDoc(ctx, s, ContextKey(project, id), "context "+id, func(bc BoundedContext) (BoundedContext, error) {
		updated, err := mutate(bc)
		if err != nil {
			return bc, err
		}
		updated.Version = bc.Version + 1
		updated.UpdatedAt = s.nowRFC3339()
		return updated, nil
	}, nil)
}

// DeleteContext removes a context. Deletion is refused while the context
// still owns domain objects.
func (s *Store) DeleteContext(ctx context.Context, project, id string) error {
	n, err := s.rdb.SCard(ctx, ContextObjectsKey(project, id)).Result()
	if err != nil {
		return wrapErr(err, "checking context %s children", id)
	}
	if n > 0 {
		return cwerr.E(cwerr.Conflict, "context %s still owns %d domain objects", id, n)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, ContextKey(project, id))
		pipe.SRem(ctx, ContextsAllKey(project), id)
		return nil
	})
	return wrapErr(err, "deleting context %s", id)
}

// CreateDomainObjectParams holds the input for creating a domain object.
type CreateDomainObjectParams struct {
	ContextID  string
	Kind       string
	Name       string
	Invariants []string
	Properties []string
}

// CreateDomainObject writes a new domain object into its context.
func (s *Store) CreateDomainObject(ctx context.Context, project string, p CreateDomainObjectParams) (DomainObject, error) {
	if p.Name == "" {
		return DomainObject{}, cwerr.E(cwerr.InvalidArguments, "domain object name must not be empty")
	}
	if !ValidEnum(p.Kind, ObjectKinds) {
		return DomainObject{}, cwerr.E(cwerr.InvalidArguments, "invalid domain object kind %q", p.Kind)
	}
	// The owning context must exist.
	if _, err := s.GetContext(ctx, project, p.ContextID); err != nil {
		return DomainObject{}, err
	}
	now := s.nowRFC3339()
	obj := DomainObject{
		ID:         NewID(),
		ProjectID:  project,
		ContextID:  p.ContextID,
		Kind:       p.Kind,
		Name:       p.Name,
		Invariants: p.Invariants,
		Properties: p.Properties,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := s.txPut(ctx, DomainObjectKey(project, obj.ID), obj, func(pipe redis.Pipeliner) {
		pipe.SAdd(ctx, ContextObjectsKey(project, p.ContextID), obj.ID)
	})
	if err != nil {
		return DomainObject{}, err
	}
	return obj, nil
}

// GetDomainObject loads a domain object by id.
func (s *Store) GetDomainObject(ctx context.Context, project, id string) (DomainObject, error) {
	return getDoc[DomainObject](ctx, s, DomainObjectKey(project, id), "domain object "+id)
}

// ListDomainObjects returns a context's objects ordered by name.
func (s *Store) ListDomainObjects(ctx context.Context, project, contextID string) ([]DomainObject, error) {
	ids, err := s.rdb.SMembers(ctx, ContextObjectsKey(project, contextID)).Result()
	if err != nil {
		return nil, wrapErr(err, "listing domain objects")
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = DomainObjectKey(project, id)
	}
	objects, err := getDocs[DomainObject](ctx, s, keys, "domain objects")
	if err != nil {
		return nil, err
	}
	sortBy(objects, func(a, b DomainObject) bool { return a.Name < b.Name })
	return objects, nil
}

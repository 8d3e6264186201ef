package store

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// AddGlossaryTerm writes a term definition. Terms are unique per project;
// re-adding an existing term updates its definition in place (the
// ubiquitous language evolves, it doesn't duplicate).
func (s *Store) AddGlossaryTerm(ctx context.Context, project string, term GlossaryTerm) (GlossaryTerm, error) {
	if term.Term == "" || term.Definition == "" {
		return GlossaryTerm{}, cwerr.E(cwerr.InvalidArguments, "term and definition must not be empty")
	}
	now := s.nowRFC3339()
	existing, err := s.GetGlossaryTerm(ctx, project, term.Term)
	switch {
	case err == nil:
		term.Version = existing.Version + 1
		term.CreatedAt = existing.CreatedAt
	case cwerr.IsKind(err, cwerr.NotFound):
		term.Version = 1
		term.CreatedAt = now
	default:
		return GlossaryTerm{}, err
	}
	term.UpdatedAt = now

	err = s.txPut(ctx, GlossaryKey(project, term.Term), term, func(pipe redis.Pipeliner) {
		pipe.SAdd(ctx, GlossaryAllKey(project), term.Term)
	})
	if err != nil {
		return GlossaryTerm{}, err
	}
	return term, nil
}

// GetGlossaryTerm loads one term.
func (s *Store) GetGlossaryTerm(ctx context.Context, project, term string) (GlossaryTerm, error) {
	return getDoc[GlossaryTerm](ctx, s, GlossaryKey(project, term), "glossary term "+term)
}

// ListGlossary returns all terms sorted alphabetically.
func (s *Store) ListGlossary(ctx context.Context, project string) ([]GlossaryTerm, error) {
	names, err := s.rdb.SMembers(ctx, GlossaryAllKey(project)).Result()
	if err != nil {
		return nil, wrapErr(err, "listing glossary")
	}
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = GlossaryKey(project, name)
	}
	terms, err := getDocs[GlossaryTerm](ctx, s, keys, "glossary")
	if err != nil {
		return nil, err
	}
	sortBy(terms, func(a, b GlossaryTerm) bool { return a.Term < b.Term })
	return terms, nil
}

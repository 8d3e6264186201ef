package store

import (
	"context"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// CreateProject initializes the namespace root. Creating over an existing
// project is a Conflict — namespaces are never silently recreated.
func (s *Store) CreateProject(ctx context.Context, id, name, description string, techStack []string) (Project, error) {
	if name == "" {
		return Project{}, cwerr.E(cwerr.InvalidArguments, "project name must not be empty")
	}
	exists, err := s.rdb.Exists(ctx, ProjectKey(id)).Result()
	if err != nil {
		return Project{}, wrapErr(err, "checking project %s", id)
	}
	if exists > 0 {
		return Project{}, cwerr.E(cwerr.Conflict, "project %s already exists", id)
	}
	now := s.nowRFC3339()
	project := Project{
		ID:          id,
		Name:        name,
		Description: description,
		TechStack:   techStack,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := putDoc(ctx, s, ProjectKey(id), project); err != nil {
		return Project{}, err
	}
	return project, nil
}

// GetProject loads the project document.
func (s *Store) GetProject(ctx context.Context, id string) (Project, error) {
	return getDoc[Project](ctx, s, ProjectKey(id), "project "+id)
}

// UpdateProject applies a partial update under CAS.
func (s *Store) UpdateProject(ctx context.Context, id string, mutate func(Project) (Project, error)) (Project, error) {
	return updateDoc(ctx, s, ProjectKey(id), "project "+id, func(p Project) (Project, error) {
		updated, err := mutate(p)
		if err != nil {
			return p, err
		}
		updated.Version = p.Version + 1
		updated.UpdatedAt = s.nowRFC3339()
		return updated, nil
	}, nil)
}

// SetTechStack replaces the project's ordered tech-stack tags.
func (s *Store) SetTechStack(ctx context.Context, id string, tags []string) (Project, error) {
	return s.UpdateProject(ctx, id, func(p Project) (Project, error) {
		p.TechStack = tags
		return p, nil
	})
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/cwa/internal/cwerr"
	"github.com/HendryAvila/cwa/internal/store"
)

// CreateSpec creates a spec and announces it.
func (svc *Services) CreateSpec(ctx context.Context, project string, p store.CreateSpecParams) (store.Spec, error) {
	spec, err := svc.Store.CreateSpec(ctx, project, p)
	if err != nil {
		return store.Spec{}, err
	}
	svc.publish(ctx, store.Event{
		Type: store.EventSpecCreated, Project: project,
		EntityKind: "spec", EntityID: spec.ID,
	})
	return spec, nil
}

// GetSpec loads a spec.
func (svc *Services) GetSpec(ctx context.Context, project, id string) (store.Spec, error) {
	return svc.Store.GetSpec(ctx, project, id)
}

// ListSpecs lists specs in creation order.
func (svc *Services) ListSpecs(ctx context.Context, project string) ([]store.Spec, error) {
	return svc.Store.ListSpecs(ctx, project)
}

// UpdateSpecStatus moves a spec through its lifecycle. Archiving is
// rejected with Conflict while tasks depend on the spec (the dependent
// task ids ride in the error data).
func (svc *Services) UpdateSpecStatus(ctx context.Context, project, id, status string) (store.Spec, error) {
	if !store.ValidEnum(status, store.SpecStatuses) {
		return store.Spec{}, cwerr.E(cwerr.InvalidArguments, "invalid spec status %q", status)
	}
	if status == "archived" {
		tasks, err := svc.Store.ListTasksBySpec(ctx, project, id)
		if err != nil {
			return store.Spec{}, err
		}
		ids := make([]string, len(tasks))
		for i, t := range tasks {
			ids[i] = t.ID
		}
		spec, err := svc.Store.ArchiveSpec(ctx, project, id, ids)
		if err != nil {
			return store.Spec{}, err
		}
		svc.publishSpecUpdated(ctx, project, spec)
		return spec, nil
	}

	spec, err := svc.Store.UpdateSpec(ctx, project, id, func(sp store.Spec) (store.Spec, error) {
		sp.Status = status
		return sp, nil
	})
	if err != nil {
		return store.Spec{}, err
	}
	svc.publishSpecUpdated(ctx, project, spec)
	return spec, nil
}

func (svc *Services) publishSpecUpdated(ctx context.Context, project string, spec store.Spec) {
	svc.publish(ctx, store.Event{
		Type: store.EventSpecUpdated, Project: project,
		EntityKind: "spec", EntityID: spec.ID,
		Payload: map[string]string{"status": spec.Status},
	})
}

// AddAcceptanceCriteria appends criteria to a spec.
func (svc *Services) AddAcceptanceCriteria(ctx context.Context, project, id string, criteria []string) (store.Spec, error) {
	cleaned := criteria[:0:0]
	for _, c := range criteria {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return store.Spec{}, cwerr.E(cwerr.InvalidArguments, "no non-empty criteria supplied")
	}
	spec, err := svc.Store.UpdateSpec(ctx, project, id, func(sp store.Spec) (store.Spec, error) {
		sp.AcceptanceCriteria = append(sp.AcceptanceCriteria, cleaned...)
		return sp, nil
	})
	if err != nil {
		return store.Spec{}, err
	}
	svc.publishSpecUpdated(ctx, project, spec)
	return spec, nil
}

// ValidationIssue is one finding from ValidateSpec.
type ValidationIssue struct {
	Field   string `json:"field"`
	Problem string `json:"problem"`
}

// vagueWords are requirement smells: criteria containing them are not
// verifiable as written.
var vagueWords = []string{"fast", "easy", "user-friendly", "intuitive", "simple", "appropriate", "etc"}

// ValidateSpec checks a spec for completeness and verifiability. It never
// mutates; the report is advisory.
func (svc *Services) ValidateSpec(ctx context.Context, project, id string) ([]ValidationIssue, error) {
	spec, err := svc.Store.GetSpec(ctx, project, id)
	if err != nil {
		return nil, err
	}
	var issues []ValidationIssue
	if spec.Description == "" {
		issues = append(issues, ValidationIssue{Field: "description", Problem: "spec has no description"})
	}
	if len(spec.AcceptanceCriteria) == 0 {
		issues = append(issues, ValidationIssue{Field: "acceptance_criteria", Problem: "spec has no acceptance criteria"})
	}
	for i, criterion := range spec.AcceptanceCriteria {
		lower := strings.ToLower(criterion)
		for _, word := range vagueWords {
			if strings.Contains(lower, word) {
				issues = append(issues, ValidationIssue{
					Field:   fmt.Sprintf("acceptance_criteria[%d]", i),
					Problem: fmt.Sprintf("criterion contains non-verifiable term %q", word),
				})
			}
		}
	}
	for _, dep := range spec.Dependencies {
		if _, err := svc.Store.GetSpec(ctx, project, dep); cwerr.IsKind(err, cwerr.NotFound) {
			issues = append(issues, ValidationIssue{Field: "dependencies", Problem: fmt.Sprintf("dependency %s does not exist", dep)})
		}
	}
	return issues, nil
}

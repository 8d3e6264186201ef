package memory

import (
	"context"

	"github.com/HendryAvila/cwa/internal/store"
)

// NextSteps is the work-guidance digest returned by get_next_steps.
type NextSteps struct {
	CurrentTask      *store.Task  `json:"current_task,omitempty"`
	TodoCandidates   []store.Task `json:"todo_candidates,omitempty"`
	UncoveredSpecs   []string     `json:"uncovered_specs,omitempty"`
	RecentHighlights []Hit        `json:"recent_highlights,omitempty"`
}

// GetNextSteps assembles what to work on next: the in-progress task, the
// top of the todo column, active specs whose criteria have no generated
// tasks yet, and recent high-confidence observations.
func (svc *Service) GetNextSteps(ctx context.Context, project string) (NextSteps, error) {
	var steps NextSteps

	inProgress, err := svc.store.ListTasksByStatus(ctx, project, "in_progress")
	if err != nil {
		return steps, err
	}
	if len(inProgress) > 0 {
		steps.CurrentTask = &inProgress[0]
	}

	todo, err := svc.store.ListTasksByStatus(ctx, project, "todo")
	if err != nil {
		return steps, err
	}
	if len(todo) > 3 {
		todo = todo[:3]
	}
	steps.TodoCandidates = todo

	specs, err := svc.store.ListSpecs(ctx, project)
	if err != nil {
		return steps, err
	}
	for _, spec := range specs {
		if spec.Status != "active" && spec.Status != "accepted" {
			continue
		}
		tasks, err := svc.store.ListTasksBySpec(ctx, project, spec.ID)
		if err != nil {
			return steps, err
		}
		if len(tasks) < len(spec.AcceptanceCriteria) {
			steps.UncoveredSpecs = append(steps.UncoveredSpecs, spec.ID)
		}
	}

	highlights, err := svc.store.ListHighConfidence(ctx, project, 0.7, 5)
	if err != nil {
		return steps, err
	}
	for _, obs := range highlights {
		steps.RecentHighlights = append(steps.RecentHighlights, Hit{
			ID:    obs.ID,
			Kind:  obs.Kind,
			Title: obs.Title,
			Score: obs.Confidence,
		})
	}
	return steps, nil
}

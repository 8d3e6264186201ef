package service

import (
	"context"

	"github.com/HendryAvila/cwa/internal/cwerr"
	"github.com/HendryAvila/cwa/internal/kanban"
	"github.com/HendryAvila/cwa/internal/store"
)

// CreateTask creates a direct (non-generated) task in backlog. A spec
// reference must point at an existing, non-archived spec.
func (svc *Services) CreateTask(ctx context.Context, project string, p store.CreateTaskParams) (store.Task, error) {
	if p.SpecID != "" {
		spec, err := svc.Store.GetSpec(ctx, project, p.SpecID)
		if err != nil {
			return store.Task{}, err
		}
		if spec.Status == "archived" {
			return store.Task{}, cwerr.E(cwerr.InvalidArguments, "spec %s is archived", p.SpecID)
		}
	}
	p.CriterionIndex = -1
	task, err := svc.Store.CreateTask(ctx, project, p)
	if err != nil {
		return store.Task{}, err
	}
	svc.publish(ctx, store.Event{
		Type: store.EventTaskCreated, Project: project,
		EntityKind: "task", EntityID: task.ID,
	})
	return task, nil
}

// GetTask loads a task.
func (svc *Services) GetTask(ctx context.Context, project, id string) (store.Task, error) {
	return svc.Store.GetTask(ctx, project, id)
}

// ListTasks lists every task; status filters to one column.
func (svc *Services) ListTasks(ctx context.Context, project, status string) ([]store.Task, error) {
	if status == "" {
		return svc.Store.ListTasks(ctx, project)
	}
	return svc.Store.ListTasksByStatus(ctx, project, status)
}

// GetCurrentTask returns the task in flight, or NotFound.
func (svc *Services) GetCurrentTask(ctx context.Context, project string) (store.Task, error) {
	inProgress, err := svc.Store.ListTasksByStatus(ctx, project, "in_progress")
	if err != nil {
		return store.Task{}, err
	}
	if len(inProgress) == 0 {
		return store.Task{}, cwerr.E(cwerr.NotFound, "no task in progress")
	}
	return inProgress[0], nil
}

// MoveTask transitions a task through the state machine and announces
// the move. insertIndex < 0 appends at the target column's end.
func (svc *Services) MoveTask(ctx context.Context, project, id, status string, insertIndex int) (store.Task, error) {
	result, err := svc.Board.Move(ctx, project, id, status, insertIndex)
	if err != nil {
		return store.Task{}, err
	}
	svc.publish(ctx, store.Event{
		Type: store.EventTaskMoved, Project: project,
		EntityKind: "task", EntityID: id,
		Payload: map[string]string{"from": result.From, "to": result.To},
	})
	return result.Task, nil
}

// UpdateTaskFields applies a partial non-status update (title,
// description, priority). Status changes go through MoveTask.
func (svc *Services) UpdateTaskFields(ctx context.Context, project, id string, title, description, priority *string) (store.Task, error) {
	task, err := svc.Store.UpdateTask(ctx, project, id, func(t store.Task) (store.Task, error) {
		if title != nil {
			if *title == "" {
				return t, cwerr.E(cwerr.InvalidArguments, "task title must not be empty")
			}
			t.Title = *title
		}
		if description != nil {
			t.Description = *description
		}
		if priority != nil {
			if !store.ValidEnum(*priority, store.Priorities) {
				return t, cwerr.E(cwerr.InvalidArguments, "invalid priority %q", *priority)
			}
			t.Priority = *priority
		}
		return t, nil
	})
	if err != nil {
		return store.Task{}, err
	}
	svc.publish(ctx, store.Event{
		Type: store.EventTaskUpdated, Project: project,
		EntityKind: "task", EntityID: id,
	})
	return task, nil
}

// GenerateTasksResult reports a generate_tasks run.
type GenerateTasksResult struct {
	Created []store.Task `json:"created"`
	Skipped int          `json:"skipped"`
}

// GenerateTasks creates one backlog task per acceptance criterion of a
// spec. Idempotent: criteria that already have a task — identified by
// (spec_id, criterion_index) — are skipped, so a partial run can simply
// be re-run. Tasks are created one at a time; partial success is
// reported, not rolled back.
func (svc *Services) GenerateTasks(ctx context.Context, project, specID string) (GenerateTasksResult, error) {
	spec, err := svc.Store.GetSpec(ctx, project, specID)
	if err != nil {
		return GenerateTasksResult{}, err
	}
	if spec.Status == "archived" {
		return GenerateTasksResult{}, cwerr.E(cwerr.InvalidArguments, "spec %s is archived", specID)
	}
	if len(spec.AcceptanceCriteria) == 0 {
		return GenerateTasksResult{}, cwerr.E(cwerr.InvalidArguments, "spec %s has no acceptance criteria", specID)
	}

	existing, err := svc.Store.ListTasksBySpec(ctx, project, specID)
	if err != nil {
		return GenerateTasksResult{}, err
	}
	covered := make(map[int]bool, len(existing))
	for _, task := range existing {
		if task.CriterionIndex >= 0 {
			covered[task.CriterionIndex] = true
		}
	}

	var result GenerateTasksResult
	for i, criterion := range spec.AcceptanceCriteria {
		if covered[i] {
			result.Skipped++
			continue
		}
		task, err := svc.Store.CreateTask(ctx, project, store.CreateTaskParams{
			Title:          criterion,
			Description:    "From spec: " + spec.Title,
			SpecID:         specID,
			Priority:       spec.Priority,
			CriterionIndex: i,
		})
		if err != nil {
			// Partial success: report what landed before the failure.
			return result, err
		}
		svc.publish(ctx, store.Event{
			Type: store.EventTaskCreated, Project: project,
			EntityKind: "task", EntityID: task.ID,
		})
		result.Created = append(result.Created, task)
	}
	return result, nil
}

// WipStatus reports board occupancy.
func (svc *Services) WipStatus(ctx context.Context, project string) ([]kanban.ColumnStatus, error) {
	return svc.Board.WipStatus(ctx, project)
}

// SetWipLimit changes a column limit and triggers a board refresh.
func (svc *Services) SetWipLimit(ctx context.Context, project, column string, limit int64) error {
	if err := svc.Store.SetWipLimit(ctx, project, column, limit); err != nil {
		return err
	}
	svc.publish(ctx, store.Event{Type: store.EventBoardRefresh, Project: project})
	return nil
}

// GetBoard assembles the full board view.
func (svc *Services) GetBoard(ctx context.Context, project string) ([]kanban.BoardColumn, error) {
	return svc.Board.Board(ctx, project)
}

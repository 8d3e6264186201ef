package store

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/cwa/internal/cwerr"
)

// positionGap is the spacing between appended positions within a column.
// Drag-and-drop inserts renumber sparsely inside the gaps; the column is
// compacted when two neighbors saturate.
const positionGap = 1000

// statusField is the denormalized scalar kept beside the task document so
// index repair can read a task's column without decoding JSON.
const statusField = "status"

// CreateTaskParams holds the input for creating a task.
type CreateTaskParams struct {
	Title          string
	Description    string
	SpecID         string
	Priority       string
	CriterionIndex int
}

// CreateTask writes a new task into backlog, appending it at the end of
// the column, and maintains all three indexes in one transaction.
func (s *Store) CreateTask(ctx context.Context, project string, p CreateTaskParams) (Task, error) {
	if p.Title == "" {
		return Task{}, cwerr.E(cwerr.InvalidArguments, "task title must not be empty")
	}
	if p.Priority == "" {
		p.Priority = "medium"
	}
	if !ValidEnum(p.Priority, Priorities) {
		return Task{}, cwerr.E(cwerr.InvalidArguments, "invalid priority %q", p.Priority)
	}

	position, err := s.NextPosition(ctx, project, "backlog")
	if err != nil {
		return Task{}, err
	}

	now := s.now()
	task := Task{
		ID:             NewID(),
		ProjectID:      project,
		SpecID:         p.SpecID,
		CriterionIndex: p.CriterionIndex,
		Title:          p.Title,
		Description:    p.Description,
		Status:         "backlog",
		Priority:       p.Priority,
		Position:       position,
		Version:        1,
		CreatedAt:      now.UTC().Format(timeLayout),
		UpdatedAt:      now.UTC().Format(timeLayout),
	}

	data, err := marshalDoc(task)
	if err != nil {
		return Task{}, err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := TaskKey(project, task.ID)
		pipe.HSet(ctx, key, dataField, data, statusField, task.Status)
		pipe.ZAdd(ctx, TasksAllKey(project), redis.Z{Score: float64(now.UnixNano()), Member: task.ID})
		pipe.ZAdd(ctx, TasksByStatusKey(project, task.Status), redis.Z{Score: float64(task.Position), Member: task.ID})
		if task.SpecID != "" {
			pipe.SAdd(ctx, TasksBySpecKey(project, task.SpecID), task.ID)
		}
		return nil
	})
	if err != nil {
		return Task{}, wrapErr(err, "creating task")
	}
	return task, nil
}

// GetTask loads a task by id.
func (s *Store) GetTask(ctx context.Context, project, id string) (Task, error) {
	return getDoc[Task](ctx, s, TaskKey(project, id), "task "+id)
}

// ListTasks returns every task in creation order.
func (s *Store) ListTasks(ctx context.Context, project string) ([]Task, error) {
	ids, err := s.rdb.ZRange(ctx, TasksAllKey(project), 0, -1).Result()
	if err != nil {
		return nil, wrapErr(err, "listing tasks")
	}
	return s.tasksByIDs(ctx, project, ids)
}

// ListTasksByStatus returns a column's tasks in position order.
func (s *Store) ListTasksByStatus(ctx context.Context, project, status string) ([]Task, error) {
	if !ValidEnum(status, TaskStatuses) {
		return nil, cwerr.E(cwerr.InvalidArguments, "unknown status %q", status)
	}
	ids, err := s.rdb.ZRange(ctx, TasksByStatusKey(project, status), 0, -1).Result()
	if err != nil {
		return nil, wrapErr(err, "listing %s tasks", status)
	}
	return s.tasksByIDs(ctx, project, ids)
}

// ListTasksBySpec returns the tasks implementing a spec.
func (s *Store) ListTasksBySpec(ctx context.Context, project, specID string) ([]Task, error) {
	ids, err := s.rdb.SMembers(ctx, TasksBySpecKey(project, specID)).Result()
	if err != nil {
		return nil, wrapErr(err, "listing tasks for spec %s", specID)
	}
	return s.tasksByIDs(ctx, project, ids)
}

// CountTasksByStatus returns a column's occupancy.
func (s *Store) CountTasksByStatus(ctx context.Context, project, status string) (int64, error) {
	n, err := s.rdb.ZCard(ctx, TasksByStatusKey(project, status)).Result()
	if err != nil {
		return 0, wrapErr(err, "counting %s tasks", status)
	}
	return n, nil
}

// NextPosition returns the append position for a column (max + gap).
func (s *Store) NextPosition(ctx context.Context, project, status string) (int64, error) {
	top, err := s.rdb.ZRevRangeWithScores(ctx, TasksByStatusKey(project, status), 0, 0).Result()
	if err != nil {
		return 0, wrapErr(err, "reading %s positions", status)
	}
	if len(top) == 0 {
		return positionGap, nil
	}
	return int64(top[0].Score) + positionGap, nil
}

// UpdateTask applies a partial update under CAS, keeping the status
// indexes consistent with the document in the same transaction.
func (s *Store) UpdateTask(ctx context.Context, project, id string, mutate func(Task) (Task, error)) (Task, error) {
	var previousStatus string
	return updateDoc(ctx, s, TaskKey(project, id), "task "+id,
		func(task Task) (Task, error) {
			previousStatus = task.Status
			previousVersion := task.Version
			// UpdatedAt is set before mutate runs so callbacks can stamp
			// started_at/completed_at from it.
			task.UpdatedAt = s.nowRFC3339()
			updated, err := mutate(task)
			if err != nil {
				return task, err
			}
			updated.Version = previousVersion + 1
			return updated, nil
		},
		func(pipe redis.Pipeliner, updated Task) error {
			pipe.HSet(ctx, TaskKey(project, id), statusField, updated.Status)
			if updated.Status != previousStatus {
				pipe.ZRem(ctx, TasksByStatusKey(project, previousStatus), id)
			}
			pipe.ZAdd(ctx, TasksByStatusKey(project, updated.Status), redis.Z{
				Score:  float64(updated.Position),
				Member: id,
			})
			return nil
		})
}

// RenumberColumn rewrites a column's positions with fresh gaps, in the
// given order. Used when insertion saturates the gap between neighbors.
func (s *Store) RenumberColumn(ctx context.Context, project, status string, orderedIDs []string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range orderedIDs {
			position := int64(i+1) * positionGap
			pipe.ZAdd(ctx, TasksByStatusKey(project, status), redis.Z{Score: float64(position), Member: id})
		}
		return nil
	})
	if err != nil {
		return wrapErr(err, "renumbering %s", status)
	}
	// Rewrite the documents' positions to match the index.
	for i, id := range orderedIDs {
		position := int64(i+1) * positionGap
		if _, err := s.UpdateTask(ctx, project, id, func(t Task) (Task, error) {
			t.Position = position
			return t, nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// --- WIP limits ---

// DefaultWipLimits are the documented column defaults. Absent entries
// (backlog, done) encode an unlimited column.
var DefaultWipLimits = map[string]int64{
	"todo":        5,
	"in_progress": 1,
	"review":      2,
}

// GetWipLimits returns the project's configured limits, falling back to
// the defaults when the hash has never been written.
func (s *Store) GetWipLimits(ctx context.Context, project string) (map[string]int64, error) {
	raw, err := s.rdb.HGetAll(ctx, KanbanWipKey(project)).Result()
	if err != nil {
		return nil, wrapErr(err, "reading WIP limits")
	}
	if len(raw) == 0 {
		limits := make(map[string]int64, len(DefaultWipLimits))
		for column, limit := range DefaultWipLimits {
			limits[column] = limit
		}
		return limits, nil
	}
	limits := make(map[string]int64, len(raw))
	for column, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		limits[column] = n
	}
	return limits, nil
}

// SetWipLimit sets or clears (limit <= 0) a column's WIP limit.
func (s *Store) SetWipLimit(ctx context.Context, project, column string, limit int64) error {
	if !ValidEnum(column, TaskStatuses) {
		return cwerr.E(cwerr.InvalidArguments, "unknown column %q", column)
	}
	// First write materializes the defaults so a partial override doesn't
	// silently lift the other columns' limits.
	existing, err := s.rdb.Exists(ctx, KanbanWipKey(project)).Result()
	if err != nil {
		return wrapErr(err, "reading WIP limits")
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if existing == 0 {
			for col, l := range DefaultWipLimits {
				pipe.HSet(ctx, KanbanWipKey(project), col, strconv.FormatInt(l, 10))
			}
		}
		if limit <= 0 {
			pipe.HDel(ctx, KanbanWipKey(project), column)
		} else {
			pipe.HSet(ctx, KanbanWipKey(project), column, strconv.FormatInt(limit, 10))
		}
		return nil
	})
	if err != nil {
		return wrapErr(err, "setting WIP limit for %s", column)
	}
	return nil
}

func (s *Store) tasksByIDs(ctx context.Context, project string, ids []string) ([]Task, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = TaskKey(project, id)
	}
	return getDocs[Task](ctx, s, keys, "tasks")
}

// Package kanban implements the task state machine: workflow transitions,
// WIP-limit enforcement, and intra-column ordering.
//
// The column graph is linear (backlog → todo → in_progress → review → done)
// but transitions may skip forward or move backward. Every move into a
// column with a finite WIP limit is checked against the column's occupancy
// and rejected with WipExceeded when full — no silent no-ops.
package kanban

import (
	"context"

	"github.com/HendryAvila/cwa/internal/cwerr"
	"github.com/HendryAvila/cwa/internal/store"
)

// Columns in board order.
var Columns = []string{"backlog", "todo", "in_progress", "review", "done"}

// Machine owns transition validation and move execution against the
// primary store.
type Machine struct {
	store *store.Store
}

// New creates a Machine on the given store.
func New(s *store.Store) *Machine {
	return &Machine{store: s}
}

// ValidateTransition checks a move for state-machine legality, ignoring
// WIP (capacity is checked at move time against live occupancy).
func ValidateTransition(from, to string) error {
	if !store.ValidEnum(to, store.TaskStatuses) {
		return cwerr.E(cwerr.InvalidTransition, "unknown target status %q", to)
	}
	if !store.ValidEnum(from, store.TaskStatuses) {
		return cwerr.E(cwerr.InvalidTransition, "unknown source status %q", from)
	}
	// done is terminal: re-opening goes to in_progress or review only.
	if from == "done" && to != "in_progress" && to != "review" && to != "done" {
		return cwerr.E(cwerr.InvalidTransition, "done tasks re-open to in_progress or review, not %q", to)
	}
	return nil
}

// MoveResult describes a committed transition.
type MoveResult struct {
	Task store.Task
	From string
	To   string
}

// Move transitions a task to a new column, enforcing the target column's
// WIP limit and assigning a display position. insertIndex < 0 appends;
// otherwise the task lands at that index within the target column
// (drag-and-drop), renumbering sparsely when the gap saturates.
func (m *Machine) Move(ctx context.Context, project, taskID, to string, insertIndex int) (MoveResult, error) {
	task, err := m.store.GetTask(ctx, project, taskID)
	if err != nil {
		return MoveResult{}, err
	}
	from := task.Status
	if err := ValidateTransition(from, to); err != nil {
		return MoveResult{}, err
	}

	// Capacity check applies when the task enters a different column.
	if from != to {
		if err := m.checkCapacity(ctx, project, to); err != nil {
			return MoveResult{}, err
		}
	}

	position, err := m.positionFor(ctx, project, to, taskID, insertIndex)
	if err != nil {
		return MoveResult{}, err
	}

	updated, err := m.store.UpdateTask(ctx, project, taskID, func(t store.Task) (store.Task, error) {
		// Re-validate against the live document: the CAS loop may observe
		// a newer status than the read above.
		if err := ValidateTransition(t.Status, to); err != nil {
			return t, err
		}
		if t.Status == "done" && to == "done" {
			return t, cwerr.E(cwerr.InvalidTransition, "task %s is already done", taskID)
		}
		t.Status = to
		t.Position = position
		if to == "in_progress" && t.StartedAt == "" {
			t.StartedAt = t.UpdatedAt
		}
		if to == "done" {
			t.CompletedAt = t.UpdatedAt
		}
		return t, nil
	})
	if err != nil {
		return MoveResult{}, err
	}
	return MoveResult{Task: updated, From: from, To: to}, nil
}

// checkCapacity fails with WipExceeded when the target column is full.
func (m *Machine) checkCapacity(ctx context.Context, project, column string) error {
	limits, err := m.store.GetWipLimits(ctx, project)
	if err != nil {
		return err
	}
	limit, bounded := limits[column]
	if !bounded {
		return nil
	}
	count, err := m.store.CountTasksByStatus(ctx, project, column)
	if err != nil {
		return err
	}
	if count >= limit {
		return cwerr.E(cwerr.WipExceeded, "column %s is at its WIP limit (%d/%d)", column, count, limit).
			WithData("column", column).
			WithData("limit", limit)
	}
	return nil
}

// positionFor computes the target position: append when insertIndex < 0,
// otherwise midway between the neighbors at the insertion point. When the
// gap between neighbors has saturated, the column is renumbered first.
func (m *Machine) positionFor(ctx context.Context, project, column, taskID string, insertIndex int) (int64, error) {
	if insertIndex < 0 {
		return m.store.NextPosition(ctx, project, column)
	}
	tasks, err := m.store.ListTasksByStatus(ctx, project, column)
	if err != nil {
		return 0, err
	}
	// The moving task may already be in this column (reorder); drop it.
	peers := tasks[:0:0]
	for _, t := range tasks {
		if t.ID != taskID {
			peers = append(peers, t)
		}
	}
	if insertIndex >= len(peers) {
		return m.store.NextPosition(ctx, project, column)
	}

	var before, after int64
	after = peers[insertIndex].Position
	if insertIndex == 0 {
		before = 0
	} else {
		before = peers[insertIndex-1].Position
	}
	if after-before > 1 {
		return before + (after-before)/2, nil
	}

	// Gap saturated: compact the column, then insert into the fresh gaps.
	ids := make([]string, len(peers))
	for i, t := range peers {
		ids[i] = t.ID
	}
	if err := m.store.RenumberColumn(ctx, project, column, ids); err != nil {
		return 0, err
	}
	peers, err = m.store.ListTasksByStatus(ctx, project, column)
	if err != nil {
		return 0, err
	}
	after = peers[insertIndex].Position
	if insertIndex == 0 {
		before = 0
	} else {
		before = peers[insertIndex-1].Position
	}
	return before + (after-before)/2, nil
}

// ColumnStatus is a column's occupancy against its limit. Limit 0 means
// unlimited.
type ColumnStatus struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
	Limit int64  `json:"limit,omitempty"`
}

// WipStatus reports every column's occupancy in board order.
func (m *Machine) WipStatus(ctx context.Context, project string) ([]ColumnStatus, error) {
	limits, err := m.store.GetWipLimits(ctx, project)
	if err != nil {
		return nil, err
	}
	status := make([]ColumnStatus, 0, len(Columns))
	for _, column := range Columns {
		count, err := m.store.CountTasksByStatus(ctx, project, column)
		if err != nil {
			return nil, err
		}
		status = append(status, ColumnStatus{Name: column, Count: count, Limit: limits[column]})
	}
	return status, nil
}

// BoardColumn is one column of the assembled board view.
type BoardColumn struct {
	Name  string       `json:"name"`
	Limit int64        `json:"limit,omitempty"`
	Tasks []store.Task `json:"tasks"`
}

// Board assembles the full board: columns in order, tasks in position
// order. The read spans many keys non-transactionally; a concurrent move
// may appear in neither or both columns momentarily (documented).
func (m *Machine) Board(ctx context.Context, project string) ([]BoardColumn, error) {
	limits, err := m.store.GetWipLimits(ctx, project)
	if err != nil {
		return nil, err
	}
	board := make([]BoardColumn, 0, len(Columns))
	for _, column := range Columns {
		tasks, err := m.store.ListTasksByStatus(ctx, project, column)
		if err != nil {
			return nil, err
		}
		if tasks == nil {
			tasks = []store.Task{}
		}
		board = append(board, BoardColumn{Name: column, Limit: limits[column], Tasks: tasks})
	}
	return board, nil
}

package kanban

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/cwa/internal/cwerr"
	"github.com/HendryAvila/cwa/internal/store"
)

func newTestMachine(t *testing.T) (*Machine, *store.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := store.NewWithClient(rdb)
	return New(s), s
}

func createTask(t *testing.T, s *store.Store, title string) store.Task {
	t.Helper()
	task, err := s.CreateTask(context.Background(), "demo", store.CreateTaskParams{Title: title, CriterionIndex: -1})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	return task
}

// --- ValidateTransition ---

func TestValidateTransition(t *testing.T) {
	cases := []struct {
		from, to string
		wantKind cwerr.Kind
	}{
		{"backlog", "todo", ""},
		{"backlog", "done", ""},     // forward skip allowed
		{"review", "todo", ""},      // backward allowed
		{"done", "in_progress", ""}, // re-open
		{"done", "review", ""},      // re-open
		{"done", "backlog", cwerr.InvalidTransition},
		{"done", "todo", cwerr.InvalidTransition},
		{"todo", "shipping", cwerr.InvalidTransition},
		{"nowhere", "todo", cwerr.InvalidTransition},
	}
	for _, tc := range cases {
		err := ValidateTransition(tc.from, tc.to)
		if tc.wantKind == "" {
			if err != nil {
				t.Errorf("%s→%s: unexpected error %v", tc.from, tc.to, err)
			}
		} else if !cwerr.IsKind(err, tc.wantKind) {
			t.Errorf("%s→%s: got %v, want %s", tc.from, tc.to, err, tc.wantKind)
		}
	}
}

// --- Move + WIP ---

func TestMove_WipExceededLeavesTaskUnchanged(t *testing.T) {
	m, s := newTestMachine(t)
	ctx := context.Background()

	first := createTask(t, s, "first")
	second := createTask(t, s, "second")

	if _, err := m.Move(ctx, "demo", first.ID, "in_progress", -1); err != nil {
		t.Fatalf("first move failed: %v", err)
	}
	// in_progress default limit is 1.
	_, err := m.Move(ctx, "demo", second.ID, "in_progress", -1)
	if !cwerr.IsKind(err, cwerr.WipExceeded) {
		t.Fatalf("second move = %v, want WipExceeded", err)
	}

	got, _ := s.GetTask(ctx, "demo", second.ID)
	if got.Status != "backlog" {
		t.Errorf("status after rejected move = %s, want backlog", got.Status)
	}
}

func TestMove_PublishesNothingItselfButReturnsFromTo(t *testing.T) {
	m, s := newTestMachine(t)
	task := createTask(t, s, "x")

	res, err := m.Move(context.Background(), "demo", task.ID, "todo", -1)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}
	if res.From != "backlog" || res.To != "todo" {
		t.Errorf("from/to = %s/%s", res.From, res.To)
	}
}

func TestMove_StampsStartedAndCompleted(t *testing.T) {
	m, s := newTestMachine(t)
	ctx := context.Background()
	task := createTask(t, s, "x")

	res, err := m.Move(ctx, "demo", task.ID, "in_progress", -1)
	if err != nil {
		t.Fatalf("move to in_progress failed: %v", err)
	}
	if res.Task.StartedAt == "" {
		t.Error("StartedAt not stamped on first entry to in_progress")
	}

	res, err = m.Move(ctx, "demo", task.ID, "done", -1)
	if err != nil {
		t.Fatalf("move to done failed: %v", err)
	}
	if res.Task.CompletedAt == "" {
		t.Error("CompletedAt not stamped on done")
	}
}

func TestMove_UnknownTask(t *testing.T) {
	m, _ := newTestMachine(t)
	_, err := m.Move(context.Background(), "demo", "ghost", "todo", -1)
	if !cwerr.IsKind(err, cwerr.NotFound) {
		t.Errorf("unknown task = %v, want NotFound", err)
	}
}

func TestMove_RaisedLimitAllowsSecond(t *testing.T) {
	m, s := newTestMachine(t)
	ctx := context.Background()

	first := createTask(t, s, "a")
	second := createTask(t, s, "b")

	_, _ = m.Move(ctx, "demo", first.ID, "in_progress", -1)
	if err := s.SetWipLimit(ctx, "demo", "in_progress", 2); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Move(ctx, "demo", second.ID, "in_progress", -1); err != nil {
		t.Errorf("move under raised limit failed: %v", err)
	}
}

// --- Positions ---

func TestMove_InsertAtIndexOrdersColumn(t *testing.T) {
	m, s := newTestMachine(t)
	ctx := context.Background()

	a := createTask(t, s, "a")
	b := createTask(t, s, "b")
	c := createTask(t, s, "c")

	// Build todo = [a, b] then insert c between them.
	_, _ = m.Move(ctx, "demo", a.ID, "todo", -1)
	_, _ = m.Move(ctx, "demo", b.ID, "todo", -1)
	if _, err := m.Move(ctx, "demo", c.ID, "todo", 1); err != nil {
		t.Fatalf("insert move failed: %v", err)
	}

	todo, _ := s.ListTasksByStatus(ctx, "demo", "todo")
	order := []string{todo[0].Title, todo[1].Title, todo[2].Title}
	if order[0] != "a" || order[1] != "c" || order[2] != "b" {
		t.Errorf("column order = %v, want [a c b]", order)
	}
}

func TestMove_InsertAtZeroGoesFirst(t *testing.T) {
	m, s := newTestMachine(t)
	ctx := context.Background()

	a := createTask(t, s, "a")
	b := createTask(t, s, "b")
	_, _ = m.Move(ctx, "demo", a.ID, "todo", -1)
	if _, err := m.Move(ctx, "demo", b.ID, "todo", 0); err != nil {
		t.Fatalf("insert at 0 failed: %v", err)
	}

	todo, _ := s.ListTasksByStatus(ctx, "demo", "todo")
	if todo[0].Title != "b" {
		t.Errorf("first task = %s, want b", todo[0].Title)
	}
}

// --- WIP status & board ---

func TestWipStatus_Scenario(t *testing.T) {
	m, s := newTestMachine(t)
	ctx := context.Background()

	t1 := createTask(t, s, "T1")
	createTask(t, s, "T2")

	_, _ = m.Move(ctx, "demo", t1.ID, "todo", -1)
	_, _ = m.Move(ctx, "demo", t1.ID, "in_progress", -1)

	status, err := m.WipStatus(ctx, "demo")
	if err != nil {
		t.Fatalf("WipStatus failed: %v", err)
	}
	byName := make(map[string]ColumnStatus)
	for _, cs := range status {
		byName[cs.Name] = cs
	}
	if byName["in_progress"].Count != 1 || byName["in_progress"].Limit != 1 {
		t.Errorf("in_progress = %+v, want 1/1", byName["in_progress"])
	}
	if byName["todo"].Count != 0 || byName["todo"].Limit != 5 {
		t.Errorf("todo = %+v, want 0/5", byName["todo"])
	}
	if byName["review"].Count != 0 || byName["review"].Limit != 2 {
		t.Errorf("review = %+v, want 0/2", byName["review"])
	}
}

func TestBoard_ColumnsInOrder(t *testing.T) {
	m, s := newTestMachine(t)
	createTask(t, s, "only")

	board, err := m.Board(context.Background(), "demo")
	if err != nil {
		t.Fatalf("Board failed: %v", err)
	}
	if len(board) != 5 {
		t.Fatalf("columns = %d, want 5", len(board))
	}
	for i, column := range Columns {
		if board[i].Name != column {
			t.Errorf("column[%d] = %s, want %s", i, board[i].Name, column)
		}
	}
	if len(board[0].Tasks) != 1 {
		t.Errorf("backlog tasks = %d, want 1", len(board[0].Tasks))
	}
	if board[2].Limit != 1 {
		t.Errorf("in_progress limit = %d, want 1", board[2].Limit)
	}
}

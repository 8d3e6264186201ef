package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/cwa/internal/cwerr"
	"github.com/HendryAvila/cwa/internal/kanban"
	"github.com/HendryAvila/cwa/internal/memory"
	"github.com/HendryAvila/cwa/internal/store"
)

func newTestServices(t *testing.T) (*Services, *store.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := store.NewWithClient(rdb)
	board := kanban.New(s)
	mem := memory.New(s, nil, nil, nil) // keyword-only memory
	return New(s, board, mem), s
}

// Bootstrap flow: init, create a spec, generate tasks, enforce WIP.
func TestBootstrapAndFirstTask_Scenario(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()

	if _, err := svc.InitProject(ctx, "demo", "demo", "", nil); err != nil {
		t.Fatalf("InitProject failed: %v", err)
	}

	spec, err := svc.CreateSpec(ctx, "demo", store.CreateSpecParams{
		Title:              "Auth",
		Priority:           "high",
		AcceptanceCriteria: []string{"User can register", "User can login"},
	})
	if err != nil {
		t.Fatalf("CreateSpec failed: %v", err)
	}

	generated, err := svc.GenerateTasks(ctx, "demo", spec.ID)
	if err != nil {
		t.Fatalf("GenerateTasks failed: %v", err)
	}
	if len(generated.Created) != 2 {
		t.Fatalf("created = %d, want 2", len(generated.Created))
	}
	for _, task := range generated.Created {
		if task.Status != "backlog" {
			t.Errorf("task %s status = %s, want backlog", task.ID, task.Status)
		}
	}

	t1, t2 := generated.Created[0], generated.Created[1]

	if _, err := svc.MoveTask(ctx, "demo", t1.ID, "todo", -1); err != nil {
		t.Fatalf("move to todo failed: %v", err)
	}
	if _, err := svc.MoveTask(ctx, "demo", t1.ID, "in_progress", -1); err != nil {
		t.Fatalf("move to in_progress failed: %v", err)
	}

	status, err := svc.WipStatus(ctx, "demo")
	if err != nil {
		t.Fatalf("WipStatus failed: %v", err)
	}
	byName := map[string]kanban.ColumnStatus{}
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

	_, err = svc.MoveTask(ctx, "demo", t2.ID, "in_progress", -1)
	if !cwerr.IsKind(err, cwerr.WipExceeded) {
		t.Errorf("second in_progress move = %v, want WipExceeded", err)
	}
}

// Generating twice creates tasks once: the second run skips every criterion.
func TestGenerateTasks_Idempotent(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()

	spec, _ := svc.CreateSpec(ctx, "demo", store.CreateSpecParams{
		Title:              "Auth",
		AcceptanceCriteria: []string{"a", "b", "c"},
	})

	first, err := svc.GenerateTasks(ctx, "demo", spec.ID)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if len(first.Created) != 3 || first.Skipped != 0 {
		t.Errorf("first run = %d created, %d skipped", len(first.Created), first.Skipped)
	}

	second, err := svc.GenerateTasks(ctx, "demo", spec.ID)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if len(second.Created) != 0 || second.Skipped != 3 {
		t.Errorf("second run = %d created, %d skipped, want 0/3", len(second.Created), second.Skipped)
	}
}

func TestGenerateTasks_CoversNewCriteria(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()

	spec, _ := svc.CreateSpec(ctx, "demo", store.CreateSpecParams{
		Title: "Auth", AcceptanceCriteria: []string{"a"},
	})
	_, _ = svc.GenerateTasks(ctx, "demo", spec.ID)
	_, _ = svc.AddAcceptanceCriteria(ctx, "demo", spec.ID, []string{"b"})

	run, err := svc.GenerateTasks(ctx, "demo", spec.ID)
	if err != nil {
		t.Fatalf("GenerateTasks failed: %v", err)
	}
	if len(run.Created) != 1 || run.Skipped != 1 {
		t.Errorf("run = %d created, %d skipped, want 1/1", len(run.Created), run.Skipped)
	}
	if run.Created[0].Title != "b" {
		t.Errorf("new task title = %s", run.Created[0].Title)
	}
}

// Archive with dependent tasks is rejected with the task ids attached.
func TestUpdateSpecStatus_ArchiveRejectedWithTasks(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()

	spec, _ := svc.CreateSpec(ctx, "demo", store.CreateSpecParams{
		Title: "Auth", AcceptanceCriteria: []string{"a"},
	})
	generated, _ := svc.GenerateTasks(ctx, "demo", spec.ID)

	_, err := svc.UpdateSpecStatus(ctx, "demo", spec.ID, "archived")
	if !cwerr.IsKind(err, cwerr.Conflict) {
		t.Fatalf("archive = %v, want Conflict", err)
	}
	data := cwerr.DataOf(err)
	ids, _ := data["task_ids"].([]string)
	if len(ids) != 1 || ids[0] != generated.Created[0].ID {
		t.Errorf("task_ids = %v", data["task_ids"])
	}
}

func TestUpdateSpecStatus_PublishesEvent(t *testing.T) {
	svc, s := newTestServices(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	spec, _ := svc.CreateSpec(ctx, "demo", store.CreateSpecParams{Title: "Auth"})

	sub, err := s.Subscribe(ctx, "demo")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer sub.Close()

	if _, err := svc.UpdateSpecStatus(ctx, "demo", spec.ID, "accepted"); err != nil {
		t.Fatalf("UpdateSpecStatus failed: %v", err)
	}

	select {
	case ev := <-sub.Events():
		if ev.Type != store.EventSpecUpdated || ev.EntityID != spec.ID {
			t.Errorf("event = %+v", ev)
		}
		if ev.Payload["status"] != "accepted" {
			t.Errorf("payload = %v", ev.Payload)
		}
	case <-ctx.Done():
		t.Fatal("no spec_updated event within deadline")
	}
}

func TestCreateTask_RejectsArchivedSpec(t *testing.T) {
	svc, s := newTestServices(t)
	ctx := context.Background()

	spec, _ := svc.CreateSpec(ctx, "demo", store.CreateSpecParams{Title: "Old"})
	_, _ = s.UpdateSpec(ctx, "demo", spec.ID, func(sp store.Spec) (store.Spec, error) {
		sp.Status = "archived"
		return sp, nil
	})

	_, err := svc.CreateTask(ctx, "demo", store.CreateTaskParams{Title: "x", SpecID: spec.ID})
	if !cwerr.IsKind(err, cwerr.InvalidArguments) {
		t.Errorf("task on archived spec = %v, want InvalidArguments", err)
	}
}

func TestCreateTask_UnknownSpec(t *testing.T) {
	svc, _ := newTestServices(t)
	_, err := svc.CreateTask(context.Background(), "demo", store.CreateTaskParams{Title: "x", SpecID: "ghost"})
	if !cwerr.IsKind(err, cwerr.NotFound) {
		t.Errorf("unknown spec = %v, want NotFound", err)
	}
}

func TestValidateSpec_FlagsVagueCriteria(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()

	spec, _ := svc.CreateSpec(ctx, "demo", store.CreateSpecParams{
		Title:              "Perf",
		Description:        "make it quick",
		AcceptanceCriteria: []string{"Page loads fast", "User can log out"},
	})
	issues, err := svc.ValidateSpec(ctx, "demo", spec.ID)
	if err != nil {
		t.Fatalf("ValidateSpec failed: %v", err)
	}
	found := false
	for _, issue := range issues {
		if issue.Field == "acceptance_criteria[0]" {
			found = true
		}
	}
	if !found {
		t.Errorf("vague criterion not flagged: %v", issues)
	}
}

func TestGetCurrentTask(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()

	if _, err := svc.GetCurrentTask(ctx, "demo"); !cwerr.IsKind(err, cwerr.NotFound) {
		t.Errorf("empty board current task = %v, want NotFound", err)
	}

	task, _ := svc.CreateTask(ctx, "demo", store.CreateTaskParams{Title: "x"})
	_, _ = svc.MoveTask(ctx, "demo", task.ID, "in_progress", -1)
	current, err := svc.GetCurrentTask(ctx, "demo")
	if err != nil {
		t.Fatalf("GetCurrentTask failed: %v", err)
	}
	if current.ID != task.ID {
		t.Errorf("current = %s, want %s", current.ID, task.ID)
	}
}

func TestContextMap_CycleWarning(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()

	a, _ := svc.CreateContext(ctx, "demo", "A", "")
	b, _ := svc.CreateContext(ctx, "demo", "B", "")
	if err := svc.RelateContexts(ctx, "demo", a.ID, b.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.RelateContexts(ctx, "demo", b.ID, a.ID); err != nil {
		t.Fatal(err)
	}

	cmap, err := svc.GetContextMap(ctx, "demo")
	if err != nil {
		t.Fatalf("GetContextMap failed: %v", err)
	}
	if len(cmap.Edges) != 2 {
		t.Errorf("edges = %v", cmap.Edges)
	}
	if len(cmap.Cycles) != 2 {
		t.Errorf("cycles = %v, want both contexts flagged", cmap.Cycles)
	}
}

func TestContextSummary(t *testing.T) {
	svc, _ := newTestServices(t)
	ctx := context.Background()

	_, _ = svc.InitProject(ctx, "demo", "Demo", "A demo", []string{"go"})
	_, _ = svc.CreateSpec(ctx, "demo", store.CreateSpecParams{Title: "Auth"})

	summary, err := svc.ContextSummary(ctx, "demo")
	if err != nil {
		t.Fatalf("ContextSummary failed: %v", err)
	}
	for _, want := range []string{"# Demo", "draft: 1", "## Board"} {
		if !strContains(summary, want) {
			t.Errorf("summary missing %q", want)
		}
	}
}

func strContains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}

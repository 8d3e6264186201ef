package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/HendryAvila/cwa/internal/kanban"
	"github.com/HendryAvila/cwa/internal/memory"
	"github.com/HendryAvila/cwa/internal/service"
	"github.com/HendryAvila/cwa/internal/store"
)

func newTestServer(t *testing.T) (*Server, *service.Services, *Broadcaster) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	s := store.NewWithClient(rdb)
	svc := service.New(s, kanban.New(s), memory.New(s, nil, nil, nil))
	broadcaster := NewBroadcaster()
	return NewServer(svc, broadcaster, "demo"), svc, broadcaster
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndListTasks(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/tasks", `{"title":"Build login"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created store.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("create body not JSON: %v", err)
	}
	if created.Status != "backlog" {
		t.Errorf("status = %s, want backlog", created.Status)
	}

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var tasks []store.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &tasks); err != nil {
		t.Fatalf("list body not JSON: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != created.ID {
		t.Errorf("tasks = %v", tasks)
	}
}

func TestCreateTask_EmptyTitleIs422(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/tasks", `{"title":""}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestUpdateTask_StatusThroughStateMachine(t *testing.T) {
	srv, svc, _ := newTestServer(t)
	ctx := context.Background()

	first, _ := svc.CreateTask(ctx, "demo", store.CreateTaskParams{Title: "a"})
	second, _ := svc.CreateTask(ctx, "demo", store.CreateTaskParams{Title: "b"})

	rec := doJSON(t, srv.Handler(), http.MethodPut, "/api/tasks/"+first.ID, `{"status":"in_progress"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("move status = %d, body %s", rec.Code, rec.Body.String())
	}

	// in_progress is full (limit 1): the second move maps to 409.
	rec = doJSON(t, srv.Handler(), http.MethodPut, "/api/tasks/"+second.ID, `{"status":"in_progress"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("wip-exceeded status = %d, want 409", rec.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["kind"] != "wip_exceeded" {
		t.Errorf("kind = %v", body["kind"])
	}
}

func TestUpdateTask_UnknownIs404(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodPut, "/api/tasks/ghost", `{"status":"todo"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestBoard_ShapeAndLimits(t *testing.T) {
	srv, svc, _ := newTestServer(t)
	_, _ = svc.CreateTask(context.Background(), "demo", store.CreateTaskParams{Title: "x"})

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/api/board", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Columns []struct {
			Name  string       `json:"name"`
			Limit int64        `json:"limit"`
			Tasks []store.Task `json:"tasks"`
		} `json:"columns"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if len(body.Columns) != 5 {
		t.Fatalf("columns = %d, want 5", len(body.Columns))
	}
	if body.Columns[0].Name != "backlog" || len(body.Columns[0].Tasks) != 1 {
		t.Errorf("backlog = %+v", body.Columns[0])
	}
	if body.Columns[2].Name != "in_progress" || body.Columns[2].Limit != 1 {
		t.Errorf("in_progress = %+v", body.Columns[2])
	}
}

func TestSpecEndpoints_GenerateTasks(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/specs",
		`{"title":"Auth","priority":"high","acceptance_criteria":["User can register","User can login"]}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create spec = %d, body %s", rec.Code, rec.Body.String())
	}
	var spec store.Spec
	_ = json.Unmarshal(rec.Body.Bytes(), &spec)

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/specs/"+spec.ID+"/generate-tasks", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("generate = %d, body %s", rec.Code, rec.Body.String())
	}
	var result service.GenerateTasksResult
	_ = json.Unmarshal(rec.Body.Bytes(), &result)
	if len(result.Created) != 2 {
		t.Errorf("created = %d, want 2", len(result.Created))
	}

	// Second run is idempotent.
	rec = doJSON(t, srv.Handler(), http.MethodPost, "/api/specs/"+spec.ID+"/generate-tasks", "")
	_ = json.Unmarshal(rec.Body.Bytes(), &result)
	if len(result.Created) != 0 || result.Skipped != 2 {
		t.Errorf("second run = %d created, %d skipped", len(result.Created), result.Skipped)
	}
}

func TestDecisionsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/api/decisions",
		`{"title":"Use Redis","rationale":"single source of truth","status":"accepted"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create decision = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, srv.Handler(), http.MethodGet, "/api/decisions", "")
	var decisions []store.Decision
	_ = json.Unmarshal(rec.Body.Bytes(), &decisions)
	if len(decisions) != 1 || decisions[0].Title != "Use Redis" {
		t.Errorf("decisions = %v", decisions)
	}
}

// --- Broadcaster ---

func TestBroadcaster_SequenceIncreases(t *testing.T) {
	b := NewBroadcaster()
	first := b.Broadcast(Message{Type: "BoardRefresh"})
	second := b.Broadcast(Message{Type: "BoardRefresh"})
	if second.Seq != first.Seq+1 {
		t.Errorf("seq %d then %d, want monotonic", first.Seq, second.Seq)
	}
}

func TestTranslate(t *testing.T) {
	msg, ok := translate(store.Event{Type: store.EventTaskMoved, EntityID: "t1",
		Payload: map[string]string{"from": "todo", "to": "done"}})
	if !ok || msg.Type != "TaskUpdated" {
		t.Errorf("task_moved → %+v, %v", msg, ok)
	}
	if msg.Payload["task_id"] != "t1" || msg.Payload["to"] != "done" {
		t.Errorf("payload = %v", msg.Payload)
	}

	if _, ok := translate(store.Event{Type: store.EventMemoryAdded}); ok {
		t.Error("memory events must not reach the board")
	}

	msg, ok = translate(store.Event{Type: store.EventSpecUpdated})
	if !ok || msg.Type != "BoardRefresh" {
		t.Errorf("spec_updated → %+v", msg)
	}
}

func TestWebsocket_ReceivesBroadcast(t *testing.T) {
	srv, _, broadcaster := newTestServer(t)
	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// Subscription registration races the dial; wait for it.
	deadline := time.Now().Add(2 * time.Second)
	for broadcaster.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if broadcaster.ClientCount() != 1 {
		t.Fatal("client never registered")
	}

	broadcaster.Broadcast(Message{Type: "BoardRefresh"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if msg.Type != "BoardRefresh" || msg.Seq == 0 {
		t.Errorf("message = %+v", msg)
	}
}

// End-to-end: a task move through the service layer reaches a websocket
// client via the event bus.
func TestEventBusToWebsocket(t *testing.T) {
	srv, svc, broadcaster := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = broadcaster.Run(ctx, svc.Store, "demo")
	}()
	// Give the bus subscription a moment to establish.
	time.Sleep(50 * time.Millisecond)

	httpSrv := httptest.NewServer(srv.Handler())
	defer httpSrv.Close()

	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for broadcaster.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	task, _ := svc.CreateTask(ctx, "demo", store.CreateTaskParams{Title: "x"})
	if _, err := svc.MoveTask(ctx, "demo", task.ID, "todo", -1); err != nil {
		t.Fatalf("move failed: %v", err)
	}

	// task_created → BoardRefresh, task_moved → TaskUpdated; accept both
	// and require the TaskUpdated to arrive.
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	sawTaskUpdated := false
	for i := 0; i < 3 && !sawTaskUpdated; i++ {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if msg.Type == "TaskUpdated" && msg.Payload["task_id"] == task.ID {
			sawTaskUpdated = true
		}
	}
	if !sawTaskUpdated {
		t.Error("TaskUpdated never arrived over the websocket")
	}
}

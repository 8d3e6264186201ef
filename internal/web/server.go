package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/HendryAvila/cwa/internal/cwerr"
	"github.com/HendryAvila/cwa/internal/service"
	"github.com/HendryAvila/cwa/internal/store"
)

// Server is the dashboard HTTP server.
type Server struct {
	svc         *service.Services
	broadcaster *Broadcaster
	project     string
	router      *gin.Engine
	upgrader    websocket.Upgrader
}

// NewServer creates the dashboard server over the shared service layer.
func NewServer(svc *service.Services, broadcaster *Broadcaster, project string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		svc:         svc,
		broadcaster: broadcaster,
		project:     project,
		router:      router,
		upgrader: websocket.Upgrader{
			// The dashboard is a local tool; the board is not a secret.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	api := router.Group("/api")
	{
		api.GET("/tasks", s.handleListTasks)
		api.POST("/tasks", s.handleCreateTask)
		api.GET("/tasks/:id", s.handleGetTask)
		api.PUT("/tasks/:id", s.handleUpdateTask)
		api.GET("/board", s.handleBoard)

		api.GET("/specs", s.handleListSpecs)
		api.POST("/specs", s.handleCreateSpec)
		api.GET("/specs/:id", s.handleGetSpec)
		api.POST("/specs/:id/generate-tasks", s.handleGenerateTasks)

		api.GET("/domains", s.handleDomains)
		api.GET("/decisions", s.handleListDecisions)
		api.POST("/decisions", s.handleCreateDecision)
		api.GET("/context/summary", s.handleContextSummary)
	}
	router.GET("/ws", s.handleWS)

	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// fail maps a service error onto the conventional status codes.
func fail(c *gin.Context, err error) {
	body := gin.H{
		"kind":    string(cwerr.KindOf(err)),
		"message": err.Error(),
	}
	if data := cwerr.DataOf(err); data != nil {
		body["data"] = data
	}
	c.JSON(cwerr.HTTPStatus(err), body)
}

// --- Tasks ---

func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.svc.ListTasks(c.Request.Context(), s.project, c.Query("status"))
	if err != nil {
		fail(c, err)
		return
	}
	if tasks == nil {
		tasks = []store.Task{}
	}
	c.JSON(http.StatusOK, tasks)
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SpecID      string `json:"spec_id"`
	Priority    string `json:"priority"`
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, cwerr.Wrap(cwerr.InvalidArguments, err, "invalid task body"))
		return
	}
	task, err := s.svc.CreateTask(c.Request.Context(), s.project, store.CreateTaskParams{
		Title:       req.Title,
		Description: req.Description,
		SpecID:      req.SpecID,
		Priority:    req.Priority,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.svc.GetTask(c.Request.Context(), s.project, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

type updateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
	Position    *int    `json:"position"`
}

// handleUpdateTask applies a partial update. A status change goes
// through the state machine (WIP limits included); field edits are
// plain CAS updates.
func (s *Server) handleUpdateTask(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, cwerr.Wrap(cwerr.InvalidArguments, err, "invalid task body"))
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	task, err := s.svc.GetTask(ctx, s.project, id)
	if err != nil {
		fail(c, err)
		return
	}
	if req.Title != nil || req.Description != nil || req.Priority != nil {
		task, err = s.svc.UpdateTaskFields(ctx, s.project, id, req.Title, req.Description, req.Priority)
		if err != nil {
			fail(c, err)
			return
		}
	}
	if req.Status != nil {
		position := -1
		if req.Position != nil {
			position = *req.Position
		}
		task, err = s.svc.MoveTask(ctx, s.project, id, *req.Status, position)
		if err != nil {
			fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleBoard(c *gin.Context) {
	columns, err := s.svc.GetBoard(c.Request.Context(), s.project)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"columns": columns})
}

// --- Specs ---

func (s *Server) handleListSpecs(c *gin.Context) {
	specs, err := s.svc.ListSpecs(c.Request.Context(), s.project)
	if err != nil {
		fail(c, err)
		return
	}
	if specs == nil {
		specs = []store.Spec{}
	}
	c.JSON(http.StatusOK, specs)
}

type createSpecRequest struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Priority           string   `json:"priority"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	Dependencies       []string `json:"dependencies"`
	ContextID          string   `json:"context_id"`
}

func (s *Server) handleCreateSpec(c *gin.Context) {
	var req createSpecRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, cwerr.Wrap(cwerr.InvalidArguments, err, "invalid spec body"))
		return
	}
	spec, err := s.svc.CreateSpec(c.Request.Context(), s.project, store.CreateSpecParams{
		Title:              req.Title,
		Description:        req.Description,
		Priority:           req.Priority,
		AcceptanceCriteria: req.AcceptanceCriteria,
		Dependencies:       req.Dependencies,
		ContextID:          req.ContextID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, spec)
}

func (s *Server) handleGetSpec(c *gin.Context) {
	spec, err := s.svc.GetSpec(c.Request.Context(), s.project, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, spec)
}

func (s *Server) handleGenerateTasks(c *gin.Context) {
	result, err := s.svc.GenerateTasks(c.Request.Context(), s.project, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// --- Domains, decisions, context ---

func (s *Server) handleDomains(c *gin.Context) {
	model, err := s.svc.GetDomainModel(c.Request.Context(), s.project)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, model)
}

func (s *Server) handleListDecisions(c *gin.Context) {
	decisions, err := s.svc.ListDecisions(c.Request.Context(), s.project)
	if err != nil {
		fail(c, err)
		return
	}
	if decisions == nil {
		decisions = []store.Decision{}
	}
	c.JSON(http.StatusOK, decisions)
}

type createDecisionRequest struct {
	Title        string   `json:"title"`
	Rationale    string   `json:"rationale"`
	Alternatives []string `json:"alternatives"`
	Status       string   `json:"status"`
	Supersedes   string   `json:"supersedes"`
	SpecIDs      []string `json:"spec_ids"`
}

func (s *Server) handleCreateDecision(c *gin.Context) {
	var req createDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, cwerr.Wrap(cwerr.InvalidArguments, err, "invalid decision body"))
		return
	}
	decision, err := s.svc.AddDecision(c.Request.Context(), s.project, store.CreateDecisionParams{
		Title:        req.Title,
		Rationale:    req.Rationale,
		Alternatives: req.Alternatives,
		Status:       req.Status,
		Supersedes:   req.Supersedes,
		SpecIDs:      req.SpecIDs,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, decision)
}

func (s *Server) handleContextSummary(c *gin.Context) {
	summary, err := s.svc.ContextSummary(c.Request.Context(), s.project)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// --- Websocket ---

func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return // upgrader already wrote the error
	}
	defer logClose(conn)

	ch := s.broadcaster.Subscribe(conn)
	defer s.broadcaster.Unsubscribe(conn)

	// Reader goroutine: the dashboard never sends meaningful frames, but
	// reading drains pings and detects the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates concrete implementations and
// injects them into the tools and resources that depend on abstractions.
// No business logic lives here — only wiring. Optional subsystems (graph,
// vector, embedding) are nil-safe: if one fails to initialize, its tools
// degrade with clear Unavailable errors and everything else keeps working.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/cwa/internal/codegen"
	"github.com/HendryAvila/cwa/internal/config"
	"github.com/HendryAvila/cwa/internal/embedding"
	"github.com/HendryAvila/cwa/internal/graph"
	"github.com/HendryAvila/cwa/internal/kanban"
	"github.com/HendryAvila/cwa/internal/memory"
	"github.com/HendryAvila/cwa/internal/resources"
	"github.com/HendryAvila/cwa/internal/service"
	"github.com/HendryAvila/cwa/internal/store"
	"github.com/HendryAvila/cwa/internal/tools"
	vectorstore "github.com/HendryAvila/cwa/internal/vector"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Deps is everything the surfaces share, created once at process start:
// one primary-store pool, one graph driver, one vector client, one
// embedding client.
type Deps struct {
	Config      config.Config
	Store       *store.Store
	Services    *service.Services
	Memory      *memory.Service
	Graph       *graph.Projector
	GraphPing   service.Pinger
	VectorStore *vectorstore.Store
	Embedding   *embedding.Client
	Project     string
	Root        string
	Files       *config.FileStore
	cleanup     []func()
}

// NewDeps connects every backing client. The primary store is required;
// graph, vector, and embedding are best-effort (a warning is logged and
// the dependent capabilities degrade).
func NewDeps(ctx context.Context, cfg config.Config, project, projectRoot string) (*Deps, error) {
	primary, err := store.New(cfg.PrimaryStoreURL)
	if err != nil {
		return nil, err
	}
	if err := primary.Ping(ctx); err != nil {
		_ = primary.Close()
		return nil, err
	}

	deps := &Deps{
		Config:  cfg,
		Store:   primary,
		Project: project,
		Root:    projectRoot,
		Files:   config.NewFileStore(),
	}
	deps.cleanup = append(deps.cleanup, func() {
		if err := primary.Close(); err != nil {
			log.Printf("WARNING: primary store close: %v", err)
		}
	})

	// Embedding + vector are one capability: semantic search.
	var embedder memory.Embedder
	var index memory.VectorIndex
	embedClient := embedding.New(cfg.EmbeddingURL, cfg.EmbeddingModelID)
	deps.Embedding = embedClient

	host, port := splitHostPort(cfg.VectorStoreURL)
	vstore, verr := vectorstore.New(host, port, cfg.EmbeddingDim)
	if verr != nil {
		log.Printf("WARNING: vector store disabled: %v", verr)
	} else {
		if err := vstore.EnsureCollections(ctx); err != nil {
			log.Printf("WARNING: vector store disabled: %v", err)
			_ = vstore.Close()
		} else {
			embedder = embedClient
			index = vstore
			deps.VectorStore = vstore
			deps.cleanup = append(deps.cleanup, func() { _ = vstore.Close() })
		}
	}

	// Graph projector is optional the same way.
	graphClient, gerr := graph.NewClient(cfg.GraphStoreURL, cfg.GraphUser, cfg.GraphPassword)
	if gerr != nil {
		log.Printf("WARNING: graph projector disabled: %v", gerr)
	} else if err := graphClient.Ping(ctx); err != nil {
		log.Printf("WARNING: graph projector disabled: %v", err)
		_ = graphClient.Close(ctx)
	} else {
		deps.Graph = graph.NewProjector(graphClient, primary)
		deps.GraphPing = graphClient
		deps.cleanup = append(deps.cleanup, func() { _ = graphClient.Close(context.Background()) })
	}

	var remover memory.GraphRemover
	if deps.Graph != nil {
		remover = deps.Graph
	}
	deps.Memory = memory.New(primary, embedder, index, remover)
	deps.Services = service.New(primary, kanban.New(primary), deps.Memory)

	// .cwa/stack.json seeds the tech stack for projects that have none
	// yet (stack.json can exist on disk before the store knows the project).
	if stack, err := deps.Files.LoadStack(projectRoot); err == nil && len(stack.TechStack) > 0 {
		if proj, err := primary.GetProject(ctx, project); err == nil && len(proj.TechStack) == 0 {
			if _, err := primary.SetTechStack(ctx, project, stack.TechStack); err != nil {
				log.Printf("WARNING: seeding tech stack from stack.json: %v", err)
			}
		}
	}
	return deps, nil
}

// pingers returns the status probes as interfaces, keeping typed nils out
// of the interface values.
func (d *Deps) pingers() (graphPing, embedPing, vectorPing service.Pinger) {
	graphPing = d.GraphPing
	if d.Embedding != nil {
		embedPing = d.Embedding
	}
	if d.VectorStore != nil {
		vectorPing = d.VectorStore
	}
	return graphPing, embedPing, vectorPing
}

// Close releases every connection in reverse order.
func (d *Deps) Close() {
	for i := len(d.cleanup) - 1; i >= 0; i-- {
		d.cleanup[i]()
	}
}

// NewMCP builds the MCP server over the shared dependencies.
func NewMCP(deps *Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"cwa",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Project / context tools ---

	graphPing, embedPing, vectorPing := deps.pingers()
	projectTools := tools.NewProjectTools(deps.Services, deps.Project, graphPing, embedPing, vectorPing)
	s.AddTool(projectTools.GetProjectInfoDefinition(), projectTools.HandleGetProjectInfo)
	s.AddTool(projectTools.ContextSummaryDefinition(), projectTools.HandleContextSummary)
	s.AddTool(projectTools.TechStackDefinition(), projectTools.HandleTechStack)
	s.AddTool(projectTools.CacheStatusDefinition(), projectTools.HandleCacheStatus)

	// --- Spec tools ---

	specTools := tools.NewSpecTools(deps.Services, deps.Project)
	s.AddTool(specTools.GetSpecDefinition(), specTools.HandleGetSpec)
	s.AddTool(specTools.ListSpecsDefinition(), specTools.HandleListSpecs)
	s.AddTool(specTools.CreateSpecDefinition(), specTools.HandleCreateSpec)
	s.AddTool(specTools.UpdateSpecStatusDefinition(), specTools.HandleUpdateSpecStatus)
	s.AddTool(specTools.AddCriteriaDefinition(), specTools.HandleAddCriteria)
	s.AddTool(specTools.ValidateSpecDefinition(), specTools.HandleValidateSpec)

	// --- Task tools ---

	taskTools := tools.NewTaskTools(deps.Services, deps.Project)
	s.AddTool(taskTools.GetCurrentTaskDefinition(), taskTools.HandleGetCurrentTask)
	s.AddTool(taskTools.ListTasksDefinition(), taskTools.HandleListTasks)
	s.AddTool(taskTools.CreateTaskDefinition(), taskTools.HandleCreateTask)
	s.AddTool(taskTools.UpdateTaskStatusDefinition(), taskTools.HandleUpdateTaskStatus)
	s.AddTool(taskTools.GenerateTasksDefinition(), taskTools.HandleGenerateTasks)
	s.AddTool(taskTools.GetWipStatusDefinition(), taskTools.HandleGetWipStatus)
	s.AddTool(taskTools.SetWipLimitDefinition(), taskTools.HandleSetWipLimit)

	// --- Domain tools ---

	domainTools := tools.NewDomainTools(deps.Services, deps.Project)
	s.AddTool(domainTools.CreateContextDefinition(), domainTools.HandleCreateContext)
	s.AddTool(domainTools.CreateDomainObjectDefinition(), domainTools.HandleCreateDomainObject)
	s.AddTool(domainTools.GetDomainModelDefinition(), domainTools.HandleGetDomainModel)
	s.AddTool(domainTools.GetContextMapDefinition(), domainTools.HandleGetContextMap)
	s.AddTool(domainTools.GetGlossaryDefinition(), domainTools.HandleGetGlossary)
	s.AddTool(domainTools.AddGlossaryTermDefinition(), domainTools.HandleAddGlossaryTerm)

	// --- Decision tools ---

	decisionTools := tools.NewDecisionTools(deps.Services, deps.Project)
	s.AddTool(decisionTools.AddDecisionDefinition(), decisionTools.HandleAddDecision)
	s.AddTool(decisionTools.ListDecisionsDefinition(), decisionTools.HandleListDecisions)

	// --- Memory tools ---

	memoryTools := tools.NewMemoryTools(deps.Memory, deps.Project)
	s.AddTool(memoryTools.MemoryAddDefinition(), memoryTools.HandleMemoryAdd)
	s.AddTool(memoryTools.ObserveDefinition(), memoryTools.HandleObserve)
	s.AddTool(memoryTools.TimelineDefinition(), memoryTools.HandleTimeline)
	s.AddTool(memoryTools.MemoryGetDefinition(), memoryTools.HandleMemoryGet)
	s.AddTool(memoryTools.SemanticSearchDefinition(), memoryTools.HandleSemanticSearch)
	s.AddTool(memoryTools.HybridSearchDefinition(), memoryTools.HandleHybridSearch)
	s.AddTool(memoryTools.SearchMemoryDefinition(), memoryTools.HandleSearchMemory)
	s.AddTool(memoryTools.SearchAllDefinition(), memoryTools.HandleSearchAll)
	s.AddTool(memoryTools.DecayDefinition(), memoryTools.HandleDecay)
	s.AddTool(memoryTools.CompactDefinition(), memoryTools.HandleCompact)
	s.AddTool(memoryTools.SummarizeDefinition(), memoryTools.HandleSummarize)
	s.AddTool(memoryTools.NextStepsDefinition(), memoryTools.HandleNextSteps)

	// --- Graph tools ---
	//
	// Registered unconditionally: when the graph store is down the tools
	// answer with Unavailable rather than vanishing from the catalogue.

	graphTools := tools.NewGraphTools(deps.Graph, deps.Project)
	s.AddTool(graphTools.SyncDefinition(), graphTools.HandleSync)
	s.AddTool(graphTools.ImpactDefinition(), graphTools.HandleImpact)
	s.AddTool(graphTools.ExploreDefinition(), graphTools.HandleExplore)
	s.AddTool(graphTools.QueryDefinition(), graphTools.HandleQuery)
	s.AddTool(graphTools.HyperedgesDefinition(), graphTools.HandleHyperedges)

	// --- Codegen tools ---

	codegenTools := tools.NewCodegenTools(codegen.New(deps.Store), deps.Project, deps.Root)
	s.AddTool(codegenTools.AgentsDefinition(), codegenTools.HandleAgents)

	// --- Resources ---

	resourceHandler := resources.NewHandler(deps.Services, deps.Files, deps.Project, deps.Root)
	for _, def := range resourceHandler.All() {
		s.AddResource(def.Resource, def.Handle)
	}

	return s
}

// splitHostPort parses "host:port" with a qdrant-flavored default port.
func splitHostPort(addr string) (string, int) {
	addr = strings.TrimPrefix(strings.TrimPrefix(addr, "http://"), "https://")
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 6334
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 6334
	}
	return host, port
}

func serverInstructions() string {
	return fmt.Sprintf(`You have access to CWA, a project-knowledge coordination server.

CWA maintains a single source of truth for engineering knowledge — specs,
a kanban board with WIP limits, a domain model with bounded contexts, a
glossary, decisions, and a memory of development observations — and keeps
a graph projection and semantic index in sync behind it.

## Working the board

- Tasks flow backlog → todo → in_progress → review → done
- WIP limits are enforced: a move into a full column fails with a
  wip_exceeded error. Finish something before starting something new.
- Use get_wip_status to see occupancy, update_task_status to move tasks.

## Specs drive work

1. create_spec with REAL acceptance criteria (verifiable, no "fast"/"easy")
2. update_spec_status to accepted when the user signs off
3. generate_tasks creates one backlog task per criterion — it is
   idempotent, re-running skips criteria that already have tasks
4. Archiving a spec fails while tasks depend on it (conflict lists them)

## Memory discipline

- observe after meaningful events (bugfix, feature, discovery, decision)
- Browse cheaply with memory_timeline; fetch detail with memory_get only
  for the ids you need (progressive disclosure)
- Search: search_memory (keyword), memory_semantic_search (meaning),
  hybrid_search (blended, alpha defaults to 0.7)
- Periodically memory_decay then memory_compact to age out stale entries

## Graph

- graph_sync keeps the projection current; it is cheap to re-run
- graph_impact shows what a change touches; graph_query is raw Cypher

## Codegen

- codegen_agents compiles the knowledge base into .claude/ artifacts.
  Run with dry_run=true first to preview the file list.

Server version %s.`, Version)
}

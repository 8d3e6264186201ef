// CWA: project-knowledge coordination server.
//
// Maintains a consistent, queryable body of engineering knowledge —
// specs, kanban tasks, domain model, decisions, memories — in a primary
// key-value store, projects it into graph and vector indexes, and exposes
// it as an MCP tool server, a live dashboard, and generated artifacts.
//
// Usage:
//
//	cwa serve      # Start the MCP server (stdio transport)
//	cwa web        # Start the HTTP + websocket dashboard
//	cwa sync       # Synchronize the graph projection
//	cwa codegen    # Compile knowledge into .claude/ artifacts
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/cwa/internal/codegen"
	"github.com/HendryAvila/cwa/internal/config"
	"github.com/HendryAvila/cwa/internal/cwerr"
	"github.com/HendryAvila/cwa/internal/graph"
	cwaserver "github.com/HendryAvila/cwa/internal/server"
	"github.com/HendryAvila/cwa/internal/web"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	// MCP stdio owns stdout; all logging goes to stderr.
	log.SetOutput(os.Stderr)

	switch os.Args[1] {
	case "serve":
		exit(runServe())
	case "web":
		exit(runWeb())
	case "sync":
		exit(runSync(len(os.Args) > 2 && os.Args[2] == "--full"))
	case "codegen":
		exit(runCodegen(len(os.Args) > 2 && os.Args[2] == "--dry-run"))
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("cwa v%s\n", cwaserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(2)
	}
}

// exit maps an error onto the documented exit codes: 0 success,
// 1 unrecoverable, 2 misuse, 3 precondition failed.
func exit(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cwerr.ExitCode(err))
}

// projectID resolves the project namespace: CWA_PROJECT or the project
// root directory's base name.
func projectID(root string) string {
	if v := os.Getenv("CWA_PROJECT"); v != "" {
		return v
	}
	if base := filepath.Base(root); base != "." && base != string(filepath.Separator) {
		return base
	}
	return "default"
}

func setup(ctx context.Context) (*cwaserver.Deps, error) {
	cfg := config.FromEnv()
	root, err := config.FindProjectRoot()
	if err != nil {
		return nil, cwerr.Wrap(cwerr.Internal, err, "resolving project root")
	}
	return cwaserver.NewDeps(ctx, cfg, projectID(root), root)
}

func runServe() error {
	ctx, cancel := signalContext()
	defer cancel()

	deps, err := setup(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	// The incremental projector follows the event bus for as long as the
	// server runs. Failures degrade; they never stop the server.
	if deps.Graph != nil {
		go func() {
			if err := deps.Graph.Run(ctx, deps.Project); err != nil {
				log.Printf("WARNING: incremental graph projector stopped: %v", err)
			}
		}()
	}

	return mcpserver.ServeStdio(cwaserver.NewMCP(deps))
}

func runWeb() error {
	ctx, cancel := signalContext()
	defer cancel()

	deps, err := setup(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	broadcaster := web.NewBroadcaster()
	go func() {
		if err := broadcaster.Run(ctx, deps.Store, deps.Project); err != nil {
			log.Printf("WARNING: websocket broadcaster stopped: %v", err)
		}
	}()
	if deps.Graph != nil {
		go func() {
			if err := deps.Graph.Run(ctx, deps.Project); err != nil {
				log.Printf("WARNING: incremental graph projector stopped: %v", err)
			}
		}()
	}

	srv := web.NewServer(deps.Services, broadcaster, deps.Project)
	log.Printf("dashboard listening on http://%s", deps.Config.WebAddr)
	return srv.Run(deps.Config.WebAddr)
}

func runSync(full bool) error {
	ctx, cancel := signalContext()
	defer cancel()

	deps, err := setup(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	if deps.Graph == nil {
		return cwerr.E(cwerr.Unavailable, "graph store is not reachable")
	}
	var result graph.SyncResult
	if full {
		result, err = deps.Graph.Rebuild(ctx, deps.Project)
	} else {
		result, err = deps.Graph.Sync(ctx, deps.Project)
	}
	if err != nil {
		return err
	}
	fmt.Printf("nodes written: %d, skipped: %d, relationships: %d\n",
		result.NodesWritten, result.NodesSkipped, result.RelationshipsWritten)
	if result.DirtyRemaining > 0 {
		fmt.Printf("dirty entities awaiting retry: %d\n", result.DirtyRemaining)
	}
	return nil
}

func runCodegen(dryRun bool) error {
	ctx, cancel := signalContext()
	defer cancel()

	deps, err := setup(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	pipeline := codegen.New(deps.Store)
	if dryRun {
		result, err := pipeline.DryRun(ctx, deps.Project)
		if err != nil {
			return err
		}
		for kind, paths := range result.Paths {
			fmt.Printf("%s:\n", kind)
			for _, path := range paths {
				fmt.Printf("  %s\n", path)
			}
		}
		fmt.Printf("%d files would be written\n", result.Total)
		return nil
	}

	artifacts, err := pipeline.Generate(ctx, deps.Project)
	if err != nil {
		return err
	}
	applied, err := codegen.Apply(deps.Root, artifacts)
	for _, path := range applied.Written {
		fmt.Printf("wrote %s\n", path)
	}
	for _, path := range applied.Failed {
		fmt.Fprintf(os.Stderr, "failed %s\n", path)
	}
	return err
}

// signalContext cancels on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `CWA v%s — project-knowledge coordination server

Usage:
  cwa serve               Start the MCP server (stdio transport)
  cwa web                 Start the HTTP + websocket dashboard
  cwa sync [--full]       Synchronize the graph projection (--full rebuilds)
  cwa codegen [--dry-run] Compile knowledge into .claude/ artifacts

Environment:
  PRIMARY_STORE_URL   Redis URL                (default %s)
  GRAPH_STORE_URL     Neo4j bolt URL           (default %s)
  VECTOR_STORE_URL    Qdrant gRPC host:port    (default %s)
  EMBEDDING_URL       Embedding endpoint       (default %s)
  EMBEDDING_MODEL_ID  Embedding model          (default %s)
  WEB_URL             Dashboard listen address (default %s)
  CWA_PROJECT         Project namespace id     (default: project dir name)

MCP configuration:

  {
    "mcpServers": {
      "cwa": {
        "command": "cwa",
        "args": ["serve"]
      }
    }
  }
`, cwaserver.Version,
		config.DefaultPrimaryStoreURL, config.DefaultGraphStoreURL,
		config.DefaultVectorStoreURL, config.DefaultEmbeddingURL,
		config.DefaultEmbeddingModelID, config.DefaultWebAddr)
}

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/navihq/navi/internal/config"
	"github.com/navihq/navi/internal/dispatch"
	"github.com/navihq/navi/internal/orchestrator"
	"github.com/navihq/navi/internal/server"
	"github.com/navihq/navi/internal/state"
)

var (
	serveListen    string
	serveEphemeral bool
	serveRootTask  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the orchestrator server",
	Long: `Start the orchestrator and serve the tool endpoint and event stream.

Agent runtimes call POST /v1/tool with {session_id, tool, args}; UI
clients subscribe to GET /v1/events for the live event stream.

Examples:
  navi serve                       # SQLite-backed, default address
  navi serve --ephemeral           # In-memory store, state lost on exit
  navi serve --root-task "ship v2" # Also spawn a root session at startup`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Bind address (overrides config)")
	serveCmd.Flags().BoolVar(&serveEphemeral, "ephemeral", false, "Use an in-memory store instead of SQLite")
	serveCmd.Flags().StringVar(&serveRootTask, "root-task", "", "Spawn a root session with this task at startup")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if serveListen != "" {
		cfg.Server.Listen = serveListen
	}

	var store orchestrator.Store
	if serveEphemeral {
		store = state.NewMemory()
	} else {
		db, err := state.Open(cfg.State.DBPath)
		if err != nil {
			return fmt.Errorf("open state db: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return fmt.Errorf("migrate state db: %w", err)
		}
		store = db
	}

	logger, err := orchestrator.NewDebugLogger(cfg.Orchestrator.DebugLog)
	if err != nil {
		return err
	}

	orc := orchestrator.New(store,
		orchestrator.WithConfig(orchestrator.Config{
			MaxDepth:      cfg.Orchestrator.MaxDepth,
			MaxConcurrent: cfg.Orchestrator.MaxConcurrent,
			ArchiveDelay:  cfg.Orchestrator.ArchiveDelay,
		}),
		orchestrator.WithLogger(logger),
	)
	defer orc.Stop()

	srv, err := server.New(orc, dispatch.New(orc), server.Options{
		Listen:    cfg.Server.Listen,
		AuthToken: cfg.Server.AuthToken,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	if serveRootTask != "" {
		root, err := orc.SpawnRoot(orchestrator.SpawnConfig{
			Title: "root",
			Role:  "coordinator",
			Task:  serveRootTask,
		})
		if err != nil {
			return err
		}
		color.Green("spawned root session %s", root.ID)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	color.Cyan("navi serving on %s", cfg.Server.Listen)
	return srv.ListenAndServe(ctx)
}

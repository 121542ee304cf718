package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "navi",
	Short: "Fractal agent session orchestrator",
	Long: `Navi coordinates trees of agent sessions: any session can spawn child
sessions, escalate questions up the tree, share decisions and artifacts
tree-wide, and negotiate deliverables with its parent through a
draft/clarify/accept loop.

Core capabilities:
- Spawns child sessions with per-tree depth and concurrency limits
- Routes escalations from blocked sessions to their parents
- Serves bounded context queries (parent, siblings, decisions, artifacts)
- Runs the multi-round draft negotiation before a deliverable is final
- Streams every state change to UI clients over WebSocket`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

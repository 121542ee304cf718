package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/coder/websocket"
	"github.com/spf13/cobra"

	"github.com/navihq/navi/internal/config"
	"github.com/navihq/navi/internal/orchestrator"
	"github.com/navihq/navi/internal/tui"
)

var monitorAddr string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch a running server's session tree live",
	Long: `Attach to a running navi server's event stream and render the
session tree as it changes.

Examples:
  navi monitor                         # Use the configured server address
  navi monitor --addr 127.0.0.1:7431   # Attach to a specific server`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorAddr, "addr", "", "Server address (overrides config)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	addr := cfg.Server.Listen
	if monitorAddr != "" {
		addr = monitorAddr
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := &websocket.DialOptions{}
	if cfg.Server.AuthToken != "" {
		opts.HTTPHeader = http.Header{"Authorization": {"Bearer " + cfg.Server.AuthToken}}
	}

	ws, _, err := websocket.Dial(ctx, fmt.Sprintf("ws://%s/v1/events", addr), opts)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer ws.CloseNow()

	p := tea.NewProgram(tui.NewModel())
	go readEvents(ctx, ws, p)

	_, err = p.Run()
	return err
}

// readEvents decodes broadcast envelopes and forwards orchestrator
// events into the TUI program.
func readEvents(ctx context.Context, ws *websocket.Conn, p *tea.Program) {
	type envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			p.Send(tui.DisconnectedMsg{Err: err})
			return
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		if env.Type != "event" {
			continue
		}

		var ev orchestrator.Event
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			continue
		}
		p.Send(tui.EventMsg(ev))
	}
}

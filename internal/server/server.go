// Package server exposes the orchestrator over HTTP: a tool-call
// endpoint for agent runtimes, a tree snapshot endpoint, and a WebSocket
// event stream for UI clients.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/navihq/navi/internal/dispatch"
	"github.com/navihq/navi/internal/orchestrator"
)

// Options configures the server.
type Options struct {
	// Listen is the address to bind, e.g. "127.0.0.1:7431".
	Listen string
	// AuthToken, when set, is required as a bearer token on every request.
	AuthToken string
	// Launcher receives spawned sessions. Defaults to LogLauncher.
	Launcher Launcher
}

// Server wires the dispatcher and orchestrator to HTTP and WS clients.
type Server struct {
	orc         *orchestrator.Orchestrator
	disp        *dispatch.Dispatcher
	hub         *Hub
	watcher     *ArtifactWatcher
	launcher    Launcher
	authToken   string
	httpServer  *http.Server
	unsubscribe func()
}

// New creates a Server subscribed to the orchestrator's event stream.
func New(orc *orchestrator.Orchestrator, disp *dispatch.Dispatcher, opts Options) (*Server, error) {
	s := &Server{
		orc:       orc,
		disp:      disp,
		hub:       NewHub(),
		launcher:  opts.Launcher,
		authToken: opts.AuthToken,
	}
	if s.launcher == nil {
		s.launcher = LogLauncher{}
	}

	watcher, err := NewArtifactWatcher(func(path string) {
		s.hub.Broadcast(wsEnvelope{Type: "artifact_changed", Data: map[string]string{"path": path}})
	})
	if err != nil {
		return nil, err
	}
	s.watcher = watcher

	s.unsubscribe = orc.Subscribe(s.handleEvent)
	s.httpServer = &http.Server{Addr: opts.Listen, Handler: s.Routes()}
	return s, nil
}

// handleEvent relays every orchestrator event to WS clients, starts the
// launcher for spawns, and registers artifact paths with the watcher.
func (s *Server) handleEvent(ev orchestrator.Event) {
	s.hub.Broadcast(wsEnvelope{Type: "event", Data: ev})

	switch ev.Type {
	case orchestrator.EventSpawned:
		if ev.Session != nil {
			session := ev.Session
			go func() {
				if err := s.launcher.Launch(context.Background(), session); err != nil {
					log.Printf("[server] launch session %s: %v", session.ID, err)
				}
			}()
		}
	case orchestrator.EventArtifactCreated:
		if ev.Artifact != nil {
			s.watcher.Add(ev.Artifact.Path)
		}
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/tool", s.handleTool)
	mux.HandleFunc("GET /v1/tools", s.handleTools)
	mux.HandleFunc("GET /v1/tree/{rootID}", s.handleTree)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	return s.withAuth(mux)
}

// ListenAndServe serves until the context is canceled, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Close unsubscribes from the orchestrator and stops the watcher.
func (s *Server) Close() error {
	s.unsubscribe()
	return s.watcher.Close()
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" {
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if token != s.authToken {
				writeError(w, http.StatusUnauthorized, "invalid or missing bearer token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// toolRequest is the body of POST /v1/tool: which session is calling,
// which tool, and the tool's arguments.
type toolRequest struct {
	SessionID string          `json:"session_id"`
	Tool      string          `json:"tool"`
	Args      json.RawMessage `json:"args"`
}

func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	var req toolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Tool == "" {
		writeError(w, http.StatusBadRequest, "missing tool name")
		return
	}

	// Tool-level failures stay in-band as {success:false}; HTTP errors
	// are reserved for malformed transport requests.
	result := s.disp.Call(req.SessionID, req.Tool, req.Args)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.disp.Tools())
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	rootID := r.PathValue("rootID")
	tree, err := s.orc.GetTree(rootID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

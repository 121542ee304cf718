package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// wsEnvelope is the wire shape of every broadcast message.
type wsEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// wsWriteTimeout bounds a single write to one client.
const wsWriteTimeout = 15 * time.Second

// wsClient is one connected event-stream consumer. A slow client drops
// messages rather than stalling the broadcast.
type wsClient struct {
	send chan []byte
}

// Hub fans orchestrator events out to connected WebSocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

// Broadcast sends an envelope to every connected client. Marshalling
// failures and full client buffers drop the message for that client.
func (h *Hub) Broadcast(envelope wsEnvelope) {
	data, err := json.Marshal(envelope)
	if err != nil {
		log.Printf("[server] marshal broadcast %s: %v", envelope.Type, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop.
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// handleEvents upgrades the request to a WebSocket and streams broadcast
// envelopes until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer ws.CloseNow()

	client := &wsClient{send: make(chan []byte, 256)}
	s.hub.register(client)
	defer s.hub.unregister(client)

	// The client never sends application messages; CloseRead handles
	// control frames and cancels the context on disconnect.
	ctx := ws.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-client.send:
			writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := ws.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

package server

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/navihq/navi/internal/orchestrator"
)

func TestHubBroadcast(t *testing.T) {
	h := NewHub()
	c := &wsClient{send: make(chan []byte, 1)}
	h.register(c)
	if h.Count() != 1 {
		t.Fatalf("Count = %d, want 1", h.Count())
	}

	h.Broadcast(wsEnvelope{Type: "event", Data: map[string]string{"k": "v"}})

	select {
	case data := <-c.send:
		var env wsEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if env.Type != "event" {
			t.Errorf("type = %q", env.Type)
		}
	default:
		t.Fatal("nothing broadcast")
	}

	// A full client buffer drops the message instead of blocking.
	h.Broadcast(wsEnvelope{Type: "one"})
	h.Broadcast(wsEnvelope{Type: "two"})
	if len(c.send) != 1 {
		t.Errorf("buffered = %d, want 1 with the overflow dropped", len(c.send))
	}

	h.unregister(c)
	if h.Count() != 0 {
		t.Errorf("Count after unregister = %d, want 0", h.Count())
	}
}

func TestEventStream(t *testing.T) {
	ts, orc := newTestServer(t, Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/events"
	ws, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.CloseNow()

	// The server may still be registering the client when the dial
	// returns; keep emitting until one event arrives.
	spawnDone := make(chan struct{})
	go func() {
		defer close(spawnDone)
		for i := 0; i < 20; i++ {
			if _, err := orc.SpawnRoot(orchestrator.SpawnConfig{Title: "r", Role: "r", Task: "t"}); err != nil {
				t.Errorf("SpawnRoot: %v", err)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(50 * time.Millisecond):
			}
		}
	}()
	defer func() {
		cancel()
		<-spawnDone
	}()

	_, data, err := ws.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != "event" {
		t.Fatalf("envelope type = %q, want event", env.Type)
	}

	var ev orchestrator.Event
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if ev.Type != orchestrator.EventSpawned || ev.Session == nil {
		t.Errorf("event = %+v, want spawned with session snapshot", ev)
	}
}

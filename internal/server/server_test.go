package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/navihq/navi/internal/dispatch"
	"github.com/navihq/navi/internal/orchestrator"
	"github.com/navihq/navi/internal/state"
	"github.com/navihq/navi/pkg/models"
)

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *orchestrator.Orchestrator) {
	t.Helper()
	orc := orchestrator.New(state.NewMemory(), orchestrator.WithConfig(orchestrator.Config{
		MaxDepth:      5,
		MaxConcurrent: 8,
		ArchiveDelay:  time.Minute,
	}))
	t.Cleanup(orc.Stop)

	srv, err := New(orc, dispatch.New(orc), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, orc
}

func postTool(t *testing.T, url, sessionID, tool, args string) dispatch.Result {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"session_id": sessionID,
		"tool":       tool,
		"args":       json.RawMessage(args),
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(url+"/v1/tool", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/tool: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var result dispatch.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return result
}

func TestToolEndpoint(t *testing.T) {
	ts, orc := newTestServer(t, Options{})
	root, err := orc.SpawnRoot(orchestrator.SpawnConfig{Title: "r", Role: "coordinator", Task: "t"})
	if err != nil {
		t.Fatal(err)
	}

	res := postTool(t, ts.URL, root.ID, "spawn_agent",
		`{"title": "w", "role": "worker", "task": "work"}`)
	if !res.Success {
		t.Fatalf("spawn_agent: %s", res.Error)
	}
	data := res.Data.(map[string]any)
	if data["session_id"] == "" {
		t.Errorf("data = %+v", data)
	}

	// Tool failures stay in-band with HTTP 200.
	res = postTool(t, ts.URL, "ghost", "spawn_agent", `{"title": "w", "role": "w", "task": "w"}`)
	if res.Success || res.Error == "" {
		t.Errorf("bad caller result = %+v", res)
	}
}

func TestToolEndpointBadRequests(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp, err := http.Post(ts.URL+"/v1/tool", "application/json", bytes.NewReader([]byte("{")))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Post(ts.URL+"/v1/tool", "application/json", bytes.NewReader([]byte(`{"session_id": "x"}`)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing tool: status = %d, want 400", resp.StatusCode)
	}
}

func TestToolsEndpoint(t *testing.T) {
	ts, _ := newTestServer(t, Options{})

	resp, err := http.Get(ts.URL + "/v1/tools")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var tools []dispatch.ToolDef
	if err := json.NewDecoder(resp.Body).Decode(&tools); err != nil {
		t.Fatalf("decode tools: %v", err)
	}
	if len(tools) != 10 {
		t.Errorf("catalog has %d tools, want 10", len(tools))
	}
}

func TestTreeEndpoint(t *testing.T) {
	ts, orc := newTestServer(t, Options{})
	root, err := orc.SpawnRoot(orchestrator.SpawnConfig{Title: "r", Role: "r", Task: "t"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := orc.Spawn(root.ID, orchestrator.SpawnConfig{Title: "c", Role: "c", Task: "t"}); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(ts.URL + "/v1/tree/" + root.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var tree []*models.Session
	if err := json.NewDecoder(resp.Body).Decode(&tree); err != nil {
		t.Fatalf("decode tree: %v", err)
	}
	if len(tree) != 2 || tree[0].ID != root.ID {
		t.Errorf("tree = %+v", tree)
	}
}

func TestAuthToken(t *testing.T) {
	ts, _ := newTestServer(t, Options{AuthToken: "secret"})

	resp, err := http.Get(ts.URL + "/v1/tools")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/tools", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong token: status = %d, want 401", resp.StatusCode)
	}

	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("good token: status = %d, want 200", resp.StatusCode)
	}
}

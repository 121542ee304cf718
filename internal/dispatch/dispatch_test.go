package dispatch

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/navihq/navi/internal/orchestrator"
	"github.com/navihq/navi/internal/state"
	"github.com/navihq/navi/pkg/models"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *orchestrator.Orchestrator) {
	t.Helper()
	orc := orchestrator.New(state.NewMemory(), orchestrator.WithConfig(orchestrator.Config{
		MaxDepth:      5,
		MaxConcurrent: 8,
		ArchiveDelay:  20 * time.Millisecond,
	}))
	t.Cleanup(orc.Stop)
	return New(orc), orc
}

func call(t *testing.T, d *Dispatcher, callerID, tool, args string) Result {
	t.Helper()
	return d.Call(callerID, tool, json.RawMessage(args))
}

func mustCall(t *testing.T, d *Dispatcher, callerID, tool, args string) map[string]any {
	t.Helper()
	res := call(t, d, callerID, tool, args)
	if !res.Success {
		t.Fatalf("%s failed: %s", tool, res.Error)
	}
	data, ok := res.Data.(map[string]any)
	if !ok {
		t.Fatalf("%s data = %T, want map", tool, res.Data)
	}
	return data
}

func TestCallRejectsBadCaller(t *testing.T) {
	d, _ := newTestDispatcher(t)

	res := call(t, d, "", "spawn_agent", `{}`)
	if res.Success || !strings.Contains(res.Error, "missing calling session") {
		t.Errorf("empty caller: %+v", res)
	}

	res = call(t, d, "ghost", "spawn_agent", `{}`)
	if res.Success || !strings.Contains(res.Error, "unknown calling session") {
		t.Errorf("unknown caller: %+v", res)
	}
}

func TestCallUnknownTool(t *testing.T) {
	d, orc := newTestDispatcher(t)
	root, err := orc.SpawnRoot(orchestrator.SpawnConfig{Title: "r", Role: "r", Task: "t"})
	if err != nil {
		t.Fatal(err)
	}

	res := call(t, d, root.ID, "rm_rf", `{}`)
	if res.Success || !strings.Contains(res.Error, "unknown tool") {
		t.Errorf("unknown tool: %+v", res)
	}
}

func TestCallMissingArguments(t *testing.T) {
	d, orc := newTestDispatcher(t)
	root, err := orc.SpawnRoot(orchestrator.SpawnConfig{Title: "r", Role: "r", Task: "t"})
	if err != nil {
		t.Fatal(err)
	}

	res := call(t, d, root.ID, "spawn_agent", `{"title": "x"}`)
	if res.Success {
		t.Fatal("spawn with missing args succeeded")
	}
	if !strings.Contains(res.Error, "role") || !strings.Contains(res.Error, "task") {
		t.Errorf("error %q does not name the missing fields", res.Error)
	}

	// Malformed JSON is a refusal, not a crash.
	res = call(t, d, root.ID, "spawn_agent", `{"title": `)
	if res.Success || !strings.Contains(res.Error, "invalid arguments") {
		t.Errorf("malformed args: %+v", res)
	}

	// Empty args decode as an empty object.
	res = call(t, d, root.ID, "check_pending_clarifications", "")
	if !res.Success {
		t.Errorf("empty args rejected: %s", res.Error)
	}
}

// TestNegotiationScenario drives the full parent/child exchange through
// the tool surface: spawn, draft, clarify, respond, accept.
func TestNegotiationScenario(t *testing.T) {
	d, orc := newTestDispatcher(t)
	root, err := orc.SpawnRoot(orchestrator.SpawnConfig{Title: "coordinator", Role: "coordinator", Task: "ship it"})
	if err != nil {
		t.Fatal(err)
	}

	data := mustCall(t, d, root.ID, "spawn_agent",
		`{"title": "research api options", "role": "researcher", "task": "compare the candidate APIs"}`)
	childID, _ := data["session_id"].(string)
	if childID == "" {
		t.Fatalf("spawn data = %+v", data)
	}
	if depth, _ := data["depth"].(int); depth != 1 {
		t.Errorf("depth = %v, want 1", data["depth"])
	}

	data = mustCall(t, d, childID, "submit_draft",
		`{"type": "research", "summary": "findings", "content": "A is better than B"}`)
	if rev, _ := data["revision"].(int); rev != 1 {
		t.Errorf("revision = %v, want 1", data["revision"])
	}

	data = mustCall(t, d, root.ID, "request_clarification",
		`{"child_session_id": "`+childID+`", "question": "what sources?"}`)
	clarID, _ := data["clarification_id"].(string)
	if clarID == "" {
		t.Fatalf("clarification data = %+v", data)
	}

	// The child sees the question when polling.
	data = mustCall(t, d, childID, "check_pending_clarifications", `{}`)
	pending, _ := data["pending"].([]*models.ClarificationRequest)
	if len(pending) != 1 || pending[0].Question != "what sources?" {
		t.Fatalf("pending = %+v", data["pending"])
	}

	mustCall(t, d, childID, "respond_to_clarification",
		`{"clarification_id": "`+clarID+`", "response": "arxiv + vendor docs"}`)
	s, err := orc.GetSession(childID)
	if err != nil {
		t.Fatal(err)
	}
	if s.AgentStatus != models.StatusPendingReview {
		t.Errorf("status after response = %s, want pending_review", s.AgentStatus)
	}

	mustCall(t, d, root.ID, "accept_deliverable",
		`{"child_session_id": "`+childID+`", "feedback": "thorough"}`)
	s, err = orc.GetSession(childID)
	if err != nil {
		t.Fatal(err)
	}
	if s.AgentStatus != models.StatusDelivered && s.AgentStatus != models.StatusArchived {
		t.Errorf("status after accept = %s, want delivered", s.AgentStatus)
	}
	if s.Deliverable == nil || s.Deliverable.Content != "A is better than B" {
		t.Errorf("deliverable = %+v, want the draft content", s.Deliverable)
	}
}

func TestSpawnRefusalIsReadable(t *testing.T) {
	orc := orchestrator.New(state.NewMemory(), orchestrator.WithConfig(orchestrator.Config{
		MaxDepth:      1,
		MaxConcurrent: 8,
		ArchiveDelay:  time.Minute,
	}))
	t.Cleanup(orc.Stop)
	d := New(orc)

	root, err := orc.SpawnRoot(orchestrator.SpawnConfig{Title: "r", Role: "r", Task: "t"})
	if err != nil {
		t.Fatal(err)
	}

	res := call(t, d, root.ID, "spawn_agent", `{"title": "x", "role": "x", "task": "x"}`)
	if res.Success {
		t.Fatal("spawn beyond max depth succeeded")
	}
	if !strings.Contains(res.Error, "cannot spawn agent") {
		t.Errorf("refusal = %q, want a readable reason", res.Error)
	}
}

func TestEscalateAndDeliverTools(t *testing.T) {
	d, orc := newTestDispatcher(t)
	root, err := orc.SpawnRoot(orchestrator.SpawnConfig{Title: "r", Role: "r", Task: "t"})
	if err != nil {
		t.Fatal(err)
	}
	data := mustCall(t, d, root.ID, "spawn_agent", `{"title": "w", "role": "worker", "task": "work"}`)
	childID := data["session_id"].(string)

	data = mustCall(t, d, childID, "escalate",
		`{"type": "question", "summary": "stuck", "context": "need a decision", "options": ["a", "b"]}`)
	if status, _ := data["status"].(models.AgentStatus); status != models.StatusBlocked {
		t.Errorf("escalate status = %v, want blocked", data["status"])
	}

	s, _ := orc.GetSession(childID)
	if s.Escalation == nil || len(s.Escalation.Options) != 2 {
		t.Errorf("escalation = %+v", s.Escalation)
	}
	if err := orc.ResolveEscalation(childID, "pick a"); err != nil {
		t.Fatal(err)
	}

	mustCall(t, d, childID, "log_decision",
		`{"decision": "picked a", "category": "direction", "rationale": "told to"}`)

	data = mustCall(t, d, childID, "deliver",
		`{"type": "research", "summary": "done", "content": "the answer is a"}`)
	if status, _ := data["status"].(models.AgentStatus); status != models.StatusDelivered {
		t.Errorf("deliver status = %v, want delivered", data["status"])
	}

	// A second deliver is refused in-band.
	res := call(t, d, childID, "deliver", `{"type": "research", "summary": "again", "content": "x"}`)
	if res.Success || res.Error == "" {
		t.Errorf("second deliver: %+v", res)
	}
}

func TestGetContextTool(t *testing.T) {
	d, orc := newTestDispatcher(t)
	root, err := orc.SpawnRoot(orchestrator.SpawnConfig{Title: "r", Role: "coordinator", Task: "t"})
	if err != nil {
		t.Fatal(err)
	}
	data := mustCall(t, d, root.ID, "spawn_agent", `{"title": "w", "role": "worker", "task": "work"}`)
	childID := data["session_id"].(string)

	res := call(t, d, childID, "get_context", `{"source": "parent"}`)
	if !res.Success {
		t.Fatalf("get_context: %s", res.Error)
	}
	ctx, ok := res.Data.(*orchestrator.ContextResult)
	if !ok {
		t.Fatalf("data = %T, want *ContextResult", res.Data)
	}
	if !ctx.Found || ctx.Parent == nil || ctx.Parent.Role != "coordinator" {
		t.Errorf("parent context = %+v", ctx)
	}

	res = call(t, d, childID, "get_context", `{"source": "everything"}`)
	if res.Success {
		t.Error("unknown source accepted")
	}

	res = call(t, d, childID, "get_context", `{}`)
	if res.Success || !strings.Contains(res.Error, "source") {
		t.Errorf("missing source: %+v", res)
	}
}

func TestToolsCatalog(t *testing.T) {
	d, _ := newTestDispatcher(t)
	tools := d.Tools()
	if len(tools) != 10 {
		t.Fatalf("catalog has %d tools, want 10", len(tools))
	}

	seen := make(map[string]bool)
	for _, tool := range tools {
		if tool.Name == "" || tool.Description == "" {
			t.Errorf("tool %+v missing name or description", tool)
		}
		if seen[tool.Name] {
			t.Errorf("duplicate tool %s", tool.Name)
		}
		seen[tool.Name] = true
	}
	for _, name := range []string{
		"spawn_agent", "get_context", "log_decision", "escalate", "deliver",
		"submit_draft", "request_clarification", "respond_to_clarification",
		"accept_deliverable", "check_pending_clarifications",
	} {
		if !seen[name] {
			t.Errorf("catalog missing %s", name)
		}
	}
}

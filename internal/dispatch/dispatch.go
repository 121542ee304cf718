package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/navihq/navi/internal/orchestrator"
	"github.com/navihq/navi/pkg/models"
)

// Result is the shaped outcome of a tool call. Error is set only when
// Success is false; it is always a readable refusal, never a crash.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(data any) Result {
	return Result{Success: true, Data: data}
}

func fail(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Dispatcher routes tool calls from agent runtimes into the orchestrator.
type Dispatcher struct {
	orc *orchestrator.Orchestrator
}

// New creates a Dispatcher over the orchestrator.
func New(orc *orchestrator.Orchestrator) *Dispatcher {
	return &Dispatcher{orc: orc}
}

// Call executes one tool on behalf of the calling session. The caller's
// identity is the session id the transport authenticated, not anything
// inside args. Panics are converted to error results so a fault can
// never take down the agent runtime's turn.
func (d *Dispatcher) Call(callerID, tool string, args json.RawMessage) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = fail("internal error in %s: %v", tool, r)
		}
	}()

	if callerID == "" {
		return fail("missing calling session id")
	}
	if _, err := d.orc.GetSession(callerID); err != nil {
		return fail("unknown calling session %s", callerID)
	}

	switch tool {
	case "spawn_agent":
		return d.spawnAgent(callerID, args)
	case "get_context":
		return d.getContext(callerID, args)
	case "log_decision":
		return d.logDecision(callerID, args)
	case "escalate":
		return d.escalate(callerID, args)
	case "deliver":
		return d.deliver(callerID, args)
	case "submit_draft":
		return d.submitDraft(callerID, args)
	case "request_clarification":
		return d.requestClarification(callerID, args)
	case "respond_to_clarification":
		return d.respondToClarification(callerID, args)
	case "accept_deliverable":
		return d.acceptDeliverable(callerID, args)
	case "check_pending_clarifications":
		return d.checkPendingClarifications(callerID)
	default:
		return fail("unknown tool %q", tool)
	}
}

// decode unmarshals args and reports a readable error for malformed
// JSON. An empty args payload decodes as an empty object.
func decode(args json.RawMessage, into any) error {
	if len(args) == 0 {
		args = []byte("{}")
	}
	if err := json.Unmarshal(args, into); err != nil {
		return fmt.Errorf("invalid arguments: %v", err)
	}
	return nil
}

// require returns the missing required field names among the given
// name/value pairs.
func require(pairs ...string) []string {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	return missing
}

func missingResult(tool string, missing []string) Result {
	return fail("%s: missing required argument(s): %s", tool, strings.Join(missing, ", "))
}

func (d *Dispatcher) spawnAgent(callerID string, args json.RawMessage) Result {
	var a struct {
		Title     string `json:"title"`
		Role      string `json:"role"`
		Task      string `json:"task"`
		Model     string `json:"model"`
		Backend   string `json:"backend"`
		AgentType string `json:"agent_type"`
		Context   string `json:"context"`
	}
	if err := decode(args, &a); err != nil {
		return fail("%v", err)
	}
	if missing := require("title", a.Title, "role", a.Role, "task", a.Task); len(missing) > 0 {
		return missingResult("spawn_agent", missing)
	}

	// Produce the human-readable refusal before attempting the spawn.
	if can, reason := d.orc.CanSpawn(callerID); !can {
		return fail("cannot spawn agent: %s", reason)
	}

	s, err := d.orc.Spawn(callerID, orchestrator.SpawnConfig{
		Title:     a.Title,
		Role:      a.Role,
		Task:      a.Task,
		Model:     a.Model,
		Backend:   a.Backend,
		AgentType: a.AgentType,
		Context:   a.Context,
	})
	if err != nil {
		return fail("cannot spawn agent: %v", err)
	}
	return ok(map[string]any{
		"session_id": s.ID,
		"root_id":    s.RootID,
		"depth":      s.Depth,
		"status":     s.AgentStatus,
	})
}

func (d *Dispatcher) getContext(callerID string, args json.RawMessage) Result {
	var a struct {
		Source      string `json:"source"`
		Query       string `json:"query"`
		SiblingRole string `json:"sibling_role"`
	}
	if err := decode(args, &a); err != nil {
		return fail("%v", err)
	}
	if missing := require("source", a.Source); len(missing) > 0 {
		return missingResult("get_context", missing)
	}

	res, err := d.orc.GetContext(callerID, orchestrator.ContextRequest{
		Source:      orchestrator.ContextSource(a.Source),
		Query:       a.Query,
		SiblingRole: a.SiblingRole,
	})
	if err != nil {
		return fail("%v", err)
	}
	return ok(res)
}

func (d *Dispatcher) logDecision(callerID string, args json.RawMessage) Result {
	var a struct {
		Decision  string `json:"decision"`
		Category  string `json:"category"`
		Rationale string `json:"rationale"`
	}
	if err := decode(args, &a); err != nil {
		return fail("%v", err)
	}
	if missing := require("decision", a.Decision); len(missing) > 0 {
		return missingResult("log_decision", missing)
	}

	rec, err := d.orc.LogDecision(callerID, a.Category, a.Decision, a.Rationale)
	if err != nil {
		return fail("%v", err)
	}
	return ok(map[string]any{"decision_id": rec.ID})
}

func (d *Dispatcher) escalate(callerID string, args json.RawMessage) Result {
	var a struct {
		Type    string   `json:"type"`
		Summary string   `json:"summary"`
		Context string   `json:"context"`
		Options []string `json:"options"`
	}
	if err := decode(args, &a); err != nil {
		return fail("%v", err)
	}
	if missing := require("type", a.Type, "summary", a.Summary, "context", a.Context); len(missing) > 0 {
		return missingResult("escalate", missing)
	}

	err := d.orc.Escalate(callerID, models.Escalation{
		Type:    models.EscalationType(a.Type),
		Summary: a.Summary,
		Context: a.Context,
		Options: a.Options,
	})
	if err != nil {
		return fail("%v", err)
	}
	return ok(map[string]any{"status": models.StatusBlocked})
}

func (d *Dispatcher) deliver(callerID string, args json.RawMessage) Result {
	var a struct {
		Type      string               `json:"type"`
		Summary   string               `json:"summary"`
		Content   string               `json:"content"`
		Artifacts []models.ArtifactRef `json:"artifacts"`
	}
	if err := decode(args, &a); err != nil {
		return fail("%v", err)
	}
	if missing := require("type", a.Type, "summary", a.Summary, "content", a.Content); len(missing) > 0 {
		return missingResult("deliver", missing)
	}

	err := d.orc.Deliver(callerID, models.Deliverable{
		Type:      models.DeliverableType(a.Type),
		Summary:   a.Summary,
		Content:   a.Content,
		Artifacts: a.Artifacts,
	})
	if err != nil {
		return fail("%v", err)
	}
	return ok(map[string]any{"status": models.StatusDelivered})
}

func (d *Dispatcher) submitDraft(callerID string, args json.RawMessage) Result {
	var a struct {
		Type      string               `json:"type"`
		Summary   string               `json:"summary"`
		Content   string               `json:"content"`
		Artifacts []models.ArtifactRef `json:"artifacts"`
	}
	if err := decode(args, &a); err != nil {
		return fail("%v", err)
	}
	if missing := require("type", a.Type, "summary", a.Summary, "content", a.Content); len(missing) > 0 {
		return missingResult("submit_draft", missing)
	}

	draft, err := d.orc.SubmitDraft(callerID, orchestrator.DraftConfig{
		Type:      models.DeliverableType(a.Type),
		Summary:   a.Summary,
		Content:   a.Content,
		Artifacts: a.Artifacts,
	})
	if err != nil {
		return fail("%v", err)
	}
	return ok(map[string]any{
		"draft_id": draft.DraftID,
		"revision": draft.RevisionNumber,
	})
}

func (d *Dispatcher) requestClarification(callerID string, args json.RawMessage) Result {
	var a struct {
		ChildSessionID string `json:"child_session_id"`
		Question       string `json:"question"`
		Context        string `json:"context"`
	}
	if err := decode(args, &a); err != nil {
		return fail("%v", err)
	}
	if missing := require("child_session_id", a.ChildSessionID, "question", a.Question); len(missing) > 0 {
		return missingResult("request_clarification", missing)
	}

	req, err := d.orc.RequestClarification(callerID, a.ChildSessionID, a.Question, a.Context)
	if err != nil {
		return fail("%v", err)
	}
	return ok(map[string]any{"clarification_id": req.ID})
}

func (d *Dispatcher) respondToClarification(callerID string, args json.RawMessage) Result {
	var a struct {
		ClarificationID string `json:"clarification_id"`
		Response        string `json:"response"`
	}
	if err := decode(args, &a); err != nil {
		return fail("%v", err)
	}
	if missing := require("clarification_id", a.ClarificationID, "response", a.Response); len(missing) > 0 {
		return missingResult("respond_to_clarification", missing)
	}

	req, err := d.orc.RespondToClarification(callerID, a.ClarificationID, a.Response)
	if err != nil {
		return fail("%v", err)
	}
	return ok(map[string]any{
		"clarification_id": req.ID,
		"status":           models.StatusPendingReview,
	})
}

func (d *Dispatcher) acceptDeliverable(callerID string, args json.RawMessage) Result {
	var a struct {
		ChildSessionID string `json:"child_session_id"`
		Feedback       string `json:"feedback"`
	}
	if err := decode(args, &a); err != nil {
		return fail("%v", err)
	}
	if missing := require("child_session_id", a.ChildSessionID); len(missing) > 0 {
		return missingResult("accept_deliverable", missing)
	}

	deliverable, err := d.orc.AcceptDeliverable(callerID, a.ChildSessionID, a.Feedback)
	if err != nil {
		return fail("%v", err)
	}
	return ok(map[string]any{"deliverable": deliverable})
}

func (d *Dispatcher) checkPendingClarifications(callerID string) Result {
	reqs, err := d.orc.PendingClarifications(callerID)
	if err != nil {
		return fail("%v", err)
	}
	if reqs == nil {
		reqs = []*models.ClarificationRequest{}
	}
	return ok(map[string]any{"pending": reqs})
}

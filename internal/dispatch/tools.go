// Package dispatch is the protocol surface an agent's tool-calling turn
// invokes. It validates the calling session, translates tool arguments
// into orchestrator calls, and shapes results back into tool results.
// Errors never propagate out of a call; every failure becomes a
// {success:false, error} result the agent can read and retry from.
package dispatch

// ToolDef describes one callable tool as exposed to the agent runtime,
// with JSON-schema parameter validation metadata.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func schema(required []string, props map[string]any) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

// Tools returns the ten tool contracts exposed to agent runtimes.
func (d *Dispatcher) Tools() []ToolDef {
	return []ToolDef{
		{
			Name:        "spawn_agent",
			Description: "Spawn a child agent session to work on a task. Fails if the tree's depth or concurrency limit is reached.",
			Parameters: schema([]string{"title", "role", "task"}, map[string]any{
				"title":      str("Short display name for the child session"),
				"role":       str("Specialty label, e.g. researcher, implementer"),
				"task":       str("What the child should accomplish"),
				"model":      str("Optional model override for the child"),
				"backend":    str("Optional runtime backend for the child"),
				"agent_type": str("Optional agent template name"),
				"context":    str("Extra context handed to the child at spawn"),
			}),
		},
		{
			Name:        "get_context",
			Description: "Query bounded context from the tree: parent summary, sibling roster, or tree-wide decisions/artifacts.",
			Parameters: schema([]string{"source", "query"}, map[string]any{
				"source":       str("One of: parent, sibling, decisions, artifacts"),
				"query":        str("Keyword to match; decisions/artifacts fall back to the most recent when nothing matches"),
				"sibling_role": str("Narrow a sibling query to one sibling by role"),
			}),
		},
		{
			Name:        "log_decision",
			Description: "Append a decision to the tree-wide decision log.",
			Parameters: schema([]string{"decision"}, map[string]any{
				"decision":  str("The choice that was made"),
				"category":  str("Optional grouping, e.g. architecture"),
				"rationale": str("Optional explanation of the choice"),
			}),
		},
		{
			Name:        "escalate",
			Description: "Raise a question to the parent session and become blocked until it is resolved.",
			Parameters: schema([]string{"type", "summary", "context"}, map[string]any{
				"type":    str("One of: question, decision_needed, blocker, permission"),
				"summary": str("One-line statement of what is needed"),
				"context": str("Supporting detail for the parent"),
				"options": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Suggested resolutions",
				},
			}),
		},
		{
			Name:        "deliver",
			Description: "Finalize this session's deliverable in one shot, without review. The session archives shortly after.",
			Parameters:  schema([]string{"type", "summary", "content"}, deliverableProps),
		},
		{
			Name:        "submit_draft",
			Description: "Submit a draft deliverable for parent review. Resubmitting replaces the draft and bumps its revision.",
			Parameters:  schema([]string{"type", "summary", "content"}, deliverableProps),
		},
		{
			Name:        "request_clarification",
			Description: "Ask your child a question about its pending draft. Parent-only; requires the child to have a draft.",
			Parameters: schema([]string{"child_session_id", "question"}, map[string]any{
				"child_session_id": str("The child session to ask"),
				"question":         str("What you want to know about the draft"),
				"context":          str("Supporting detail for the child"),
			}),
		},
		{
			Name:        "respond_to_clarification",
			Description: "Answer a clarification request addressed to you. Your status becomes pending_review.",
			Parameters: schema([]string{"clarification_id", "response"}, map[string]any{
				"clarification_id": str("The request to answer"),
				"response":         str("Your answer"),
			}),
		},
		{
			Name:        "accept_deliverable",
			Description: "Accept your child's pending draft as its final deliverable. The child archives shortly after.",
			Parameters: schema([]string{"child_session_id"}, map[string]any{
				"child_session_id": str("The child whose draft to accept"),
				"feedback":         str("Optional feedback, logged as a decision"),
			}),
		},
		{
			Name:        "check_pending_clarifications",
			Description: "List pending clarification requests addressed to you.",
			Parameters:  schema(nil, map[string]any{}),
		},
	}
}

var deliverableProps = map[string]any{
	"type":    str("One of: code, research, decision, artifact, error"),
	"summary": str("Short description of the result"),
	"content": str("Full deliverable body"),
	"artifacts": map[string]any{
		"type":        "array",
		"description": "Files produced by the session",
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":        str("Filesystem path of the artifact"),
				"description": str("What the artifact contains"),
			},
			"required": []string{"path"},
		},
	},
}

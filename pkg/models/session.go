package models

import "time"

// AgentStatus represents the current state of a session's agent.
type AgentStatus string

const (
	// StatusWorking indicates the agent is actively reasoning or acting.
	StatusWorking AgentStatus = "working"
	// StatusWaiting indicates the agent is idle, e.g. polling for a sibling.
	StatusWaiting AgentStatus = "waiting"
	// StatusBlocked indicates the agent has a pending, unresolved escalation.
	StatusBlocked AgentStatus = "blocked"
	// StatusPendingReview indicates the agent submitted a draft and is waiting
	// on parent feedback.
	StatusPendingReview AgentStatus = "pending_review"
	// StatusDelivered indicates the agent finalized its deliverable.
	StatusDelivered AgentStatus = "delivered"
	// StatusArchived is the terminal state after archival.
	StatusArchived AgentStatus = "archived"
)

// Valid returns true if the status is a known value.
func (s AgentStatus) Valid() bool {
	switch s {
	case StatusWorking, StatusWaiting, StatusBlocked, StatusPendingReview, StatusDelivered, StatusArchived:
		return true
	default:
		return false
	}
}

// Active returns true if the session counts against the per-tree
// concurrency limit. Delivered and archived sessions do not.
func (s AgentStatus) Active() bool {
	switch s {
	case StatusWorking, StatusWaiting, StatusBlocked:
		return true
	default:
		return false
	}
}

// EscalationType classifies why a session needs its parent's input.
type EscalationType string

const (
	EscalationQuestion       EscalationType = "question"
	EscalationDecisionNeeded EscalationType = "decision_needed"
	EscalationBlocker        EscalationType = "blocker"
	EscalationPermission     EscalationType = "permission"
)

// Valid returns true if the escalation type is a known value.
func (t EscalationType) Valid() bool {
	switch t {
	case EscalationQuestion, EscalationDecisionNeeded, EscalationBlocker, EscalationPermission:
		return true
	default:
		return false
	}
}

// Escalation is a question raised by a session to its parent. A session
// holds at most one; a new escalation overwrites the prior pending one.
type Escalation struct {
	// Type classifies the escalation.
	Type EscalationType `json:"type"`
	// Summary is a one-line statement of what is needed.
	Summary string `json:"summary"`
	// Context provides supporting detail for the parent.
	Context string `json:"context,omitempty"`
	// Options lists suggested resolutions, if any.
	Options []string `json:"options,omitempty"`
	// CreatedAt is when the escalation was raised.
	CreatedAt time.Time `json:"created_at"`
}

// DeliverableType classifies the final output of a session.
type DeliverableType string

const (
	DeliverableCode     DeliverableType = "code"
	DeliverableResearch DeliverableType = "research"
	DeliverableDecision DeliverableType = "decision"
	DeliverableArtifact DeliverableType = "artifact"
	DeliverableError    DeliverableType = "error"
)

// Valid returns true if the deliverable type is a known value.
func (t DeliverableType) Valid() bool {
	switch t {
	case DeliverableCode, DeliverableResearch, DeliverableDecision, DeliverableArtifact, DeliverableError:
		return true
	default:
		return false
	}
}

// ArtifactRef points at a file produced alongside a deliverable or draft.
type ArtifactRef struct {
	// Path is the filesystem path of the artifact.
	Path string `json:"path"`
	// Description says what the artifact contains.
	Description string `json:"description,omitempty"`
}

// Deliverable is the finalized output a session hands to its parent.
// Once set, the session is terminal and scheduled for archival.
type Deliverable struct {
	// Type classifies the deliverable.
	Type DeliverableType `json:"type"`
	// Summary is a short description of the result.
	Summary string `json:"summary"`
	// Content is the full deliverable body.
	Content string `json:"content"`
	// Artifacts lists files produced by the session.
	Artifacts []ArtifactRef `json:"artifacts,omitempty"`
}

// Session is a node in the agent tree. Every session runs an independent
// agent; parent/child links form the fractal hierarchy.
type Session struct {
	// ID is the unique identifier for this session.
	ID string `json:"id"`
	// ParentID is the spawning session's ID, empty for a root.
	ParentID string `json:"parent_id,omitempty"`
	// RootID identifies the tree this session belongs to. A root session's
	// RootID is its own ID.
	RootID string `json:"root_id"`
	// Depth is the distance from the root (root = 0).
	Depth int `json:"depth"`
	// Title is the short display name of the session.
	Title string `json:"title"`
	// Role is the free-text specialty label, e.g. "researcher".
	Role string `json:"role"`
	// Task describes the work the session was spawned to do.
	Task string `json:"task"`
	// AgentStatus is the current lifecycle state.
	AgentStatus AgentStatus `json:"agent_status"`
	// Model optionally pins the LLM model for this session's runtime.
	Model string `json:"model,omitempty"`
	// Backend optionally names the runtime backend.
	Backend string `json:"backend,omitempty"`
	// AgentType optionally names the agent template to launch.
	AgentType string `json:"agent_type,omitempty"`
	// Context is extra context handed to the child at spawn time.
	Context string `json:"context,omitempty"`
	// Escalation is the pending escalation, if any.
	Escalation *Escalation `json:"escalation,omitempty"`
	// Deliverable is the finalized output, if delivered.
	Deliverable *Deliverable `json:"deliverable,omitempty"`
	// DraftRevision counts draft submissions, 0 if never drafted.
	DraftRevision int `json:"draft_revision"`
	// Archived marks the session as soft-deleted.
	Archived bool `json:"archived,omitempty"`
	// CreatedAt is when the session was spawned.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the session was last mutated.
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRoot returns true if the session has no parent.
func (s *Session) IsRoot() bool {
	return s.ParentID == ""
}

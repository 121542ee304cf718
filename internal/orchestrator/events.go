// Package orchestrator owns the agent session tree: spawn, status,
// escalation, delivery, archival, tree-scoped logs, and the draft
// negotiation protocol between parent and child sessions.
package orchestrator

import (
	"log"
	"sync"
	"time"

	"github.com/navihq/navi/pkg/models"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventSpawned indicates a new session was created.
	EventSpawned EventType = "spawned"
	// EventStatusChanged indicates a session's agent status changed.
	EventStatusChanged EventType = "status_changed"
	// EventEscalated indicates a session raised an escalation to its parent.
	EventEscalated EventType = "escalated"
	// EventEscalationResolved indicates a pending escalation was answered.
	EventEscalationResolved EventType = "escalation_resolved"
	// EventDelivered indicates a session finalized its deliverable.
	EventDelivered EventType = "delivered"
	// EventArchived indicates a session (and its descendants) was archived.
	EventArchived EventType = "archived"
	// EventDecisionLogged indicates a decision was appended to the tree log.
	EventDecisionLogged EventType = "decision_logged"
	// EventArtifactCreated indicates an artifact was appended to the tree log.
	EventArtifactCreated EventType = "artifact_created"
	// EventDraftSubmitted indicates a child submitted or replaced a draft.
	EventDraftSubmitted EventType = "draft_submitted"
	// EventClarificationRequested indicates a parent asked about a draft.
	EventClarificationRequested EventType = "clarification_requested"
	// EventClarificationResponded indicates a child answered a clarification.
	EventClarificationResponded EventType = "clarification_responded"
	// EventDeliverableAccepted indicates a parent accepted a child's draft.
	EventDeliverableAccepted EventType = "deliverable_accepted"
)

// Event is emitted by the orchestrator on every state change. Events are
// relayed to external listeners (WS broadcast, launcher, TUI); for a given
// session, spawned precedes any status_changed, delivered precedes
// archived, and escalated precedes its escalation_resolved.
type Event struct {
	// Type is the kind of event.
	Type EventType `json:"type"`
	// SessionID is the session the event is about.
	SessionID string `json:"session_id,omitempty"`
	// RootID is the tree the session belongs to.
	RootID string `json:"root_id,omitempty"`
	// ParentID is the session's parent, if any.
	ParentID string `json:"parent_id,omitempty"`
	// Status is the session's status after the event, where relevant.
	Status models.AgentStatus `json:"status,omitempty"`
	// PrevStatus is the status before a status_changed event.
	PrevStatus models.AgentStatus `json:"prev_status,omitempty"`
	// Message provides additional context about the event.
	Message string `json:"message,omitempty"`
	// Session is a snapshot of the session for spawned events.
	Session *models.Session `json:"session,omitempty"`
	// Escalation carries the escalation for escalated events.
	Escalation *models.Escalation `json:"escalation,omitempty"`
	// Deliverable carries the deliverable for delivered/accepted events.
	Deliverable *models.Deliverable `json:"deliverable,omitempty"`
	// Draft carries the draft for draft_submitted events.
	Draft *models.DraftDeliverable `json:"draft,omitempty"`
	// Clarification carries the request for clarification events.
	Clarification *models.ClarificationRequest `json:"clarification,omitempty"`
	// Decision carries the record for decision_logged events.
	Decision *models.Decision `json:"decision,omitempty"`
	// Artifact carries the record for artifact_created events.
	Artifact *models.Artifact `json:"artifact,omitempty"`
	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`
}

// Emitter fans events out to subscribers synchronously. A panicking
// subscriber is recovered and logged so one faulty observer cannot break
// orchestration; synchronous delivery is what gives the per-session
// ordering guarantees above.
type Emitter struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]func(Event)
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[int]func(Event))}
}

// Subscribe registers a handler and returns its unsubscribe function.
// The unsubscribe function is idempotent.
func (e *Emitter) Subscribe(fn func(Event)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.handlers[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.handlers, id)
		e.mu.Unlock()
	}
}

// Emit invokes every subscribed handler with the event. Handlers run in
// the caller's goroutine; panics are isolated per handler.
func (e *Emitter) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	e.mu.RLock()
	handlers := make([]func(Event), 0, len(e.handlers))
	for _, fn := range e.handlers {
		handlers = append(handlers, fn)
	}
	e.mu.RUnlock()

	for _, fn := range handlers {
		e.call(fn, event)
	}
}

func (e *Emitter) call(fn func(Event), event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[orchestrator] WARNING: event handler panicked on %s: %v", event.Type, r)
		}
	}()
	fn(event)
}

// Len returns the number of subscribed handlers.
func (e *Emitter) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers)
}

package orchestrator

import "github.com/navihq/navi/pkg/models"

// SessionStore is the durable table of sessions. Lookup methods return
// (nil, nil) when the id is unknown; the orchestrator maps that to
// ErrNotFound so stores stay free of orchestration error vocabulary.
type SessionStore interface {
	CreateSession(s *models.Session) error
	GetSession(id string) (*models.Session, error)
	UpdateSession(s *models.Session) error
	// GetChildren returns the direct children of a session, oldest first.
	GetChildren(parentID string) ([]*models.Session, error)
	// GetDescendants returns every session reachable below id, excluding
	// id itself, in no particular order.
	GetDescendants(id string) ([]*models.Session, error)
	// CountActive counts non-archived sessions in the tree whose status is
	// working, waiting, or blocked.
	CountActive(rootID string) (int, error)
	// GetTree returns every non-archived session sharing rootID.
	GetTree(rootID string) ([]*models.Session, error)
}

// JournalStore is the append-only decision and artifact log, scoped per
// root tree. Records are never mutated, only created and listed.
type JournalStore interface {
	AppendDecision(d *models.Decision) error
	AppendArtifact(a *models.Artifact) error
	// ListDecisions returns the tree's decisions, newest first.
	ListDecisions(rootID string) ([]*models.Decision, error)
	// ListArtifacts returns the tree's artifacts, newest first.
	ListArtifacts(rootID string) ([]*models.Artifact, error)
}

// DraftStore holds in-flight draft deliverables and clarification Q&A.
// GetDraft and GetClarification return (nil, nil) when absent.
type DraftStore interface {
	// PutDraft stores the draft, replacing any prior draft for the session.
	PutDraft(d *models.DraftDeliverable) error
	GetDraft(sessionID string) (*models.DraftDeliverable, error)
	DeleteDraft(sessionID string) error
	CreateClarification(c *models.ClarificationRequest) error
	GetClarification(id string) (*models.ClarificationRequest, error)
	UpdateClarification(c *models.ClarificationRequest) error
	// ListPendingClarifications returns the pending requests addressed to
	// the session, oldest first.
	ListPendingClarifications(sessionID string) ([]*models.ClarificationRequest, error)
}

// Store bundles the three persistence surfaces the orchestrator consumes.
// internal/state provides both the SQLite and the in-memory implementation.
type Store interface {
	SessionStore
	JournalStore
	DraftStore
}

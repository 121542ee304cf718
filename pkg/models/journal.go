package models

import "time"

// Decision is an append-only record of a choice made somewhere in a
// session tree. Decisions are scoped by RootID so every session in the
// tree can discover them.
type Decision struct {
	// ID is the unique identifier for this decision.
	ID string `json:"id"`
	// RootID is the tree the decision belongs to.
	RootID string `json:"root_id"`
	// SessionID is the session that logged the decision.
	SessionID string `json:"session_id"`
	// Category groups related decisions, e.g. "architecture".
	Category string `json:"category,omitempty"`
	// Decision is the choice that was made.
	Decision string `json:"decision"`
	// Rationale explains the choice, if given.
	Rationale string `json:"rationale,omitempty"`
	// CreatedAt is when the decision was logged.
	CreatedAt time.Time `json:"created_at"`
}

// Artifact is an append-only record of a file produced somewhere in a
// session tree, scoped by RootID like decisions.
type Artifact struct {
	// ID is the unique identifier for this artifact record.
	ID string `json:"id"`
	// RootID is the tree the artifact belongs to.
	RootID string `json:"root_id"`
	// SessionID is the session that created the artifact.
	SessionID string `json:"session_id"`
	// Path is the filesystem path of the artifact.
	Path string `json:"path"`
	// Description says what the artifact contains.
	Description string `json:"description,omitempty"`
	// Type classifies the artifact, e.g. "code", "doc".
	Type string `json:"type,omitempty"`
	// CreatedAt is when the artifact was logged.
	CreatedAt time.Time `json:"created_at"`
}

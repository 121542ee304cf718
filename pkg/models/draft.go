package models

import "time"

// DraftDeliverable is a provisional, revisable deliverable awaiting parent
// approval. At most one active draft exists per session; resubmitting
// replaces it and bumps the revision number.
type DraftDeliverable struct {
	// DraftID is the unique identifier for this draft.
	DraftID string `json:"draft_id"`
	// SessionID is the child session that submitted the draft.
	SessionID string `json:"session_id"`
	// Type classifies the eventual deliverable.
	Type DeliverableType `json:"type"`
	// Summary is a short description of the draft.
	Summary string `json:"summary"`
	// Content is the full draft body.
	Content string `json:"content"`
	// Artifacts lists files produced so far.
	Artifacts []ArtifactRef `json:"artifacts,omitempty"`
	// RevisionNumber starts at 1 and increases per resubmission.
	RevisionNumber int `json:"revision_number"`
	// SubmittedAt is when this revision was submitted.
	SubmittedAt time.Time `json:"submitted_at"`
}

// Finalize converts the draft into the deliverable it would become on
// acceptance.
func (d *DraftDeliverable) Finalize() *Deliverable {
	return &Deliverable{
		Type:      d.Type,
		Summary:   d.Summary,
		Content:   d.Content,
		Artifacts: d.Artifacts,
	}
}

// ClarificationStatus is the lifecycle state of a clarification request.
type ClarificationStatus string

const (
	// ClarificationPending means the child has not answered yet.
	ClarificationPending ClarificationStatus = "pending"
	// ClarificationResponded means the child answered; the record is
	// immutable from then on.
	ClarificationResponded ClarificationStatus = "responded"
)

// ClarificationRequest is a single Q&A exchange tied to one draft. The
// parent asks, the addressed child answers. A child may have several
// pending requests outstanding at once.
type ClarificationRequest struct {
	// ID is the unique identifier for this request.
	ID string `json:"id"`
	// SessionID is the child session being asked.
	SessionID string `json:"session_id"`
	// ParentID is the asking session.
	ParentID string `json:"parent_id"`
	// DraftID is the draft the question is about.
	DraftID string `json:"draft_id"`
	// Question is what the parent wants to know.
	Question string `json:"question"`
	// Context provides supporting detail for the child.
	Context string `json:"context,omitempty"`
	// Response is the child's answer, empty while pending.
	Response string `json:"response,omitempty"`
	// Status is pending until the child responds.
	Status ClarificationStatus `json:"status"`
	// CreatedAt is when the question was asked.
	CreatedAt time.Time `json:"created_at"`
}

package orchestrator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/navihq/navi/pkg/models"
)

// Draft negotiation: a child submits a draft deliverable, the parent asks
// clarifying questions any number of rounds, then accepts the draft as
// the child's final deliverable. Acceptance has the same effect as
// Deliver, including the deferred archive.

// DraftConfig describes a draft submission.
type DraftConfig struct {
	Type      models.DeliverableType
	Summary   string
	Content   string
	Artifacts []models.ArtifactRef
}

// SubmitDraft creates or replaces the session's draft deliverable and
// bumps its revision number. The session's status is unaffected; only a
// clarification response moves it to pending_review.
func (o *Orchestrator) SubmitDraft(sessionID string, cfg DraftConfig) (*models.DraftDeliverable, error) {
	if !cfg.Type.Valid() {
		return nil, fmt.Errorf("deliverable type %q: %w", cfg.Type, ErrInvalidStatus)
	}

	o.mu.Lock()
	s, err := o.getSessionLocked(sessionID)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	if err := mutable(s); err != nil {
		o.mu.Unlock()
		return nil, err
	}

	draft := &models.DraftDeliverable{
		DraftID:        uuid.NewString(),
		SessionID:      s.ID,
		Type:           cfg.Type,
		Summary:        cfg.Summary,
		Content:        cfg.Content,
		Artifacts:      cfg.Artifacts,
		RevisionNumber: s.DraftRevision + 1,
		SubmittedAt:    time.Now(),
	}
	if err := o.store.PutDraft(draft); err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("store draft: %w", err)
	}

	s.DraftRevision = draft.RevisionNumber
	s.UpdatedAt = draft.SubmittedAt
	if err := o.store.UpdateSession(s); err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("update session: %w", err)
	}
	o.mu.Unlock()

	o.logger.Log("session %s submitted draft revision %d", s.ID, draft.RevisionNumber)
	o.emitter.Emit(Event{Type: EventDraftSubmitted, SessionID: s.ID, RootID: s.RootID, ParentID: s.ParentID, Draft: draft})
	return draft, nil
}

// RequestClarification lets a parent ask the child about its pending
// draft. The caller must be the child's direct parent and the child must
// have a draft awaiting review.
func (o *Orchestrator) RequestClarification(callerID, childID, question, context string) (*models.ClarificationRequest, error) {
	child, err := o.authorizeParentOf(callerID, childID)
	if err != nil {
		return nil, err
	}

	draft, err := o.store.GetDraft(child.ID)
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	if draft == nil {
		return nil, fmt.Errorf("session %s: %w", child.ID, ErrNoPendingDraft)
	}

	req := &models.ClarificationRequest{
		ID:        uuid.NewString(),
		SessionID: child.ID,
		ParentID:  callerID,
		DraftID:   draft.DraftID,
		Question:  question,
		Context:   context,
		Status:    models.ClarificationPending,
		CreatedAt: time.Now(),
	}
	if err := o.store.CreateClarification(req); err != nil {
		return nil, fmt.Errorf("create clarification: %w", err)
	}

	o.logger.Log("session %s asked %s: %s", callerID, child.ID, question)
	o.emitter.Emit(Event{Type: EventClarificationRequested, SessionID: child.ID, RootID: child.RootID, ParentID: callerID, Clarification: req})
	return req, nil
}

// RespondToClarification records the child's answer and transitions the
// child to pending_review. Only the addressed child may respond, and a
// responded request is immutable.
func (o *Orchestrator) RespondToClarification(callerID, clarificationID, response string) (*models.ClarificationRequest, error) {
	req, err := o.store.GetClarification(clarificationID)
	if err != nil {
		return nil, fmt.Errorf("get clarification: %w", err)
	}
	if req == nil {
		return nil, fmt.Errorf("clarification %s: %w", clarificationID, ErrNotFound)
	}
	if req.SessionID != callerID {
		return nil, fmt.Errorf("clarification %s: %w", clarificationID, ErrNotYourClarification)
	}
	if req.Status == models.ClarificationResponded {
		return nil, fmt.Errorf("clarification %s: %w", clarificationID, ErrAlreadyResponded)
	}

	req.Response = response
	req.Status = models.ClarificationResponded
	if err := o.store.UpdateClarification(req); err != nil {
		return nil, fmt.Errorf("update clarification: %w", err)
	}

	if err := o.UpdateStatus(callerID, models.StatusPendingReview); err != nil {
		return nil, err
	}

	s, _ := o.getSession(callerID)
	rootID := ""
	if s != nil {
		rootID = s.RootID
	}
	o.emitter.Emit(Event{Type: EventClarificationResponded, SessionID: callerID, RootID: rootID, ParentID: req.ParentID, Clarification: req})
	return req, nil
}

// AcceptDeliverable finalizes the child's pending draft as its
// deliverable, with the same effect as Deliver including the deferred
// archive. Feedback, when given, is logged as a decision on the caller.
func (o *Orchestrator) AcceptDeliverable(callerID, childID, feedback string) (*models.Deliverable, error) {
	child, err := o.authorizeParentOf(callerID, childID)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	// Re-read session and draft under the lock; the child may have
	// delivered or resubmitted in between. SubmitDraft replaces drafts
	// under the same lock, so this is the revision that gets finalized.
	child, err = o.getSessionLocked(childID)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	draft, err := o.store.GetDraft(child.ID)
	if err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("get draft: %w", err)
	}
	if draft == nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("session %s: %w", child.ID, ErrNoPendingDraft)
	}

	deliverable := draft.Finalize()
	if err := o.finalizeLocked(child, deliverable); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	if err := o.store.DeleteDraft(child.ID); err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("delete draft: %w", err)
	}
	o.mu.Unlock()

	o.afterDeliver(child)
	o.emitter.Emit(Event{Type: EventDeliverableAccepted, SessionID: child.ID, RootID: child.RootID, ParentID: callerID, Deliverable: deliverable})

	if feedback != "" {
		if _, err := o.LogDecision(callerID, "review", fmt.Sprintf("accepted deliverable from %s", child.Role), feedback); err != nil {
			o.logger.Log("log acceptance feedback for %s: %v", callerID, err)
		}
	}
	return deliverable, nil
}

// PendingClarifications returns the pending requests addressed to the
// session, oldest first. Children poll this when the transport has no
// push channel.
func (o *Orchestrator) PendingClarifications(sessionID string) ([]*models.ClarificationRequest, error) {
	if _, err := o.getSession(sessionID); err != nil {
		return nil, err
	}
	reqs, err := o.store.ListPendingClarifications(sessionID)
	if err != nil {
		return nil, fmt.Errorf("list clarifications: %w", err)
	}
	return reqs, nil
}

// authorizeParentOf is the single guard for every cross-session call: it
// verifies the caller is the direct parent of the target and returns the
// target session.
func (o *Orchestrator) authorizeParentOf(callerID, targetID string) (*models.Session, error) {
	target, err := o.getSession(targetID)
	if err != nil {
		return nil, err
	}
	if target.ParentID != callerID {
		return nil, fmt.Errorf("session %s is not a child of %s: %w", targetID, callerID, ErrNotYourChild)
	}
	return target, nil
}

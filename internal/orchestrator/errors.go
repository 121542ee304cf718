package orchestrator

import "errors"

// Sentinel errors for precondition violations and lookups. The dispatch
// layer translates these into tool-result error strings; nothing at this
// layer is fatal, since the caller is an LLM-driven agent that must be
// able to read the error and retry differently.
var (
	// ErrNotFound indicates an unknown session, draft, or clarification id.
	ErrNotFound = errors.New("not found")
	// ErrMaxDepth indicates spawning would exceed the maximum tree depth.
	ErrMaxDepth = errors.New("maximum session depth reached")
	// ErrMaxConcurrent indicates the tree is at its active-session limit.
	ErrMaxConcurrent = errors.New("maximum concurrent sessions reached")
	// ErrDelivered indicates the session already finalized a deliverable
	// and accepts no further mutation.
	ErrDelivered = errors.New("session already delivered")
	// ErrArchived indicates the session was archived.
	ErrArchived = errors.New("session is archived")
	// ErrNotYourChild indicates a cross-session call on a session that is
	// not the caller's direct child.
	ErrNotYourChild = errors.New("you can only request clarification from your own child agents")
	// ErrNotYourClarification indicates a response to a clarification
	// addressed to a different session.
	ErrNotYourClarification = errors.New("clarification request is not addressed to this session")
	// ErrNoPendingDraft indicates the child has no draft awaiting review.
	ErrNoPendingDraft = errors.New("no pending draft for this session")
	// ErrAlreadyResponded indicates the clarification was already answered.
	ErrAlreadyResponded = errors.New("clarification request already responded")
	// ErrNoEscalation indicates there is no pending escalation to resolve.
	ErrNoEscalation = errors.New("no pending escalation")
	// ErrInvalidStatus indicates an unknown or disallowed status value.
	ErrInvalidStatus = errors.New("invalid agent status")
)

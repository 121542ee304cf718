package orchestrator

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/navihq/navi/internal/state"
	"github.com/navihq/navi/pkg/models"
)

func TestDraftRoundTrip(t *testing.T) {
	o := newTestOrchestrator(t, testConfig())
	rec := record(o)
	root := mustSpawnRoot(t, o)
	child := mustSpawn(t, o, root.ID, "researcher")

	draft, err := o.SubmitDraft(child.ID, DraftConfig{
		Type:    models.DeliverableResearch,
		Summary: "findings",
		Content: "draft v1",
	})
	if err != nil {
		t.Fatalf("SubmitDraft: %v", err)
	}
	if draft.RevisionNumber != 1 {
		t.Errorf("revision = %d, want 1", draft.RevisionNumber)
	}

	// Submitting a draft does not change the child's status.
	s, _ := o.GetSession(child.ID)
	if s.AgentStatus != models.StatusWorking {
		t.Errorf("status after draft = %s, want working", s.AgentStatus)
	}

	req, err := o.RequestClarification(root.ID, child.ID, "what sources?", "")
	if err != nil {
		t.Fatalf("RequestClarification: %v", err)
	}
	if req.Status != models.ClarificationPending {
		t.Errorf("request status = %s, want pending", req.Status)
	}
	if req.DraftID != draft.DraftID {
		t.Errorf("request draft = %s, want %s", req.DraftID, draft.DraftID)
	}

	pending, err := o.PendingClarifications(child.ID)
	if err != nil {
		t.Fatalf("PendingClarifications: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != req.ID {
		t.Fatalf("pending = %+v, want the one request", pending)
	}

	if _, err := o.RespondToClarification(child.ID, req.ID, "arxiv + docs"); err != nil {
		t.Fatalf("RespondToClarification: %v", err)
	}
	s, _ = o.GetSession(child.ID)
	if s.AgentStatus != models.StatusPendingReview {
		t.Errorf("status after response = %s, want pending_review", s.AgentStatus)
	}

	got, err := o.AcceptDeliverable(root.ID, child.ID, "solid work")
	if err != nil {
		t.Fatalf("AcceptDeliverable: %v", err)
	}
	if got.Content != "draft v1" {
		t.Errorf("final content = %q, want the last draft's content", got.Content)
	}

	s, _ = o.GetSession(child.ID)
	if s.AgentStatus != models.StatusDelivered && s.AgentStatus != models.StatusArchived {
		t.Errorf("status after accept = %s, want delivered", s.AgentStatus)
	}
	if s.Deliverable == nil || s.Deliverable.Content != "draft v1" {
		t.Errorf("deliverable = %+v, want finalized draft", s.Deliverable)
	}

	// Acceptance triggers the same deferred archive as Deliver.
	rec.waitFor(t, EventArchived, time.Second)
	s, _ = o.GetSession(child.ID)
	if !s.Archived {
		t.Error("child not archived after acceptance")
	}

	// Feedback was logged as a decision on the caller's tree.
	decisions, err := o.store.ListDecisions(root.ID)
	if err != nil {
		t.Fatalf("ListDecisions: %v", err)
	}
	found := false
	for _, d := range decisions {
		if d.Category == "review" && d.Rationale == "solid work" {
			found = true
		}
	}
	if !found {
		t.Errorf("acceptance feedback not journaled: %+v", decisions)
	}
}

func TestResubmitBumpsRevision(t *testing.T) {
	o := newTestOrchestrator(t, testConfig())
	root := mustSpawnRoot(t, o)
	child := mustSpawn(t, o, root.ID, "writer")

	if _, err := o.SubmitDraft(child.ID, DraftConfig{Type: models.DeliverableCode, Summary: "v1", Content: "one"}); err != nil {
		t.Fatalf("first draft: %v", err)
	}
	draft, err := o.SubmitDraft(child.ID, DraftConfig{Type: models.DeliverableCode, Summary: "v2", Content: "two"})
	if err != nil {
		t.Fatalf("second draft: %v", err)
	}
	if draft.RevisionNumber != 2 {
		t.Errorf("revision = %d, want 2", draft.RevisionNumber)
	}

	// The replacement is what acceptance finalizes.
	got, err := o.AcceptDeliverable(root.ID, child.ID, "")
	if err != nil {
		t.Fatalf("AcceptDeliverable: %v", err)
	}
	if got.Content != "two" {
		t.Errorf("final content = %q, want the replacement draft", got.Content)
	}
}

func TestClarificationRequiresParent(t *testing.T) {
	o := newTestOrchestrator(t, testConfig())
	root := mustSpawnRoot(t, o)
	a := mustSpawn(t, o, root.ID, "a")
	b := mustSpawn(t, o, root.ID, "b")

	if _, err := o.SubmitDraft(b.ID, DraftConfig{Type: models.DeliverableResearch, Summary: "s", Content: "c"}); err != nil {
		t.Fatalf("SubmitDraft: %v", err)
	}

	// A sibling is not the parent.
	if _, err := o.RequestClarification(a.ID, b.ID, "q", ""); !errors.Is(err, ErrNotYourChild) {
		t.Fatalf("sibling clarification: got %v, want ErrNotYourChild", err)
	}

	// The refused request left nothing behind.
	pending, err := o.PendingClarifications(b.ID)
	if err != nil {
		t.Fatalf("PendingClarifications: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after refusal = %d, want 0", len(pending))
	}
}

func TestClarificationRequiresDraft(t *testing.T) {
	o := newTestOrchestrator(t, testConfig())
	root := mustSpawnRoot(t, o)
	child := mustSpawn(t, o, root.ID, "worker")

	if _, err := o.RequestClarification(root.ID, child.ID, "q", ""); !errors.Is(err, ErrNoPendingDraft) {
		t.Errorf("got %v, want ErrNoPendingDraft", err)
	}
	if _, err := o.AcceptDeliverable(root.ID, child.ID, ""); !errors.Is(err, ErrNoPendingDraft) {
		t.Errorf("accept without draft: got %v, want ErrNoPendingDraft", err)
	}
}

func TestRespondToClarificationGuards(t *testing.T) {
	o := newTestOrchestrator(t, testConfig())
	root := mustSpawnRoot(t, o)
	child := mustSpawn(t, o, root.ID, "worker")
	other := mustSpawn(t, o, root.ID, "bystander")

	if _, err := o.SubmitDraft(child.ID, DraftConfig{Type: models.DeliverableResearch, Summary: "s", Content: "c"}); err != nil {
		t.Fatalf("SubmitDraft: %v", err)
	}
	req, err := o.RequestClarification(root.ID, child.ID, "q", "")
	if err != nil {
		t.Fatalf("RequestClarification: %v", err)
	}

	// Only the addressed child may respond.
	if _, err := o.RespondToClarification(other.ID, req.ID, "not mine"); !errors.Is(err, ErrNotYourClarification) {
		t.Errorf("foreign response: got %v, want ErrNotYourClarification", err)
	}

	if _, err := o.RespondToClarification(child.ID, req.ID, "answer"); err != nil {
		t.Fatalf("RespondToClarification: %v", err)
	}

	// A responded request is immutable.
	if _, err := o.RespondToClarification(child.ID, req.ID, "changed my mind"); !errors.Is(err, ErrAlreadyResponded) {
		t.Fatalf("second response: got %v, want ErrAlreadyResponded", err)
	}
	got, err := o.store.GetClarification(req.ID)
	if err != nil {
		t.Fatalf("GetClarification: %v", err)
	}
	if got.Response != "answer" {
		t.Errorf("response mutated to %q after rejected update", got.Response)
	}

	if _, err := o.RespondToClarification(child.ID, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown clarification: got %v, want ErrNotFound", err)
	}
}

// draftReadHook runs a one-shot callback right after a draft read, so a
// test can interleave work at that exact point.
type draftReadHook struct {
	Store
	mu   sync.Mutex
	hook func()
}

func (h *draftReadHook) setHook(fn func()) {
	h.mu.Lock()
	h.hook = fn
	h.mu.Unlock()
}

func (h *draftReadHook) GetDraft(sessionID string) (*models.DraftDeliverable, error) {
	d, err := h.Store.GetDraft(sessionID)
	h.mu.Lock()
	hook := h.hook
	h.hook = nil
	h.mu.Unlock()
	if hook != nil {
		hook()
	}
	return d, err
}

func TestAcceptWithConcurrentResubmit(t *testing.T) {
	hooked := &draftReadHook{Store: state.NewMemory()}
	o := New(hooked, WithConfig(Config{MaxDepth: 3, MaxConcurrent: 4, ArchiveDelay: time.Minute}))
	t.Cleanup(o.Stop)

	root := mustSpawnRoot(t, o)
	child := mustSpawn(t, o, root.ID, "writer")
	if _, err := o.SubmitDraft(child.ID, DraftConfig{Type: models.DeliverableResearch, Summary: "v1", Content: "one"}); err != nil {
		t.Fatal(err)
	}

	// Fire a resubmission at the moment acceptance reads the draft.
	// Replacement and acceptance serialize on the orchestrator mutex, so
	// the resubmit either lands before the read or is refused after
	// delivery; a successful revision is never silently discarded.
	resubmit := make(chan error, 1)
	hooked.setHook(func() {
		go func() {
			_, err := o.SubmitDraft(child.ID, DraftConfig{Type: models.DeliverableResearch, Summary: "v2", Content: "two"})
			resubmit <- err
		}()
		time.Sleep(50 * time.Millisecond)
	})

	accepted, err := o.AcceptDeliverable(root.ID, child.ID, "")
	if err != nil {
		t.Fatalf("AcceptDeliverable: %v", err)
	}

	want := "one"
	if err := <-resubmit; err == nil {
		want = "two"
	} else if !errors.Is(err, ErrDelivered) {
		t.Fatalf("resubmit: %v", err)
	}

	if accepted.Content != want {
		t.Errorf("accepted content = %q, want the last successfully submitted draft %q", accepted.Content, want)
	}
	s, _ := o.GetSession(child.ID)
	if s.Deliverable == nil || s.Deliverable.Content != want {
		t.Errorf("deliverable = %+v, want content %q", s.Deliverable, want)
	}
}

func TestDraftOnDeliveredSession(t *testing.T) {
	// A long archive delay keeps the session in delivered, not archived,
	// for the whole test.
	o := newTestOrchestrator(t, Config{MaxDepth: 3, MaxConcurrent: 4, ArchiveDelay: time.Minute})
	root := mustSpawnRoot(t, o)
	child := mustSpawn(t, o, root.ID, "worker")

	if err := o.Deliver(child.ID, models.Deliverable{Type: models.DeliverableResearch, Summary: "s", Content: "c"}); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if _, err := o.SubmitDraft(child.ID, DraftConfig{Type: models.DeliverableResearch, Summary: "s", Content: "c"}); !errors.Is(err, ErrDelivered) {
		t.Errorf("draft after delivery: got %v, want ErrDelivered", err)
	}
}

package state

import (
	"sort"
	"sync"

	"github.com/navihq/navi/pkg/models"
)

// Memory is an in-memory implementation of the same store surface the
// SQLite DB provides. It backs tests and `navi serve --ephemeral`.
// Values are copied on the way in and out so callers never share state
// with the store.
type Memory struct {
	mu             sync.RWMutex
	sessions       map[string]*models.Session
	sessionOrder   []string
	decisions      map[string][]*models.Decision
	artifacts      map[string][]*models.Artifact
	drafts         map[string]*models.DraftDeliverable
	clarifications map[string]*models.ClarificationRequest
	clarOrder      []string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		sessions:       make(map[string]*models.Session),
		decisions:      make(map[string][]*models.Decision),
		artifacts:      make(map[string][]*models.Artifact),
		drafts:         make(map[string]*models.DraftDeliverable),
		clarifications: make(map[string]*models.ClarificationRequest),
	}
}

// CreateSession stores a new session.
func (m *Memory) CreateSession(s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = copySession(s)
	m.sessionOrder = append(m.sessionOrder, s.ID)
	return nil
}

// GetSession returns the session, or (nil, nil) if absent.
func (m *Memory) GetSession(id string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return copySession(s), nil
}

// UpdateSession replaces the stored session.
func (m *Memory) UpdateSession(s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = copySession(s)
	return nil
}

// GetChildren returns the direct children of a session, oldest first.
func (m *Memory) GetChildren(parentID string) ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Session
	for _, id := range m.sessionOrder {
		if s := m.sessions[id]; s != nil && s.ParentID == parentID {
			out = append(out, copySession(s))
		}
	}
	return out, nil
}

// GetDescendants returns every session below id, excluding id itself.
func (m *Memory) GetDescendants(id string) ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	children := make(map[string][]*models.Session)
	for _, sid := range m.sessionOrder {
		s := m.sessions[sid]
		if s.ParentID != "" {
			children[s.ParentID] = append(children[s.ParentID], s)
		}
	}

	var out []*models.Session
	queue := []string{id}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		for _, c := range children[next] {
			out = append(out, copySession(c))
			queue = append(queue, c.ID)
		}
	}
	return out, nil
}

// CountActive counts non-archived working/waiting/blocked sessions in
// the tree.
func (m *Memory) CountActive(rootID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.sessions {
		if s.RootID == rootID && !s.Archived && s.AgentStatus.Active() {
			n++
		}
	}
	return n, nil
}

// GetTree returns every non-archived session sharing rootID, shallowest
// first.
func (m *Memory) GetTree(rootID string) ([]*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Session
	for _, id := range m.sessionOrder {
		if s := m.sessions[id]; s.RootID == rootID && !s.Archived {
			out = append(out, copySession(s))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Depth < out[j].Depth })
	return out, nil
}

// AppendDecision records a decision.
func (m *Memory) AppendDecision(d *models.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *d
	m.decisions[d.RootID] = append(m.decisions[d.RootID], &c)
	return nil
}

// ListDecisions returns the tree's decisions, newest first.
func (m *Memory) ListDecisions(rootID string) ([]*models.Decision, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.decisions[rootID]
	out := make([]*models.Decision, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		c := *recs[i]
		out = append(out, &c)
	}
	return out, nil
}

// AppendArtifact records an artifact.
func (m *Memory) AppendArtifact(a *models.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *a
	m.artifacts[a.RootID] = append(m.artifacts[a.RootID], &c)
	return nil
}

// ListArtifacts returns the tree's artifacts, newest first.
func (m *Memory) ListArtifacts(rootID string) ([]*models.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.artifacts[rootID]
	out := make([]*models.Artifact, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		c := *recs[i]
		out = append(out, &c)
	}
	return out, nil
}

// PutDraft stores the draft, replacing any prior draft for the session.
func (m *Memory) PutDraft(d *models.DraftDeliverable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *d
	m.drafts[d.SessionID] = &c
	return nil
}

// GetDraft returns the session's active draft, or (nil, nil) if none.
func (m *Memory) GetDraft(sessionID string) (*models.DraftDeliverable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drafts[sessionID]
	if !ok {
		return nil, nil
	}
	c := *d
	return &c, nil
}

// DeleteDraft removes the session's active draft.
func (m *Memory) DeleteDraft(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drafts, sessionID)
	return nil
}

// CreateClarification stores a clarification request.
func (m *Memory) CreateClarification(c *models.ClarificationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.clarifications[c.ID] = &cp
	m.clarOrder = append(m.clarOrder, c.ID)
	return nil
}

// GetClarification returns the request, or (nil, nil) if absent.
func (m *Memory) GetClarification(id string) (*models.ClarificationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clarifications[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// UpdateClarification replaces the stored request.
func (m *Memory) UpdateClarification(c *models.ClarificationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.clarifications[c.ID] = &cp
	return nil
}

// ListPendingClarifications returns pending requests for the session,
// oldest first.
func (m *Memory) ListPendingClarifications(sessionID string) ([]*models.ClarificationRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.ClarificationRequest
	for _, id := range m.clarOrder {
		c := m.clarifications[id]
		if c.SessionID == sessionID && c.Status == models.ClarificationPending {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func copySession(s *models.Session) *models.Session {
	c := *s
	if s.Escalation != nil {
		e := *s.Escalation
		c.Escalation = &e
	}
	if s.Deliverable != nil {
		d := *s.Deliverable
		c.Deliverable = &d
	}
	return &c
}

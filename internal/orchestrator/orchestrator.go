package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/navihq/navi/pkg/models"
)

// Config holds the orchestrator's tree-wide limits.
type Config struct {
	// MaxDepth is the maximum tree depth; a session at depth MaxDepth-1
	// cannot spawn children.
	MaxDepth int
	// MaxConcurrent caps active (working/waiting/blocked) sessions per
	// root tree.
	MaxConcurrent int
	// ArchiveDelay is how long after delivery a session stays visible
	// before it is archived. Observers rely on the delivered event
	// preceding the archived event, not on the exact duration.
	ArchiveDelay time.Duration
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		MaxDepth:      5,
		MaxConcurrent: 8,
		ArchiveDelay:  5 * time.Second,
	}
}

// SpawnConfig describes the child session to create.
type SpawnConfig struct {
	Title     string
	Role      string
	Task      string
	Model     string
	Backend   string
	AgentType string
	Context   string
}

// Orchestrator owns the session tree. It is the sole writer of session,
// escalation, and deliverable state; all mutations are synchronous and
// guarded by a single mutex because the limit checks are check-then-act.
// Events are emitted after the store write, outside the lock.
type Orchestrator struct {
	cfg      Config
	store    Store
	emitter  *Emitter
	archiver *archiver
	logger   *DebugLogger

	mu sync.Mutex
	// busy tracks which sessions are actively doing something right now,
	// for UI activity indicators. Entries are dropped on archival.
	busy map[string]bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig overrides the default limits.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator backed by the given store.
func New(store Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:     DefaultConfig(),
		store:   store,
		emitter: NewEmitter(),
		logger:  NopLogger(),
		busy:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.archiver = newArchiver(func(id string) {
		if err := o.Archive(id); err != nil {
			o.logger.Log("deferred archive of %s failed: %v", id, err)
		}
	})
	return o
}

// Subscribe registers an event handler and returns its unsubscribe
// function.
func (o *Orchestrator) Subscribe(fn func(Event)) func() {
	return o.emitter.Subscribe(fn)
}

// Stop cancels pending deferred archives and closes the debug log.
// Sessions already delivered but not yet archived stay delivered; a
// restart may archive them explicitly.
func (o *Orchestrator) Stop() {
	o.archiver.Stop()
	o.logger.Close()
}

// GetSession returns the session or ErrNotFound.
func (o *Orchestrator) GetSession(id string) (*models.Session, error) {
	return o.getSession(id)
}

// GetTree returns every non-archived session in the root's tree.
func (o *Orchestrator) GetTree(rootID string) ([]*models.Session, error) {
	return o.store.GetTree(rootID)
}

// IsBusy reports whether the session is actively doing something, for
// activity indicators.
func (o *Orchestrator) IsBusy(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy[id]
}

// SpawnRoot creates a new root session (depth 0, its own tree).
func (o *Orchestrator) SpawnRoot(cfg SpawnConfig) (*models.Session, error) {
	now := time.Now()
	s := &models.Session{
		ID:          uuid.NewString(),
		Depth:       0,
		Title:       cfg.Title,
		Role:        cfg.Role,
		Task:        cfg.Task,
		AgentStatus: models.StatusWorking,
		Model:       cfg.Model,
		Backend:     cfg.Backend,
		AgentType:   cfg.AgentType,
		Context:     cfg.Context,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.RootID = s.ID

	o.mu.Lock()
	if err := o.store.CreateSession(s); err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("create root session: %w", err)
	}
	o.busy[s.ID] = true
	o.mu.Unlock()

	o.logger.Log("spawned root session %s (%s)", s.ID, s.Title)
	o.emitter.Emit(Event{Type: EventSpawned, SessionID: s.ID, RootID: s.RootID, Status: s.AgentStatus, Session: s})
	return s, nil
}

// Spawn creates a child session under parentID after checking the depth
// and per-tree concurrency limits. On a precondition failure it returns
// no session and a sentinel error naming the specific limit; the dispatch
// layer converts that into a tool-result error string.
func (o *Orchestrator) Spawn(parentID string, cfg SpawnConfig) (*models.Session, error) {
	o.mu.Lock()
	parent, err := o.getSessionLocked(parentID)
	if err != nil {
		o.mu.Unlock()
		return nil, err
	}
	if err := mutable(parent); err != nil {
		o.mu.Unlock()
		return nil, err
	}

	if parent.Depth >= o.cfg.MaxDepth-1 {
		o.mu.Unlock()
		o.logger.Log("spawn refused for %s: depth %d at limit %d", parentID, parent.Depth, o.cfg.MaxDepth)
		return nil, fmt.Errorf("parent at depth %d: %w", parent.Depth, ErrMaxDepth)
	}

	active, err := o.store.CountActive(parent.RootID)
	if err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("count active sessions: %w", err)
	}
	if active >= o.cfg.MaxConcurrent {
		o.mu.Unlock()
		o.logger.Log("spawn refused for %s: %d active sessions at limit %d", parentID, active, o.cfg.MaxConcurrent)
		return nil, fmt.Errorf("%d active sessions in tree: %w", active, ErrMaxConcurrent)
	}

	now := time.Now()
	s := &models.Session{
		ID:          uuid.NewString(),
		ParentID:    parent.ID,
		RootID:      parent.RootID,
		Depth:       parent.Depth + 1,
		Title:       cfg.Title,
		Role:        cfg.Role,
		Task:        cfg.Task,
		AgentStatus: models.StatusWorking,
		Model:       cfg.Model,
		Backend:     cfg.Backend,
		AgentType:   cfg.AgentType,
		Context:     cfg.Context,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.store.CreateSession(s); err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("create session: %w", err)
	}
	o.busy[s.ID] = true
	o.mu.Unlock()

	o.logger.Log("spawned session %s (%s) under %s at depth %d", s.ID, s.Role, parent.ID, s.Depth)
	o.emitter.Emit(Event{Type: EventSpawned, SessionID: s.ID, RootID: s.RootID, ParentID: s.ParentID, Status: s.AgentStatus, Session: s})
	return s, nil
}

// CanSpawn restates the spawn preconditions without side effects. The
// returned reason is human-readable and empty when spawning is allowed.
func (o *Orchestrator) CanSpawn(id string) (bool, string) {
	s, err := o.getSession(id)
	if err != nil {
		return false, fmt.Sprintf("session %s not found", id)
	}
	if s.Depth >= o.cfg.MaxDepth-1 {
		return false, fmt.Sprintf("maximum session depth (%d) reached", o.cfg.MaxDepth)
	}
	active, err := o.store.CountActive(s.RootID)
	if err != nil {
		return false, fmt.Sprintf("cannot count active sessions: %v", err)
	}
	if active >= o.cfg.MaxConcurrent {
		return false, fmt.Sprintf("maximum concurrent sessions (%d) reached, wait for a session to finish", o.cfg.MaxConcurrent)
	}
	return true, ""
}

// UpdateStatus transitions the session's agent status. Delivered and
// archived are terminal states owned by Deliver and Archive and cannot be
// set here.
func (o *Orchestrator) UpdateStatus(id string, status models.AgentStatus) error {
	if !status.Valid() || status == models.StatusDelivered || status == models.StatusArchived {
		return fmt.Errorf("%q: %w", status, ErrInvalidStatus)
	}

	o.mu.Lock()
	s, err := o.getSessionLocked(id)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	if err := mutable(s); err != nil {
		o.mu.Unlock()
		return err
	}

	prev := s.AgentStatus
	s.AgentStatus = status
	s.UpdatedAt = time.Now()
	if err := o.store.UpdateSession(s); err != nil {
		o.mu.Unlock()
		return fmt.Errorf("update session: %w", err)
	}
	o.busy[id] = status == models.StatusWorking
	o.mu.Unlock()

	o.emitter.Emit(Event{Type: EventStatusChanged, SessionID: s.ID, RootID: s.RootID, ParentID: s.ParentID, Status: status, PrevStatus: prev})
	return nil
}

// Escalate records the session's escalation and transitions it to
// blocked in the same call. A prior pending escalation is overwritten.
// Coupling the status transition here keeps "blocked without an
// escalation record" unrepresentable.
func (o *Orchestrator) Escalate(id string, esc models.Escalation) error {
	if !esc.Type.Valid() {
		return fmt.Errorf("escalation type %q: %w", esc.Type, ErrInvalidStatus)
	}

	o.mu.Lock()
	s, err := o.getSessionLocked(id)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	if err := mutable(s); err != nil {
		o.mu.Unlock()
		return err
	}

	esc.CreatedAt = time.Now()
	prev := s.AgentStatus
	s.Escalation = &esc
	s.AgentStatus = models.StatusBlocked
	s.UpdatedAt = esc.CreatedAt
	if err := o.store.UpdateSession(s); err != nil {
		o.mu.Unlock()
		return fmt.Errorf("update session: %w", err)
	}
	o.busy[id] = false
	o.mu.Unlock()

	o.logger.Log("session %s escalated (%s): %s", id, esc.Type, esc.Summary)
	o.emitter.Emit(Event{Type: EventEscalated, SessionID: s.ID, RootID: s.RootID, ParentID: s.ParentID, Escalation: &esc})
	o.emitter.Emit(Event{Type: EventStatusChanged, SessionID: s.ID, RootID: s.RootID, ParentID: s.ParentID, Status: models.StatusBlocked, PrevStatus: prev})
	return nil
}

// ResolveEscalation clears the pending escalation. The session's status
// is left untouched; the resuming agent turn calls UpdateStatus itself.
func (o *Orchestrator) ResolveEscalation(id string, response string) error {
	o.mu.Lock()
	s, err := o.getSessionLocked(id)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	if s.Escalation == nil {
		o.mu.Unlock()
		return fmt.Errorf("session %s: %w", id, ErrNoEscalation)
	}

	s.Escalation = nil
	s.UpdatedAt = time.Now()
	if err := o.store.UpdateSession(s); err != nil {
		o.mu.Unlock()
		return fmt.Errorf("update session: %w", err)
	}
	o.mu.Unlock()

	o.emitter.Emit(Event{Type: EventEscalationResolved, SessionID: s.ID, RootID: s.RootID, ParentID: s.ParentID, Message: response})
	return nil
}

// Deliver finalizes the session's deliverable. The session becomes
// terminal immediately; archival is scheduled after the configured delay
// so observers can render the just-delivered state first.
func (o *Orchestrator) Deliver(id string, d models.Deliverable) error {
	o.mu.Lock()
	s, err := o.getSessionLocked(id)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	if err := o.finalizeLocked(s, &d); err != nil {
		o.mu.Unlock()
		return err
	}
	o.mu.Unlock()

	o.afterDeliver(s)
	return nil
}

// finalizeLocked writes the deliverable onto the session. Caller holds
// o.mu.
func (o *Orchestrator) finalizeLocked(s *models.Session, d *models.Deliverable) error {
	if !d.Type.Valid() {
		return fmt.Errorf("deliverable type %q: %w", d.Type, ErrInvalidStatus)
	}
	if err := mutable(s); err != nil {
		return err
	}

	s.Deliverable = d
	s.AgentStatus = models.StatusDelivered
	s.UpdatedAt = time.Now()
	if err := o.store.UpdateSession(s); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	delete(o.busy, s.ID)
	return nil
}

// afterDeliver emits the delivered event and schedules the deferred
// archive. Called without o.mu held.
func (o *Orchestrator) afterDeliver(s *models.Session) {
	o.logger.Log("session %s delivered: %s", s.ID, s.Deliverable.Summary)
	o.emitter.Emit(Event{Type: EventDelivered, SessionID: s.ID, RootID: s.RootID, ParentID: s.ParentID, Status: s.AgentStatus, Deliverable: s.Deliverable})
	o.archiver.Schedule(s.ID, o.cfg.ArchiveDelay)
}

// Archive marks the session and every descendant as archived and drops
// their runtime tracking. It is idempotent: archiving a missing or
// already-archived session is a no-op, since the deferred archive may
// fire after an explicit one. One archived event is emitted per call,
// not per descendant.
func (o *Orchestrator) Archive(id string) error {
	o.mu.Lock()
	s, err := o.store.GetSession(id)
	if err != nil {
		o.mu.Unlock()
		return fmt.Errorf("get session: %w", err)
	}
	if s == nil || s.Archived {
		o.mu.Unlock()
		return nil
	}

	descendants, err := o.store.GetDescendants(id)
	if err != nil {
		o.mu.Unlock()
		return fmt.Errorf("get descendants: %w", err)
	}

	count := 0
	for _, node := range append([]*models.Session{s}, descendants...) {
		if node.Archived {
			continue
		}
		node.Archived = true
		node.AgentStatus = models.StatusArchived
		node.UpdatedAt = time.Now()
		if err := o.store.UpdateSession(node); err != nil {
			o.mu.Unlock()
			return fmt.Errorf("archive session %s: %w", node.ID, err)
		}
		delete(o.busy, node.ID)
		o.archiver.Cancel(node.ID)
		count++
	}
	o.mu.Unlock()

	o.logger.Log("archived session %s and %d descendant(s)", id, count-1)
	o.emitter.Emit(Event{Type: EventArchived, SessionID: s.ID, RootID: s.RootID, ParentID: s.ParentID, Status: models.StatusArchived, Message: fmt.Sprintf("%d session(s) archived", count)})
	return nil
}

// LogDecision appends a decision to the session's tree log. The root id
// is resolved from the session, never supplied by the caller.
func (o *Orchestrator) LogDecision(sessionID, category, decision, rationale string) (*models.Decision, error) {
	s, err := o.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	rec := &models.Decision{
		ID:        uuid.NewString(),
		RootID:    s.RootID,
		SessionID: s.ID,
		Category:  category,
		Decision:  decision,
		Rationale: rationale,
		CreatedAt: time.Now(),
	}
	if err := o.store.AppendDecision(rec); err != nil {
		return nil, fmt.Errorf("append decision: %w", err)
	}

	o.emitter.Emit(Event{Type: EventDecisionLogged, SessionID: s.ID, RootID: s.RootID, Decision: rec})
	return rec, nil
}

// LogArtifact appends an artifact record to the session's tree log.
func (o *Orchestrator) LogArtifact(sessionID, path, description, artifactType string) (*models.Artifact, error) {
	s, err := o.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	rec := &models.Artifact{
		ID:          uuid.NewString(),
		RootID:      s.RootID,
		SessionID:   s.ID,
		Path:        path,
		Description: description,
		Type:        artifactType,
		CreatedAt:   time.Now(),
	}
	if err := o.store.AppendArtifact(rec); err != nil {
		return nil, fmt.Errorf("append artifact: %w", err)
	}

	o.emitter.Emit(Event{Type: EventArtifactCreated, SessionID: s.ID, RootID: s.RootID, Artifact: rec})
	return rec, nil
}

func (o *Orchestrator) getSession(id string) (*models.Session, error) {
	s, err := o.store.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if s == nil {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return s, nil
}

// getSessionLocked is getSession for callers already holding o.mu. The
// store does its own locking, so the distinction only documents intent.
func (o *Orchestrator) getSessionLocked(id string) (*models.Session, error) {
	return o.getSession(id)
}

// mutable returns the terminal-state error for sessions that accept no
// further mutation.
func mutable(s *models.Session) error {
	if s.Archived {
		return fmt.Errorf("session %s: %w", s.ID, ErrArchived)
	}
	if s.Deliverable != nil {
		return fmt.Errorf("session %s: %w", s.ID, ErrDelivered)
	}
	return nil
}

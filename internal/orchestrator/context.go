package orchestrator

import (
	"fmt"
	"strings"

	"github.com/navihq/navi/pkg/models"
)

// Progressive disclosure: context queries return bounded excerpts, never
// full dumps, so the context injected into a child agent's prompt stays
// small no matter how much history the tree accumulates. This is plain
// substring matching with a recent-N fallback, not search.
const (
	// contextFallbackLimit is how many recent records a decisions or
	// artifacts query returns when nothing matches.
	contextFallbackLimit = 10
	// excerptLen caps any single text field in a context result.
	excerptLen = 240
)

// ContextSource selects what a context query looks at.
type ContextSource string

const (
	SourceParent    ContextSource = "parent"
	SourceSibling   ContextSource = "sibling"
	SourceDecisions ContextSource = "decisions"
	SourceArtifacts ContextSource = "artifacts"
)

// ContextRequest is a progressive-disclosure query from a session.
type ContextRequest struct {
	Source ContextSource `json:"source"`
	Query  string        `json:"query"`
	// SiblingRole narrows a sibling query to one sibling by role.
	SiblingRole string `json:"sibling_role,omitempty"`
}

// ParentExcerpt is the fixed-shape summary of a session's parent.
type ParentExcerpt struct {
	ID     string             `json:"id"`
	Title  string             `json:"title"`
	Role   string             `json:"role"`
	Task   string             `json:"task"`
	Status models.AgentStatus `json:"status"`
	Depth  int                `json:"depth"`
}

// SiblingExcerpt is a one-sibling summary. DeliverableSummary is set only
// when the sibling already delivered.
type SiblingExcerpt struct {
	Role               string             `json:"role"`
	Title              string             `json:"title"`
	Task               string             `json:"task,omitempty"`
	Status             models.AgentStatus `json:"status"`
	DeliverableSummary string             `json:"deliverable_summary,omitempty"`
}

// ContextResult is the shaped answer to a context query. Found is false
// when the query had no direct answer; Message then says why and what is
// available instead.
type ContextResult struct {
	Source    ContextSource      `json:"source"`
	Found     bool               `json:"found"`
	Message   string             `json:"message,omitempty"`
	Parent    *ParentExcerpt     `json:"parent,omitempty"`
	Siblings  []SiblingExcerpt   `json:"siblings,omitempty"`
	Decisions []*models.Decision `json:"decisions,omitempty"`
	Artifacts []*models.Artifact `json:"artifacts,omitempty"`
}

// GetContext answers a progressive-disclosure query for the session.
func (o *Orchestrator) GetContext(sessionID string, req ContextRequest) (*ContextResult, error) {
	s, err := o.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	switch req.Source {
	case SourceParent:
		return o.parentContext(s)
	case SourceSibling:
		return o.siblingContext(s, req.SiblingRole)
	case SourceDecisions:
		return o.decisionContext(s, req.Query)
	case SourceArtifacts:
		return o.artifactContext(s, req.Query)
	default:
		return nil, fmt.Errorf("unknown context source %q (want parent, sibling, decisions, or artifacts)", req.Source)
	}
}

func (o *Orchestrator) parentContext(s *models.Session) (*ContextResult, error) {
	if s.IsRoot() {
		return &ContextResult{Source: SourceParent, Message: "session has no parent"}, nil
	}

	parent, err := o.getSession(s.ParentID)
	if err != nil {
		return nil, err
	}
	return &ContextResult{
		Source: SourceParent,
		Found:  true,
		Parent: &ParentExcerpt{
			ID:     parent.ID,
			Title:  parent.Title,
			Role:   parent.Role,
			Task:   excerpt(parent.Task),
			Status: parent.AgentStatus,
			Depth:  parent.Depth,
		},
	}, nil
}

func (o *Orchestrator) siblingContext(s *models.Session, role string) (*ContextResult, error) {
	if s.IsRoot() {
		return &ContextResult{Source: SourceSibling, Message: "root session has no siblings"}, nil
	}

	children, err := o.store.GetChildren(s.ParentID)
	if err != nil {
		return nil, fmt.Errorf("get siblings: %w", err)
	}

	var siblings []*models.Session
	for _, c := range children {
		if c.ID != s.ID && !c.Archived {
			siblings = append(siblings, c)
		}
	}
	if len(siblings) == 0 {
		return &ContextResult{Source: SourceSibling, Message: "no sibling sessions"}, nil
	}

	// No role given: one-line-per-sibling roster.
	if role == "" {
		result := &ContextResult{Source: SourceSibling, Found: true}
		for _, sib := range siblings {
			result.Siblings = append(result.Siblings, SiblingExcerpt{
				Role:   sib.Role,
				Title:  sib.Title,
				Status: sib.AgentStatus,
			})
		}
		return result, nil
	}

	for _, sib := range siblings {
		if !strings.EqualFold(sib.Role, role) {
			continue
		}
		ex := SiblingExcerpt{
			Role:   sib.Role,
			Title:  sib.Title,
			Task:   excerpt(sib.Task),
			Status: sib.AgentStatus,
		}
		if sib.Deliverable != nil {
			ex.DeliverableSummary = excerpt(sib.Deliverable.Summary)
		}
		return &ContextResult{Source: SourceSibling, Found: true, Siblings: []SiblingExcerpt{ex}}, nil
	}

	roles := make([]string, 0, len(siblings))
	for _, sib := range siblings {
		roles = append(roles, sib.Role)
	}
	return &ContextResult{
		Source:  SourceSibling,
		Message: fmt.Sprintf("no sibling with role %q, available: [%s]", role, strings.Join(roles, ", ")),
	}, nil
}

func (o *Orchestrator) decisionContext(s *models.Session, query string) (*ContextResult, error) {
	all, err := o.store.ListDecisions(s.RootID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}

	var matched []*models.Decision
	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		for _, d := range all {
			if containsFold(q, d.Decision, d.Category, d.Rationale) {
				matched = append(matched, d)
			}
			if len(matched) == contextFallbackLimit {
				break
			}
		}
	}
	if len(matched) > 0 {
		return &ContextResult{Source: SourceDecisions, Found: true, Decisions: boundDecisions(matched)}, nil
	}

	// Fall back to the most recent decisions so the caller always gets
	// something useful.
	if len(all) > contextFallbackLimit {
		all = all[:contextFallbackLimit]
	}
	return &ContextResult{
		Source:    SourceDecisions,
		Message:   fmt.Sprintf("no decisions matched %q, returning the %d most recent", query, len(all)),
		Decisions: boundDecisions(all),
	}, nil
}

func (o *Orchestrator) artifactContext(s *models.Session, query string) (*ContextResult, error) {
	all, err := o.store.ListArtifacts(s.RootID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}

	var matched []*models.Artifact
	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		for _, a := range all {
			if containsFold(q, a.Path, a.Description, a.Type) {
				matched = append(matched, a)
			}
			if len(matched) == contextFallbackLimit {
				break
			}
		}
	}
	if len(matched) > 0 {
		return &ContextResult{Source: SourceArtifacts, Found: true, Artifacts: boundArtifacts(matched)}, nil
	}

	if len(all) > contextFallbackLimit {
		all = all[:contextFallbackLimit]
	}
	return &ContextResult{
		Source:    SourceArtifacts,
		Message:   fmt.Sprintf("no artifacts matched %q, returning the %d most recent", query, len(all)),
		Artifacts: boundArtifacts(all),
	}, nil
}

// containsFold reports whether any of the fields contains the lowercased
// needle, case-insensitively.
func containsFold(needle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

// excerpt truncates long text to the bounded excerpt size.
func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= excerptLen {
		return s
	}
	return string(r[:excerptLen]) + "…"
}

func boundDecisions(in []*models.Decision) []*models.Decision {
	out := make([]*models.Decision, 0, len(in))
	for _, d := range in {
		c := *d
		c.Decision = excerpt(c.Decision)
		c.Rationale = excerpt(c.Rationale)
		out = append(out, &c)
	}
	return out
}

func boundArtifacts(in []*models.Artifact) []*models.Artifact {
	out := make([]*models.Artifact, 0, len(in))
	for _, a := range in {
		c := *a
		c.Description = excerpt(c.Description)
		out = append(out, &c)
	}
	return out
}

package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/navihq/navi/pkg/models"
)

// PutDraft stores the draft, replacing any prior draft for the session.
// One active draft per session is enforced by the primary key.
func (db *DB) PutDraft(d *models.DraftDeliverable) error {
	artifacts, err := json.Marshal(d.Artifacts)
	if err != nil {
		return fmt.Errorf("encode draft artifacts: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO drafts (session_id, draft_id, type, summary, content, artifacts, revision_number, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			draft_id = excluded.draft_id,
			type = excluded.type,
			summary = excluded.summary,
			content = excluded.content,
			artifacts = excluded.artifacts,
			revision_number = excluded.revision_number,
			submitted_at = excluded.submitted_at
	`, d.SessionID, d.DraftID, string(d.Type), d.Summary, d.Content, string(artifacts), d.RevisionNumber, formatTime(d.SubmittedAt))
	if err != nil {
		return fmt.Errorf("put draft: %w", err)
	}
	return nil
}

// GetDraft returns the session's active draft, or (nil, nil) if none.
func (db *DB) GetDraft(sessionID string) (*models.DraftDeliverable, error) {
	row := db.QueryRow(`
		SELECT session_id, draft_id, type, summary, content, artifacts, revision_number, submitted_at
		FROM drafts WHERE session_id = ?
	`, sessionID)

	var (
		d           models.DraftDeliverable
		typ         string
		artifacts   string
		submittedAt string
	)
	err := row.Scan(&d.SessionID, &d.DraftID, &typ, &d.Summary, &d.Content, &artifacts, &d.RevisionNumber, &submittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}

	d.Type = models.DeliverableType(typ)
	if err := json.Unmarshal([]byte(artifacts), &d.Artifacts); err != nil {
		return nil, fmt.Errorf("decode draft artifacts: %w", err)
	}
	if d.SubmittedAt, err = parseTime(submittedAt); err != nil {
		return nil, fmt.Errorf("parse draft submitted_at: %w", err)
	}
	return &d, nil
}

// DeleteDraft removes the session's active draft. Deleting a missing
// draft is a no-op.
func (db *DB) DeleteDraft(sessionID string) error {
	if _, err := db.Exec(`DELETE FROM drafts WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// CreateClarification inserts a clarification request.
func (db *DB) CreateClarification(c *models.ClarificationRequest) error {
	_, err := db.Exec(`
		INSERT INTO clarifications (id, session_id, parent_id, draft_id, question, context, response, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.SessionID, c.ParentID, c.DraftID, c.Question, c.Context, c.Response, string(c.Status), formatTime(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("create clarification: %w", err)
	}
	return nil
}

// GetClarification returns the request by id, or (nil, nil) if absent.
func (db *DB) GetClarification(id string) (*models.ClarificationRequest, error) {
	row := db.QueryRow(`
		SELECT id, session_id, parent_id, draft_id, question, context, response, status, created_at
		FROM clarifications WHERE id = ?
	`, id)
	c, err := scanClarification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get clarification: %w", err)
	}
	return c, nil
}

// UpdateClarification persists the request's response and status.
func (db *DB) UpdateClarification(c *models.ClarificationRequest) error {
	res, err := db.Exec(`
		UPDATE clarifications SET response = ?, status = ? WHERE id = ?
	`, c.Response, string(c.Status), c.ID)
	if err != nil {
		return fmt.Errorf("update clarification: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update clarification: no row for %s", c.ID)
	}
	return nil
}

// ListPendingClarifications returns the pending requests addressed to the
// session, oldest first.
func (db *DB) ListPendingClarifications(sessionID string) ([]*models.ClarificationRequest, error) {
	rows, err := db.Query(`
		SELECT id, session_id, parent_id, draft_id, question, context, response, status, created_at
		FROM clarifications
		WHERE session_id = ? AND status = 'pending'
		ORDER BY created_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list clarifications: %w", err)
	}
	defer rows.Close()

	var out []*models.ClarificationRequest
	for rows.Next() {
		c, err := scanClarification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanClarification(row rowScanner) (*models.ClarificationRequest, error) {
	var (
		c         models.ClarificationRequest
		status    string
		createdAt string
	)
	err := row.Scan(&c.ID, &c.SessionID, &c.ParentID, &c.DraftID, &c.Question, &c.Context, &c.Response, &status, &createdAt)
	if err != nil {
		return nil, err
	}
	c.Status = models.ClarificationStatus(status)
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse clarification created_at: %w", err)
	}
	return &c, nil
}

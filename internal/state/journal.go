package state

import (
	"database/sql"
	"fmt"

	"github.com/navihq/navi/pkg/models"
)

// AppendDecision inserts a decision record. Decisions are append-only.
func (db *DB) AppendDecision(d *models.Decision) error {
	_, err := db.Exec(`
		INSERT INTO decisions (id, root_id, session_id, category, decision, rationale, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.ID, d.RootID, d.SessionID, d.Category, d.Decision, d.Rationale, formatTime(d.CreatedAt))
	if err != nil {
		return fmt.Errorf("append decision: %w", err)
	}
	return nil
}

// ListDecisions returns the tree's decisions, newest first.
func (db *DB) ListDecisions(rootID string) ([]*models.Decision, error) {
	rows, err := db.Query(`
		SELECT id, root_id, session_id, category, decision, rationale, created_at
		FROM decisions WHERE root_id = ?
		ORDER BY created_at DESC, id DESC
	`, rootID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []*models.Decision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// AppendArtifact inserts an artifact record. Artifacts are append-only.
func (db *DB) AppendArtifact(a *models.Artifact) error {
	_, err := db.Exec(`
		INSERT INTO artifacts (id, root_id, session_id, path, description, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.RootID, a.SessionID, a.Path, a.Description, a.Type, formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("append artifact: %w", err)
	}
	return nil
}

// ListArtifacts returns the tree's artifacts, newest first.
func (db *DB) ListArtifacts(rootID string) ([]*models.Artifact, error) {
	rows, err := db.Query(`
		SELECT id, root_id, session_id, path, description, type, created_at
		FROM artifacts WHERE root_id = ?
		ORDER BY created_at DESC, id DESC
	`, rootID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var out []*models.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanDecision(rows *sql.Rows) (*models.Decision, error) {
	var (
		d         models.Decision
		createdAt string
	)
	if err := rows.Scan(&d.ID, &d.RootID, &d.SessionID, &d.Category, &d.Decision, &d.Rationale, &createdAt); err != nil {
		return nil, fmt.Errorf("scan decision: %w", err)
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse decision created_at: %w", err)
	}
	d.CreatedAt = t
	return &d, nil
}

func scanArtifact(rows *sql.Rows) (*models.Artifact, error) {
	var (
		a         models.Artifact
		createdAt string
	)
	if err := rows.Scan(&a.ID, &a.RootID, &a.SessionID, &a.Path, &a.Description, &a.Type, &createdAt); err != nil {
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse artifact created_at: %w", err)
	}
	a.CreatedAt = t
	return &a, nil
}

package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/navihq/navi/pkg/models"
)

const sessionColumns = `id, parent_id, root_id, depth, title, role, task, agent_status,
	model, backend, agent_type, context, escalation, deliverable, draft_revision,
	archived, created_at, updated_at`

// CreateSession inserts a new session row.
func (db *DB) CreateSession(s *models.Session) error {
	escalation, deliverable, err := encodeBlobs(s)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, nullable(s.ParentID), s.RootID, s.Depth, s.Title, s.Role, s.Task, string(s.AgentStatus),
		s.Model, s.Backend, s.AgentType, s.Context, escalation, deliverable, s.DraftRevision,
		boolToInt(s.Archived), formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID. Returns (nil, nil) if absent.
func (db *DB) GetSession(id string) (*models.Session, error) {
	row := db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// UpdateSession persists the full session row.
func (db *DB) UpdateSession(s *models.Session) error {
	escalation, deliverable, err := encodeBlobs(s)
	if err != nil {
		return err
	}

	res, err := db.Exec(`
		UPDATE sessions SET parent_id = ?, root_id = ?, depth = ?, title = ?, role = ?,
			task = ?, agent_status = ?, model = ?, backend = ?, agent_type = ?, context = ?,
			escalation = ?, deliverable = ?, draft_revision = ?, archived = ?, updated_at = ?
		WHERE id = ?
	`, nullable(s.ParentID), s.RootID, s.Depth, s.Title, s.Role, s.Task, string(s.AgentStatus),
		s.Model, s.Backend, s.AgentType, s.Context, escalation, deliverable, s.DraftRevision,
		boolToInt(s.Archived), formatTime(s.UpdatedAt), s.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update session: no row for %s", s.ID)
	}
	return nil
}

// GetChildren returns the direct children of a session, oldest first.
func (db *DB) GetChildren(parentID string) ([]*models.Session, error) {
	rows, err := db.Query(`
		SELECT `+sessionColumns+` FROM sessions
		WHERE parent_id = ? ORDER BY created_at ASC, id ASC
	`, parentID)
	if err != nil {
		return nil, fmt.Errorf("get children: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// GetDescendants returns every session below id via a recursive walk of
// the parent links, excluding id itself.
func (db *DB) GetDescendants(id string) ([]*models.Session, error) {
	rows, err := db.Query(`
		WITH RECURSIVE tree(id) AS (
			SELECT id FROM sessions WHERE parent_id = ?
			UNION ALL
			SELECT s.id FROM sessions s JOIN tree ON s.parent_id = tree.id
		)
		SELECT `+sessionColumns+` FROM sessions WHERE id IN (SELECT id FROM tree)
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get descendants: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// CountActive counts non-archived sessions in the tree whose status is
// working, waiting, or blocked.
func (db *DB) CountActive(rootID string) (int, error) {
	var n int
	row := db.QueryRow(`
		SELECT COUNT(*) FROM sessions
		WHERE root_id = ? AND archived = 0 AND agent_status IN ('working', 'waiting', 'blocked')
	`, rootID)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count active: %w", err)
	}
	return n, nil
}

// GetTree returns every non-archived session sharing rootID, shallowest
// first.
func (db *DB) GetTree(rootID string) ([]*models.Session, error) {
	rows, err := db.Query(`
		SELECT `+sessionColumns+` FROM sessions
		WHERE root_id = ? AND archived = 0
		ORDER BY depth ASC, created_at ASC
	`, rootID)
	if err != nil {
		return nil, fmt.Errorf("get tree: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s                    models.Session
		parentID             sql.NullString
		status               string
		escalation           sql.NullString
		deliverable          sql.NullString
		archived             int
		createdAt, updatedAt string
	)
	err := row.Scan(&s.ID, &parentID, &s.RootID, &s.Depth, &s.Title, &s.Role, &s.Task, &status,
		&s.Model, &s.Backend, &s.AgentType, &s.Context, &escalation, &deliverable, &s.DraftRevision,
		&archived, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	s.ParentID = parentID.String
	s.AgentStatus = models.AgentStatus(status)
	s.Archived = archived != 0
	if escalation.Valid && escalation.String != "" {
		var e models.Escalation
		if err := json.Unmarshal([]byte(escalation.String), &e); err != nil {
			return nil, fmt.Errorf("decode escalation for %s: %w", s.ID, err)
		}
		s.Escalation = &e
	}
	if deliverable.Valid && deliverable.String != "" {
		var d models.Deliverable
		if err := json.Unmarshal([]byte(deliverable.String), &d); err != nil {
			return nil, fmt.Errorf("decode deliverable for %s: %w", s.ID, err)
		}
		s.Deliverable = &d
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", s.ID, err)
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at for %s: %w", s.ID, err)
	}
	return &s, nil
}

func scanSessions(rows *sql.Rows) ([]*models.Session, error) {
	var out []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// encodeBlobs serializes the escalation and deliverable sum-type fields.
// The JSON shape is validated at this boundary: decoding back is the only
// way the blobs are ever read.
func encodeBlobs(s *models.Session) (escalation, deliverable any, err error) {
	escalation, deliverable = nil, nil
	if s.Escalation != nil {
		b, err := json.Marshal(s.Escalation)
		if err != nil {
			return nil, nil, fmt.Errorf("encode escalation: %w", err)
		}
		escalation = string(b)
	}
	if s.Deliverable != nil {
		b, err := json.Marshal(s.Deliverable)
		if err != nil {
			return nil, nil, fmt.Errorf("encode deliverable: %w", err)
		}
		deliverable = string(b)
	}
	return escalation, deliverable, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

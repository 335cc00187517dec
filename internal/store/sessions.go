package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"arbiter/internal/session"
)

// ErrSessionNotFound is returned when a session id has no row.
var ErrSessionNotFound = errors.New("session not found")

// EnsureSession creates the session row on first contact and returns
// the current row either way.
func (s *Store) EnsureSession(id, orgID, userID string) (*session.Session, error) {
	s.mu.Lock()
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO sessions (id, org_id, user_id, status, integrity_resonance)
		 VALUES (?, ?, ?, 'active', 1.0)`,
		id, orgID, userID,
	)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to ensure session %s: %w", id, err)
	}
	return s.GetSession(id)
}

// GetSession fetches one session row.
func (s *Store) GetSession(id string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT id, org_id, user_id, status, integrity_resonance, started_at, ended_at
		 FROM sessions WHERE id = ?`, id,
	)

	var sess session.Session
	var status string
	var endedAt sql.NullTime
	err := row.Scan(&sess.ID, &sess.OrgID, &sess.UserID, &status,
		&sess.IntegrityResonance, &sess.StartedAt, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}

	sess.Status, err = session.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		sess.EndedAt = &t
	}
	return &sess, nil
}

// SetSessionStatus validates the transition against the state machine
// and persists it. Closing a session stamps ended_at.
func (s *Store) SetSessionStatus(id string, to session.Status) error {
	cur, err := s.GetSession(id)
	if err != nil {
		return err
	}
	if err := session.Transition(cur.Status, to); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if to == session.StatusClosed {
		_, err = s.db.Exec(
			`UPDATE sessions SET status = ?, ended_at = ? WHERE id = ?`,
			string(to), time.Now().UTC(), id,
		)
	} else {
		_, err = s.db.Exec(`UPDATE sessions SET status = ? WHERE id = ?`, string(to), id)
	}
	if err != nil {
		return fmt.Errorf("failed to set session %s status: %w", id, err)
	}
	s.logger.Debug("session status updated",
		zap.String("session", id),
		zap.String("from", string(cur.Status)),
		zap.String("to", string(to)))
	return nil
}

// SetIntegrityResonance persists the point-in-time gate value.
func (s *Store) SetIntegrityResonance(id string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE sessions SET integrity_resonance = ? WHERE id = ?`, value, id)
	if err != nil {
		return fmt.Errorf("failed to set integrity resonance for %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

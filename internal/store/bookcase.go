package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"arbiter/internal/tensor"
)

// ShelfStatus is the lifecycle state of a bookcase item.
type ShelfStatus string

const (
	ShelfShelved    ShelfStatus = "SHELVED"
	ShelfUnshelved  ShelfStatus = "UNSHELVED"
	ShelfIntegrated ShelfStatus = "INTEGRATED"
	ShelfPurged     ShelfStatus = "PURGED"
)

// ShelfItem is one archived fracture.
type ShelfItem struct {
	ID                string      `json:"id"`
	SessionID         string      `json:"session_id"`
	Label             string      `json:"label"`
	Content           string      `json:"content"`
	Status            ShelfStatus `json:"status"`
	UnshelveCondition string      `json:"unshelve_condition,omitempty"`
	UnshelvedAt       *time.Time  `json:"unshelved_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

// Shelve archives a tensor out of the live path. Append-only: shelving
// always succeeds given a reachable store, and it does not touch
// session status; that is the orchestrator's decision.
func (s *Store) Shelve(sessionID string, t *tensor.Tensor, reason string) (string, error) {
	content, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to marshal shelved tensor: %w", err)
	}

	id := uuid.NewString()
	label := fmt.Sprintf("FRACTURE_DETECTED: %s", reason)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO bookcase_items (id, session_id, label, content, status)
		 VALUES (?, ?, ?, ?, ?)`,
		id, sessionID, label, string(content), string(ShelfShelved),
	)
	if err != nil {
		return "", fmt.Errorf("failed to shelve tensor for %s: %w", sessionID, err)
	}
	s.logger.Info("tensor shelved",
		zap.String("session", sessionID),
		zap.String("shelf", id),
		zap.String("reason", reason))
	return id, nil
}

// Integrate transitions a shelf item from SHELVED to INTEGRATED. It
// requires an explicit human note; the only transition in the system
// that demands an externally supplied justification. Returns ok=false
// without mutating anything when the item is missing or not currently
// SHELVED. That is a no-op outcome, not an error.
func (s *Store) Integrate(shelfID, note string) (bool, error) {
	if note == "" {
		return false, errors.New("integration requires a justification note")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE bookcase_items
		 SET status = ?, unshelved_at = ?, unshelve_condition = ?
		 WHERE id = ? AND status = ?`,
		string(ShelfIntegrated), time.Now().UTC(),
		fmt.Sprintf("Acknowledged: %s", note),
		shelfID, string(ShelfShelved),
	)
	if err != nil {
		return false, fmt.Errorf("failed to integrate shelf item %s: %w", shelfID, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}
	s.logger.Info("shelf item integrated", zap.String("shelf", shelfID))
	return true, nil
}

// GetShelfItem fetches one bookcase row.
func (s *Store) GetShelfItem(id string) (*ShelfItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT id, session_id, label, content, status, unshelve_condition, unshelved_at, created_at
		 FROM bookcase_items WHERE id = ?`, id,
	)

	var item ShelfItem
	var status string
	var cond sql.NullString
	var unshelvedAt sql.NullTime
	err := row.Scan(&item.ID, &item.SessionID, &item.Label, &item.Content,
		&status, &cond, &unshelvedAt, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("shelf item %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load shelf item %s: %w", id, err)
	}

	item.Status = ShelfStatus(status)
	if cond.Valid {
		item.UnshelveCondition = cond.String
	}
	if unshelvedAt.Valid {
		t := unshelvedAt.Time
		item.UnshelvedAt = &t
	}
	return &item, nil
}

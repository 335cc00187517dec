package store

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"arbiter/internal/tensor"
)

// SaveTensor persists a tensor as one append-only row. Tensors are
// immutable after insert except for the pinned flag.
func (s *Store) SaveTensor(sessionID string, t *tensor.Tensor) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal tensor %s: %w", t.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT INTO tensors (id, session_id, tensor_type, pinned, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, sessionID, string(t.Type), boolInt(t.Lifecycle.Pinned), string(data), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save tensor %s: %w", t.ID, err)
	}
	s.logger.Debug("tensor saved",
		zap.String("session", sessionID),
		zap.String("tensor", t.ID),
		zap.String("type", string(t.Type)))
	return nil
}

// RecentSpine returns up to limit spine tensors for a session, newest
// first.
func (s *Store) RecentSpine(sessionID string, limit int) ([]*tensor.Tensor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.Query(
		`SELECT data FROM tensors
		 WHERE session_id = ? AND tensor_type = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		sessionID, string(tensor.TypeSpine), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query spine for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var spine []*tensor.Tensor
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan spine row: %w", err)
		}
		var t tensor.Tensor
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			s.logger.Warn("skipping unreadable spine tensor", zap.Error(err))
			continue
		}
		spine = append(spine, &t)
	}
	return spine, rows.Err()
}

// PinTensor flips the pinned flag, the only mutation a stored tensor
// allows.
func (s *Store) PinTensor(id string, pinned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE tensors SET pinned = ? WHERE id = ?`, boolInt(pinned), id)
	if err != nil {
		return fmt.Errorf("failed to pin tensor %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("tensor %s not found", id)
	}
	return nil
}

// ResetSession purges the session's un-pinned peer tensors. Spine
// tensors and pinned peers survive a reset.
func (s *Store) ResetSession(sessionID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`DELETE FROM tensors
		 WHERE session_id = ? AND tensor_type = ? AND pinned = 0`,
		sessionID, string(tensor.TypePeer),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset session %s: %w", sessionID, err)
	}
	purged, _ := res.RowsAffected()
	s.logger.Debug("session reset",
		zap.String("session", sessionID), zap.Int64("purged", purged))
	return purged, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

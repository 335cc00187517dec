package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// AuditEvent is one write-only trail entry. Audit writes are
// fire-and-forget from the pipeline's point of view: failures are
// logged, never surfaced into a turn result.
type AuditEvent struct {
	SessionID   string         `json:"session_id,omitempty"`
	EventType   string         `json:"event_type"`
	TensorID    string         `json:"tensor_id,omitempty"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"created_at,omitempty"`
}

// Audit event types written by the pipeline.
const (
	AuditTurnProcessed       = "TURN_PROCESSED"
	AuditArbiterIntervention = "ARBITER_INTERVENTION"
	AuditPromotion           = "SPINE_PROMOTION"
	AuditShelved             = "TENSOR_SHELVED"
	AuditRecovery            = "SHELF_RECOVERY"
	AuditSessionReset        = "SESSION_RESET"
)

// WriteAudit appends one audit row.
func (s *Store) WriteAudit(ev AuditEvent) error {
	details := "{}"
	if ev.Details != nil {
		data, err := json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
		details = string(data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO audit_log (session_id, event_type, tensor_id, fingerprint, summary, details)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.SessionID, ev.EventType, ev.TensorID, ev.Fingerprint, ev.Summary, details,
	)
	if err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	return nil
}

// RecentAudit returns the newest audit rows for a session.
func (s *Store) RecentAudit(sessionID string, limit int) ([]AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT session_id, event_type, tensor_id, fingerprint, summary, details, created_at
		 FROM audit_log WHERE session_id = ?
		 ORDER BY id DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var ev AuditEvent
		var details string
		if err := rows.Scan(&ev.SessionID, &ev.EventType, &ev.TensorID,
			&ev.Fingerprint, &ev.Summary, &details, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		if err := json.Unmarshal([]byte(details), &ev.Details); err != nil {
			s.logger.Warn("unreadable audit details", zap.Error(err))
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

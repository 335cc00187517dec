package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Fingerprint derives a stable identifier for a piece of offending
// evidence, so recurring friction patterns can be counted across
// turns. Case and surrounding whitespace are ignored.
func Fingerprint(evidence string) string {
	norm := strings.ToLower(strings.TrimSpace(evidence))
	sum := sha256.Sum256([]byte(norm))
	return hex.EncodeToString(sum[:])[:16]
}

// PatternRecord summarizes a recurring friction pattern.
type PatternRecord struct {
	Fingerprint string `json:"fingerprint"`
	Occurrences int    `json:"occurrences"`
	LastSummary string `json:"last_summary"`
}

// LookupPattern counts prior audit entries carrying a fingerprint and
// returns the most recent summary. A never-seen fingerprint yields
// nil, not an error.
func (s *Store) LookupPattern(fingerprint string) (*PatternRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM audit_log WHERE fingerprint = ?`, fingerprint,
	).Scan(&count)
	if err != nil {
		return nil, fmt.Errorf("failed to count pattern occurrences: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	var summary string
	err = s.db.QueryRow(
		`SELECT summary FROM audit_log WHERE fingerprint = ?
		 ORDER BY id DESC LIMIT 1`, fingerprint,
	).Scan(&summary)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to load pattern summary: %w", err)
	}

	return &PatternRecord{
		Fingerprint: fingerprint,
		Occurrences: count,
		LastSummary: summary,
	}, nil
}

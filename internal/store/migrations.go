package store

// Schema statements are idempotent; migrate runs on every Open.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		org_id TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		integrity_resonance REAL NOT NULL DEFAULT 1.0,
		started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		ended_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS tensors (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		tensor_type TEXT NOT NULL,
		pinned INTEGER NOT NULL DEFAULT 0,
		data TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tensors_session_type
		ON tensors(session_id, tensor_type, created_at)`,
	`CREATE TABLE IF NOT EXISTS bookcase_items (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		label TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'SHELVED',
		unshelve_condition TEXT,
		unshelved_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookcase_session
		ON bookcase_items(session_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL DEFAULT '',
		event_type TEXT NOT NULL,
		tensor_id TEXT NOT NULL DEFAULT '',
		fingerprint TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		details TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_fingerprint
		ON audit_log(fingerprint)`,
}

func (s *Store) migrate() error {
	for _, stmt := range migrations {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

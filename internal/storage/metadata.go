package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codebuildervaibhav/revoice/internal/types"
)

// MetadataDB records sessions and the artifacts produced for them.
type MetadataDB struct {
	db *sql.DB
}

// SessionRecord is one row of the sessions table.
type SessionRecord struct {
	ID        string    `json:"session_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMetadataDB creates a new metadata database
func NewMetadataDB(dbPath string) (*MetadataDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS artifacts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		local_path TEXT NOT NULL,
		remote_ref TEXT,
		duration_ms INTEGER,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);
	CREATE INDEX IF NOT EXISTS idx_artifacts_session ON artifacts(session_id);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %v", err)
	}

	return &MetadataDB{db: db}, nil
}

// SaveSession inserts or renames a session.
func (mdb *MetadataDB) SaveSession(id, name string, createdAt time.Time) error {
	_, err := mdb.db.Exec(`
	INSERT INTO sessions (id, name, created_at) VALUES (?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`, id, name, createdAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save session metadata: %v", err)
	}
	return nil
}

// DeleteSession removes a session and its artifact rows.
func (mdb *MetadataDB) DeleteSession(id string) error {
	tx, err := mdb.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM artifacts WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete artifacts: %v", err)
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %v", err)
	}
	return tx.Commit()
}

// ListSessions returns the newest sessions first.
func (mdb *MetadataDB) ListSessions(limit int) ([]SessionRecord, error) {
	rows, err := mdb.db.Query(`
	SELECT id, name, created_at FROM sessions ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %v", err)
	}
	defer rows.Close()

	var sessions []SessionRecord
	for rows.Next() {
		var (
			rec     SessionRecord
			created int64
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &created); err != nil {
			return nil, fmt.Errorf("failed to read session row: %v", err)
		}
		rec.CreatedAt = time.UnixMilli(created)
		sessions = append(sessions, rec)
	}
	return sessions, rows.Err()
}

// SaveArtifact records one produced file for a session.
func (mdb *MetadataDB) SaveArtifact(sessionID string, a types.Artifact) error {
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := mdb.db.Exec(`
	INSERT INTO artifacts (session_id, kind, local_path, remote_ref, duration_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`, sessionID, a.Kind, a.LocalPath, a.RemoteRef, a.DurationMs, created.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to save artifact metadata: %v", err)
	}
	return nil
}

// ListArtifacts returns a session's artifacts in the order they were saved.
func (mdb *MetadataDB) ListArtifacts(sessionID string) ([]types.Artifact, error) {
	rows, err := mdb.db.Query(`
	SELECT kind, local_path, COALESCE(remote_ref, ''), COALESCE(duration_ms, 0), created_at
	FROM artifacts WHERE session_id = ? ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %v", err)
	}
	defer rows.Close()

	var artifacts []types.Artifact
	for rows.Next() {
		var (
			a       types.Artifact
			created int64
		)
		if err := rows.Scan(&a.Kind, &a.LocalPath, &a.RemoteRef, &a.DurationMs, &created); err != nil {
			return nil, fmt.Errorf("failed to read artifact row: %v", err)
		}
		a.CreatedAt = time.UnixMilli(created)
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// Close closes the database connection
func (mdb *MetadataDB) Close() error {
	return mdb.db.Close()
}

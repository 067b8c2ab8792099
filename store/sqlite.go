package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/PranavReddyGaddam/Signal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			user_input TEXT NOT NULL,
			status TEXT NOT NULL,
			stage TEXT NOT NULL,
			progress REAL NOT NULL DEFAULT 0,
			result_refs TEXT,
			confirmations TEXT,
			errors TEXT,
			retry_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			completed_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status, created_at)`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			artifact_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			stage TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_session ON artifacts(session_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) error {
	refs, confirmations, errLog, err := marshalSessionJSON(session)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, user_input, status, stage, progress, result_refs, confirmations, errors, retry_count, created_at, updated_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Input, string(session.Status), string(session.Stage), session.Progress,
		refs, confirmations, errLog, session.RetryCount,
		session.CreatedAt, session.UpdatedAt, nullableTime(session.CompletedAt))
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID. Returns domain.ErrNotFound when
// no row exists.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, user_input, status, stage, progress, result_refs, confirmations, errors, retry_count, created_at, updated_at, completed_at
		 FROM sessions WHERE session_id = ?`, sessionID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return session, nil
}

// UpdateSession replaces the stored session snapshot.
func (s *SQLiteStore) UpdateSession(ctx context.Context, session *domain.Session) error {
	refs, confirmations, errLog, err := marshalSessionJSON(session)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET user_input = ?, status = ?, stage = ?, progress = ?, result_refs = ?, confirmations = ?, errors = ?, retry_count = ?, updated_at = ?, completed_at = ?
		 WHERE session_id = ?`,
		session.Input, string(session.Status), string(session.Stage), session.Progress,
		refs, confirmations, errLog, session.RetryCount,
		session.UpdatedAt, nullableTime(session.CompletedAt), session.ID)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListSessions returns all sessions, newest first.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, user_input, status, stage, progress, result_refs, confirmations, errors, retry_count, created_at, updated_at, completed_at
		 FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and its artifacts.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CreateArtifact inserts a stage artifact.
func (s *SQLiteStore) CreateArtifact(ctx context.Context, artifact *domain.Artifact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (artifact_id, session_id, stage, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		artifact.ID, artifact.SessionID, string(artifact.Stage), string(artifact.Payload), artifact.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert artifact: %w", err)
	}
	return nil
}

// GetArtifact retrieves an artifact by ID.
func (s *SQLiteStore) GetArtifact(ctx context.Context, artifactID string) (*domain.Artifact, error) {
	var artifact domain.Artifact
	var stage, payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT artifact_id, session_id, stage, payload, created_at FROM artifacts WHERE artifact_id = ?`, artifactID).
		Scan(&artifact.ID, &artifact.SessionID, &stage, &payload, &artifact.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query artifact: %w", err)
	}
	artifact.Stage = domain.Stage(stage)
	artifact.Payload = json.RawMessage(payload)
	return &artifact, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var status, stage string
	var refs, confirmations, errLog sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&session.ID, &session.Input, &status, &stage, &session.Progress,
		&refs, &confirmations, &errLog, &session.RetryCount,
		&session.CreatedAt, &session.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	session.Status = domain.SessionStatus(status)
	session.Stage = domain.Stage(stage)
	session.ResultRefs = make(map[domain.Stage]string)
	session.Confirmations = make(map[string]bool)
	if refs.Valid && refs.String != "" {
		if err := json.Unmarshal([]byte(refs.String), &session.ResultRefs); err != nil {
			return nil, fmt.Errorf("failed to decode result refs: %w", err)
		}
	}
	if confirmations.Valid && confirmations.String != "" {
		if err := json.Unmarshal([]byte(confirmations.String), &session.Confirmations); err != nil {
			return nil, fmt.Errorf("failed to decode confirmations: %w", err)
		}
	}
	if errLog.Valid && errLog.String != "" {
		if err := json.Unmarshal([]byte(errLog.String), &session.Errors); err != nil {
			return nil, fmt.Errorf("failed to decode errors: %w", err)
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		session.CompletedAt = &t
	}
	return &session, nil
}

func marshalSessionJSON(session *domain.Session) (refs, confirmations, errLog string, err error) {
	r, err := json.Marshal(session.ResultRefs)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode result refs: %w", err)
	}
	c, err := json.Marshal(session.Confirmations)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode confirmations: %w", err)
	}
	e, err := json.Marshal(session.Errors)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to encode errors: %w", err)
	}
	return string(r), string(c), string(e), nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

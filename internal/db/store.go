package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crxforge/crxforge/internal/bundle"
	"github.com/crxforge/crxforge/internal/types"
)

// Store wraps the sqlite connection with the queries the engine needs. It
// implements bundle.FileSource and the replay recorder's store interface.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying connection, for sharing with other components.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ProjectFiles returns all stored files for a project in path order.
func (s *Store) ProjectFiles(ctx context.Context, projectID string) ([]bundle.StoredFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, content, is_binary FROM project_files WHERE project_id = ? ORDER BY path`,
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []bundle.StoredFile
	for rows.Next() {
		var f bundle.StoredFile
		if err := rows.Scan(&f.Path, &f.Content, &f.IsBinary); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// PutProjectFile inserts or replaces one project file.
func (s *Store) PutProjectFile(ctx context.Context, projectID string, f bundle.StoredFile) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO project_files (project_id, path, content, is_binary, updated_at)
		 VALUES (?, ?, ?, ?, unixepoch())`,
		projectID, f.Path, f.Content, f.IsBinary)
	return err
}

// ExtensionIdentity returns the stored identity for a project, or
// sql.ErrNoRows when never captured.
func (s *Store) ExtensionIdentity(ctx context.Context, projectID string) (*types.ExtensionIdentity, error) {
	var id types.ExtensionIdentity
	var capturedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT runtime_id, provider_extension_id, captured_at FROM extension_identities WHERE project_id = ?`,
		projectID).Scan(&id.RuntimeID, &id.ProviderExtensionID, &capturedAt)
	if err != nil {
		return nil, err
	}
	id.CapturedAt = time.Unix(capturedAt, 0)
	return &id, nil
}

// SaveExtensionIdentity records the identity observed for a project's
// extension. Captured once; later runs reuse it.
func (s *Store) SaveExtensionIdentity(ctx context.Context, projectID string, id types.ExtensionIdentity) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO extension_identities (project_id, runtime_id, provider_extension_id, captured_at)
		 VALUES (?, ?, ?, ?)`,
		projectID, id.RuntimeID, id.ProviderExtensionID, id.CapturedAt.Unix())
	return err
}

// InsertReplay appends one replay record. Replays are append-only.
func (s *Store) InsertReplay(ctx context.Context, id string, rec types.ReplayRecord) error {
	result, err := json.Marshal(rec.TestResult)
	if err != nil {
		return fmt.Errorf("marshal test result: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO replays (id, project_id, session_id, live_url, video_url, recording_status, test_type, test_result, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, unixepoch())`,
		id, rec.ProjectID, rec.SessionID, rec.LiveURL, rec.VideoURL,
		string(rec.RecordingStatus), string(rec.TestType), string(result))
	return err
}

// ListReplays returns a project's replays, newest first.
func (s *Store) ListReplays(ctx context.Context, projectID string) ([]types.StoredReplay, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, live_url, video_url, recording_status, test_type, test_result, created_at
		 FROM replays WHERE project_id = ? ORDER BY created_at DESC`,
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	replays := make([]types.StoredReplay, 0)
	for rows.Next() {
		var (
			sr        types.StoredReplay
			status    string
			testType  string
			rawResult string
			createdAt int64
		)
		sr.Record.ProjectID = projectID
		if err := rows.Scan(&sr.ID, &sr.Record.SessionID, &sr.Record.LiveURL, &sr.Record.VideoURL,
			&status, &testType, &rawResult, &createdAt); err != nil {
			return nil, err
		}
		sr.Record.RecordingStatus = types.RecordingStatus(status)
		sr.Record.TestType = types.TestType(testType)
		sr.CreatedAt = time.Unix(createdAt, 0)
		if err := json.Unmarshal([]byte(rawResult), &sr.Record.TestResult); err != nil {
			return nil, fmt.Errorf("decode test result for replay %s: %w", sr.ID, err)
		}
		replays = append(replays, sr)
	}
	return replays, rows.Err()
}

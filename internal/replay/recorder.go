// Package replay persists one record per test run for later playback. The
// recorder is the sole writer of replay records; a persistence failure is an
// auxiliary-artifact problem and must never fail an otherwise-successful run.
package replay

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/crxforge/crxforge/internal/types"
)

// Store is the persistence surface the recorder writes through.
// Implemented by db.Store.
type Store interface {
	InsertReplay(ctx context.Context, id string, rec types.ReplayRecord) error
	ListReplays(ctx context.Context, projectID string) ([]types.StoredReplay, error)
}

// Recorder writes replay records.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder creates a recorder over a store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{
		store:  store,
		logger: slog.Default().With("component", "replay"),
	}
}

// Save persists one replay record. Callers treat the returned error as
// log-and-continue: the replay is an auxiliary artifact.
func (r *Recorder) Save(ctx context.Context, rec types.ReplayRecord) error {
	id := uuid.New().String()
	if err := r.store.InsertReplay(ctx, id, rec); err != nil {
		return err
	}
	r.logger.Info("replay saved", "replay_id", id,
		"project_id", rec.ProjectID, "session_id", rec.SessionID)
	return nil
}

// List returns a project's persisted replays, newest first.
func (r *Recorder) List(ctx context.Context, projectID string) ([]types.StoredReplay, error) {
	return r.store.ListReplays(ctx, projectID)
}

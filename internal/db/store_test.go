package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crxforge/crxforge/internal/bundle"
	"github.com/crxforge/crxforge/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestProjectFiles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutProjectFile(ctx, "proj-1", bundle.StoredFile{
		Path: "popup.html", Content: []byte("<html>"),
	}))
	require.NoError(t, store.PutProjectFile(ctx, "proj-1", bundle.StoredFile{
		Path: "manifest.json", Content: []byte("{}"),
	}))
	require.NoError(t, store.PutProjectFile(ctx, "proj-2", bundle.StoredFile{
		Path: "other.js", Content: []byte("x"),
	}))

	files, err := store.ProjectFiles(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "manifest.json", files[0].Path, "path order")
	assert.Equal(t, "popup.html", files[1].Path)
}

func TestPutProjectFile_Replace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutProjectFile(ctx, "proj-1", bundle.StoredFile{
		Path: "popup.js", Content: []byte("v1"),
	}))
	require.NoError(t, store.PutProjectFile(ctx, "proj-1", bundle.StoredFile{
		Path: "popup.js", Content: []byte("v2"), IsBinary: false,
	}))

	files, err := store.ProjectFiles(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, []byte("v2"), files[0].Content)
}

func TestExtensionIdentityRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.ExtensionIdentity(ctx, "proj-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	captured := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveExtensionIdentity(ctx, "proj-1", types.ExtensionIdentity{
		RuntimeID:           "abcdefghijklmnop",
		ProviderExtensionID: "ext-upload-1",
		CapturedAt:          captured,
	}))

	id, err := store.ExtensionIdentity(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, "abcdefghijklmnop", id.RuntimeID)
	assert.Equal(t, "ext-upload-1", id.ProviderExtensionID)
	assert.Equal(t, captured.Unix(), id.CapturedAt.Unix())
}

func TestSaveExtensionIdentity_Overwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveExtensionIdentity(ctx, "proj-1", types.ExtensionIdentity{
		RuntimeID: "first", CapturedAt: time.Now(),
	}))
	require.NoError(t, store.SaveExtensionIdentity(ctx, "proj-1", types.ExtensionIdentity{
		RuntimeID: "second", CapturedAt: time.Now(),
	}))

	id, err := store.ExtensionIdentity(ctx, "proj-1")
	require.NoError(t, err)
	assert.Equal(t, "second", id.RuntimeID)
}

func TestReplayRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rec := types.ReplayRecord{
		ProjectID:       "proj-1",
		SessionID:       "sess-1",
		LiveURL:         "https://live.example/sess-1",
		VideoURL:        "https://cdn.example/v.mp4",
		RecordingStatus: types.RecordingCompleted,
		TestType:        types.TestTypePuppeteer,
		TestResult: types.TestResult{
			Success: true,
			Results: []types.TestRunResult{
				{Name: "loads", Status: types.StatusPassed, DurationMs: 42},
			},
			LogAnalysis: types.LogAnalysis{TotalLogs: 3, Errors: []string{}},
		},
	}
	require.NoError(t, store.InsertReplay(ctx, "replay-1", rec))

	replays, err := store.ListReplays(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, replays, 1)

	got := replays[0]
	assert.Equal(t, "replay-1", got.ID)
	assert.Equal(t, "sess-1", got.Record.SessionID)
	assert.Equal(t, types.RecordingCompleted, got.Record.RecordingStatus)
	assert.Equal(t, types.TestTypePuppeteer, got.Record.TestType)
	assert.True(t, got.Record.TestResult.Success)
	require.Len(t, got.Record.TestResult.Results, 1)
	assert.Equal(t, "loads", got.Record.TestResult.Results[0].Name)
	assert.Equal(t, 3, got.Record.TestResult.LogAnalysis.TotalLogs)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestListReplays_EmptyProject(t *testing.T) {
	store := newTestStore(t)

	replays, err := store.ListReplays(context.Background(), "proj-none")
	require.NoError(t, err)
	assert.NotNil(t, replays)
	assert.Empty(t, replays)
}

func TestListReplays_ScopedToProject(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertReplay(ctx, "r1", types.ReplayRecord{ProjectID: "proj-1", SessionID: "s1"}))
	require.NoError(t, store.InsertReplay(ctx, "r2", types.ReplayRecord{ProjectID: "proj-2", SessionID: "s2"}))

	replays, err := store.ListReplays(ctx, "proj-1")
	require.NoError(t, err)
	require.Len(t, replays, 1)
	assert.Equal(t, "r1", replays[0].ID)
}

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crxforge/crxforge/internal/bundle"
	"github.com/crxforge/crxforge/internal/provider"
	"github.com/crxforge/crxforge/internal/types"
)

// fakeProvider is an in-memory stand-in for the remote browser provider.
type fakeProvider struct {
	polls         atomic.Int32
	extensionID   string       // reported after extReadyAfter polls
	extReadyAfter int32
	terminated    atomic.Int32
	failTerminate bool
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/extensions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(provider.UploadExtensionResponse{ID: "ext-upload-1"})
	})
	mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(provider.RemoteSession{
			ID:         "sess-1",
			Status:     provider.StatusRunning,
			ConnectURL: "ws://connect.example/sess-1",
			LiveURL:    "https://live.example/sess-1",
		})
	})
	mux.HandleFunc("GET /v1/sessions/{id}/extension", func(w http.ResponseWriter, r *http.Request) {
		n := f.polls.Add(1)
		ext := provider.SessionExtension{}
		if n > f.extReadyAfter {
			ext.ChromeExtensionID = f.extensionID
		}
		json.NewEncoder(w).Encode(ext)
	})
	mux.HandleFunc("DELETE /v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if f.failTerminate {
			http.Error(w, "gone", http.StatusInternalServerError)
			return
		}
		f.terminated.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func testBundle() *bundle.Bundle {
	return &bundle.Bundle{
		ProjectID: "proj-1",
		Files: []bundle.File{
			{Path: "manifest.json", Content: []byte(`{"name":"x","version":"1.0","manifest_version":3}`)},
		},
	}
}

func newTestManager(t *testing.T, fp *fakeProvider) *Manager {
	t.Helper()
	srv := httptest.NewServer(fp.handler())
	t.Cleanup(srv.Close)
	return NewManager(provider.NewClient(srv.URL, "test-key"))
}

func TestCreate(t *testing.T) {
	m := newTestManager(t, &fakeProvider{})

	sess, err := m.Create(context.Background(), testBundle(), CreateOptions{})
	require.NoError(t, err)

	assert.Equal(t, "sess-1", sess.ID)
	assert.Equal(t, "ws://connect.example/sess-1", sess.ConnectURL)
	assert.Equal(t, "https://live.example/sess-1", sess.LiveURL)
	assert.Equal(t, "ext-upload-1", sess.ProviderExtensionID)
	assert.Empty(t, sess.ChromeExtensionID, "no identity without await or stored identity")
}

func TestCreate_WithStoredIdentity(t *testing.T) {
	m := newTestManager(t, &fakeProvider{})
	b := testBundle()
	b.Identity = &types.ExtensionIdentity{RuntimeID: "abcdefghijklmnop"}

	sess, err := m.Create(context.Background(), b, CreateOptions{AwaitPinExtension: true})
	require.NoError(t, err)
	assert.Equal(t, "abcdefghijklmnop", sess.ChromeExtensionID, "stored identity short-circuits the wait")
}

func TestCreate_AwaitPinExtension(t *testing.T) {
	fp := &fakeProvider{extensionID: "runtimeidentity1", extReadyAfter: 2}
	m := newTestManager(t, fp)

	sess, err := m.Create(context.Background(), testBundle(), CreateOptions{
		AwaitPinExtension: true,
		PinWait:           5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, "runtimeidentity1", sess.ChromeExtensionID)
}

func TestCreate_AwaitPinExtensionTimesOut(t *testing.T) {
	fp := &fakeProvider{extReadyAfter: 1 << 30} // never ready
	m := newTestManager(t, fp)

	sess, err := m.Create(context.Background(), testBundle(), CreateOptions{
		AwaitPinExtension: true,
		PinWait:           100 * time.Millisecond,
	})
	require.NoError(t, err, "missing identity is a capability reduction, not a failure")
	assert.Empty(t, sess.ChromeExtensionID)
}

func TestCreate_ProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "out of capacity", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	m := NewManager(provider.NewClient(srv.URL, ""))

	_, err := m.Create(context.Background(), testBundle(), CreateOptions{})

	var sErr *types.SessionError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, "upload extension", sErr.Op)
	assert.Contains(t, err.Error(), "503")
}

func TestConnect_CachedPerSession(t *testing.T) {
	m := newTestManager(t, &fakeProvider{})
	var dials atomic.Int32
	m.connect = func(_ context.Context, connectURL string) (*Connection, error) {
		dials.Add(1)
		assert.Equal(t, "ws://connect.example/sess-1", connectURL)
		return &Connection{}, nil
	}

	sess, err := m.Create(context.Background(), testBundle(), CreateOptions{})
	require.NoError(t, err)

	c1, err := m.Connect(context.Background(), sess)
	require.NoError(t, err)
	c2, err := m.Connect(context.Background(), sess)
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.Equal(t, int32(1), dials.Load())
}

func TestConnect_DialFailure(t *testing.T) {
	m := newTestManager(t, &fakeProvider{})
	m.connect = func(context.Context, string) (*Connection, error) {
		return nil, fmt.Errorf("cdp handshake refused")
	}

	sess, err := m.Create(context.Background(), testBundle(), CreateOptions{})
	require.NoError(t, err)

	_, err = m.Connect(context.Background(), sess)
	var sErr *types.SessionError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, "connect", sErr.Op)
}

func TestTerminate(t *testing.T) {
	fp := &fakeProvider{}
	m := newTestManager(t, fp)

	sess, err := m.Create(context.Background(), testBundle(), CreateOptions{})
	require.NoError(t, err)

	assert.True(t, m.Terminate(context.Background(), sess))
	assert.Equal(t, int32(1), fp.terminated.Load())
}

func TestTerminate_BestEffort(t *testing.T) {
	fp := &fakeProvider{failTerminate: true}
	m := newTestManager(t, fp)

	sess, err := m.Create(context.Background(), testBundle(), CreateOptions{})
	require.NoError(t, err)

	assert.False(t, m.Terminate(context.Background(), sess), "terminate failure reports false, never an error")
}

func TestTerminateByID(t *testing.T) {
	fp := &fakeProvider{}
	m := newTestManager(t, fp)

	assert.True(t, m.TerminateByID(context.Background(), "sess-detached"))
	assert.Equal(t, int32(1), fp.terminated.Load())
}

func TestCreate_SendsRecordingFlag(t *testing.T) {
	var gotBody string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/extensions", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(provider.UploadExtensionResponse{ID: "ext-1"})
	})
	mux.HandleFunc("POST /v1/sessions", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		json.NewEncoder(w).Encode(provider.RemoteSession{ID: "sess-1"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	m := NewManager(provider.NewClient(srv.URL, ""))
	_, err := m.Create(context.Background(), testBundle(), CreateOptions{
		EnableRecording: true,
		TimeoutSeconds:  300,
	})
	require.NoError(t, err)

	assert.Contains(t, gotBody, `"enableRecording":true`)
	assert.Contains(t, gotBody, `"timeout":300`)
	assert.Contains(t, gotBody, `"extensionId":"ext-1"`)
}

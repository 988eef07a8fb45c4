// Package session manages the lifecycle of remote browser sessions: creation
// with the extension pre-loaded, a single reusable CDP connection per run,
// and best-effort termination. It exclusively owns the remote session handle
// for the duration of a run.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/crxforge/crxforge/internal/bundle"
	"github.com/crxforge/crxforge/internal/provider"
	"github.com/crxforge/crxforge/internal/types"
)

// CreateOptions tune session creation.
type CreateOptions struct {
	// AwaitPinExtension blocks until the provider reports the extension's
	// runtime identity, under a bounded wait. Creation still succeeds when
	// the identity never becomes observable.
	AwaitPinExtension bool

	// PinWait bounds the identity wait. Defaults to 15s.
	PinWait time.Duration

	// EnableRecording asks the provider to record the session.
	EnableRecording bool

	// TimeoutSeconds is the provider-side session timeout.
	TimeoutSeconds int
}

// Session is one live remote browser session with the extension loaded.
type Session struct {
	mu sync.Mutex

	ID                  string
	ConnectURL          string
	LiveURL             string
	ChromeExtensionID   string // empty when identity was not observed
	ProviderExtensionID string

	conn *Connection
}

// Manager creates, connects, and terminates remote sessions.
type Manager struct {
	client  *provider.Client
	logger  *slog.Logger
	connect connectFunc
}

// connectFunc opens a CDP connection for a session. Replaceable in tests.
type connectFunc func(ctx context.Context, connectURL string) (*Connection, error)

// NewManager creates a session manager over a provider client.
func NewManager(client *provider.Client) *Manager {
	return &Manager{
		client:  client,
		logger:  slog.Default().With("component", "session"),
		connect: dialCDP,
	}
}

// Create uploads the bundle and provisions a remote session pre-loaded with
// it. Failures here are fatal to the run and surface as *types.SessionError.
func (m *Manager) Create(ctx context.Context, b *bundle.Bundle, opts CreateOptions) (*Session, error) {
	archive, err := b.Archive()
	if err != nil {
		return nil, &types.SessionError{Op: "archive bundle", Err: err}
	}

	extID, err := m.client.UploadExtension(ctx, archive)
	if err != nil {
		return nil, &types.SessionError{Op: "upload extension", Err: err}
	}

	remote, err := m.client.CreateSession(ctx, provider.CreateSessionRequest{
		ProjectID:       b.ProjectID,
		ExtensionID:     extID,
		EnableRecording: opts.EnableRecording,
		TimeoutSeconds:  opts.TimeoutSeconds,
	})
	if err != nil {
		return nil, &types.SessionError{Op: "create", Err: err}
	}

	sess := &Session{
		ID:                  remote.ID,
		ConnectURL:          remote.ConnectURL,
		LiveURL:             remote.LiveURL,
		ProviderExtensionID: extID,
	}

	if b.Identity != nil {
		sess.ChromeExtensionID = b.Identity.RuntimeID
	}

	if opts.AwaitPinExtension && sess.ChromeExtensionID == "" {
		wait := opts.PinWait
		if wait <= 0 {
			wait = 15 * time.Second
		}
		if id := m.awaitExtensionID(ctx, remote.ID, wait); id != "" {
			sess.ChromeExtensionID = id
		} else {
			m.logger.Warn("extension identity not observed before deadline",
				"session_id", remote.ID, "wait", wait)
		}
	}

	return sess, nil
}

// awaitExtensionID polls the provider until it reports the extension's
// runtime id or the wait budget runs out. An empty return is not an error,
// only a capability reduction.
func (m *Manager) awaitExtensionID(ctx context.Context, sessionID string, wait time.Duration) string {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		ext, err := m.client.GetSessionExtension(ctx, sessionID)
		if err == nil && ext.ChromeExtensionID != "" {
			return ext.ChromeExtensionID
		}
		if time.Now().After(deadline) {
			return ""
		}
		select {
		case <-ctx.Done():
			return ""
		case <-ticker.C:
		}
	}
}

// Connect returns the session's CDP connection, dialing it on first use.
// Idempotent per session: repeated calls within a run return the same
// handle, avoiding provider-side connection churn.
func (m *Manager) Connect(ctx context.Context, sess *Session) (*Connection, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.conn != nil {
		return sess.conn, nil
	}

	conn, err := m.connect(ctx, sess.ConnectURL)
	if err != nil {
		return nil, &types.SessionError{Op: "connect", Err: err}
	}
	sess.conn = conn
	return conn, nil
}

// Terminate releases the remote session, closing any open connection first.
// Best-effort: a failed terminate is reported as false, never an error,
// because by the time cleanup runs the test result is usually finalized and
// must not be discarded over a cleanup hiccup.
func (m *Manager) Terminate(ctx context.Context, sess *Session) bool {
	sess.mu.Lock()
	if sess.conn != nil {
		sess.conn.Close()
		sess.conn = nil
	}
	sess.mu.Unlock()

	return m.TerminateByID(ctx, sess.ID)
}

// TerminateByID terminates a session by id alone, for caller-driven early
// termination independent of any in-flight run.
func (m *Manager) TerminateByID(ctx context.Context, sessionID string) bool {
	if err := m.client.TerminateSession(ctx, sessionID); err != nil {
		m.logger.Warn("session terminate failed", "session_id", sessionID, "error", err)
		return false
	}
	m.logger.Info("session terminated", "session_id", sessionID)
	return true
}

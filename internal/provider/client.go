// Package provider is the HTTP client for the remote browser-session
// provider. It is the only package that crosses the network boundary to the
// provider: session creation and teardown, extension archive upload, captured
// log retrieval, and recording status queries all go through Client.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client talks to the remote browser provider's REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a provider client for the given API base URL.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  slog.Default().With("component", "provider"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UploadExtension uploads a zipped extension bundle and returns the archive
// id the provider assigned to it.
func (c *Client) UploadExtension(ctx context.Context, archive []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extensions", bytes.NewReader(archive))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/zip")
	c.setAuth(req)

	var resp UploadExtensionResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("upload extension: %w", err)
	}
	return resp.ID, nil
}

// CreateSession provisions a remote browser session, optionally pre-loaded
// with an uploaded extension.
func (c *Client) CreateSession(ctx context.Context, reqBody CreateSessionRequest) (*RemoteSession, error) {
	var sess RemoteSession
	if err := c.postJSON(ctx, "/v1/sessions", reqBody, &sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.logger.Info("session created", "session_id", sess.ID, "status", sess.Status)
	return &sess, nil
}

// GetSessionExtension returns the runtime identity of the session's
// pre-loaded extension. The id is empty until the provider observes it.
func (c *Client) GetSessionExtension(ctx context.Context, sessionID string) (*SessionExtension, error) {
	var ext SessionExtension
	if err := c.getJSON(ctx, "/v1/sessions/"+sessionID+"/extension", &ext); err != nil {
		return nil, fmt.Errorf("get session extension: %w", err)
	}
	return &ext, nil
}

// GetLogs fetches the captured console/runtime log stream for a session.
func (c *Client) GetLogs(ctx context.Context, sessionID string) ([]LogEntry, error) {
	var entries []LogEntry
	if err := c.getJSON(ctx, "/v1/sessions/"+sessionID+"/logs", &entries); err != nil {
		return nil, fmt.Errorf("get logs: %w", err)
	}
	return entries, nil
}

// GetRecording fetches the current recording status for a session.
func (c *Client) GetRecording(ctx context.Context, sessionID string) (*Recording, error) {
	var rec Recording
	if err := c.getJSON(ctx, "/v1/sessions/"+sessionID+"/recording", &rec); err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return &rec, nil
}

// TerminateSession releases the remote session. The provider treats repeated
// termination as a no-op.
func (c *Client) TerminateSession(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/sessions/"+sessionID, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("terminate session: %w", err)
	}
	return nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)
	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

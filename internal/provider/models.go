package provider

import (
	"time"

	"github.com/crxforge/crxforge/internal/types"
)

// SessionStatus is the provider-side state of a remote browser session.
type SessionStatus string

const (
	StatusRunning   SessionStatus = "RUNNING"
	StatusCompleted SessionStatus = "COMPLETED"
	StatusError     SessionStatus = "ERROR"
	StatusTimedOut  SessionStatus = "TIMED_OUT"
)

// CreateSessionRequest is the payload for creating a remote browser session.
// ExtensionID references a previously uploaded extension archive that the
// provider pre-loads into the browser before the session starts.
type CreateSessionRequest struct {
	ProjectID       string `json:"projectId"`
	ExtensionID     string `json:"extensionId,omitempty"`
	Region          string `json:"region,omitempty"`
	TimeoutSeconds  int    `json:"timeout,omitempty"`
	EnableRecording bool   `json:"enableRecording,omitempty"`
}

// RemoteSession describes an active browser instance on the provider.
type RemoteSession struct {
	ID         string        `json:"id"`
	ProjectID  string        `json:"projectId"`
	Status     SessionStatus `json:"status"`
	StartedAt  time.Time     `json:"startedAt"`
	ExpiresAt  time.Time     `json:"expiresAt"`
	ConnectURL string        `json:"connectUrl"`
	LiveURL    string        `json:"liveUrl,omitempty"`
}

// UploadExtensionResponse identifies an uploaded extension archive.
type UploadExtensionResponse struct {
	ID string `json:"id"`
}

// SessionExtension reports the runtime identity Chrome assigned to the
// pre-loaded extension, once the provider has observed it.
type SessionExtension struct {
	ChromeExtensionID string `json:"chromeExtensionId,omitempty"`
}

// LogEntry is one captured console/runtime log line for a session.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`  // "error", "warning", "info", "debug"
	Source    string    `json:"source"` // "extension" or "page"
	Message   string    `json:"message"`
}

// Recording is the provider's view of a session's video recording.
type Recording struct {
	Status   types.RecordingStatus `json:"status"`
	VideoURL string                `json:"videoUrl,omitempty"`
}

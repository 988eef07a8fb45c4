package types

import "time"

// TestType identifies which harness produced a test script.
type TestType string

const (
	TestTypePuppeteer  TestType = "puppeteer"
	TestTypeHyperagent TestType = "hyperagent"
	TestTypeAI         TestType = "ai"
)

// TestStatus is the outcome of a single test case.
type TestStatus string

const (
	StatusPassed TestStatus = "passed"
	StatusFailed TestStatus = "failed"
)

// TestRunResult is the outcome of one executed test case, reported in
// registration order.
type TestRunResult struct {
	Name       string     `json:"name"`
	Status     TestStatus `json:"status"`
	DurationMs int64      `json:"durationMs"`
	Error      string     `json:"error,omitempty"`
	Stack      string     `json:"stack,omitempty"`
}

// LogAnalysis summarizes the provider's captured console/runtime logs for a
// session. Immutable once computed for a run.
type LogAnalysis struct {
	HasErrors    bool     `json:"hasErrors"`
	ErrorCount   int      `json:"errorCount"`
	WarningCount int      `json:"warningCount"`
	TotalLogs    int      `json:"totalLogs"`
	Errors       []string `json:"errors"`
}

// RecordingStatus is the provider-driven recording state. The poller only
// observes these values, it never causes transitions.
type RecordingStatus string

const (
	RecordingPending    RecordingStatus = "pending"
	RecordingInProgress RecordingStatus = "in_progress"
	RecordingCompleted  RecordingStatus = "completed"
	RecordingFailed     RecordingStatus = "failed"
	RecordingNotEnabled RecordingStatus = "not_enabled"
	RecordingUnknown    RecordingStatus = "unknown"
	RecordingError      RecordingStatus = "error"
)

// ExtensionIdentity is the runtime identity the browser assigned to a loaded
// extension, captured once per project. Absence only reduces capability:
// scripts fall back to simulated interaction instructions.
type ExtensionIdentity struct {
	RuntimeID           string    `json:"runtimeId"`
	ProviderExtensionID string    `json:"providerExtensionId"`
	CapturedAt          time.Time `json:"capturedAt"`
}

// TestResult is the structured verdict persisted inside a replay record.
type TestResult struct {
	Success     bool            `json:"success"`
	Results     []TestRunResult `json:"results"`
	LogAnalysis LogAnalysis     `json:"logAnalysis"`
}

// ReplayRecord is the persisted artifact of one test run. Created exactly
// once per run, after execution and log analysis complete; never updated.
type ReplayRecord struct {
	ProjectID       string          `json:"project_id"`
	SessionID       string          `json:"session_id"`
	LiveURL         string          `json:"live_url,omitempty"`
	VideoURL        string          `json:"video_url,omitempty"`
	RecordingStatus RecordingStatus `json:"recording_status"`
	TestType        TestType        `json:"test_type"`
	TestResult      TestResult      `json:"test_result"`
}

// RunTestRequest is the payload that starts a test run against a project.
type RunTestRequest struct {
	ProjectID string   `path:"projectID" json:"projectId,omitempty"`
	Script    string   `json:"script"`
	TestType  TestType `json:"testType,omitempty"`

	// AwaitPinExtension blocks session creation until the provider reports
	// the extension's runtime identity, so scripts can target its pages by
	// direct URL instead of simulated icon clicks.
	AwaitPinExtension bool `json:"awaitPinExtension,omitempty"`

	// EnableRecording asks the provider to record the session.
	EnableRecording bool `json:"enableRecording,omitempty"`
}

// RunTestResponse is the exit contract for a run.
type RunTestResponse struct {
	Success         bool            `json:"success"`
	SessionID       string          `json:"sessionId"`
	Results         []TestRunResult `json:"results"`
	LogAnalysis     LogAnalysis     `json:"logAnalysis"`
	VideoURL        string          `json:"videoUrl,omitempty"`
	RecordingStatus RecordingStatus `json:"recordingStatus"`
	LiveURL         string          `json:"liveUrl,omitempty"`

	// LogBasedFailure explains a verdict that logs downgraded, so the
	// override is always attributable.
	LogBasedFailure string `json:"logBasedFailure,omitempty"`
}

// TerminateSessionRequest asks for early termination of a remote session.
type TerminateSessionRequest struct {
	SessionID string `path:"sessionID"`
}

// TerminateSessionResponse reports the best-effort outcome.
type TerminateSessionResponse struct {
	Terminated bool `json:"terminated"`
}

// ListReplaysRequest fetches persisted replays for a project.
type ListReplaysRequest struct {
	ProjectID string `path:"projectID"`
}

// ListReplaysResponse wraps the stored replay records.
type ListReplaysResponse struct {
	Replays []StoredReplay `json:"replays"`
}

// ProjectFileUpload is one file in a project upload. Binary files carry
// base64-encoded content.
type ProjectFileUpload struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	IsBinary bool   `json:"isBinary,omitempty"`
}

// PutProjectFilesRequest replaces or adds files in a project's store.
type PutProjectFilesRequest struct {
	ProjectID string              `path:"projectID" json:"-"`
	Files     []ProjectFileUpload `json:"files"`
}

// PutProjectFilesResponse reports how many files were stored.
type PutProjectFilesResponse struct {
	Stored int `json:"stored"`
}

// StoredReplay is a persisted replay row plus its storage metadata.
type StoredReplay struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"createdAt"`
	Record    ReplayRecord `json:"record"`
}

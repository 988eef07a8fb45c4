// Package orchestrator sequences one test run end to end: bundle load,
// session provisioning, sandboxed script execution, log verification,
// recording retrieval, and replay persistence. Only bundle and session
// failures are fatal; every later phase degrades gracefully so a run that
// executed is always distinguishable from a run that could not happen.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crxforge/crxforge/internal/bundle"
	"github.com/crxforge/crxforge/internal/logverify"
	"github.com/crxforge/crxforge/internal/recording"
	"github.com/crxforge/crxforge/internal/replay"
	"github.com/crxforge/crxforge/internal/sandbox"
	"github.com/crxforge/crxforge/internal/session"
	"github.com/crxforge/crxforge/internal/types"
)

// SessionManager is the session-lifecycle surface the orchestrator drives.
// Implemented by session.Manager via Adapt; faked in tests.
type SessionManager interface {
	Create(ctx context.Context, b *bundle.Bundle, opts session.CreateOptions) (*session.Session, error)
	Connect(ctx context.Context, sess *session.Session) (sandbox.PageDriver, error)
	Terminate(ctx context.Context, sess *session.Session) bool
}

// IdentitySaver persists a newly observed extension identity so later runs
// can target extension pages directly. Optional.
type IdentitySaver interface {
	SaveExtensionIdentity(ctx context.Context, projectID string, id types.ExtensionIdentity) error
}

// Adapt wraps a *session.Manager as a SessionManager.
func Adapt(m *session.Manager) SessionManager {
	return managerAdapter{m}
}

type managerAdapter struct {
	m *session.Manager
}

func (a managerAdapter) Create(ctx context.Context, b *bundle.Bundle, opts session.CreateOptions) (*session.Session, error) {
	return a.m.Create(ctx, b, opts)
}

func (a managerAdapter) Connect(ctx context.Context, sess *session.Session) (sandbox.PageDriver, error) {
	return a.m.Connect(ctx, sess)
}

func (a managerAdapter) Terminate(ctx context.Context, sess *session.Session) bool {
	return a.m.Terminate(ctx, sess)
}

// Orchestrator runs test requests. Safe for concurrent use: each run keeps
// all mutable state in its own frame, so concurrent runs never collide.
type Orchestrator struct {
	loader     *bundle.Loader
	sessions   SessionManager
	verifier   *logverify.Verifier
	poller     *recording.Poller
	recorder   *replay.Recorder
	identities IdentitySaver
	logger     *slog.Logger

	// RunTimeout bounds one run's execution phase, independent of the
	// provider's own session timeout. Defaults to 5m.
	RunTimeout time.Duration

	// ArtifactTimeout bounds the post-execution phases (log verification,
	// recording retrieval, persistence), which run even when the execution
	// phase timed out. Defaults to 2m.
	ArtifactTimeout time.Duration

	// PinWait bounds the extension-identity wait when a run requests it.
	// Zero uses the session manager's default.
	PinWait time.Duration

	// LogWindow is the trailing log window handed to the verifier. Zero uses
	// the verifier's default.
	LogWindow time.Duration

	// SessionTimeoutSeconds is the provider-side session timeout requested at
	// creation. Zero leaves it to the provider.
	SessionTimeoutSeconds int
}

// New creates an orchestrator. identities may be nil.
func New(loader *bundle.Loader, sessions SessionManager, verifier *logverify.Verifier,
	poller *recording.Poller, recorder *replay.Recorder, identities IdentitySaver) *Orchestrator {
	return &Orchestrator{
		loader:          loader,
		sessions:        sessions,
		verifier:        verifier,
		poller:          poller,
		recorder:        recorder,
		identities:      identities,
		logger:          slog.Default().With("component", "orchestrator"),
		RunTimeout:      5 * time.Minute,
		ArtifactTimeout: 2 * time.Minute,
	}
}

// Run executes one test run. It returns an error only for bundle or session
// failures; everything else is absorbed into the structured response.
func (o *Orchestrator) Run(ctx context.Context, req types.RunTestRequest) (*types.RunTestResponse, error) {
	if req.TestType == "" {
		req.TestType = types.TestTypePuppeteer
	}

	b, err := o.loader.Load(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	sess, err := o.sessions.Create(ctx, b, session.CreateOptions{
		AwaitPinExtension: req.AwaitPinExtension,
		PinWait:           o.PinWait,
		EnableRecording:   req.EnableRecording,
		TimeoutSeconds:    o.SessionTimeoutSeconds,
	})
	if err != nil {
		return nil, err
	}

	o.captureIdentity(ctx, req.ProjectID, b, sess)

	script := substitutePlaceholders(req.Script, b.Manifest, sess.ChromeExtensionID)

	outcome := o.execute(ctx, script, sess)

	// Artifact phases run on a detached context so a hung script that burned
	// the run budget doesn't also cost us the logs and the recording.
	artifactCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.ArtifactTimeout)
	defer cancel()

	analysis := o.verifier.Analyze(artifactCtx, sess.ID, logverify.Options{
		CheckExtensionErrors: true,
		CheckRuntimeErrors:   true,
		TimeWindow:           o.LogWindow,
	})

	videoURL, recStatus := o.poller.Fetch(artifactCtx, sess.ID)

	resp := o.assemble(sess, outcome, analysis, videoURL, recStatus)

	o.persist(artifactCtx, req, resp)

	return resp, nil
}

// execute runs the sandbox under the run-level hard timeout. A timeout
// mid-run surfaces as failed results from the interrupted tests; a timeout
// that produced no results at all gets one synthetic failed result so the
// caller always sees why the run has no verdict.
func (o *Orchestrator) execute(ctx context.Context, script string, sess *session.Session) *sandbox.Outcome {
	timeout := o.RunTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome := sandbox.Run(runCtx, script, sandbox.Options{
		Accessor: func(ctx context.Context) (sandbox.PageDriver, error) {
			return o.sessions.Connect(ctx, sess)
		},
	})

	if len(outcome.Results) == 0 && runCtx.Err() != nil {
		outcome.Passed = false
		outcome.Results = []types.TestRunResult{{
			Name:   "timeout",
			Status: types.StatusFailed,
			Error:  fmt.Sprintf("test run exceeded the %s time limit", timeout),
		}}
	}
	return outcome
}

// captureIdentity persists a newly observed extension identity so later
// runs can address extension pages by URL without re-pinning.
func (o *Orchestrator) captureIdentity(ctx context.Context, projectID string, b *bundle.Bundle, sess *session.Session) {
	if o.identities == nil || sess.ChromeExtensionID == "" || b.Identity != nil {
		return
	}
	id := types.ExtensionIdentity{
		RuntimeID:           sess.ChromeExtensionID,
		ProviderExtensionID: sess.ProviderExtensionID,
		CapturedAt:          time.Now(),
	}
	if err := o.identities.SaveExtensionIdentity(ctx, projectID, id); err != nil {
		o.logger.Warn("failed to persist extension identity",
			"project_id", projectID, "error", err)
	}
}

// assemble merges the script verdict with the log analysis. Logs can only
// downgrade a verdict: a script pass with errors in the logs becomes a
// failure (explained via LogBasedFailure), but clean logs never rescue a
// failing script.
func (o *Orchestrator) assemble(sess *session.Session, outcome *sandbox.Outcome,
	analysis types.LogAnalysis, videoURL string, recStatus types.RecordingStatus) *types.RunTestResponse {

	resp := &types.RunTestResponse{
		Success:         outcome.Passed,
		SessionID:       sess.ID,
		Results:         outcome.Results,
		LogAnalysis:     analysis,
		VideoURL:        videoURL,
		RecordingStatus: recStatus,
		LiveURL:         sess.LiveURL,
	}

	if analysis.HasErrors {
		if resp.Success {
			resp.LogBasedFailure = fmt.Sprintf(
				"script assertions passed but the session logged %d error(s); first: %s",
				analysis.ErrorCount, firstOrEmpty(analysis.Errors))
		}
		resp.Success = false
	}
	return resp
}

// persist writes the replay record, swallowing failures: the replay is an
// auxiliary artifact and must never change the run's reported verdict.
func (o *Orchestrator) persist(ctx context.Context, req types.RunTestRequest, resp *types.RunTestResponse) {
	rec := types.ReplayRecord{
		ProjectID:       req.ProjectID,
		SessionID:       resp.SessionID,
		LiveURL:         resp.LiveURL,
		VideoURL:        resp.VideoURL,
		RecordingStatus: resp.RecordingStatus,
		TestType:        req.TestType,
		TestResult: types.TestResult{
			Success:     resp.Success,
			Results:     resp.Results,
			LogAnalysis: resp.LogAnalysis,
		},
	}
	if err := o.recorder.Save(ctx, rec); err != nil {
		o.logger.Warn("replay persistence failed",
			"project_id", req.ProjectID, "session_id", resp.SessionID, "error", err)
	}
}

func firstOrEmpty(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

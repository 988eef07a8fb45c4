// Package svc wires the engine's components into a single service context
// shared by all HTTP handlers.
package svc

import (
	"fmt"
	"time"

	"github.com/crxforge/crxforge/internal/bundle"
	"github.com/crxforge/crxforge/internal/config"
	"github.com/crxforge/crxforge/internal/db"
	"github.com/crxforge/crxforge/internal/logverify"
	"github.com/crxforge/crxforge/internal/orchestrator"
	"github.com/crxforge/crxforge/internal/provider"
	"github.com/crxforge/crxforge/internal/recording"
	"github.com/crxforge/crxforge/internal/replay"
	"github.com/crxforge/crxforge/internal/session"
)

// ServiceContext is the single owner of shared dependencies.
type ServiceContext struct {
	Config       config.Config
	Store        *db.Store
	Sessions     *session.Manager
	Recorder     *replay.Recorder
	Orchestrator *orchestrator.Orchestrator
}

// NewServiceContext builds the full dependency graph from configuration.
func NewServiceContext(c config.Config) (*ServiceContext, error) {
	store, err := db.NewSQLite(c.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	client := provider.NewClient(c.Provider.BaseURL, c.Provider.APIKey)
	sessions := session.NewManager(client)
	recorder := replay.NewRecorder(store)

	poller := recording.NewPoller(client)
	if c.Run.RecordingMaxAttempts > 0 {
		poller.MaxAttempts = c.Run.RecordingMaxAttempts
	}
	if c.Run.RecordingIntervalMs > 0 {
		poller.Interval = time.Duration(c.Run.RecordingIntervalMs) * time.Millisecond
	}

	orch := orchestrator.New(
		bundle.NewLoader(store),
		orchestrator.Adapt(sessions),
		logverify.NewVerifier(client),
		poller,
		recorder,
		store,
	)
	if c.Run.TimeoutSeconds > 0 {
		orch.RunTimeout = time.Duration(c.Run.TimeoutSeconds) * time.Second
	}
	if c.Run.ArtifactTimeoutSeconds > 0 {
		orch.ArtifactTimeout = time.Duration(c.Run.ArtifactTimeoutSeconds) * time.Second
	}
	if c.Run.PinWaitSeconds > 0 {
		orch.PinWait = time.Duration(c.Run.PinWaitSeconds) * time.Second
	}
	if c.Run.LogWindowSeconds > 0 {
		orch.LogWindow = time.Duration(c.Run.LogWindowSeconds) * time.Second
	}
	orch.SessionTimeoutSeconds = c.Provider.SessionTimeout

	return &ServiceContext{
		Config:       c,
		Store:        store,
		Sessions:     sessions,
		Recorder:     recorder,
		Orchestrator: orch,
	}, nil
}

// Close releases held resources.
func (s *ServiceContext) Close() error {
	return s.Store.Close()
}

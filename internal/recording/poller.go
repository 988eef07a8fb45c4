// Package recording polls the remote provider for a session's video
// recording under a bounded attempt budget. The provider drives the status
// state machine; the poller only observes it.
package recording

import (
	"context"
	"log/slog"
	"time"

	"github.com/crxforge/crxforge/internal/provider"
	"github.com/crxforge/crxforge/internal/types"
)

// RecordingFetcher is the slice of the provider client the poller needs.
type RecordingFetcher interface {
	GetRecording(ctx context.Context, sessionID string) (*provider.Recording, error)
}

// Poller fetches recordings with bounded retries.
type Poller struct {
	fetcher     RecordingFetcher
	logger      *slog.Logger
	MaxAttempts int
	Interval    time.Duration
}

// NewPoller creates a poller with the default budget of 30 attempts at 1s
// intervals.
func NewPoller(fetcher RecordingFetcher) *Poller {
	return &Poller{
		fetcher:     fetcher,
		logger:      slog.Default().With("component", "recording"),
		MaxAttempts: 30,
		Interval:    time.Second,
	}
}

// Fetch polls until the recording reaches a terminal status or the attempt
// budget runs out. Budget exhaustion while still pending/in_progress is not
// an error — the artifact is merely incomplete and the run's verdict is
// never blocked on it. An unrecognized status stops polling immediately.
func (p *Poller) Fetch(ctx context.Context, sessionID string) (videoURL string, status types.RecordingStatus) {
	timer := time.NewTimer(0)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}

	last := types.RecordingUnknown
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		rec, err := p.fetcher.GetRecording(ctx, sessionID)
		if err != nil {
			p.logger.Warn("recording fetch failed", "session_id", sessionID,
				"attempt", attempt, "error", err)
			return "", types.RecordingError
		}

		last = rec.Status
		switch rec.Status {
		case types.RecordingCompleted:
			return rec.VideoURL, rec.Status
		case types.RecordingFailed, types.RecordingNotEnabled:
			return "", rec.Status
		case types.RecordingPending, types.RecordingInProgress:
			// retry below
		default:
			// Unrecognized status: stop rather than burn the budget on a
			// value we cannot interpret.
			p.logger.Warn("unrecognized recording status, not retrying",
				"session_id", sessionID, "status", rec.Status)
			return "", rec.Status
		}

		if attempt == p.MaxAttempts {
			break
		}
		timer.Reset(p.Interval)
		select {
		case <-ctx.Done():
			return "", last
		case <-timer.C:
		}
	}

	return "", last
}

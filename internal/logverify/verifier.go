// Package logverify corroborates a script's verdict against the session's
// captured console/runtime logs. It is supporting evidence only: a transient
// provider failure degrades to an empty analysis instead of aborting the run.
package logverify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/crxforge/crxforge/internal/provider"
	"github.com/crxforge/crxforge/internal/types"
)

// maxReportedErrors caps the formatted error list for display.
const maxReportedErrors = 10

// sourceExtension marks log entries emitted by the extension's own runtime;
// everything else is treated as page runtime.
const sourceExtension = "extension"

// Options select which log origins count against the verdict and how far
// back to look.
type Options struct {
	CheckExtensionErrors bool
	CheckRuntimeErrors   bool

	// TimeWindow is the trailing window of logs to consider. Defaults to 60s.
	TimeWindow time.Duration
}

// LogFetcher is the slice of the provider client the verifier needs.
type LogFetcher interface {
	GetLogs(ctx context.Context, sessionID string) ([]provider.LogEntry, error)
}

// Verifier classifies a session's captured logs into error/warning buckets.
type Verifier struct {
	fetcher LogFetcher
	logger  *slog.Logger
	now     func() time.Time
}

// NewVerifier creates a verifier over a log fetcher.
func NewVerifier(fetcher LogFetcher) *Verifier {
	return &Verifier{
		fetcher: fetcher,
		logger:  slog.Default().With("component", "logverify"),
		now:     time.Now,
	}
}

// Analyze pulls the session's log stream, filters it to the trailing window,
// and classifies entries by severity and origin. Fetch failures surface as
// an analysis with zero logs: log verification corroborates the verdict, it
// never replaces it.
func (v *Verifier) Analyze(ctx context.Context, sessionID string, opts Options) types.LogAnalysis {
	window := opts.TimeWindow
	if window <= 0 {
		window = 60 * time.Second
	}

	entries, err := v.fetcher.GetLogs(ctx, sessionID)
	if err != nil {
		v.logger.Warn("log fetch failed, degrading to empty analysis",
			"session_id", sessionID, "error", err)
		return types.LogAnalysis{Errors: []string{}}
	}

	cutoff := v.now().Add(-window)
	analysis := types.LogAnalysis{Errors: []string{}}

	for _, entry := range entries {
		if entry.Timestamp.Before(cutoff) {
			continue
		}
		analysis.TotalLogs++

		if !v.originChecked(entry, opts) {
			continue
		}

		switch entry.Level {
		case "error":
			analysis.ErrorCount++
			if len(analysis.Errors) < maxReportedErrors {
				analysis.Errors = append(analysis.Errors, formatEntry(entry))
			}
		case "warning", "warn":
			analysis.WarningCount++
		}
	}

	analysis.HasErrors = analysis.ErrorCount > 0
	return analysis
}

func (v *Verifier) originChecked(entry provider.LogEntry, opts Options) bool {
	if entry.Source == sourceExtension {
		return opts.CheckExtensionErrors
	}
	return opts.CheckRuntimeErrors
}

func formatEntry(entry provider.LogEntry) string {
	return fmt.Sprintf("[%s] %s", entry.Source, entry.Message)
}

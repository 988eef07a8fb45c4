// Package server mounts the HTTP API and manages graceful shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/crxforge/crxforge/internal/handler/runs"
	"github.com/crxforge/crxforge/internal/svc"
)

// NewRouter builds the chi router for the test orchestration API.
func NewRouter(svcCtx *svc.ServiceContext) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Put("/projects/{projectID}/files", runs.PutProjectFilesHandler(svcCtx))
		r.Post("/projects/{projectID}/test-runs", runs.RunTestHandler(svcCtx))
		r.Get("/projects/{projectID}/replays", runs.ListReplaysHandler(svcCtx))
		r.Post("/sessions/{sessionID}/terminate", runs.TerminateSessionHandler(svcCtx))
	})

	return r
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, svcCtx *svc.ServiceContext) error {
	srv := &http.Server{
		Addr:              svcCtx.Config.Listen,
		Handler:           NewRouter(svcCtx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

package runs

import (
	"net/http"

	"github.com/crxforge/crxforge/internal/httputil"
	"github.com/crxforge/crxforge/internal/svc"
	"github.com/crxforge/crxforge/internal/types"
)

// Terminate a remote session early; safe to call mid-run, never errors
func TerminateSessionHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.TerminateSessionRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		terminated := svcCtx.Sessions.TerminateByID(r.Context(), req.SessionID)
		httputil.OkJSON(w, types.TerminateSessionResponse{Terminated: terminated})
	}
}

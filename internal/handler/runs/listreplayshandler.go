package runs

import (
	"net/http"

	"github.com/crxforge/crxforge/internal/httputil"
	"github.com/crxforge/crxforge/internal/svc"
	"github.com/crxforge/crxforge/internal/types"
)

// List persisted replays for a project, newest first
func ListReplaysHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ListReplaysRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		replays, err := svcCtx.Recorder.List(r.Context(), req.ProjectID)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		httputil.OkJSON(w, types.ListReplaysResponse{Replays: replays})
	}
}

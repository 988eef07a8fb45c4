package runs

import (
	"net/http"

	"github.com/crxforge/crxforge/internal/httputil"
	"github.com/crxforge/crxforge/internal/svc"
	"github.com/crxforge/crxforge/internal/types"
)

// Start a test run for a project
func RunTestHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.RunTestRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		resp, err := svcCtx.Orchestrator.Run(r.Context(), req)
		if err != nil {
			httputil.Error(w, err)
		} else {
			httputil.OkJSON(w, resp)
		}
	}
}

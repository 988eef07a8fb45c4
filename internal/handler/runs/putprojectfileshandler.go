package runs

import (
	"net/http"

	"github.com/crxforge/crxforge/internal/bundle"
	"github.com/crxforge/crxforge/internal/httputil"
	"github.com/crxforge/crxforge/internal/svc"
	"github.com/crxforge/crxforge/internal/types"
)

// Store or replace a project's extension files
func PutProjectFilesHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.PutProjectFilesRequest
		if err := httputil.Parse(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}

		for _, f := range req.Files {
			err := svcCtx.Store.PutProjectFile(r.Context(), req.ProjectID, bundle.StoredFile{
				Path:     f.Path,
				Content:  []byte(f.Content),
				IsBinary: f.IsBinary,
			})
			if err != nil {
				httputil.Error(w, err)
				return
			}
		}
		httputil.OkJSON(w, types.PutProjectFilesResponse{Stored: len(req.Files)})
	}
}

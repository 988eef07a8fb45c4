package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crxforge/crxforge/internal/types"
)

type sampleRequest struct {
	ProjectID string `path:"projectID" json:"-"`
	Script    string `json:"script"`
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestParse_BodyAndPath(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/projects/proj-1/test-runs",
		strings.NewReader(`{"script":"test()"}`))
	r = withURLParam(r, "projectID", "proj-1")

	var req sampleRequest
	require.NoError(t, Parse(r, &req))

	assert.Equal(t, "proj-1", req.ProjectID)
	assert.Equal(t, "test()", req.Script)
}

func TestParse_GetSkipsBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/projects/proj-1/replays", nil)
	r = withURLParam(r, "projectID", "proj-1")

	var req sampleRequest
	require.NoError(t, Parse(r, &req))
	assert.Equal(t, "proj-1", req.ProjectID)
}

func TestParse_EmptyBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/x", nil)

	var req sampleRequest
	assert.NoError(t, Parse(r, &req))
}

func TestParse_MalformedJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{`))

	var req sampleRequest
	assert.Error(t, Parse(r, &req))
}

func TestOkJSON(t *testing.T) {
	w := httptest.NewRecorder()
	OkJSON(w, map[string]bool{"ok": true})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"bundle error", &types.BundleError{ProjectID: "p", Reason: "manifest.json not found"}, http.StatusNotFound},
		{"session error", &types.SessionError{Op: "create", Err: fmt.Errorf("quota")}, http.StatusBadGateway},
		{"wrapped session error", fmt.Errorf("run: %w", &types.SessionError{Op: "connect", Err: fmt.Errorf("x")}), http.StatusBadGateway},
		{"generic error", fmt.Errorf("something else"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Error(w, tc.err)

			assert.Equal(t, tc.wantStatus, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

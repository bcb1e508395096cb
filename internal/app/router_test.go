package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aliuyar1234/feedbackiq/internal/apperrors"
	"github.com/aliuyar1234/feedbackiq/internal/auth"
	"github.com/aliuyar1234/feedbackiq/internal/cache"
	"github.com/aliuyar1234/feedbackiq/internal/config"
)

const testSecret = "router-test-secret-router-test-secret"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Env:            "dev",
		BaseURL:        "http://localhost:8080",
		JWTSecret:      testSecret,
		SessionDays:    7,
		AITimeoutMS:    1000,
		IngestWorkers:  1,
		MaxUploadBytes: 1024,
		UploadRPM:      10,
	}
	// Requests in these tests are rejected before any query runs.
	return NewRouter(NewDeps(cfg, nil, cache.NopCache{}))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func TestRouter_Healthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get(apperrors.RequestIDHeader))
}

func TestRouter_OrgRoutesRequireSession(t *testing.T) {
	h := newTestRouter(t)
	org := uuid.NewString()

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/orgs"},
		{http.MethodGet, "/api/v1/orgs/" + org + "/stats"},
		{http.MethodPost, "/api/v1/orgs/" + org + "/feedback/upload"},
		{http.MethodGet, "/api/v1/orgs/" + org + "/feedback/export"},
		{http.MethodPost, "/api/v1/invites/accept"},
		{http.MethodPost, "/api/v1/auth/logout"},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", tc.method, tc.path)
		require.Equal(t, "unauthorized", errorCode(t, rec))
	}
}

func TestRouter_InvalidOrgID(t *testing.T) {
	token, err := auth.CreateToken(uuid.New(), testSecret, 1)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orgs/not-a-uuid/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "bad_request", errorCode(t, rec))
}

func TestRouter_ResolveRejectsMalformedToken(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/invites/garbage", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "not_found", body.Data.Status)
}

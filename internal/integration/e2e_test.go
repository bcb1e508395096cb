package integration

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/aliuyar1234/feedbackiq/internal/ai"
	"github.com/aliuyar1234/feedbackiq/internal/app"
	"github.com/aliuyar1234/feedbackiq/internal/apperrors"
	"github.com/aliuyar1234/feedbackiq/internal/audit"
	"github.com/aliuyar1234/feedbackiq/internal/cache"
	"github.com/aliuyar1234/feedbackiq/internal/config"
	"github.com/aliuyar1234/feedbackiq/internal/guard"
	"github.com/aliuyar1234/feedbackiq/internal/ingest"
	"github.com/aliuyar1234/feedbackiq/internal/orgs"
	"github.com/aliuyar1234/feedbackiq/internal/stats"
)

type envelope[T any] struct {
	RequestID string `json:"request_id"`
	Data      T      `json:"data"`
}

func newTestServer(t *testing.T, pool *pgxpool.Pool) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Env:                 "dev",
		BaseURL:             "http://localhost:8080",
		JWTSecret:           "integration-secret-integration-secret",
		LogLevel:            "error",
		SessionDays:         7,
		AITimeoutMS:         1000,
		IngestWorkers:       1,
		MaxUploadBytes:      64 * 1024,
		UploadRPM:           100,
		StatsCacheSeconds:   60,
		InviteRetentionDays: 30,
	}
	srv := httptest.NewServer(app.NewRouter(app.NewDeps(cfg, pool, cache.NopCache{})))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func doJSON(t *testing.T, client *http.Client, method, urlStr string, payload any) (int, []byte) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, urlStr, body)
	require.NoError(t, err)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, respBody
}

func expectSuccess[T any](t *testing.T, client *http.Client, method, urlStr string, wantStatus int, payload any) T {
	t.Helper()
	status, body := doJSON(t, client, method, urlStr, payload)
	require.Equal(t, wantStatus, status, string(body))

	var env envelope[T]
	require.NoError(t, json.Unmarshal(body, &env))
	require.NotEmpty(t, env.RequestID)
	return env.Data
}

func expectError(t *testing.T, client *http.Client, method, urlStr string, wantStatus int, payload any) apperrors.ErrorDetail {
	t.Helper()
	status, body := doJSON(t, client, method, urlStr, payload)
	require.Equal(t, wantStatus, status, string(body))

	var env apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &env))
	require.NotEmpty(t, env.Error.RequestID)
	return env.Error
}

func signup(t *testing.T, client *http.Client, baseURL, email string) uuid.UUID {
	t.Helper()
	user := expectSuccess[struct {
		ID uuid.UUID `json:"id"`
	}](t, client, http.MethodPost, baseURL+"/api/v1/auth/signup", http.StatusCreated, map[string]string{
		"email":    email,
		"password": "correct-horse-battery",
	})
	require.NotEqual(t, uuid.Nil, user.ID)
	return user.ID
}

func uploadCSV(t *testing.T, client *http.Client, urlStr string, records [][]string) (int, []byte) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "feedback.csv")
	require.NoError(t, err)
	cw := csv.NewWriter(fw)
	require.NoError(t, cw.WriteAll(records))
	require.NoError(t, mw.WriteField("source", "Survey"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, urlStr, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestE2E_SignupUploadStatsExport(t *testing.T) {
	pool, _ := newTestDB(t)
	srv := newTestServer(t, pool)
	owner := newClient(t)

	ownerID := signup(t, owner, srv.URL, "owner@example.com")

	org := expectSuccess[orgs.Org](t, owner, http.MethodPost, srv.URL+"/api/v1/orgs", http.StatusCreated, map[string]string{
		"name": "Acme Support",
	})
	require.Equal(t, ownerID, org.CreatedByUserID)
	orgURL := srv.URL + "/api/v1/orgs/" + org.ID.String()

	status, body := uploadCSV(t, owner, orgURL+"/feedback/upload", [][]string{
		{"ID", "Comment"},
		{"1", "The new dashboard is much faster than before"},
		{"2", ""},
		{"3", "Checkout keeps failing on mobile devices"},
	})
	require.Equal(t, http.StatusOK, status, string(body))

	var upload envelope[ingest.Result]
	require.NoError(t, json.Unmarshal(body, &upload))
	require.True(t, upload.Data.Success)
	require.Equal(t, 2, upload.Data.Processed)
	require.Empty(t, upload.Data.Errors)
	require.Len(t, upload.Data.Feedbacks, 2)
	require.Equal(t, "Survey", upload.Data.Feedbacks[0].Source)
	require.Equal(t, ai.DefaultTopic, upload.Data.Feedbacks[0].Topic)

	st := expectSuccess[stats.Stats](t, owner, http.MethodGet, orgURL+"/stats", http.StatusOK, nil)
	require.Equal(t, 2, st.Total)
	require.Equal(t, 2, st.BySentiment.Neutral)
	require.Equal(t, 2, st.ByTopic[ai.DefaultTopic])
	require.Len(t, st.VolumeOverTime, stats.VolumeDays)

	weekly := expectSuccess[stats.WeeklyInsights](t, owner, http.MethodGet, orgURL+"/insights/weekly", http.StatusOK, nil)
	require.Equal(t, 2, weekly.Count)
	require.Equal(t, "7 days", weekly.Period)
	require.Equal(t, ai.InsightsUnconfigured, weekly.Data)

	resp, err := owner.Get(orgURL + "/feedback/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
	rows, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "id", rows[0][0])
	require.Equal(t, "The new dashboard is much faster than before", rows[1][len(rows[1])-1])

	var audited int
	require.NoError(t, pool.QueryRow(context.Background(), `
		SELECT COUNT(*) FROM audit_log WHERE org_id = $1 AND action = $2
	`, org.ID, audit.EventFeedbackUploaded).Scan(&audited))
	require.Equal(t, 1, audited)
}

func TestE2E_GuardEnforcesMembershipAndPermissions(t *testing.T) {
	pool, _ := newTestDB(t)
	srv := newTestServer(t, pool)

	owner := newClient(t)
	signup(t, owner, srv.URL, "owner@example.com")
	org := expectSuccess[orgs.Org](t, owner, http.MethodPost, srv.URL+"/api/v1/orgs", http.StatusCreated, map[string]string{
		"name": "Acme Support",
	})
	orgURL := srv.URL + "/api/v1/orgs/" + org.ID.String()

	outsider := newClient(t)
	signup(t, outsider, srv.URL, "outsider@example.com")
	e := expectError(t, outsider, http.MethodGet, orgURL+"/stats", http.StatusForbidden, nil)
	require.Equal(t, string(guard.KindForbidden), e.Code)

	viewer := newClient(t)
	viewerID := signup(t, viewer, srv.URL, "viewer@example.com")
	_, err := pool.Exec(context.Background(), `
		INSERT INTO memberships (organization_id, user_id, role) VALUES ($1, $2, 'viewer')
	`, org.ID, viewerID)
	require.NoError(t, err)

	expectSuccess[stats.Stats](t, viewer, http.MethodGet, orgURL+"/stats", http.StatusOK, nil)
	e = expectError(t, viewer, http.MethodPost, orgURL+"/feedback", http.StatusForbidden, map[string]string{
		"text": "Viewers should not be able to add this",
	})
	require.Equal(t, string(guard.KindForbidden), e.Code)
	expectError(t, viewer, http.MethodGet, orgURL+"/feedback/export", http.StatusForbidden, nil)

	foreign := expectSuccess[orgs.Org](t, outsider, http.MethodPost, srv.URL+"/api/v1/orgs", http.StatusCreated, map[string]string{
		"name": "Other Company",
	})
	var foreignProject uuid.UUID
	require.NoError(t, pool.QueryRow(context.Background(), `
		INSERT INTO projects (organization_id, name, created_by_user_id)
		SELECT $1, 'Mobile App', created_by_user_id FROM organizations WHERE id = $1
		RETURNING id
	`, foreign.ID).Scan(&foreignProject))

	e = expectError(t, owner, http.MethodGet, orgURL+"/stats?project_id="+foreignProject.String(), http.StatusNotFound, nil)
	require.Equal(t, string(guard.KindProjectNotFound), e.Code)
}

func TestE2E_UploadReportsMissingColumn(t *testing.T) {
	pool, _ := newTestDB(t)
	srv := newTestServer(t, pool)

	owner := newClient(t)
	signup(t, owner, srv.URL, "owner@example.com")
	org := expectSuccess[orgs.Org](t, owner, http.MethodPost, srv.URL+"/api/v1/orgs", http.StatusCreated, map[string]string{
		"name": "Acme Support",
	})

	status, body := uploadCSV(t, owner, srv.URL+"/api/v1/orgs/"+org.ID.String()+"/feedback/upload", [][]string{
		{"id", "date"},
		{"1", "2024-01-01"},
	})
	require.Equal(t, http.StatusBadRequest, status, string(body))

	var env apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &env))
	require.Equal(t, "missing_column", env.Error.Code)
	details, ok := env.Error.Details.(map[string]any)
	require.True(t, ok)
	require.ElementsMatch(t, []any{"id", "date"}, details["available_columns"])

	var stored int
	require.NoError(t, pool.QueryRow(context.Background(), `SELECT COUNT(*) FROM feedback`).Scan(&stored))
	require.Zero(t, stored)
}

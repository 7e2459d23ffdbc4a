package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"property-import-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	adminToken    = "admin-token"
	viewerToken   = "viewer-token"
	noTenantToken = "no-tenant-token"
	otherToken    = "other-tenant-token"
)

type testEnv struct {
	router  http.Handler
	submit  *fakeSubmit
	status  *fakeStatus
	retry   *fakeRetry
	props   *fakeProperties
	metrics *fakeHTTPMetrics
}

func newTestEnv(t *testing.T, maxUpload int64) *testEnv {
	t.Helper()
	env := &testEnv{
		submit:  &fakeSubmit{},
		status:  &fakeStatus{views: map[string]*domain.ImportStatusView{}},
		retry:   &fakeRetry{},
		props:   &fakeProperties{items: map[uuid.UUID]domain.Property{}},
		metrics: &fakeHTTPMetrics{},
	}
	verifier := staticVerifier{
		adminToken:    {UserID: "u-1", TenantID: "tenant-a", Role: domain.RoleAdmin},
		viewerToken:   {UserID: "u-2", TenantID: "tenant-a", Role: "user"},
		noTenantToken: {UserID: "u-3", Role: domain.RoleAdmin},
		otherToken:    {UserID: "u-4", TenantID: "tenant-b", Role: domain.RoleAdmin},
	}
	stats := &fakeStats{stats: domain.QueueStatsView{Waiting: 4, Active: 1, Completed: 10, Failed: 2, DeadLettered: 1}}

	env.router = NewRouter(ServerDeps{
		Imports:    NewImportHandler(env.submit, env.status, stats, env.retry, maxUpload, 50),
		Properties: NewPropertyHandler(env.props, env.props, env.props),
		Verifier:   verifier,
		Metrics:    env.metrics,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, "# metrics")
		}),
	}, testLogger{})
	return env
}

func (env *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func multipartCSV(t *testing.T, field, name, content string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = io.WriteString(fw, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	rec := env.do(t, http.MethodGet, "/metrics", "", nil, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	tests := []struct {
		name     string
		header   string
		wantCode int
		wantErr  string
	}{
		{"missing header", "", http.StatusUnauthorized, "Authorization header is missing"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "Invalid authorization header format"},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, "Invalid or expired token"},
		{"empty tenant", "Bearer " + noTenantToken, http.StatusForbidden, "Valid user tenantId is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/properties", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			var body map[string]string
			decodeJSON(t, rec, &body)
			assert.Equal(t, tt.wantErr, body["error"])
		})
	}
}

func TestStartImport_AcceptedThenDuplicate(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	csv := "external_id,title\nEXT-1,House\nEXT-2,Flat\n"

	body, ct := multipartCSV(t, "file", "props.csv", csv)
	rec := env.do(t, http.MethodPost, "/v1/imports", adminToken, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var first ImportStartedResponse
	decodeJSON(t, rec, &first)
	assert.Equal(t, "accepted", first.Status)
	assert.Equal(t, acceptedMessage, first.Message)
	assert.Equal(t, 2, first.EstimatedRows)
	assert.Equal(t, "/v1/imports/status/"+first.JobID, first.StatusURL)
	assert.Equal(t, csv, env.submit.gotBody)
	assert.Equal(t, "props.csv", env.submit.gotName)
	assert.Equal(t, "tenant-a", env.submit.tenantID)
	assert.Equal(t, "u-1", env.submit.userID)

	body, ct = multipartCSV(t, "file", "props.csv", csv)
	rec = env.do(t, http.MethodPost, "/v1/imports", adminToken, body, ct)
	require.Equal(t, http.StatusConflict, rec.Code)

	var second ImportStartedResponse
	decodeJSON(t, rec, &second)
	assert.Equal(t, first.JobID, second.JobID)
	assert.Equal(t, "duplicate", second.Status)
	assert.Equal(t, duplicateMessage, second.Message)
}

func TestStartImport_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	body, ct := multipartCSV(t, "file", "props.csv", "a,b\n")
	rec := env.do(t, http.MethodPost, "/v1/imports", viewerToken, body, ct)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, env.submit.gotName)
}

func TestStartImport_MissingFile(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	body, ct := multipartCSV(t, "attachment", "props.csv", "a,b\n")
	rec := env.do(t, http.MethodPost, "/v1/imports", adminToken, body, ct)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var resp map[string]string
	decodeJSON(t, rec, &resp)
	assert.Equal(t, domain.ErrFileRequired.Error(), resp["error"])
}

func TestStartImport_TooLarge(t *testing.T) {
	env := newTestEnv(t, 16)

	big := strings.Repeat("x", multipartOverhead+1024)
	body, ct := multipartCSV(t, "file", "props.csv", big)
	rec := env.do(t, http.MethodPost, "/v1/imports", adminToken, body, ct)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestStartImport_DomainErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
	}{
		{domain.ErrNotCSV, http.StatusBadRequest},
		{domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{errors.New("broker down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			env := newTestEnv(t, 1<<20)
			env.submit.err = tt.err

			body, ct := multipartCSV(t, "file", "props.txt", "a")
			rec := env.do(t, http.MethodPost, "/v1/imports", adminToken, body, ct)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.NotContains(t, rec.Body.String(), "broker down")
		})
	}
}

func TestGetImportStatus(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.status.views["job-1"] = &domain.ImportStatusView{
		JobID:    "job-1",
		Status:   domain.StatusActive,
		Progress: 40,
		Job:      &domain.ImportJob{ID: "job-1", TenantID: "tenant-a", UserID: "u-1", Filename: "props.csv", TotalRows: 250},
	}

	t.Run("own tenant", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/imports/status/job-1", viewerToken, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ImportJobStatusResponse
		decodeJSON(t, rec, &resp)
		assert.Equal(t, "active", resp.Status)
		assert.Equal(t, 40, resp.Progress)
		require.NotNil(t, resp.Data)
		assert.Equal(t, 250, resp.Data.TotalRows)
		assert.Equal(t, "job-1", resp.Data.IdempotencyKey)
	})

	t.Run("other tenant sees not found", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/imports/status/job-1", otherToken, nil, "")
		require.Equal(t, http.StatusNotFound, rec.Code)

		var resp ImportJobStatusResponse
		decodeJSON(t, rec, &resp)
		assert.Equal(t, "not_found", resp.Status)
		assert.Nil(t, resp.Data)
	})

	t.Run("unknown job", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/v1/imports/status/missing", viewerToken, nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestQueueStats(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	rec := env.do(t, http.MethodGet, "/v1/imports/queue/stats", adminToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats domain.QueueStatsView
	decodeJSON(t, rec, &stats)
	assert.Equal(t, domain.QueueStatsView{Waiting: 4, Active: 1, Completed: 10, Failed: 2, DeadLettered: 1}, stats)

	rec = env.do(t, http.MethodGet, "/v1/imports/queue/stats", viewerToken, nil, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestProcessWaitingJobs(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	rec := env.do(t, http.MethodPost, "/v1/imports/process-waiting?limit=7", adminToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ProcessWaitingResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, 7, env.retry.gotLimit)
	assert.Equal(t, 3, resp.JobsFound)
	assert.Equal(t, 2, resp.Requeued)
	assert.Equal(t, "Requeued 2 of 3 failed import jobs", resp.Message)

	rec = env.do(t, http.MethodPost, "/v1/imports/process-waiting", adminToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 50, env.retry.gotLimit)

	rec = env.do(t, http.MethodPost, "/v1/imports/process-waiting?limit=abc", adminToken, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListProperties(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	idA, idB := uuid.New(), uuid.New()
	env.props.items[idA] = domain.Property{ID: idA, PropertyFields: domain.PropertyFields{TenantID: "tenant-a", Title: "A"}}
	env.props.items[idB] = domain.Property{ID: idB, PropertyFields: domain.PropertyFields{TenantID: "tenant-b", Title: "B"}}

	rec := env.do(t, http.MethodGet, "/v1/properties?type=Apartment&status=sold&sector=North&limit=10&offset=5", viewerToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var page domain.PropertyPage
	decodeJSON(t, rec, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "A", page.Items[0].Title)
	assert.Equal(t, domain.PropertyListQuery{
		TenantID: "tenant-a", Sector: "North", Type: "apartment", Status: "sold", Limit: 10, Offset: 5,
	}, env.props.lastQuery)
}

func TestListProperties_InvalidQuery(t *testing.T) {
	env := newTestEnv(t, 1<<20)

	for _, q := range []string{"type=castle", "status=gone", "limit=500", "offset=-1", "limit=ten"} {
		t.Run(q, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/v1/properties?"+q, viewerToken, nil, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUpdateProperty(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	id := uuid.New()
	env.props.items[id] = domain.Property{ID: id, PropertyFields: domain.PropertyFields{TenantID: "tenant-a", Title: "Old", Type: domain.PropertyTypeHouse}}

	t.Run("sparse update", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/v1/properties/"+id.String(), viewerToken,
			strings.NewReader(`{"title":"  New title ","type":"Warehouse"}`), "application/json")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var p domain.Property
		decodeJSON(t, rec, &p)
		assert.Equal(t, "New title", p.Title)
		assert.Equal(t, domain.PropertyTypeWarehouse, p.Type)
		assert.Nil(t, env.props.lastPatch.Price)
	})

	t.Run("unknown enum rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/v1/properties/"+id.String(), viewerToken,
			strings.NewReader(`{"type":"castle"}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("negative price rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/v1/properties/"+id.String(), viewerToken,
			strings.NewReader(`{"price":-1}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty patch rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/v1/properties/"+id.String(), viewerToken,
			strings.NewReader(`{}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("other tenant gets not found", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/v1/properties/"+id.String(), otherToken,
			strings.NewReader(`{"title":"x"}`), "application/json")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/v1/properties/not-a-uuid", viewerToken,
			strings.NewReader(`{"title":"x"}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDeleteProperty(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	id := uuid.New()
	env.props.items[id] = domain.Property{ID: id, PropertyFields: domain.PropertyFields{TenantID: "tenant-a"}}

	rec := env.do(t, http.MethodDelete, "/v1/properties/"+id.String(), viewerToken, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, "/v1/properties/"+id.String(), viewerToken, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPMetricsUseRoutePattern(t *testing.T) {
	env := newTestEnv(t, 1<<20)
	env.status.views["job-9"] = &domain.ImportStatusView{JobID: "job-9", Status: domain.StatusWaiting}

	env.do(t, http.MethodGet, "/v1/imports/status/job-9", viewerToken, nil, "")

	require.Len(t, env.metrics.reqs, 1)
	assert.Equal(t, recordedRequest{route: "/v1/imports/status/{jobId}", method: http.MethodGet, status: http.StatusOK}, env.metrics.reqs[0])
}

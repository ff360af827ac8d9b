// Package integration provides end-to-end tests for the CE Track HTTP API.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/cetrack/internal/cache/memory"
	"github.com/prn-tf/cetrack/internal/config"
	"github.com/prn-tf/cetrack/internal/handler"
	"github.com/prn-tf/cetrack/internal/metrics"
	"github.com/prn-tf/cetrack/internal/repository/sqlite"
	"github.com/prn-tf/cetrack/internal/service"
	"github.com/prn-tf/cetrack/internal/storage"
)

// Prometheus collectors register globally, so the test binary shares one set.
var testMetrics = metrics.New()

const testUserHeader = "X-User-Id"

// newTestServer spins up the full API over an in-memory SQLite database and
// a temp-dir blob store.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(":memory:"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	repos := sqlite.NewRepositories(db)

	blobs, err := storage.NewFilesystemBackend(t.TempDir(), logger)
	require.NoError(t, err)

	cache := memory.NewCache()
	t.Cleanup(cache.Stop)

	cfg := &config.Config{
		Server: config.ServerConfig{MaxUploadSize: 8 << 20},
		Identity: config.IdentityConfig{
			Header:      testUserHeader,
			EmailHeader: "X-User-Email",
			NameHeader:  "X-User-Name",
		},
	}

	rt := handler.NewRouter(handler.RouterConfig{
		Users:        service.NewUserService(repos.Users, cache, time.Minute, logger),
		Licenses:     service.NewLicenseService(repos.Licenses, repos.Cycles, logger),
		Cycles:       service.NewCycleService(repos.Licenses, repos.Cycles, repos.Allocations, repos.Tx, logger),
		Courses:      service.NewCourseService(repos.Courses, repos.Cycles, repos.Allocations, repos.Certificates, blobs, repos.Tx, logger),
		Allocations:  service.NewAllocationService(repos.Courses, repos.Cycles, repos.Allocations, repos.Tx, logger),
		Certificates: service.NewCertificateService(repos.Courses, repos.Certificates, blobs, logger),
		Progress:     service.NewProgressService(repos.Cycles, repos.Allocations, logger),
		Timeline:     service.NewTimelineService(repos.Cycles, repos.Courses, repos.Allocations, repos.Certificates, logger),
		DB:           db,
		Metrics:      testMetrics,
		Config:       cfg,
		Logger:       logger,
	})

	srv := httptest.NewServer(rt.Handler())
	t.Cleanup(srv.Close)
	return srv
}

// doJSON sends a request and decodes the response body. Objects come back as
// map[string]any, lists as []any.
func doJSON(t *testing.T, srv *httptest.Server, userID, method, path string, body any) (*http.Response, any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set(testUserHeader, userID)
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded any
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &decoded), "body: %s", data)
	}
	return resp, decoded
}

func obj(t *testing.T, v any) map[string]any {
	t.Helper()
	m, ok := v.(map[string]any)
	require.True(t, ok, "expected object, got %T", v)
	return m
}

func list(t *testing.T, v any) []any {
	t.Helper()
	l, ok := v.([]any)
	require.True(t, ok, "expected list, got %T", v)
	return l
}

func date(d time.Time) string {
	return d.UTC().Format(time.DateOnly)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, "", http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "healthy", obj(t, body)["status"])
}

func TestAuthenticationRequired(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, srv, "", http.MethodGet, "/api/state-licenses", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "Not authenticated", obj(t, body)["detail"])
}

func TestComplianceFlow(t *testing.T) {
	srv := newTestServer(t)
	user := "auth0|integration"
	now := time.Now()

	// First authenticated request creates the user lazily.
	resp, me := doJSON(t, srv, user, http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, user, obj(t, me)["external_user_id"])

	// License.
	resp, body := doJSON(t, srv, user, http.MethodPost, "/api/state-licenses", map[string]any{
		"state_code":     "ca",
		"license_number": "RN-884213",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	license := obj(t, body)
	require.Equal(t, "CA", license["state_code"])
	licenseID := license["id"].(string)

	// Duplicate state conflicts.
	resp, _ = doJSON(t, srv, user, http.MethodPost, "/api/state-licenses", map[string]any{
		"state_code": "CA",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// Two cycles: one current, one long past.
	resp, body = doJSON(t, srv, user, http.MethodPost, "/api/cycles", map[string]any{
		"state_license_id": licenseID,
		"cycle_start":      date(now.AddDate(0, 0, -400)),
		"cycle_end":        date(now.AddDate(0, 0, 330)),
		"required_hours":   "25",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	currentID := obj(t, body)["id"].(string)

	resp, body = doJSON(t, srv, user, http.MethodPost, "/api/cycles", map[string]any{
		"state_license_id": licenseID,
		"cycle_start":      date(now.AddDate(-5, 0, 0)),
		"cycle_end":        date(now.AddDate(-3, 0, 0)),
		"required_hours":   "20",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	pastID := obj(t, body)["id"].(string)

	// License deletion is blocked while cycles exist.
	resp, _ = doJSON(t, srv, user, http.MethodDelete, "/api/state-licenses/"+licenseID, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	// A course completed inside the current cycle auto-allocates to it.
	resp, body = doJSON(t, srv, user, http.MethodPost, "/api/courses", map[string]any{
		"title":        "Ethics in Clinical Practice",
		"provider":     "Acme CE",
		"completed_at": date(now.AddDate(0, 0, -90)),
		"hours":        "10.5",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	courseID := obj(t, body)["id"].(string)

	resp, body = doJSON(t, srv, user, http.MethodGet, "/api/allocations?course_credit_id="+courseID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list(t, body), 1)

	// Bulk allocation skips the auto-created link and adds the past cycle.
	resp, body = doJSON(t, srv, user, http.MethodPost, "/api/allocations/bulk", map[string]any{
		"course_credit_id": courseID,
		"cycle_ids":        []string{currentID, pastID, pastID},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	bulk := obj(t, body)
	require.Len(t, list(t, bulk["created"]), 1)
	require.Len(t, list(t, bulk["skipped"]), 1)

	// Progress: past cycle first (cycle_end ascending), both carrying the
	// cross-cycle warning for the doubly counted course.
	resp, body = doJSON(t, srv, user, http.MethodGet, "/api/progress", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snapshots := list(t, body)
	require.Len(t, snapshots, 2)

	first := obj(t, snapshots[0])
	require.Equal(t, pastID, first["cycle_id"])
	require.Equal(t, "overdue", first["status"])
	require.Len(t, list(t, first["warnings"]), 1)

	second := obj(t, snapshots[1])
	require.Equal(t, currentID, second["cycle_id"])
	require.Equal(t, "on_track", second["status"])
	require.Equal(t, "10.5", second["earned_hours"])
	require.Equal(t, "14.5", second["remaining_hours"])
	require.Len(t, list(t, second["warnings"]), 1)

	// Grouped timeline.
	resp, body = doJSON(t, srv, user, http.MethodGet, "/api/timeline", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	states := list(t, obj(t, body)["states"])
	require.Len(t, states, 1)
	ca := obj(t, states[0])
	require.Equal(t, "CA", ca["state_code"])
	require.Equal(t, "RN-884213", ca["license_number"])
	require.Len(t, list(t, ca["cycles"]), 2)

	// Event feed: one completion, both cycle starts, and no status events
	// since the past cycle left the status window and the current one is on
	// track.
	resp, body = doJSON(t, srv, user, http.MethodGet, "/api/timeline/events", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := list(t, obj(t, body)["events"])
	kinds := make(map[string]int)
	for _, e := range events {
		kinds[obj(t, e)["kind"].(string)]++
	}
	require.Equal(t, 1, kinds["course_completed"])
	require.Equal(t, 2, kinds["cycle_started"])
	require.Zero(t, kinds["cycle_overdue"])
	require.Zero(t, kinds["cycle_due_soon"])

	// Another user sees nothing of this data.
	resp, _ = doJSON(t, srv, "auth0|other", http.MethodGet, "/api/courses/"+courseID, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = doJSON(t, srv, "auth0|other", http.MethodGet, "/api/progress", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, body)
}

func TestCertificateLifecycle(t *testing.T) {
	srv := newTestServer(t)
	user := "auth0|certs"
	now := time.Now()

	resp, body := doJSON(t, srv, user, http.MethodPost, "/api/courses", map[string]any{
		"title":        "Advanced Wound Care",
		"completed_at": date(now.AddDate(0, 0, -10)),
		"hours":        "4",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	courseID := obj(t, body)["id"].(string)

	// Upload.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "completion.pdf")
	require.NoError(t, err)
	_, err = fw.Write([]byte("%PDF-1.4 fake certificate"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/courses/"+courseID+"/certificates", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(testUserHeader, user)
	uploadResp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer uploadResp.Body.Close()
	require.Equal(t, http.StatusCreated, uploadResp.StatusCode)

	var cert map[string]any
	require.NoError(t, json.NewDecoder(uploadResp.Body).Decode(&cert))
	require.Equal(t, "completion.pdf", cert["filename"])
	certID := cert["id"].(string)

	// Download round-trips the bytes.
	dlReq, err := http.NewRequest(http.MethodGet, srv.URL+"/api/certificates/"+certID+"/download", nil)
	require.NoError(t, err)
	dlReq.Header.Set(testUserHeader, user)
	dlResp, err := srv.Client().Do(dlReq)
	require.NoError(t, err)
	defer dlResp.Body.Close()
	require.Equal(t, http.StatusOK, dlResp.StatusCode)
	require.Equal(t, `attachment; filename="completion.pdf"`, dlResp.Header.Get("Content-Disposition"))

	data, err := io.ReadAll(dlResp.Body)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 fake certificate", string(data))

	// The upload shows up in the event feed.
	resp, body = doJSON(t, srv, user, http.MethodGet, "/api/timeline/events", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sawUpload bool
	for _, e := range list(t, obj(t, body)["events"]) {
		if obj(t, e)["kind"] == "certificate_uploaded" {
			sawUpload = true
		}
	}
	require.True(t, sawUpload, "expected a certificate_uploaded event")

	// Other users cannot download.
	resp, _ = doJSON(t, srv, "auth0|other", http.MethodGet, "/api/certificates/"+certID+"/download", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Deleting the course cascades certificate rows.
	resp, _ = doJSON(t, srv, user, http.MethodDelete, "/api/courses/"+courseID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, srv, user, http.MethodGet, "/api/certificates/"+certID+"/download", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestValidationResponses(t *testing.T) {
	srv := newTestServer(t)
	user := "auth0|validation"

	tests := []struct {
		name   string
		path   string
		body   map[string]any
		detail string
	}{
		{
			name:   "bad state code",
			path:   "/api/state-licenses",
			body:   map[string]any{"state_code": "CAL"},
			detail: "must be two letters",
		},
		{
			name: "zero course hours",
			path: "/api/courses",
			body: map[string]any{
				"title":        "Ethics",
				"completed_at": "2024-06-01",
				"hours":        "0",
			},
			detail: "must be greater than 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, srv, user, http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			require.Equal(t, tt.detail, obj(t, body)["detail"])
		})
	}
}

func TestCoursePatchNullHandling(t *testing.T) {
	srv := newTestServer(t)
	user := "auth0|patch"

	resp, body := doJSON(t, srv, user, http.MethodPost, "/api/courses", map[string]any{
		"title":        "Ethics",
		"provider":     "Acme CE",
		"completed_at": "2024-06-01",
		"hours":        "3",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	courseID := obj(t, body)["id"].(string)

	// provider may be nulled, title may not.
	resp, body = doJSON(t, srv, user, http.MethodPatch, "/api/courses/"+courseID, map[string]any{
		"provider": nil,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Nil(t, obj(t, body)["provider"])

	resp, body = doJSON(t, srv, user, http.MethodPatch, "/api/courses/"+courseID, map[string]any{
		"title": nil,
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, "title cannot be null", obj(t, body)["detail"])

	// Absent fields stay untouched.
	resp, body = doJSON(t, srv, user, http.MethodPatch, "/api/courses/"+courseID, map[string]any{
		"hours": "5",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	unchanged := obj(t, body)
	require.Equal(t, "Ethics", unchanged["title"])
	require.Equal(t, "5", unchanged["hours"])
}

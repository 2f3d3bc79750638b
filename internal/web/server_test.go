package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shplep/homecontentslistpro-sub000/internal/config"
	"github.com/shplep/homecontentslistpro-sub000/internal/core"
	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
	"github.com/shplep/homecontentslistpro-sub000/internal/ingest"
	"github.com/shplep/homecontentslistpro-sub000/internal/logging"
	"github.com/shplep/homecontentslistpro-sub000/internal/metrics"
	"github.com/shplep/homecontentslistpro-sub000/internal/ratelimit"
	"github.com/shplep/homecontentslistpro-sub000/internal/session"
	"github.com/shplep/homecontentslistpro-sub000/internal/store/memory"
	"github.com/shplep/homecontentslistpro-sub000/internal/web/middleware"
)

const owner = "owner-1"

const itemsCSV = "House Name,House Address,City,State,Room Name,Item Name,Brand,Price\n" +
	"Main,1 Elm St,Springfield,IL,Den,Lamp,IKEA,$20\n" +
	"Main,1 Elm St,Springfield,IL,Kitchen,Kettle,,15\n"

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type harness struct {
	srv     *Server
	store   *memory.Store
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, mutate func(*config.Config, *Deps)) *harness {
	t.Helper()
	h := &harness{store: memory.New(), metrics: metrics.New(nil)}

	svc, err := core.NewService(core.Deps{
		Store:    h.store,
		Sessions: session.NewMemoryStore(),
		Locker:   session.NewMemoryLocker(),
		Metrics:  h.metrics,
		Logger:   logging.Discard(),
	}, core.Config{MaxRows: 100, MaxFileSize: 1 << 20})
	require.NoError(t, err)

	cfg := &config.Config{
		Server:  config.ServerConfig{RequestTimeout: 5 * time.Second},
		Import:  config.ImportConfig{MaxFileSize: 1 << 20},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	deps := Deps{Service: svc, Metrics: h.metrics, Store: pinger{}}
	if mutate != nil {
		mutate(cfg, &deps)
	}

	h.srv, err = NewServer(cfg, deps)
	require.NoError(t, err)
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	if req.Header.Get(middleware.OwnerHeader) == "" {
		req.Header.Set(middleware.OwnerHeader, owner)
	}
	rec := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/imports/preview", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (h *harness) preview(t *testing.T) previewResponse {
	t.Helper()
	rec := h.do(uploadRequest(t, "items.csv", itemsCSV))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[previewResponse](t, rec)
}

func TestPreviewUpload(t *testing.T) {
	h := newHarness(t, nil)
	got := h.preview(t)

	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "items.csv", got.Source)
	assert.True(t, got.CanCommit)
	require.NotNil(t, got.Preview)
	assert.Len(t, got.Preview.Houses, 1)
	assert.Len(t, got.Preview.Rooms, 2)
	assert.Len(t, got.Preview.Items, 2)
	assert.Empty(t, got.Preview.Errors)
}

func TestPreviewJSON(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(jsonRequest(http.MethodPost, "/api/imports/preview", map[string]any{
		"rows": []map[string]any{
			{"House Address": "1 Elm St", "City": "Springfield", "State": "IL", "Room Name": "Den", "Item Name": "Lamp", "Price": -5},
			{"Brand": "Acme"},
		},
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decode[previewResponse](t, rec)
	assert.Equal(t, "api", got.Source)
	assert.False(t, got.CanCommit)
	assert.Len(t, got.Preview.Items, 1)
	assert.Len(t, got.Preview.Errors, 1)
	assert.Len(t, got.Preview.Warnings, 1)
}

func TestPreviewErrors(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		wantCode int
		wantErr  string
	}{
		{
			name:     "no rows",
			req:      func(*testing.T) *http.Request { return jsonRequest(http.MethodPost, "/api/imports/preview", map[string]any{"rows": []any{}}) },
			wantCode: http.StatusBadRequest,
			wantErr:  "VAL001",
		},
		{
			name: "malformed json",
			req: func(*testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/imports/preview", strings.NewReader("{"))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "VAL001",
		},
		{
			name: "unsupported body",
			req: func(*testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/imports/preview", strings.NewReader("x"))
				req.Header.Set("Content-Type", "text/plain")
				return req
			},
			wantCode: http.StatusUnsupportedMediaType,
			wantErr:  "FILE002",
		},
		{
			name:     "unsupported file",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "items.xlsx", "PK") },
			wantCode: http.StatusUnsupportedMediaType,
			wantErr:  "FILE002",
		},
		{
			name:     "empty file",
			req:      func(t *testing.T) *http.Request { return uploadRequest(t, "items.csv", "") },
			wantCode: http.StatusBadRequest,
			wantErr:  "FILE005",
		},
		{
			name: "missing owner",
			req: func(*testing.T) *http.Request {
				req := jsonRequest(http.MethodPost, "/api/imports/preview", map[string]any{"rows": []any{map[string]any{}}})
				req.Header.Set(middleware.OwnerHeader, " ")
				return req
			},
			wantCode: http.StatusUnauthorized,
			wantErr:  "AUTH001",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			rec := h.do(tt.req(t))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			got := decode[ErrorResponse](t, rec)
			if got.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", got.Code, tt.wantErr)
			}
		})
	}
}

func TestGetAndDiscardPreview(t *testing.T) {
	h := newHarness(t, nil)
	p := h.preview(t)
	path := "/api/imports/" + p.ID

	rec := h.do(httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, p.ID, decode[previewResponse](t, rec).ID)

	other := httptest.NewRequest(http.MethodGet, path, nil)
	other.Header.Set(middleware.OwnerHeader, "owner-2")
	assert.Equal(t, http.StatusNotFound, h.do(other).Code, "other owners cannot see the preview")

	rec = h.do(httptest.NewRequest(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "IMP001", decode[ErrorResponse](t, rec).Code)
}

func TestInvalidPreviewID(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/imports/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommit(t *testing.T) {
	h := newHarness(t, nil)
	p := h.preview(t)

	rec := h.do(jsonRequest(http.MethodPost, "/api/imports/"+p.ID+"/commit", map[string]any{
		"createMissingHouses": true,
		"createMissingRooms":  true,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[importer.Result](t, rec)
	assert.Equal(t, importer.CreatedCounts{Houses: 1, Rooms: 2, Items: 2}, res.Created)
	assert.Equal(t, "Import completed: 1 house, 2 rooms, 2 items created. 0 items updated, 0 items skipped.", res.Summary)
	assert.Len(t, h.store.Items(), 2)

	rec = h.do(jsonRequest(http.MethodPost, "/api/imports/"+p.ID+"/commit", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "a committed preview is consumed")
}

func TestCommit_EmptyBodyUsesDefaults(t *testing.T) {
	h := newHarness(t, nil)
	p := h.preview(t)

	req := httptest.NewRequest(http.MethodPost, "/api/imports/"+p.ID+"/commit", nil)
	rec := h.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[importer.Result](t, rec)
	assert.Equal(t, importer.CreatedCounts{}, res.Created)
	assert.Equal(t, 2, res.Skipped.Items, "without create flags nothing resolves")
}

func TestCommit_Diagnostics(t *testing.T) {
	h := newHarness(t, nil)
	p := h.preview(t)

	rec := h.do(jsonRequest(http.MethodPost, "/api/imports/"+p.ID+"/commit", map[string]any{"diagnostics": true}))
	require.Equal(t, http.StatusOK, rec.Code)

	var items int
	for _, d := range decode[importer.Result](t, rec).Diagnostics {
		if d.Entity == importer.EntityItem {
			assert.Equal(t, importer.ReasonUnresolvedRoom, d.Reason)
			items++
		}
	}
	assert.Equal(t, 2, items)
}

func TestCommit_Rejections(t *testing.T) {
	t.Run("unknown field", func(t *testing.T) {
		h := newHarness(t, nil)
		p := h.preview(t)
		rec := h.do(jsonRequest(http.MethodPost, "/api/imports/"+p.ID+"/commit", map[string]any{"updateExisitng": true}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("preview with errors", func(t *testing.T) {
		h := newHarness(t, nil)
		rec := h.do(jsonRequest(http.MethodPost, "/api/imports/preview", map[string]any{
			"rows": []map[string]any{{"Brand": "Acme"}},
		}))
		require.Equal(t, http.StatusCreated, rec.Code)
		p := decode[previewResponse](t, rec)

		rec = h.do(jsonRequest(http.MethodPost, "/api/imports/"+p.ID+"/commit", nil))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "IMP002", decode[ErrorResponse](t, rec).Code)
	})
}

func TestHTMXResponses(t *testing.T) {
	h := newHarness(t, nil)

	req := uploadRequest(t, "items.csv", itemsCSV)
	req.Header.Set("HX-Request", "true")
	rec := h.do(req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "import-preview")

	req = httptest.NewRequest(http.MethodGet, "/api/imports/00000000-0000-0000-0000-000000000000", nil)
	req.Header.Set("HX-Request", "true")
	rec = h.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "#alerts", rec.Header().Get("HX-Retarget"))
	assert.Contains(t, rec.Body.String(), "IMP001")
}

func TestAuditEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	h.preview(t)
	h.preview(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/imports/audit?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[struct {
		Entries []core.AuditEntry `json:"entries"`
	}](t, rec)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, core.ActionPreview, got.Entries[0].Action)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		store    Pinger
		wantCode int
		want     string
	}{
		{"ok", pinger{}, http.StatusOK, `"status":"ok"`},
		{"store down", pinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, `"status":"degraded"`},
		{"no store", nil, http.StatusOK, `"maxConcurrent"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, func(_ *config.Config, d *Deps) { d.Store = tt.store })
			rec := httptest.NewRecorder()
			h.srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	h.preview(t)

	rec := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/imports/preview"`)
}

func TestSecurityHeadersAndAPIKey(t *testing.T) {
	h := newHarness(t, func(c *config.Config, _ *Deps) {
		c.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"secret"}}
	})

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/imports/audit", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	req := httptest.NewRequest(http.MethodGet, "/api/imports/audit", nil)
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, h.do(req).Code)
}

func TestImportRateLimit(t *testing.T) {
	h := newHarness(t, func(_ *config.Config, d *Deps) {
		d.ImportLimiter = ratelimit.NewMemory(1, time.Minute)
	})
	h.preview(t)

	rec := h.do(uploadRequest(t, "items.csv", itemsCSV))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/imports/audit", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not import limited")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{core.ErrPreviewNotFound, http.StatusNotFound},
		{core.ErrPreviewHasErrors, http.StatusUnprocessableEntity},
		{core.ErrCommitInProgress, http.StatusConflict},
		{core.ErrTooManyCommits, http.StatusServiceUnavailable},
		{core.ErrCommitStillRunning, http.StatusAccepted},
		{core.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{ingest.ErrTooManyRows, http.StatusRequestEntityTooLarge},
		{ingest.ErrUnsupportedFormat, http.StatusUnsupportedMediaType},
		{ingest.ErrNoHeader, http.StatusBadRequest},
		{core.ErrOwnerRequired, http.StatusUnauthorized},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestNewServer_RequiresService(t *testing.T) {
	_, err := NewServer(&config.Config{}, Deps{})
	assert.Error(t, err)
}

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shplep/homecontentslistpro-sub000/internal/core"
	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
	"github.com/shplep/homecontentslistpro-sub000/internal/ingest"
	"github.com/shplep/homecontentslistpro-sub000/internal/session"
	"github.com/shplep/homecontentslistpro-sub000/internal/web/views"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in
// memory before spilling to a temp file.
const multipartMemory = 8 << 20

// previewRequest is the JSON form of a preview upload.
type previewRequest struct {
	Source string            `json:"source" validate:"max=255"`
	Rows   []importer.RawRow `json:"rows" validate:"required,min=1"`
}

// commitRequest carries the conflict policy for one commit. Absent flags
// are false.
type commitRequest struct {
	UpdateExisting      bool `json:"updateExisting"`
	SkipDuplicates      bool `json:"skipDuplicates"`
	CreateMissingHouses bool `json:"createMissingHouses"`
	CreateMissingRooms  bool `json:"createMissingRooms"`
	Diagnostics         bool `json:"diagnostics"`
}

func (c commitRequest) options() importer.Options {
	return importer.Options{
		UpdateExisting:      c.UpdateExisting,
		SkipDuplicates:      c.SkipDuplicates,
		CreateMissingHouses: c.CreateMissingHouses,
		CreateMissingRooms:  c.CreateMissingRooms,
		CollectDiagnostics:  c.Diagnostics,
	}
}

// previewResponse is a stored preview as the API returns it.
type previewResponse struct {
	ID        string            `json:"id"`
	Source    string            `json:"source,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
	ExpiresAt time.Time         `json:"expiresAt"`
	CanCommit bool              `json:"canCommit"`
	Preview   *importer.Preview `json:"preview"`
}

func newPreviewResponse(s *session.Session) previewResponse {
	return previewResponse{
		ID:        s.ID,
		Source:    s.Source,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
		CanCommit: s.Preview != nil && !s.Preview.HasErrors(),
		Preview:   s.Preview,
	}
}

// respondPreview writes a session as JSON, or as a summary fragment for
// HTMX.
func (s *Server) respondPreview(w http.ResponseWriter, r *http.Request, status int, sess *session.Session) {
	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = views.PreviewSummary(sess).Render(r.Context(), w)
		return
	}
	writeJSON(w, status, newPreviewResponse(sess))
}

// handlePreview accepts a multipart file upload or a JSON body of rows and
// stores the resulting preview.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := WithRequestMetadata(r.Context(), r)
	owner := core.OwnerFromContext(ctx)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		sess *session.Session
		err  error
	)
	switch mediaType {
	case "multipart/form-data":
		sess, err = s.previewUpload(w, r, owner)
	case "application/json":
		sess, err = s.previewJSON(w, r, owner)
	default:
		err = fmt.Errorf("preview body %q: %w", mediaType, ingest.ErrUnsupportedFormat)
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.respondPreview(w, r, http.StatusCreated, sess)
}

func (s *Server) previewUpload(w http.ResponseWriter, r *http.Request, owner string) (*session.Session, error) {
	maxSize := s.cfg.Import.MaxFileSize
	// Leave headroom for the multipart framing around the file.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, fmt.Errorf("%w: limit %d bytes", core.ErrFileTooLarge, maxSize)
		}
		return nil, fmt.Errorf("%w: parse form: %v", core.ErrInvalidRequest, err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, core.ErrNoFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read upload: %v", core.ErrInvalidRequest, err)
	}
	defer file.Close()

	return s.service.PreviewFile(WithRequestMetadata(r.Context(), r), owner,
		header.Filename, header.Header.Get("Content-Type"), file, header.Size)
}

func (s *Server) previewJSON(w http.ResponseWriter, r *http.Request, owner string) (*session.Session, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxFileSize)

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	var req previewRequest
	if err := dec.Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, fmt.Errorf("%w: limit %d bytes", core.ErrFileTooLarge, s.cfg.Import.MaxFileSize)
		}
		return nil, fmt.Errorf("%w: decode body: %v", core.ErrInvalidRequest, err)
	}
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}

	source := req.Source
	if source == "" {
		source = "api"
	}
	return s.service.PreviewRows(WithRequestMetadata(r.Context(), r), owner, source, req.Rows)
}

func (s *Server) previewID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "previewID")
	if err := s.validate.Var(id, "required,uuid"); err != nil {
		return "", fmt.Errorf("%w: preview id %q", core.ErrInvalidRequest, id)
	}
	return id, nil
}

func (s *Server) handleGetPreview(w http.ResponseWriter, r *http.Request) {
	id, err := s.previewID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sess, err := s.service.GetPreview(r.Context(), core.OwnerFromContext(r.Context()), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondPreview(w, r, http.StatusOK, sess)
}

func (s *Server) handleDiscardPreview(w http.ResponseWriter, r *http.Request) {
	id, err := s.previewID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	ctx := WithRequestMetadata(r.Context(), r)
	if err := s.service.DiscardPreview(ctx, core.OwnerFromContext(ctx), id); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCommit applies a stored preview with the policy in the body. An
// empty body commits with every flag off.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	id, err := s.previewID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req commitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.respondError(w, r, fmt.Errorf("%w: decode body: %v", core.ErrInvalidRequest, err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err))
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	result, err := s.service.CommitImport(ctx, core.OwnerFromContext(ctx), id, req.options())
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = views.CommitResult(result).Render(r.Context(), w)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAuditLog lists the caller's most recent audit entries, newest
// first. ?limit= caps the count (default 50).
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 50)
	entries := s.service.Audit().Recent(core.OwnerFromContext(r.Context()), limit)
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type healthResponse struct {
	Status  string                   `json:"status"`
	Store   string                   `json:"store"`
	Commits core.CommitLimiterStatus `json:"commits"`
}

// handleHealth pings the store and reports commit slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Store: "ok", Commits: s.service.Limiter().Status()}
	status := http.StatusOK
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			resp.Status, resp.Store = "degraded", err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

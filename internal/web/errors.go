package web

// errors.go renders every handler error the same way: the technical error
// is logged with the request id, and the client gets the mapped
// core.UserMessage as JSON, an HTMX fragment or plain text.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/shplep/homecontentslistpro-sub000/internal/core"
	"github.com/shplep/homecontentslistpro-sub000/internal/ingest"
	"github.com/shplep/homecontentslistpro-sub000/internal/logging"
	"github.com/shplep/homecontentslistpro-sub000/internal/web/views"
)

// ErrorResponse is the JSON body of every API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for a service error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrPreviewNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrPreviewHasErrors):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrCommitInProgress):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyCommits):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrCommitStillRunning):
		return http.StatusAccepted
	case errors.Is(err, core.ErrFileTooLarge), errors.Is(err, ingest.ErrTooManyRows):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, core.ErrNoFile), errors.Is(err, core.ErrInvalidRequest), errors.Is(err, ingest.ErrNoHeader):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrOwnerRequired):
		return http.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes the user-facing version of it.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	level := logging.FromContext(r.Context()).Warn
	if status >= http.StatusInternalServerError {
		level = logging.FromContext(r.Context()).Error
	}
	level("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"owner_id", core.OwnerFromContext(r.Context()),
	)

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}

	switch {
	case isHTMX(r):
		renderErrorPartial(w, r, userMsg, status)
	case wantsJSON(r):
		respondErrorJSON(w, userMsg, status)
	default:
		http.Error(w, userMsg.Message+" ("+userMsg.Code+")", status)
	}
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// renderErrorPartial writes an HTMX error fragment. HTMX ignores non-2xx
// bodies unless told otherwise, so the fragment is retargeted to the
// page's alert slot.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("HX-Retarget", "#alerts")
	w.WriteHeader(status)
	if err := views.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error partial", "error", err,
			"request_id", middleware.GetReqID(r.Context()))
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON is true for API paths and for clients that accept or send JSON.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

// writeJSON encodes v with the given status. Encoding errors are only
// logged since the header is already out.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

package web

// errors.go provides unified error response handling for the web layer.
//
// Every failure is logged once with the technical error, its code and the
// request ID. Clients only ever see the sanitized outcome: the fixed message
// on HTML pages, or MapError's message, action and code on the JSON API.

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/JonMunkholm/csvclean/internal/web/templates"
	"github.com/a-h/templ"
)

// ErrorResponse is the JSON body of API error responses.
// It has both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for a cleaning or request error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrTooManyUploads):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusBadRequest
	}

	switch core.MapError(err).Code {
	case "FILE001":
		return http.StatusRequestEntityTooLarge
	case "FILE002":
		return http.StatusUnprocessableEntity
	case "FILE003", "FILE004", "FILE005", "EXP001":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// logError records the technical error. Client mistakes log at warn.
func logError(r *http.Request, err error, status int) core.UserMessage {
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	log := logger.Error
	if status < http.StatusInternalServerError {
		log = logger.Warn
	}
	log("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"code", msg.Code,
		"error", err,
	)

	return msg
}

// respondError logs err and answers in the format the client expects
// (HTMX fragment, JSON or plain text).
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	msg := logError(r, err, statusCode)

	switch {
	case isHTMX(r):
		s.render(w, r, statusCode, templates.ErrorAlert(msg.Message, msg.Action, msg.Code))
	case wantsJSON(r):
		respondErrorJSON(w, msg, statusCode)
	default:
		respondErrorHTML(w, msg, statusCode)
	}
}

// respondUploadFailure answers a failed form upload. The page shows only the
// fixed invalid-upload message, whatever the cause.
func (s *Server) respondUploadFailure(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logError(r, err, status)

	if isHTMX(r) {
		s.render(w, r, status, templates.ErrorAlert(core.MessageInvalidUpload, "", ""))
		return
	}
	s.render(w, r, status, templates.UploadPage(core.MessageInvalidUpload))
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// respondErrorHTML writes a plain text error response.
func respondErrorHTML(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	http.Error(w, msg.Message+" ("+msg.Code+")", statusCode)
}

// render writes an HTML component with the given status.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
	}
}

// writeJSON encodes v as JSON. Encoding errors are logged since the status
// line is already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers a JSON response. API routes always do.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

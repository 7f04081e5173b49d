package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and the request ID, then
// mapped via core.MapError to a user message and code. API clients get JSON;
// browsers get an HTML error page.

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/csvcleaner/internal/core"
	"github.com/JonMunkholm/csvcleaner/internal/logging"
	"github.com/JonMunkholm/csvcleaner/internal/web/templates"
	"github.com/a-h/templ"
	"github.com/go-chi/render"
)

var errNoFile = errors.New("no file provided")

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for an error by its user-facing code.
func statusFor(err error) int {
	code := core.MapError(err).Code
	switch {
	case code == "CLN001":
		return http.StatusBadRequest
	case code == "CLN002":
		return http.StatusUnprocessableEntity
	case code == "FILE001":
		return http.StatusRequestEntityTooLarge
	case code == "FILE006":
		return http.StatusUnsupportedMediaType
	case strings.HasPrefix(code, "FILE"):
		return http.StatusBadRequest
	case code == "AUTH001", code == "AUTH003":
		return http.StatusUnauthorized
	case code == "AUTH002":
		return http.StatusConflict
	case code == "AUTH004":
		return http.StatusBadRequest
	case code == "UPL002":
		return http.StatusServiceUnavailable
	case code == "UPL003":
		return http.StatusNotFound
	case code == "UPL004":
		return http.StatusBadRequest
	case code == "UPL005":
		return http.StatusGatewayTimeout
	case code == "RATE001":
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs err and writes a user-friendly error response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)
	s.logError(r, err, userMsg, statusCode)

	if wantsJSON(r) {
		respondErrorJSON(w, r, userMsg, statusCode)
		return
	}
	s.render(w, r, statusCode, templates.ErrorPage(userMsg.Message, userMsg.Action, userMsg.Code))
}

// logError records the technical error. Client mistakes log at warn.
func (s *Server) logError(r *http.Request, err error, msg core.UserMessage, statusCode int) {
	logger := logging.FromContext(r.Context())
	level := logger.Warn
	if statusCode >= 500 {
		level = logger.Error
	}
	level("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", msg.Code,
	)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	render.Status(r, statusCode)
	render.JSON(w, r, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// render writes a templ component as a complete HTML response.
// The component is rendered to a buffer first so a failure can still
// produce a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, statusCode int, c templ.Component) {
	var buf bytes.Buffer
	if err := c.Render(r.Context(), &buf); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "path", r.URL.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// wantsJSON checks if the client prefers JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

package web

import (
	"net/http"

	"github.com/JonMunkholm/csvcleaner/internal/core"
	"github.com/JonMunkholm/csvcleaner/internal/logging"
	"github.com/go-chi/render"
)

// operationInfo is the JSON form of a catalogue entry.
type operationInfo struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Default     bool   `json:"default"`
}

// cleanResponse is returned by POST /api/clean.
type cleanResponse struct {
	ID             string            `json:"id"`
	FileName       string            `json:"fileName"`
	Stats          core.Stats        `json:"stats"`
	RowsRemoved    int               `json:"rowsRemoved"`
	ColumnsRemoved int               `json:"columnsRemoved"`
	Labels         []string          `json:"labels"`
	DurationMS     int64             `json:"durationMs"`
	Original       core.PreviewTable `json:"original"`
	Cleaned        core.PreviewTable `json:"cleaned"`
	DownloadURL    string            `json:"downloadUrl"`
}

// healthResponse is returned by GET /healthz.
type healthResponse struct {
	Status  string                   `json:"status"`
	Storage string                   `json:"storage"`
	Uploads core.UploadLimiterStatus `json:"uploads"`
	Error   string                   `json:"error,omitempty"`
}

// handleAPIOperations lists the supported operations in application order.
func (s *Server) handleAPIOperations(w http.ResponseWriter, r *http.Request) {
	ops := core.Operations()
	out := make([]operationInfo, len(ops))
	for i, op := range ops {
		out[i] = operationInfo{Name: op.Name, Label: op.Label, Description: op.Description, Default: op.Default}
	}
	render.JSON(w, r, map[string]any{"operations": out})
}

// handleAPIClean is the JSON counterpart of the dashboard form.
// Operations come from repeated or comma-separated "operations" fields.
func (s *Server) handleAPIClean(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())

	result, _, err := s.runUpload(w, r, sess)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	render.JSON(w, r, cleanResponse{
		ID:             result.ID,
		FileName:       result.FileName,
		Stats:          result.Stats,
		RowsRemoved:    result.Stats.RowsRemoved(),
		ColumnsRemoved: result.Stats.ColumnsRemoved(),
		Labels:         core.Labels(result.Stats.Applied),
		DurationMS:     result.Duration.Milliseconds(),
		Original:       core.Preview(result.Original, s.cfg.Upload.PreviewRows),
		Cleaned:        core.Preview(result.Cleaned, s.cfg.Upload.PreviewRows),
		DownloadURL:    "/download",
	})
}

// handleAPIHistory returns the caller's recent runs, newest first.
func (s *Server) handleAPIHistory(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())

	entries, err := s.deps.Service.History(r.Context(), sess.UserID)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []core.HistoryEntry{}
	}
	render.JSON(w, r, map[string]any{"history": entries})
}

// handleHealth reports liveness plus upload slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:  "ok",
		Storage: s.deps.Storage,
		Uploads: s.deps.Service.UploadLimiterStatus(),
	}
	if s.deps.Ping != nil {
		if err := s.deps.Ping(r.Context()); err != nil {
			logging.FromContext(r.Context()).Error("health check failed", "error", err)
			resp.Status = "degraded"
			resp.Error = core.MapError(err).Code
			render.Status(r, http.StatusServiceUnavailable)
		}
	}
	render.JSON(w, r, resp)
}

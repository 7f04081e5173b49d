package web

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/csvcleaner/internal/auth"
	"github.com/JonMunkholm/csvcleaner/internal/core"
	"github.com/JonMunkholm/csvcleaner/internal/logging"
	"github.com/JonMunkholm/csvcleaner/internal/tabular"
	"github.com/JonMunkholm/csvcleaner/internal/web/templates"
)

const (
	// multipartOverhead allows for form fields and part headers on top of
	// the file itself.
	multipartOverhead = 1 << 20

	// multipartMemory is how much of an upload is buffered in memory before
	// spilling to a temp file.
	multipartMemory = 8 << 20
)

// handleDashboard renders the upload form and history.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())
	data := s.dashboardData(r.Context(), sess, nil)
	s.render(w, r, http.StatusOK, templates.Dashboard(data))
}

// handleClean runs an upload from the dashboard form.
func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())

	result, ops, err := s.runUpload(w, r, sess)
	if err != nil {
		status := statusFor(err)
		msg := core.MapError(err)
		s.logError(r, err, msg, status)

		data := s.dashboardData(r.Context(), sess, ops)
		data.Error = &msg
		s.render(w, r, status, templates.Dashboard(data))
		return
	}

	data := s.dashboardData(r.Context(), sess, ops)
	data.Result = s.resultView(result)
	s.render(w, r, http.StatusOK, templates.Dashboard(data))
}

// handleDownload serves the session's last cleaned dataset as CSV or, with
// ?format=xlsx, as an Excel workbook.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess, _ := sessionFromContext(r.Context())

	stored, ok := s.results.get(sess.Token)
	if !ok {
		s.respondError(w, r, errNoResult, http.StatusNotFound)
		return
	}

	format, err := tabular.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if err := s.deps.Codec.Encode(&buf, stored.cleaned, format); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	name := downloadName(stored.fileName, format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := w.Write(buf.Bytes()); err != nil {
		logging.FromContext(r.Context()).Warn("download write failed", "error", err)
	}
}

// downloadName builds "cleaned_<base><ext>" for the original file name.
func downloadName(fileName string, format tabular.Format) string {
	base := filepath.Base(fileName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "data"
	}
	return "cleaned_" + base + format.Extension()
}

// runUpload parses the multipart form, runs the cleaning service and keeps
// the result for download. It returns the requested operation names even on
// failure so the form can be redisplayed as submitted.
func (s *Server) runUpload(w http.ResponseWriter, r *http.Request, sess auth.Session) (*core.RunResult, []string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil, errNoFile
		}
		return nil, nil, fmt.Errorf("parse upload: %w", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	ops := formOperations(r.MultipartForm.Value["operations"])

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, ops, errNoFile
		}
		return nil, ops, fmt.Errorf("read upload: %w", err)
	}
	defer file.Close()
	if header.Size > s.cfg.Upload.MaxFileSize {
		return nil, ops, fmt.Errorf("file too large: %d bytes", header.Size)
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.uploadTimeout())
	defer cancel()

	result, err := s.deps.Service.Run(ctx, core.RunRequest{
		UserID:     sess.UserID,
		FileName:   filepath.Base(header.Filename),
		File:       file,
		Operations: ops,
	})
	if err != nil {
		return nil, ops, err
	}

	s.results.put(sess.Token, result)
	return result, ops, nil
}

// formOperations flattens repeated and comma-separated operation values.
func formOperations(values []string) []string {
	ops := []string{}
	for _, v := range values {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				ops = append(ops, name)
			}
		}
	}
	return ops
}

// dashboardData assembles the page model. selected nil means the defaults.
func (s *Server) dashboardData(ctx context.Context, sess auth.Session, selected []string) templates.DashboardData {
	ops := core.Operations()
	checked := make(map[string]bool, len(ops))
	if selected == nil {
		for _, op := range ops {
			checked[op.Name] = op.Default
		}
	} else {
		for _, name := range selected {
			checked[name] = true
		}
	}

	history, err := s.deps.Service.History(ctx, sess.UserID)
	if err != nil {
		logging.FromContext(ctx).Error("load history failed", "error", err)
	}

	return templates.DashboardData{
		Username:     sess.Username,
		StorageLabel: s.deps.Storage,
		Operations:   ops,
		Selected:     checked,
		History:      history,
	}
}

func (s *Server) resultView(result *core.RunResult) *templates.ResultView {
	return &templates.ResultView{
		FileName:        result.FileName,
		Stats:           result.Stats,
		OperationLabels: core.Labels(result.Stats.Applied),
		Original:        core.Preview(result.Original, s.cfg.Upload.PreviewRows),
		Cleaned:         core.Preview(result.Cleaned, s.cfg.Upload.PreviewRows),
	}
}

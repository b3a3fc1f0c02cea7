package web

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/JonMunkholm/csvclean/internal/export"
	"github.com/JonMunkholm/csvclean/internal/history"
	"github.com/JonMunkholm/csvclean/internal/logging"
	"github.com/JonMunkholm/csvclean/internal/web/templates"
)

// multipartMemory is how much of a multipart form is held in memory before
// parts spill to temporary files.
const multipartMemory = 8 << 20

// RunIDHeader carries the run ID on API responses.
const RunIDHeader = "X-Run-ID"

// handleIndex renders the upload form.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, templates.UploadPage(""))
}

// handleUpload cleans a form upload and renders the result page.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	res, err := s.cleanRequest(w, r, false)
	if err != nil {
		s.respondUploadFailure(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, templates.ResultPage(templates.NewResultView(res)))
}

// handleAPIClean cleans an upload and returns the table in ?format=.
// The body is either a multipart form with a "file" field or the raw CSV,
// named by ?name=.
func (s *Server) handleAPIClean(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	res, err := s.cleanRequest(w, r, true)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, res.Table); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set(RunIDHeader, res.RunID)
	if format != export.FormatJSON {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": format.FileName(res.FileName),
		}))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

type historyResponse struct {
	Runs []history.Run `json:"runs"`
}

// handleHistory lists recent runs, newest first. ?limit= overrides the
// configured page size.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Database.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error:   "limit must be a positive integer",
				Message: "limit must be a positive integer",
				Code:    "REQ001",
			})
			return
		}
		limit = n
	}

	runs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}

	writeJSON(w, http.StatusOK, historyResponse{Runs: runs})
}

type statusResponse struct {
	Uploads        core.UploadLimiterStatus `json:"uploads"`
	HistoryEnabled bool                     `json:"history_enabled"`
}

// handleStatus reports limiter usage.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Uploads:        s.service.UploadLimiterStatus(),
		HistoryEnabled: s.cfg.Database.Enabled(),
	})
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// cleanRequest reads the upload from r and runs it through the service.
func (s *Server) cleanRequest(w http.ResponseWriter, r *http.Request, allowRaw bool) (*core.Result, error) {
	up, cleanup, err := s.readUpload(w, r, allowRaw)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return s.service.CleanUpload(r.Context(), up)
}

// readUpload extracts the uploaded file. A request without a file yields an
// Upload with a nil Body, so the service rejects and records it like any
// other invalid upload. Only an oversized body fails here.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, allowRaw bool) (core.Upload, func(), error) {
	nop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if allowRaw && mediaType != "multipart/form-data" {
		return core.Upload{
			FileName:    r.URL.Query().Get("name"),
			ContentType: r.Header.Get("Content-Type"),
			Size:        r.ContentLength,
			Body:        r.Body,
		}, nop, nil
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			return core.Upload{}, nop, core.Reject(core.ErrFileTooLarge)
		}
		return core.Upload{Size: -1}, nop, nil
	}
	cleanup := func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logging.FromContext(r.Context()).Warn("remove multipart files", "error", err)
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return core.Upload{Size: -1}, cleanup, nil
	}

	up := core.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	return up, func() {
		file.Close()
		cleanup()
	}, nil
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

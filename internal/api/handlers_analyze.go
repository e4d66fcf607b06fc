package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docstruct/internal/analyzer"
	"github.com/dgallion1/docstruct/internal/doctree"
	"github.com/dgallion1/docstruct/internal/parser"
	"github.com/dgallion1/docstruct/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

// analyzeRequest is the JSON form of an analysis request.
type analyzeRequest struct {
	Content  string           `json:"content"`
	Format   string           `json:"format"`
	Filename string           `json:"filename"`
	Title    string           `json:"title"`
	Locale   string           `json:"locale"`
	Options  analyzer.Options `json:"options"`
}

// upload is a request reduced to either raw file bytes or ready content.
type upload struct {
	filename string
	title    string
	data     []byte
	src      *doctree.Source
	opts     analyzer.Options
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	up, status, err := s.readUpload(w, r)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}
	src, err := s.source(up)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := s.analyzer.Analyze(r.Context(), src, up.opts)
	if err != nil {
		s.log.Error("analysis failed", "filename", up.filename, "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAnalyzeAsync(w http.ResponseWriter, r *http.Request) {
	up, status, err := s.readUpload(w, r)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}
	if up.src != nil {
		// Queued jobs start from file bytes; only text content round-trips.
		if up.src.Format != doctree.FormatMarkdown {
			jsonError(w, fmt.Sprintf("async analysis of %q content requires a file upload", up.src.Format), http.StatusBadRequest)
			return
		}
		up.data = []byte(up.src.Content)
		if up.title == "" {
			up.title = up.src.Hints.Title
		}
		up.filename = "content.md"
		if ext := strings.ToLower(filepath.Ext(up.src.Filename)); ext == ".md" || ext == ".markdown" || ext == ".txt" {
			up.filename = sanitizeFilename(up.src.Filename)
		}
	}

	job := pipeline.NewJob(up.filename, up.title, up.data, up.opts)
	if err := s.orchestrator.Submit(job); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrQueueFull) {
			code = http.StatusServiceUnavailable
		}
		jsonError(w, err.Error(), code)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   pipeline.StatusQueued,
		"poll_url": fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"jobs": s.orchestrator.Jobs()})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	body := map[string]any{"job": job.Snapshot()}
	if res, ok := job.Result(); ok {
		body["result"] = res
	}
	writeJSON(w, http.StatusOK, body)
}

// readUpload accepts a multipart file upload or a JSON body.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (upload, int, error) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return s.readMultipart(r)
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return upload{}, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err)
	}
	if req.Locale != "" && req.Options.Locale == "" {
		req.Options.Locale = req.Locale
	}
	up := upload{filename: sanitizeFilename(req.Filename), title: req.Title, opts: req.Options}
	if req.Format == "" && parser.IsSupportedExtension(req.Filename) {
		up.data = []byte(req.Content)
		return up, http.StatusOK, nil
	}
	format, err := doctree.ParseFormat(req.Format)
	if err != nil {
		// The analyzer reports unknown formats as a processing error.
		format = doctree.Format(req.Format)
	}
	up.src = &doctree.Source{
		Content:  req.Content,
		Format:   format,
		Filename: req.Filename,
		Hints:    doctree.Hints{Title: req.Title},
	}
	return up, http.StatusOK, nil
}

func (s *Server) readMultipart(r *http.Request) (upload, int, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return upload{}, http.StatusBadRequest, fmt.Errorf("invalid multipart form: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return upload{}, http.StatusBadRequest, fmt.Errorf("file is required: %w", err)
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		return upload{}, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}

	// Read file data.
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return upload{}, http.StatusInternalServerError, fmt.Errorf("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return upload{}, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}

	up := upload{filename: filename, title: r.FormValue("title"), data: data}
	if v := r.FormValue("options"); v != "" {
		if err := json.Unmarshal([]byte(v), &up.opts); err != nil {
			return upload{}, http.StatusBadRequest, fmt.Errorf("invalid options: %w", err)
		}
	}
	if v := r.FormValue("locale"); v != "" {
		up.opts.Locale = v
	}
	return up, http.StatusOK, nil
}

// source turns an upload into analyzer input, running the file parser when needed.
func (s *Server) source(up upload) (doctree.Source, error) {
	if up.src != nil {
		return *up.src, nil
	}
	p, err := parser.ForFile(up.filename, parser.Options{PDFFallbackPdftotext: s.cfg.PDFFallbackPdftotext})
	if err != nil {
		return doctree.Source{}, err
	}
	src, err := p.Parse(bytes.NewReader(up.data), up.filename)
	if err != nil {
		return doctree.Source{}, fmt.Errorf("parse %s: %w", up.filename, err)
	}
	if t := strings.TrimSpace(up.title); t != "" {
		src.Hints.Title = t
	}
	return src, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	if name == "" {
		return ""
	}
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}

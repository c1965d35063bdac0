package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dgallion1/docrevise/internal/pipeline"
	"github.com/dgallion1/docrevise/internal/review"
	"github.com/go-chi/chi/v5"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var errTooLarge = errors.New("file too large")

func (s *Server) handleSubmitRevision(w http.ResponseWriter, r *http.Request) {
	// Extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	mode := r.FormValue("mode")
	if mode != "" && !slices.Contains(review.Modes(), mode) {
		jsonError(w, fmt.Sprintf("unknown mode %q (known: %s)", mode, strings.Join(review.Modes(), ", ")), http.StatusBadRequest)
		return
	}

	filename, data, ok := s.readUpload(w, r, "file")
	if !ok {
		return
	}

	job := pipeline.NewJob(filename, mode, data)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	snap := job.Snapshot()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":       snap.ID,
		"status":       snap.Status,
		"content_hash": snap.ContentHash,
		"poll_url":     fmt.Sprintf("/api/revisions/%s/status", snap.ID),
	})
}

func (s *Server) handleRevisionStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleRevisionDocument(w http.ResponseWriter, r *http.Request) {
	job, ok := s.finishedJob(w, r)
	if !ok {
		return
	}
	doc := job.Document()
	if doc == nil {
		jsonError(w, "job produced no document", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", revisedName(job.Filename)))
	w.Write(doc)
}

func (s *Server) handleRevisionReport(w http.ResponseWriter, r *http.Request) {
	job, ok := s.finishedJob(w, r)
	if !ok {
		return
	}
	rep := job.Report()
	if rep == nil {
		jsonError(w, "job produced no report", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(rep)
}

// finishedJob looks up the job in the URL and writes an error unless it has
// finished.
func (s *Server) finishedJob(w http.ResponseWriter, r *http.Request) (*pipeline.Job, bool) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return nil, false
	}
	if snap := job.Snapshot(); !snap.Status.Done() {
		jsonError(w, fmt.Sprintf("job is %s", snap.Status), http.StatusConflict)
		return nil, false
	}
	return job, true
}

// readUpload reads a .docx form file, writing the error response itself
// when it fails.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) (string, []byte, bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		jsonError(w, field+" is required: "+err.Error(), http.StatusBadRequest)
		return "", nil, false
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".docx") {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return "", nil, false
	}
	data, err := s.readLimited(file)
	switch {
	case errors.Is(err, errTooLarge):
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.opts.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return "", nil, false
	case err != nil:
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return "", nil, false
	}
	return filename, data, true
}

func (s *Server) readLimited(f multipart.File) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, s.opts.MaxUploadBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.opts.MaxUploadBytes {
		return nil, errTooLarge
	}
	return data, nil
}

func revisedName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + "_revisado.docx"
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}

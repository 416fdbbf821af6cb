package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dgallion1/docgraph/internal/parser"
	"github.com/dgallion1/docgraph/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

var docIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	// Block file plus optional PDF, and form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, 2*s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	docID := r.FormValue("doc_id")
	if docID == "" {
		docID = parser.DocIDFromFilename(filename)
	}
	if !docIDPattern.MatchString(docID) {
		jsonError(w, "invalid doc_id", http.StatusBadRequest)
		return
	}

	in := pipeline.Input{
		DocID:    docID,
		Filename: filename,
		Data:     data,
		Force:    r.FormValue("force") == "true",
	}

	if pdf, ph, err := r.FormFile("pdf"); err == nil {
		path, err := s.savePDF(pdf, ph)
		pdf.Close()
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		in.PDFPath = path
		in.DocURI = sanitizeFilename(ph.Filename)
		in.RemovePDF = true
	} else if !errors.Is(err, http.ErrMissingFile) {
		jsonError(w, "invalid pdf part: "+err.Error(), http.StatusBadRequest)
		return
	}

	job, err := s.orchestrator.Submit(in)
	if err != nil {
		if in.RemovePDF {
			os.Remove(in.PDFPath)
		}
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"doc_id":   job.DocID,
		"status":   job.Snapshot().Status,
		"poll_url": fmt.Sprintf("/api/jobs/%s", job.ID),
	})
}

// savePDF copies an uploaded PDF to a temp file the worker removes after
// the run.
func (s *Server) savePDF(f multipart.File, h *multipart.FileHeader) (string, error) {
	if !strings.EqualFold(filepath.Ext(h.Filename), ".pdf") {
		return "", fmt.Errorf("pdf part must be a .pdf file")
	}
	tmp, err := os.CreateTemp("", "docgraph-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp pdf: %w", err)
	}
	n, err := io.Copy(tmp, io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > s.cfg.MaxUploadBytes {
		err = fmt.Errorf("pdf exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
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

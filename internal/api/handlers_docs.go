package api

import (
	"errors"
	"net/http"
	"path"

	"github.com/dgallion1/docgraph/internal/catalog"
	"github.com/dgallion1/docgraph/internal/storage"
	"github.com/go-chi/chi/v5"
)

var contentTypes = map[string]string{
	".json": "application/json",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".md":   "text/markdown; charset=utf-8",
	".csv":  "text/csv; charset=utf-8",
}

func (s *Server) catalogOrError(w http.ResponseWriter) *catalog.Store {
	if s.runner.Catalog == nil {
		jsonError(w, "document catalog disabled", http.StatusServiceUnavailable)
		return nil
	}
	return s.runner.Catalog
}

// handleListDocuments lists catalogued documents, newest first.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	cat := s.catalogOrError(w)
	if cat == nil {
		return
	}
	docs, err := cat.List(r.Context())
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	cat := s.catalogOrError(w)
	if cat == nil {
		return
	}
	docID := chi.URLParam(r, "docID")
	doc, err := cat.Get(r.Context(), docID)
	if errors.Is(err, catalog.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	arts, err := cat.Artifacts(r.Context(), docID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc, "artifacts": arts})
}

// handleGetArtifact streams one stored output by its artifact name.
func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	cat := s.catalogOrError(w)
	if cat == nil {
		return
	}
	docID, name := chi.URLParam(r, "docID"), chi.URLParam(r, "artifact")
	arts, err := cat.Artifacts(r.Context(), docID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	var key string
	for _, a := range arts {
		if a.Name == name {
			key = a.Key
			break
		}
	}
	if key == "" {
		jsonError(w, "artifact not found", http.StatusNotFound)
		return
	}

	data, err := s.runner.Store.Get(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		jsonError(w, "artifact missing from storage", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	ct, ok := contentTypes[path.Ext(key)]
	if !ok {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(key)+`"`)
	w.Write(data)
}

// handleDeleteDocument removes a document's stored outputs and catalog row.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	cat := s.catalogOrError(w)
	if cat == nil {
		return
	}
	ctx := r.Context()
	docID := chi.URLParam(r, "docID")
	if _, err := cat.Get(ctx, docID); errors.Is(err, catalog.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}

	deleted, err := storage.DeletePrefix(ctx, s.runner.Store, docID+"/")
	if err != nil {
		jsonError(w, "failed to delete outputs: "+err.Error(), http.StatusBadGateway)
		return
	}
	if err := cat.Delete(ctx, docID); err != nil && !errors.Is(err, catalog.ErrNotFound) {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("document deleted", "doc_id", docID, "objects", deleted)
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "objects_deleted": deleted})
}

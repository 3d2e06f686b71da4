package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"docgraph/internal/models"
	"docgraph/pkg/metrics"
	"docgraph/pkg/registry"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart form must include a 'file' field")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "only PDF files are supported")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
			return
		}
		writeError(w, http.StatusInternalServerError, "error reading upload")
		return
	}

	resp, err := s.ingestor.IngestPDF(r.Context(), header.Filename, data)
	if err != nil {
		log.Error("upload failed for %s: %v", header.Filename, err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIngestURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "request body must be JSON with a 'url' field")
		return
	}

	resp, err := s.ingestor.IngestURL(r.Context(), req.URL)
	if err != nil {
		log.Error("url ingestion failed for %s: %v", req.URL, err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	resp, err := s.querier.Query(r.Context(), req)
	if err != nil {
		metrics.Queries.WithLabelValues("error").Inc()
		log.Error("query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	metrics.Queries.WithLabelValues(responseStatus(resp.Metadata)).Inc()
	writeJSON(w, http.StatusOK, resp)
}

// responseStatus distinguishes degraded agent responses from healthy ones
// for the request counters.
func responseStatus(metadata map[string]string) string {
	if metadata["status"] == "error" {
		return "degraded"
	}
	return "ok"
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req models.ComparisonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.DocumentIDs) < 2 {
		writeError(w, http.StatusBadRequest, "at least two document_ids are required")
		return
	}

	resp, err := s.comparer.Compare(r.Context(), req)
	if err != nil {
		metrics.Comparisons.WithLabelValues("error").Inc()
		log.Error("comparison failed: %v", err)
		writeError(w, http.StatusInternalServerError, "comparison failed")
		return
	}
	metrics.Comparisons.WithLabelValues(responseStatus(resp.Metadata)).Inc()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := s.registry.List(r.Context())
	if err != nil {
		log.Error("listing documents failed: %v", err)
		writeError(w, http.StatusInternalServerError, "error listing documents")
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"count":     len(docs),
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.registry.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, registry.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	if err != nil {
		log.Error("loading document failed: %v", err)
		writeError(w, http.StatusInternalServerError, "error loading document")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Chunks go first: chunk deletion is idempotent, so a failure here
	// leaves the record in place for a retry.
	if err := s.chunks.DeleteDocument(r.Context(), id); err != nil {
		log.Error("deleting document chunks failed: %v", err)
		writeError(w, http.StatusInternalServerError, "error deleting document chunks")
		return
	}
	if err := s.registry.Delete(r.Context(), id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		log.Error("deleting document record failed: %v", err)
		writeError(w, http.StatusInternalServerError, "error deleting document")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "document_id": id})
}

func (s *Server) handleOntologies(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ontologies": s.ontologies.List()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/54b3r/ragstore-go/internal/document"
	"github.com/54b3r/ragstore-go/internal/history"
	"github.com/54b3r/ragstore-go/internal/logging"
	"github.com/54b3r/ragstore-go/internal/storage"
)

// maxIngestBody bounds the request body accepted by POST /api/documents.
const maxIngestBody = 32 << 20 // 32 MiB

// handleIngest handles POST /api/documents. It splits the supplied content
// into chunks, resolves embeddings when the backend supports vector search,
// and stores the resulting document.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req ingestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBody))
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FileName == "" {
		http.Error(w, "fileName is required", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}

	doc, err := s.repo.Ingest(r.Context(), req.FileName, req.ContentType, req.UploadedBy, req.Content)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			s.metrics.ingestDocumentsTotal.WithLabelValues("conflict").Inc()
			http.Error(w, "document already exists", http.StatusConflict)
			return
		}
		var verr *document.ValidationError
		if errors.As(err, &verr) {
			s.metrics.ingestDocumentsTotal.WithLabelValues("invalid").Inc()
			http.Error(w, verr.Error(), http.StatusBadRequest)
			return
		}
		log.Error("ingest failed",
			slog.String("file_name", req.FileName),
			slog.Any("error", err),
		)
		s.metrics.ingestDocumentsTotal.WithLabelValues("error").Inc()
		http.Error(w, "ingest failed", http.StatusInternalServerError)
		return
	}

	s.metrics.ingestDocumentsTotal.WithLabelValues("ok").Inc()
	s.metrics.ingestChunksTotal.Add(float64(len(doc.Chunks)))
	s.metrics.ingestDurationSeconds.Observe(time.Since(start).Seconds())

	log.Info("document ingested",
		slog.String("document_id", doc.ID),
		slog.String("file_name", doc.FileName),
		slog.Int("chunks", len(doc.Chunks)),
	)

	writeJSON(w, http.StatusCreated, summarize(doc))
}

// handleListDocuments handles GET /api/documents.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	docs, err := s.repo.GetAll(r.Context())
	if err != nil {
		log.Error("list documents failed", slog.Any("error", err))
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}

	summaries := make([]documentSummary, 0, len(docs))
	for _, d := range docs {
		summaries = append(summaries, summarize(d))
	}
	writeJSON(w, http.StatusOK, summaries)
}

// handleGetDocument handles GET /api/documents/{id}.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	id := r.PathValue("id")

	doc, err := s.repo.GetByID(r.Context(), id)
	if err != nil {
		log.Error("get document failed",
			slog.String("document_id", id),
			slog.Any("error", err),
		)
		http.Error(w, "get failed", http.StatusInternalServerError)
		return
	}
	if doc == nil {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, summarize(doc))
}

// handleDeleteDocument handles DELETE /api/documents/{id}.
// Returns 204 when the document was removed and 404 when it did not exist.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	id := r.PathValue("id")

	deleted, err := s.repo.Delete(r.Context(), id)
	if err != nil {
		log.Error("delete document failed",
			slog.String("document_id", id),
			slog.Any("error", err),
		)
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}
	if !deleted {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSearch handles GET /api/search?q=...&limit=...&session=...
// Search never fails: degraded backends produce degraded (possibly empty)
// results with a 200 status. When a session parameter is supplied and
// history is enabled, the query and the top result are recorded.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	chunks := s.repo.Search(r.Context(), query, limit)

	outcome := "ok"
	if len(chunks) == 0 {
		outcome = "empty"
	}
	s.metrics.searchRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.searchDurationSeconds.Observe(time.Since(start).Seconds())
	s.metrics.searchResults.Observe(float64(len(chunks)))

	if session := r.URL.Query().Get("session"); session != "" && s.hist != nil {
		s.recordHistory(r, session, query, chunks)
	}

	resp := searchResponse{Query: query, Results: make([]searchResult, 0, len(chunks))}
	for _, c := range chunks {
		resp.Results = append(resp.Results, searchResult{
			DocumentID: c.DocumentID,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Score:      c.RelevanceScore,
		})
	}

	log.Info("search served",
		slog.Int("results", len(chunks)),
		slog.Duration("duration", time.Since(start)),
	)
	writeJSON(w, http.StatusOK, resp)
}

// recordHistory appends the query and the best-scoring result to the
// session's history. History failures are logged, never surfaced.
func (s *Server) recordHistory(r *http.Request, session, query string, chunks []document.Chunk) {
	log := logging.FromContext(r.Context())

	if err := s.hist.Append(r.Context(), session, history.RoleUser, query); err != nil {
		log.Warn("history append failed", slog.Any("error", err))
		return
	}
	if len(chunks) == 0 {
		return
	}
	top := chunks[0]
	summary := fmt.Sprintf("%s#%d (%.3f)", top.DocumentID, top.Index, top.RelevanceScore)
	if err := s.hist.Append(r.Context(), session, history.RoleAssistant, summary); err != nil {
		log.Warn("history append failed", slog.Any("error", err))
	}
}

// handleStats handles GET /api/stats.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	count, err := s.repo.Count(r.Context())
	if err != nil {
		log.Error("stats count failed", slog.Any("error", err))
		http.Error(w, "stats failed", http.StatusInternalServerError)
		return
	}

	store := s.repo.Store()
	caps := store.Capabilities()
	writeJSON(w, http.StatusOK, statsResponse{
		Backend:       store.Name(),
		VectorSearch:  caps.VectorSearch,
		TextSearch:    caps.TextSearch,
		DocumentCount: count,
	})
}

// handleHistory handles GET /api/history?session=...&limit=...
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	log := logging.FromContext(r.Context())

	session := r.URL.Query().Get("session")
	if session == "" {
		http.Error(w, "session is required", http.StatusBadRequest)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.hist.Recent(r.Context(), session, limit)
	if err != nil {
		log.Error("history read failed",
			slog.String("session", session),
			slog.Any("error", err),
		)
		http.Error(w, "history read failed", http.StatusInternalServerError)
		return
	}

	resp := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, historyEntryResponse{
			Role:      string(e.Role),
			Content:   e.Content,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleClearHistory handles DELETE /api/history?session=...
func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if s.hist == nil {
		http.Error(w, "history disabled", http.StatusNotFound)
		return
	}
	log := logging.FromContext(r.Context())

	session := r.URL.Query().Get("session")
	if session == "" {
		http.Error(w, "session is required", http.StatusBadRequest)
		return
	}

	removed, err := s.hist.Clear(r.Context(), session)
	if err != nil {
		log.Error("history clear failed",
			slog.String("session", session),
			slog.Any("error", err),
		)
		http.Error(w, "history clear failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

// summarize converts a document into its API representation.
func summarize(d *document.Document) documentSummary {
	return documentSummary{
		ID:          d.ID,
		FileName:    d.FileName,
		ContentType: d.ContentType,
		Size:        d.Size,
		UploadedAt:  d.UploadedAt,
		UploadedBy:  d.UploadedBy,
		ChunkCount:  len(d.Chunks),
	}
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already out; nothing useful left to do but log.
		logging.New().Error("response encode error", slog.Any("error", err))
	}
}

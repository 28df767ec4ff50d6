package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/ragstore-go/internal/history"
	"github.com/54b3r/ragstore-go/internal/repository"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives all Prometheus metric registrations. If nil,
	// prometheus.DefaultRegisterer is used.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs the GET /metrics endpoint. If nil,
	// prometheus.DefaultGatherer is used.
	MetricsGatherer prometheus.Gatherer
}

// Server is the HTTP server that exposes the document repository.
type Server struct {
	// repo is the repository that handles all document and search operations.
	repo *repository.Repository
	// hist records search queries per session. May be nil (history disabled).
	hist history.Store
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds all Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// ingestRequest is the JSON body for POST /api/documents.
type ingestRequest struct {
	// FileName is the original name of the uploaded document.
	FileName string `json:"fileName"`
	// ContentType is the MIME type of the document (e.g. "text/plain").
	ContentType string `json:"contentType,omitempty"`
	// Content is the full document text.
	Content string `json:"content"`
	// UploadedBy identifies the uploader. Optional.
	UploadedBy string `json:"uploadedBy,omitempty"`
}

// documentSummary is the JSON shape of a document in list and detail
// responses. Chunk embeddings are never serialized over the API.
type documentSummary struct {
	// ID is the document's unique identifier.
	ID string `json:"id"`
	// FileName is the original file name.
	FileName string `json:"fileName"`
	// ContentType is the MIME type recorded at upload.
	ContentType string `json:"contentType,omitempty"`
	// Size is the document content length in bytes.
	Size int64 `json:"size"`
	// UploadedAt is the upload timestamp in RFC 3339 format.
	UploadedAt time.Time `json:"uploadedAt"`
	// UploadedBy identifies the uploader, if recorded.
	UploadedBy string `json:"uploadedBy,omitempty"`
	// ChunkCount is the number of chunks the document was split into.
	ChunkCount int `json:"chunkCount"`
}

// searchResult is the JSON shape of one search hit.
type searchResult struct {
	// DocumentID identifies the source document.
	DocumentID string `json:"documentId"`
	// ChunkIndex is the chunk's position within the source document.
	ChunkIndex int `json:"chunkIndex"`
	// Content is the chunk text.
	Content string `json:"content"`
	// Score is the normalized relevance score in [0,1].
	Score float64 `json:"score"`
}

// searchResponse is the JSON body returned by GET /api/search.
type searchResponse struct {
	// Query is the query string as received.
	Query string `json:"query"`
	// Results are the ranked chunks, best first.
	Results []searchResult `json:"results"`
}

// statsResponse is the JSON body returned by GET /api/stats.
type statsResponse struct {
	// Backend is the active storage driver name (e.g. "qdrant").
	Backend string `json:"backend"`
	// VectorSearch reports whether the backend supports vector similarity search.
	VectorSearch bool `json:"vectorSearch"`
	// TextSearch reports whether the backend supports keyword search.
	TextSearch bool `json:"textSearch"`
	// DocumentCount is the number of stored documents.
	DocumentCount int `json:"documentCount"`
}

// historyEntryResponse is the JSON shape of one history entry.
type historyEntryResponse struct {
	// Role is "user" for recorded queries or "assistant" for result summaries.
	Role string `json:"role"`
	// Content is the recorded text.
	Content string `json:"content"`
	// CreatedAt is the entry timestamp in RFC 3339 format.
	CreatedAt time.Time `json:"createdAt"`
}

// Package server exposes the ingestion, query, and comparison operations
// over HTTP and WebSocket.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docgraph/internal/models"
	"docgraph/pkg/config"
	"docgraph/pkg/logx"
	"docgraph/pkg/ontology"
)

var log = logx.NewLogger("server")

type Ingestor interface {
	IngestPDF(ctx context.Context, filename string, data []byte) (*models.UploadResponse, error)
	IngestURL(ctx context.Context, rawURL string) (*models.UploadResponse, error)
}

type Querier interface {
	Query(ctx context.Context, req models.QueryRequest) (*models.QueryResponse, error)
	QueryStream(ctx context.Context, req models.QueryRequest, stream func(chunk []byte) error) (*models.QueryResponse, error)
}

type Comparer interface {
	Compare(ctx context.Context, req models.ComparisonRequest) (*models.ComparisonResponse, error)
}

type DocumentRegistry interface {
	Get(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context) ([]models.Document, error)
	Delete(ctx context.Context, id string) error
}

type ChunkDeleter interface {
	DeleteDocument(ctx context.Context, documentID string) error
}

type OntologyLister interface {
	List() []ontology.Info
}

type Server struct {
	cfg        config.ServerConfig
	ingestor   Ingestor
	querier    Querier
	comparer   Comparer
	registry   DocumentRegistry
	chunks     ChunkDeleter
	ontologies OntologyLister
	upgrader   websocket.Upgrader
}

func New(cfg config.ServerConfig, ingestor Ingestor, querier Querier, comparer Comparer, registry DocumentRegistry, chunks ChunkDeleter, ontologies OntologyLister) *Server {
	return &Server{
		cfg:        cfg,
		ingestor:   ingestor,
		querier:    querier,
		comparer:   comparer,
		registry:   registry,
		chunks:     chunks,
		ontologies: ontologies,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// Routes builds the request mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/ingest", s.handleIngestURL)
	mux.HandleFunc("POST /api/query", s.handleQuery)
	mux.HandleFunc("POST /api/compare", s.handleCompare)
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("GET /api/documents/{id}", s.handleGetDocument)
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("GET /api/ontologies", s.handleOntologies)
	mux.HandleFunc("GET /ws/query", s.handleQueryWS)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleQueryWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var req models.QueryRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read: %v", err)
			}
			return
		}
		if req.Query == "" {
			conn.WriteJSON(wsMessage{Type: "error", Message: "query is required"})
			continue
		}

		resp, err := s.querier.QueryStream(r.Context(), req, func(chunk []byte) error {
			return conn.WriteJSON(wsMessage{Type: "token", Content: string(chunk)})
		})
		if err != nil {
			log.Error("streamed query failed: %v", err)
			conn.WriteJSON(wsMessage{Type: "error", Message: "query failed"})
			continue
		}
		conn.WriteJSON(wsMessage{Type: "done", Response: resp})
	}
}

type wsMessage struct {
	Type     string                `json:"type"`
	Content  string                `json:"content,omitempty"`
	Message  string                `json:"message,omitempty"`
	Response *models.QueryResponse `json:"response,omitempty"`
}

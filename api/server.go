// Package api provides the HTTP surface for DocChat.
//
// Endpoints:
//
//	POST /chat                       synchronous question answering
//	POST /chat_stream                streaming answers (Server-Sent Events)
//	POST /upload_pdfs                multipart PDF ingestion
//	GET  /list_documents             knowledge base listing
//	POST /delete_document/{filename} remove one document
//	POST /clear_knowledge_base       remove all documents
//	POST /clear_history              reset one conversation
//	POST /reset_memory               reset all conversations
//	GET  /health                     liveness probe
//	GET  /ready                      readiness probe
//
// File structure:
//   - server.go: server setup and lifecycle
//   - middleware.go: recovery and logging middleware
//   - chat.go: chat endpoints (JSON and SSE)
//   - documents.go: knowledge base endpoints
//   - memory.go: conversation reset endpoints
//   - health.go: probes
//   - response.go: JSON response helpers
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docchat/docchat/internal/log"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8000"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to resist slowloris clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading an entire request.
	// Uploads of multiple PDFs need headroom.
	ReadTimeout = 120 * time.Second

	// IdleTimeout applies to keep-alive connections.
	IdleTimeout = 120 * time.Second
)

// Server is the DocChat HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger

	chat      *ChatHandler
	documents *DocumentHandler
	memory    *MemoryHandler
	health    *HealthHandler
}

// NewServer creates a server with all routes registered. maxUploadBytes
// caps a single uploaded file; zero applies the handler default. A nil
// logger disables logging.
func NewServer(chatter Chatter, ingestor Ingestor, resetter Resetter,
	pool *pgxpool.Pool, maxUploadBytes int64, logger log.Logger) *Server {

	if logger == nil {
		logger = log.NewNop()
	}
	mux := http.NewServeMux()

	s := &Server{
		mux:       mux,
		logger:    logger,
		chat:      NewChatHandler(chatter, logger),
		documents: NewDocumentHandler(ingestor, maxUploadBytes, logger),
		memory:    NewMemoryHandler(resetter, logger),
		health:    NewHealthHandler(pool, logger),
	}

	s.chat.RegisterRoutes(mux)
	s.documents.RegisterRoutes(mux)
	s.memory.RegisterRoutes(mux)
	s.health.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery -> logging -> handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		loggingMiddleware(s.logger),
	)
}

// Run starts the server and blocks until the context is cancelled,
// then shuts down gracefully. No WriteTimeout is set because SSE
// responses stay open for the full generation.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

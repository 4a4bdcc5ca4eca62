// If you are AI: This file provides websocket ingest service integration.
// The service is mounted on the main HTTP server.

package wsingest

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"bwstream/internal/svc/ingest"
)

// closeTimeout bounds the close frame sent on shutdown.
const closeTimeout = time.Second

// Service provides websocket ingest.
type Service struct {
	path    string
	handler *Handler
}

// NewService creates a websocket ingest service served at path.
func NewService(ctx context.Context, path string, consumer *ingest.Consumer, logger *zap.Logger) *Service {
	return &Service{
		path:    path,
		handler: NewHandler(ctx, consumer, logger),
	}
}

// RegisterRoutes registers the ingest route on the provided mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle(s.path, s.handler)
}

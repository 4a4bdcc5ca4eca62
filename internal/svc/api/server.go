// If you are AI: This file provides HTTP API service integration.
// The API exposes profile, push and ingest state without blocking streaming paths.

package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"bwstream/internal/svc/ingest"
	"bwstream/internal/svc/push"
)

// Service provides HTTP API functionality.
type Service struct {
	profile   *push.Profile
	pushMgr   PushManager
	sessions  SessionLister
	logger    *zap.Logger
	startTime int64
}

// PushManager defines the push operations the API needs.
// This allows the API to work with the push manager without tight coupling.
type PushManager interface {
	Tasks() []push.TaskInfo
	Adjust(name string, bandwidth float64) (push.Record, bool, error)
	Advance(name string) (push.Record, bool, error)
}

// SessionLister lists open ingest sessions.
type SessionLister interface {
	Sessions() []ingest.SessionInfo
}

// NewService creates a new API service.
func NewService(prof *push.Profile, pushMgr PushManager, sessions SessionLister, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		profile:   prof,
		pushMgr:   pushMgr,
		sessions:  sessions,
		logger:    logger.With(zap.String("component", "api")),
		startTime: getCurrentTime(),
	}
}

// RegisterRoutes registers API routes on the provided mux.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/server", s.handleServer)
	mux.HandleFunc("/api/profile", s.handleProfile)
	mux.HandleFunc("/api/profile/adjust", s.handleProfileAdjust)
	mux.HandleFunc("/api/profile/advance", s.handleProfileAdvance)
	mux.HandleFunc("/api/push", s.handlePush)
	mux.HandleFunc("/api/push/adjust", s.handlePushAdjust)
	mux.HandleFunc("/api/push/advance", s.handlePushAdvance)
	mux.HandleFunc("/api/ingest", s.handleIngest)
}

// getCurrentTime returns current Unix timestamp.
// Extracted for testability.
func getCurrentTime() int64 {
	return time.Now().Unix()
}

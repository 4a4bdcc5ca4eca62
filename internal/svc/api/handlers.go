// If you are AI: This file implements HTTP API handlers.
// All handlers are fast, allocation-light, and never block streaming paths.

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"runtime/debug"

	"go.uber.org/zap"

	"bwstream/internal/svc/ingest"
	"bwstream/internal/svc/push"
)

// ServerResponse represents the /api/server response.
type ServerResponse struct {
	Version         string   `json:"version"`
	Uptime          int64    `json:"uptime"` // seconds
	GoVersion       string   `json:"go_version"`
	EnabledServices []string `json:"enabled_services"`
}

// SelectionResponse is returned by adjust and advance calls.
type SelectionResponse struct {
	Changed bool        `json:"changed"`
	Record  push.Record `json:"record"`
}

// PushResponse represents the /api/push response.
type PushResponse struct {
	Tasks []push.TaskInfo `json:"tasks"`
}

// IngestResponse represents the /api/ingest response.
type IngestResponse struct {
	Sessions []ingest.SessionInfo `json:"sessions"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// adjustRequest is the body of the adjust endpoints. Name is only read by push.
type adjustRequest struct {
	Name      string   `json:"name"`
	Bandwidth *float64 `json:"bandwidth"`
}

// handleServer handles GET /api/server.
// Returns server version, uptime, and enabled services.
// Allocation: JSON encoding only, no per-request heap churn.
func (s *Service) handleServer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	response := ServerResponse{
		Version:   buildVersion(),
		Uptime:    getCurrentTime() - s.startTime,
		GoVersion: runtime.Version(),
		EnabledServices: []string{
			"tcp_ingest",
			"ws_ingest",
			"push",
			"metrics",
		},
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleProfile handles GET /api/profile.
// Returns all levels, the current level and the next threshold.
func (s *Service) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.profile.Snapshot())
}

// handleProfileAdjust handles POST /api/profile/adjust.
// Selects the level for a declared bandwidth.
func (s *Service) handleProfileAdjust(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, ok := s.decodeAdjust(w, r)
	if !ok {
		return
	}

	rec, changed := s.profile.AdjustTo(*req.Bandwidth)
	s.writeJSON(w, http.StatusOK, SelectionResponse{Changed: changed, Record: rec})
}

// handleProfileAdvance handles POST /api/profile/advance.
func (s *Service) handleProfileAdvance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rec, changed := s.profile.Advance()
	s.writeJSON(w, http.StatusOK, SelectionResponse{Changed: changed, Record: rec})
}

// handlePush handles GET /api/push.
// Returns configured push tasks with their level and bytes sent.
func (s *Service) handlePush(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, PushResponse{Tasks: s.pushMgr.Tasks()})
}

// handlePushAdjust handles POST /api/push/adjust.
// Declares a new bandwidth for one push task.
func (s *Service) handlePushAdjust(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, ok := s.decodeAdjust(w, r)
	if !ok {
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	rec, changed, err := s.pushMgr.Adjust(req.Name, *req.Bandwidth)
	s.writeSelection(w, rec, changed, err)
}

// handlePushAdvance handles POST /api/push/advance.
func (s *Service) handlePushAdvance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	rec, changed, err := s.pushMgr.Advance(req.Name)
	s.writeSelection(w, rec, changed, err)
}

// handleIngest handles GET /api/ingest.
// Returns open ingest sessions.
func (s *Service) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, IngestResponse{Sessions: s.sessions.Sessions()})
}

// decodeAdjust parses and validates an adjust body, writing the error response itself.
func (s *Service) decodeAdjust(w http.ResponseWriter, r *http.Request) (adjustRequest, bool) {
	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Bandwidth == nil || *req.Bandwidth < 0 {
		s.writeError(w, http.StatusBadRequest, "bandwidth must be a non-negative number")
		return req, false
	}
	return req, true
}

// writeSelection writes the result of a push selection call.
func (s *Service) writeSelection(w http.ResponseWriter, rec push.Record, changed bool, err error) {
	if errors.Is(err, push.ErrUnknownTask) {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, SelectionResponse{Changed: changed, Record: rec})
}

// writeJSON writes a JSON response.
func (s *Service) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("write response failed", zap.Error(err))
	}
}

// writeError writes an error response.
func (s *Service) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}

// buildVersion returns the module version recorded at build time.
func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "devel"
}

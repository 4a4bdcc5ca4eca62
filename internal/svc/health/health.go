// If you are AI: This file implements the health check endpoint for monitoring and integration tests.

package health

import (
	"net/http"
)

// Check reports an error when a dependency is not usable.
type Check func() error

// Service provides health check functionality.
type Service struct {
	checks map[string]Check
}

// New creates a new health service instance with named checks.
func New(checks map[string]Check) *Service {
	return &Service{checks: checks}
}

// RegisterRoutes adds health check routes to the provided mux.
// /healthz returns 200 while the process is up; /readyz also runs the checks.
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
}

// handleHealth responds to liveness requests.
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleReady responds 503 with the failing check's name and error when any check fails.
func (s *Service) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	for name, check := range s.checks {
		if err := check(); err != nil {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(name + ": " + err.Error() + "\n"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

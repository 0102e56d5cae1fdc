package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	apperrors "github.com/touchthesun/marvin-sub002/internal/errors"
)

const healthCheckTimeout = 2 * time.Second

// Checker probes one dependency for the health endpoints.
type Checker interface {
	CheckHealth(ctx context.Context) error
}

// HealthResponse is the body returned when all checks pass.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

// HealthManager runs registered checkers and reports aggregate health.
type HealthManager struct {
	mu       sync.RWMutex
	version  string
	checkers map[string]Checker
}

func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		version:  version,
		checkers: make(map[string]Checker),
	}
}

// RegisterChecker adds a named dependency probe.
func (m *HealthManager) RegisterChecker(name string, c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = c
}

func (m *HealthManager) runChecks(ctx context.Context) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make(map[string]string, len(m.checkers))
	for name, c := range m.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := c.CheckHealth(checkCtx)
		cancel()
		switch {
		case err == nil:
			results[name] = "healthy"
		case errors.Is(err, context.DeadlineExceeded):
			results[name] = "timeout"
		default:
			results[name] = "unhealthy"
		}
	}
	return results
}

func (m *HealthManager) determineOverallStatus(checks map[string]string) string {
	status := "healthy"
	for _, s := range checks {
		switch s {
		case "unhealthy":
			return "unhealthy"
		case "timeout":
			status = "degraded"
		}
	}
	return status
}

// HealthHandler reports full dependency health.
func (m *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	checks := m.runChecks(r.Context())
	overall := m.determineOverallStatus(checks)

	if overall == "unhealthy" {
		details := map[string]any{"checks": checksToDetails(checks)}
		writeUnavailable(w, "one or more health checks failed", details)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status:  overall,
		Version: m.version,
		Checks:  checks,
	})
}

// LivenessHandler reports process liveness without running checkers.
func (m *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, "alive")
}

// ReadinessHandler reports whether the process can serve traffic.
func (m *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	checks := m.runChecks(r.Context())
	if m.determineOverallStatus(checks) == "unhealthy" {
		writeUnavailable(w, "not ready", map[string]any{"checks": checksToDetails(checks)})
		return
	}
	writeProbe(w, "ready")
}

// StartupHandler reports startup completion.
func (m *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	writeProbe(w, "started")
}

func writeProbe(w http.ResponseWriter, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func writeUnavailable(w http.ResponseWriter, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(apperrors.HTTPErrorResponse{
		Error: apperrors.HTTPError{
			Code:    "SERVICE_UNAVAILABLE",
			Message: message,
			Details: details,
		},
	})
}

func checksToDetails(checks map[string]string) map[string]any {
	out := make(map[string]any, len(checks))
	for k, v := range checks {
		out[k] = v
	}
	return out
}

var globalHealthManager *HealthManager

// InitHealthManager installs the process-wide health manager.
func InitHealthManager(version string) {
	globalHealthManager = NewHealthManager(version)
}

// GetHealthManager returns the process-wide manager, or nil.
func GetHealthManager() *HealthManager {
	return globalHealthManager
}

func globalHandler(pick func(*HealthManager) http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if globalHealthManager == nil {
			writeUnavailable(w, "health manager not initialized", nil)
			return
		}
		pick(globalHealthManager)(w, r)
	}
}

// HealthHandler serves /health using the global manager.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	globalHandler(func(m *HealthManager) http.HandlerFunc { return m.HealthHandler })(w, r)
}

// LivenessHandler serves /health/live using the global manager.
func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	globalHandler(func(m *HealthManager) http.HandlerFunc { return m.LivenessHandler })(w, r)
}

// ReadinessHandler serves /health/ready using the global manager.
func ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	globalHandler(func(m *HealthManager) http.HandlerFunc { return m.ReadinessHandler })(w, r)
}

// StartupHandler serves /health/startup using the global manager.
func StartupHandler(w http.ResponseWriter, r *http.Request) {
	globalHandler(func(m *HealthManager) http.HandlerFunc { return m.StartupHandler })(w, r)
}

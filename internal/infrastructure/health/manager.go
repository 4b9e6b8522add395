// Package health aggregates component liveness checks.
package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"ladderbot/internal/core"
)

// HealthManager aggregates health status from the ladder's collaborators
type HealthManager struct {
	logger core.ILogger
	mu     sync.RWMutex
	checks map[string]func() error
}

func NewHealthManager(logger core.ILogger) *HealthManager {
	hm := &HealthManager{checks: make(map[string]func() error)}
	if logger != nil {
		hm.logger = logger.WithField("component", "health_manager")
	}
	return hm
}

// Register adds or replaces the check for a component
func (hm *HealthManager) Register(component string, check func() error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[component] = check
}

func (hm *HealthManager) GetStatus() map[string]string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	status := make(map[string]string, len(hm.checks))
	for component, check := range hm.checks {
		if err := check(); err != nil {
			status[component] = "Unhealthy: " + err.Error()
		} else {
			status[component] = "Healthy"
		}
	}
	return status
}

// IsHealthy returns true if every registered component is healthy
func (hm *HealthManager) IsHealthy() bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	for _, check := range hm.checks {
		if err := check(); err != nil {
			return false
		}
	}
	return true
}

// Unhealthy lists failing components in name order
func (hm *HealthManager) Unhealthy() []string {
	var out []string
	for component, status := range hm.GetStatus() {
		if status != "Healthy" {
			out = append(out, component)
		}
	}
	sort.Strings(out)
	return out
}

// ServeHTTP reports component status as JSON, with 503 when any check fails.
func (hm *HealthManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := hm.GetStatus()
	code := http.StatusOK
	for _, s := range status {
		if s != "Healthy" {
			code = http.StatusServiceUnavailable
			break
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil && hm.logger != nil {
		hm.logger.Warn("Failed to write health response", "error", err)
	}
}

package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// healthCheckTimeout bounds each component check on /healthz.
const healthCheckTimeout = 2 * time.Second

// healthResponse is the /healthz body.
type healthResponse struct {
	Status  string            `json:"status"`
	State   string            `json:"state"`
	Checks  map[string]string `json:"checks,omitempty"`
	Version string            `json:"version,omitempty"`
}

// handleHealth answers 200 while the broker session is connected and every
// component check passes, and 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.status.Status()
	if st == nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "starting", Version: s.version})
		return
	}

	checks, healthy := s.runChecks(r.Context())
	resp := healthResponse{Status: "ok", State: st.State, Checks: checks, Version: s.version}
	if !st.Connected || !healthy {
		resp.Status = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// runChecks runs every registered check in turn. Failures are reported by
// name with their error text.
func (s *Server) runChecks(ctx context.Context) (map[string]string, bool) {
	if len(s.checks) == 0 {
		return nil, true
	}
	results := make(map[string]string, len(s.checks))
	healthy := true
	for name, c := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := c.HealthCheck(checkCtx)
		cancel()
		if err != nil {
			healthy = false
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}
	return results, healthy
}

// handleStatus returns the latest agent snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.status.Status()
	if st == nil {
		writeUnavailable(w, "agent not started")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleDiagnostics returns the most recent journal entries, newest first.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "journal disabled")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("reading diagnostics", "error", err)
		writeInternalError(w, "failed to read diagnostics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"diagnostics": entries,
		"count":       len(entries),
	})
}

// handleRelayHistory returns recent relay changes, newest first.
func (s *Server) handleRelayHistory(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeUnavailable(w, "journal disabled")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.journal.RelayHistory(r.Context(), limit)
	if err != nil {
		s.logger.Error("reading relay history", "error", err)
		writeInternalError(w, "failed to read relay history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"history": entries,
		"count":   len(entries),
	})
}

func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}

	return limit, nil
}

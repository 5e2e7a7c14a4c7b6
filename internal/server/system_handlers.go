package server

import (
	"net/http"
	"time"
)

var startTime = time.Now()

// handleSystemStatus reports scheduler state and last refresh outcome.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	portfolios, holdings := s.store.Counts()

	status := map[string]interface{}{
		"uptime_seconds":    int(time.Since(startTime).Seconds()),
		"scheduler_running": s.sched.Running(),
		"portfolios":        portfolios,
		"holdings":          holdings,
	}

	lastResult, lastErr := s.reconciler.Last()
	if lastResult != nil {
		status["last_refresh"] = map[string]interface{}{
			"run_id":          lastResult.RunID.String(),
			"as_of":           lastResult.AsOf,
			"updated_symbols": lastResult.UpdatedSymbols,
		}
	}
	if lastErr != nil {
		status["last_refresh_error"] = lastErr.Error()
	}

	s.writeJSON(w, http.StatusOK, status)
}

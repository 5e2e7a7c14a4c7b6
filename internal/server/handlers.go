package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aristath/portfolio-tracker/internal/refresh"
)

// handleHealth returns a simple liveness response.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRefresh triggers one reconciliation pass outside the schedule.
// A quote source failure leaves all prices untouched and surfaces as a
// 502; the scheduled ticks keep running either way.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := s.reconciler.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, refresh.ErrSourceUnavailable) {
			s.writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		s.log.Error().Err(err).Msg("Manual refresh failed")
		s.writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

package api

import (
	"net/http"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs":        s.orchestrator.Jobs().Counts(),
		"queue_depth": s.orchestrator.QueueDepth(),
		"latency":     s.service.Latency().Snapshot(),
	})
}

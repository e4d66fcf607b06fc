package api

import (
	"net/http"

	"github.com/dgallion1/docstruct/internal/metrics"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var latency metrics.WindowSnapshot
	if s.window != nil {
		latency = s.window.Snapshot()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"latency":     latency,
		"queue_depth": s.orchestrator.QueueDepth(),
		"jobs":        len(s.orchestrator.Jobs()),
	})
}

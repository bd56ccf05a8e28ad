package api

import (
	"net/http"
)

func (s *Server) handleQueryStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"stats":       s.builder.Executor().Stats().Snapshot(),
		"connections": s.builder.Executor().Connections(),
	})
}

func (s *Server) handleWatchStats(w http.ResponseWriter, r *http.Request) {
	if s.watcher == nil {
		jsonError(w, "watch mode is off", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s.watcher.Stats())
}

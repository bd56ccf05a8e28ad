package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docsite/internal/search"
)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.builder.Report())
}

// handleRebuild runs a full build and returns its report.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	report, err := s.builder.Build(r.Context())
	if err != nil {
		s.log.Error("rebuild failed", "error", err)
		jsonError(w, "rebuild failed: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, report)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"jobs": s.builder.Jobs().List()})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job := s.builder.Jobs().Get(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, job.Snapshot())
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("query")
	if q == "" {
		jsonError(w, "query parameter is required", http.StatusBadRequest)
		return
	}
	hits := s.builder.Index().Search(q)
	if hits == nil {
		hits = []search.Hit{}
	}
	writeJSON(w, map[string]any{"query": q, "results": hits})
}

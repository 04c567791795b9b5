package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docsift/internal/pipeline"
)

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	req, rerr := s.personaRequest(w, r)
	if rerr != nil {
		jsonError(w, rerr.msg, rerr.status)
		return
	}

	job := pipeline.NewJob(req)
	if err := s.orchestrator.Submit(job); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, pipeline.ErrQueueFull) {
			status = http.StatusServiceUnavailable
		}
		jsonError(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":   job.ID,
		"status":   job.Snapshot().Status,
		"poll_url": fmt.Sprintf("/api/persona/jobs/%s", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	res, ok := job.Result()
	if !ok {
		snap := job.Snapshot()
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "job is not complete",
			"status": snap.Status,
		})
		return
	}
	s.writePersona(w, r, res)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !s.orchestrator.CancelJob(jobID) {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job_id": jobID, "status": pipeline.StatusCancelled})
}

package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/scheduler"
)

// JobRunner is the scheduler as seen by the job endpoints
type JobRunner interface {
	Jobs() []scheduler.JobInfo
	Trigger(ctx context.Context, name string) (any, error)
	TriggerAsync(ctx context.Context, name string) error
}

// handleListJobs handles GET /api/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": s.cfg.Jobs.Jobs()})
}

// handleTriggerJob handles POST /api/jobs/{name}/trigger?force=&wait=
// Without wait the job starts in the background and 202 is returned.
func (s *Server) handleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	ctx := scheduler.WithForce(r.Context(), force)

	if !wait {
		if err := s.cfg.Jobs.TriggerAsync(ctx, name); err != nil {
			s.writeTriggerError(w, name, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, map[string]interface{}{"job": name, "status": "started"})
		return
	}

	result, err := s.cfg.Jobs.Trigger(ctx, name)
	if err != nil {
		s.writeTriggerError(w, name, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"job": name, "status": "completed", "result": result})
}

func (s *Server) writeTriggerError(w http.ResponseWriter, name string, err error) {
	switch {
	case errors.Is(err, scheduler.ErrUnknownJob):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, scheduler.ErrJobRunning):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error().Err(err).Str("job", name).Msg("Triggered job failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

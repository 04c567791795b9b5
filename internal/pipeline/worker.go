package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Worker processes persona jobs one at a time.
type Worker struct {
	service *Service
	log     *slog.Logger
}

func NewWorker(svc *Service, log *slog.Logger) *Worker {
	return &Worker{service: svc, log: log}
}

// Process runs the persona analysis for a job and records the outcome.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID)

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	inputs, ok := job.start(cancel)
	if !ok {
		log.Info("job.skip", "status", job.Snapshot().Status)
		return
	}

	start := time.Now()
	res, err := w.service.Persona(jobCtx, PersonaRequest{
		Documents:   inputs,
		Persona:     job.Persona,
		JobToBeDone: job.JobToBeDone,
		OnPhase: func(st JobStatus) {
			job.SetStatus(st)
			log.Debug("job.phase", "status", st)
		},
	})
	w.service.Latency().Observe("job", start)

	switch {
	case errors.Is(err, context.Canceled) && ctx.Err() == nil:
		job.Cancel()
		log.Info("job.cancelled")
	case err != nil:
		job.Fail(err)
		log.Error("job.failed", "error", err)
	default:
		job.Complete(res)
		log.Info("job.completed",
			"sections", len(res.ExtractedSections),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

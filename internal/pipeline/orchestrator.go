package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docsift/internal/config"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("job queue is full")

// Orchestrator runs persona jobs on a fixed worker pool.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	service *Service
	log     *slog.Logger
	cfg     config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
	stop   sync.Once
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, svc *Service, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, max(1, cfg.MaxQueueSize)),
		service: svc,
		log:     log,
		cfg:     cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range max(1, o.cfg.WorkerCount) {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.service, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		interval := o.cfg.CleanupInterval
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				if n := o.jobs.Cleanup(); n > 0 {
					o.log.Info("jobs.cleanup", "removed", n)
				}
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	o.stop.Do(func() {
		if o.cancel != nil {
			o.cancel()
		}
		close(o.queue)
		o.wg.Wait()
	})
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		o.log.Info("job.queued", "job_id", job.ID, "documents", len(job.Documents))
		return nil
	default:
		job.Fail(ErrQueueFull)
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// CancelJob stops and removes a job. It reports false for unknown IDs.
func (o *Orchestrator) CancelJob(id string) bool {
	job := o.jobs.Get(id)
	if job == nil {
		return false
	}
	job.Cancel()
	o.log.Info("job.cancelled", "job_id", id)
	return o.jobs.Delete(id)
}

// Jobs returns the job store.
func (o *Orchestrator) Jobs() *JobStore {
	return o.jobs
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Service returns the analysis service used by the workers.
func (o *Orchestrator) Service() *Service {
	return o.service
}

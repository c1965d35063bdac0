package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docrevise/internal/store"
)

// OrchestratorConfig sizes the server's job queue.
type OrchestratorConfig struct {
	Workers   int
	QueueSize int
	JobTTL    time.Duration
	Model     string
}

// Orchestrator queues uploaded documents and revises them in the background.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	worker  *Worker
	history *store.Store
	log     *slog.Logger
	cfg     OrchestratorConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards stopped and the close of queue against late Submits.
	mu      sync.Mutex
	stopped bool
}

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("orchestrator stopped")

func NewOrchestrator(cfg OrchestratorConfig, newReviser ReviserFactory, report Reporter, history *store.Store, log *slog.Logger) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.QueueSize),
		worker:  NewWorker(newReviser, report, history, cfg.Model, log),
		history: history,
		log:     log,
		cfg:     cfg,
	}
}

// Start launches worker goroutines and the job cleanup loop.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.Workers {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.worker.Process(workerCtx, job)
				}
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop cancels running jobs and waits for the workers to exit.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.mu.Unlock()
	o.wg.Wait()
}

// Submit registers and queues a job. A full queue fails the job, and so
// does a stopped orchestrator.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "stopped")
		return ErrStopped
	}
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		o.log.Info("job queued", "job_id", job.ID, "filename", job.Filename)
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.QueueSize)
	}
}

func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// History returns the history store, possibly nil.
func (o *Orchestrator) History() *store.Store {
	return o.history
}

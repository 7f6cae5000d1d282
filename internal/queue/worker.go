package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"sync"

	"github.com/codebuildervaibhav/revoice/internal/types"
)

// ErrQueueFull is returned when no more jobs can be buffered.
var ErrQueueFull = errors.New("job queue is full")

// WorkerPool runs session jobs on a fixed number of workers.
type WorkerPool struct {
	jobQueue    chan *Job
	workerCount int

	mu   sync.RWMutex
	jobs map[string]*Job

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workerCount, queueSize int) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 100
	}
	return &WorkerPool{
		jobQueue:    make(chan *Job, queueSize),
		workerCount: workerCount,
		jobs:        make(map[string]*Job),
	}
}

// Start initializes all workers
func (wp *WorkerPool) Start(ctx context.Context) {
	ctx, wp.cancel = context.WithCancel(ctx)
	log.Printf("Starting worker pool with %d workers", wp.workerCount)
	for i := 0; i < wp.workerCount; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Stop cancels running jobs and waits for the workers to exit.
func (wp *WorkerPool) Stop() {
	if wp.cancel != nil {
		wp.cancel()
	}
	wp.wg.Wait()
	log.Println("Worker pool stopped")
}

// EnqueueJob adds a job to the queue without blocking.
func (wp *WorkerPool) EnqueueJob(job *Job) error {
	wp.mu.Lock()
	wp.jobs[job.ID] = job
	wp.mu.Unlock()

	select {
	case wp.jobQueue <- job:
		log.Printf("Job %s enqueued (kind: %s, session: %s)", job.ID, job.Kind, job.SessionID)
		return nil
	default:
		wp.mu.Lock()
		delete(wp.jobs, job.ID)
		wp.mu.Unlock()
		return ErrQueueFull
	}
}

// GetJob looks up a job by id.
func (wp *WorkerPool) GetJob(id string) (*Job, error) {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	job, ok := wp.jobs[id]
	if !ok {
		return nil, &types.NotFoundError{Kind: "job", ID: id}
	}
	return job, nil
}

// ForgetSession drops the finished jobs of a session.
func (wp *WorkerPool) ForgetSession(sessionID string) {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	for id, job := range wp.jobs {
		if job.SessionID == sessionID && job.Status().Finished() {
			delete(wp.jobs, id)
		}
	}
}

// worker processes jobs from the queue
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	log.Printf("Worker %d started", id)

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-wp.jobQueue:
			wp.processJob(ctx, id, job)
		}
	}
}

func (wp *WorkerPool) processJob(ctx context.Context, workerID int, job *Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker %d: PANIC processing job %s: %v\n%s",
				workerID, job.ID, r, string(debug.Stack()))
			job.finish(types.StatusFailed, nil, fmt.Errorf("worker panic: %v", r))
		}
	}()

	log.Printf("Worker %d: Processing %s job %s (session %s)", workerID, job.Kind, job.ID, job.SessionID)
	job.setStatus(types.StatusProcessing)

	result, status, err := job.run(ctx, job)
	job.finish(status, result, err)

	if err != nil {
		log.Printf("Worker %d: Job %s finished %s: %v", workerID, job.ID, status, err)
		return
	}
	log.Printf("Worker %d: Job %s completed successfully", workerID, job.ID)
}

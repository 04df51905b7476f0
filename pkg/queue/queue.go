// Package queue provides the bounded worker pool behind bulk analysis.
// Jobs are submitted without blocking; a full queue is an error the caller
// handles, typically by running the job inline.
package queue

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/tidyfolder/tidyfolder/pkg/logger"
)

var log *logrus.Entry

func init() {
	log = logger.WithName("queue")
}

// Job is one unit of work.
type Job interface {
	Execute(ctx context.Context) error
	ID() string
}

// WorkerPool runs jobs on a fixed number of workers over a bounded queue.
// Stats are updated by the workers themselves as jobs finish.
type WorkerPool struct {
	workerCount int
	jobs        chan Job
	ctx         context.Context
	cancel      context.CancelFunc
	workersWg   sync.WaitGroup
	jobsWg      sync.WaitGroup // outstanding accepted jobs

	// paused gates execution between receive and execute, so a job
	// submitted to a paused pool is held, not run.
	paused atomic.Bool
	resume chan struct{}

	mu        sync.Mutex // guards resume swap and started
	started   bool
	closed    atomic.Bool
	cancelled atomic.Bool

	jobsProcessed atomic.Int64
	jobsFailed    atomic.Int64
	jobsQueued    atomic.Int64
}

// NewWorkerPool builds a pool of workerCount workers over a queue of
// queueSize pending jobs. Call Start before submitting.
func NewWorkerPool(workerCount int, queueSize int) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workerCount: workerCount,
		jobs:        make(chan Job, queueSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (wp *WorkerPool) Start() {
	wp.mu.Lock()
	if wp.started {
		wp.mu.Unlock()
		return
	}
	wp.started = true
	wp.mu.Unlock()

	log.WithField("workerCount", wp.workerCount).Info("Starting worker pool")

	for i := 0; i < wp.workerCount; i++ {
		wp.workersWg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.workersWg.Done()

	workerLog := log.WithField("workerID", id)
	workerLog.Debug("Worker started")

	for {
		// A cancelled pool stops picking up jobs even while the queue
		// still holds some.
		select {
		case <-wp.ctx.Done():
			workerLog.Debug("Worker stopped (pool cancelled)")
			return
		default:
		}

		select {
		case job, ok := <-wp.jobs:
			if !ok {
				workerLog.Debug("Worker stopped (queue drained)")
				return
			}
			if !wp.waitWhilePaused() {
				wp.jobsWg.Done()
				workerLog.Debug("Worker stopped (pool cancelled while paused)")
				return
			}

			if logger.IsLevelEnabled(logrus.TraceLevel) {
				workerLog.WithField("jobID", job.ID()).Trace("Processing job")
			}
			err := job.Execute(wp.ctx)
			wp.jobsProcessed.Add(1)
			if err != nil {
				wp.jobsFailed.Add(1)
				workerLog.WithFields(logrus.Fields{
					"jobID": job.ID(),
					"error": err,
				}).Error("Job failed")
			}
			wp.jobsWg.Done()

		case <-wp.ctx.Done():
			workerLog.Debug("Worker stopped (pool cancelled)")
			return
		}
	}
}

// waitWhilePaused blocks while the pool is paused. False means the pool
// was cancelled instead of resumed.
func (wp *WorkerPool) waitWhilePaused() bool {
	for wp.paused.Load() {
		wp.mu.Lock()
		resume := wp.resume
		wp.mu.Unlock()
		select {
		case <-resume:
		case <-wp.ctx.Done():
			return false
		}
	}
	return true
}

// Submit queues a job without blocking. A full queue or a closed pool is
// an error; the job was not accepted and will not run.
func (wp *WorkerPool) Submit(job Job) error {
	if wp.closed.Load() {
		return fmt.Errorf("worker pool is closed")
	}

	wp.jobsWg.Add(1)
	select {
	case wp.jobs <- job:
		wp.jobsQueued.Add(1)
		if logger.IsLevelEnabled(logrus.TraceLevel) {
			log.WithField("jobID", job.ID()).Trace("Job queued")
		}
		return nil
	case <-wp.ctx.Done():
		wp.jobsWg.Done()
		return fmt.Errorf("worker pool is shutting down")
	default:
		wp.jobsWg.Done()
		return fmt.Errorf("job queue is full")
	}
}

// Pause holds all further job execution. Jobs already executing finish.
func (wp *WorkerPool) Pause() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.paused.Load() {
		return
	}
	wp.resume = make(chan struct{})
	wp.paused.Store(true)
	log.Info("Worker pool paused")
}

// Resume releases a paused pool.
func (wp *WorkerPool) Resume() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if !wp.paused.Load() {
		return
	}
	wp.paused.Store(false)
	close(wp.resume)
	log.Info("Worker pool resumed")
}

// Wait blocks until every accepted job has run, then shuts the pool down.
// This is the drain path; after a Cancel the queue is abandoned and Wait
// must not be used.
func (wp *WorkerPool) Wait() {
	wp.jobsWg.Wait()
	wp.closed.Store(true)
	close(wp.jobs)
	wp.workersWg.Wait()
}

// Stop closes the queue and waits for the workers to finish what is
// already queued.
func (wp *WorkerPool) Stop() {
	log.Info("Stopping worker pool")
	wp.closed.Store(true)
	close(wp.jobs)
	wp.workersWg.Wait()
	log.Info("Worker pool stopped")
}

// Cancel aborts the pool: executing jobs see a cancelled context, queued
// jobs are abandoned. Safe to call more than once.
func (wp *WorkerPool) Cancel() {
	if wp.cancelled.Swap(true) {
		return
	}
	log.Info("Cancelling worker pool")
	wp.closed.Store(true)
	wp.cancel()
	wp.workersWg.Wait()
	log.Info("Worker pool cancelled")
}

// WorkerPoolStats is a point-in-time stats snapshot.
type WorkerPoolStats struct {
	WorkerCount   int
	JobsQueued    int64
	JobsProcessed int64
	JobsFailed    int64
	IsPaused      bool
}

// Stats returns current counters.
func (wp *WorkerPool) Stats() WorkerPoolStats {
	return WorkerPoolStats{
		WorkerCount:   wp.workerCount,
		JobsQueued:    wp.jobsQueued.Load(),
		JobsProcessed: wp.jobsProcessed.Load(),
		JobsFailed:    wp.jobsFailed.Load(),
		IsPaused:      wp.paused.Load(),
	}
}

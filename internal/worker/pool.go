// Package worker runs queued jobs on a small pool of goroutines.
package worker

import (
	"context"
	"log/slog"
	"sync"
)

// Job is a unit of work processed by the pool.
type Job interface {
	// Execute performs the work synchronously; ctx signals shutdown.
	Execute(ctx context.Context) error
}

// SpawnPool starts numWorkers goroutines reading from jobQueue. Workers exit
// when the queue closes; on context cancellation they drain buffered jobs
// first. The returned WaitGroup tracks all workers.
func SpawnPool(ctx context.Context, numWorkers int, jobQueue <-chan Job, logger *slog.Logger) *sync.WaitGroup {
	if numWorkers <= 0 {
		numWorkers = 1
	}

	wg := &sync.WaitGroup{}
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			executeJob := func(job Job) {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("Job panicked", "worker_id", workerID, "panic", r)
					}
				}()
				if err := job.Execute(ctx); err != nil {
					logger.Error("Job execution failed", "worker_id", workerID, "error", err)
				}
			}

			for {
				select {
				case <-ctx.Done():
					for job := range jobQueue {
						executeJob(job)
					}
					return
				case job, ok := <-jobQueue:
					if !ok {
						return
					}
					executeJob(job)
				}
			}
		}(i)
	}

	logger.Debug("Worker pool spawned", "num_workers", numWorkers)
	return wg
}

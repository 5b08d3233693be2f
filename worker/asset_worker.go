package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"pk55-api/logger"
	"pk55-api/metrics"
	"pk55-api/queue"
	"pk55-api/services/media"
)

const (
	MinConcurrency = 1
	MaxConcurrency = 8

	dequeueTimeout = 5 * time.Second
	delayedPoll    = 10 * time.Second
)

// JobQueue is the part of *queue.Queue the worker consumes.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	CompleteJob(ctx context.Context, job *queue.Job) error
	FailJob(ctx context.Context, job *queue.Job, err error) error
	Park(ctx context.Context, job *queue.Job) error
	ProcessDelayedJobs(ctx context.Context) error
}

// AssetDeleter removes objects from the media host.
type AssetDeleter interface {
	Delete(ctx context.Context, key string) error
}

// errMalformed marks jobs that can never succeed.
var errMalformed = errors.New("malformed job")

// Worker drains asset cleanup jobs in the background.
type Worker struct {
	queue   JobQueue
	media   AssetDeleter
	metrics *metrics.Metrics

	mu        sync.Mutex
	shutdown  chan struct{}
	wg        sync.WaitGroup
	isRunning bool
}

func NewWorker(q JobQueue, m AssetDeleter, mt *metrics.Metrics) *Worker {
	return &Worker{
		queue:   q,
		media:   m,
		metrics: mt,
	}
}

// Start launches concurrency job goroutines plus one that promotes due
// retries. concurrency is clamped to [MinConcurrency, MaxConcurrency].
func (w *Worker) Start(concurrency int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.isRunning {
		return
	}
	if concurrency < MinConcurrency {
		concurrency = MinConcurrency
	} else if concurrency > MaxConcurrency {
		concurrency = MaxConcurrency
	}

	w.shutdown = make(chan struct{})
	w.isRunning = true

	for i := 0; i < concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(i)
	}

	w.wg.Add(1)
	go w.promoteDelayed()

	logger.Info("Started asset worker", zap.Int("goroutines", concurrency))
}

// Stop signals all goroutines and waits for in-flight jobs.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return
	}
	logger.Info("Stopping asset worker...")
	close(w.shutdown)
	w.isRunning = false
	w.mu.Unlock()

	w.wg.Wait()
}

func (w *Worker) processJobs(workerID int) {
	defer w.wg.Done()

	for {
		select {
		case <-w.shutdown:
			logger.Debug("Worker shutting down", zap.Int("worker", workerID))
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), dequeueTimeout+5*time.Second)
		job, err := w.queue.Dequeue(ctx, dequeueTimeout)
		cancel()

		if err != nil {
			logger.Error("Error dequeuing job", zap.Int("worker", workerID), zap.Error(err))
			w.sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}

		w.handle(job)
	}
}

// handle runs one job and settles it on the queue.
func (w *Worker) handle(job *queue.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	jobErr := w.processJob(ctx, job)
	cancel()

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if jobErr == nil {
		w.metrics.RecordAssetJob("ok")
		if err := w.queue.CompleteJob(ctx, job); err != nil {
			logger.Error("Error marking job as complete", zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}

	logger.Error("Error processing job", zap.String("job_id", job.ID), zap.Error(jobErr))

	var settleErr error
	if !errors.Is(jobErr, errMalformed) && media.IsRetryable(jobErr) {
		w.metrics.RecordAssetJob("retry")
		settleErr = w.queue.FailJob(ctx, job, jobErr)
	} else {
		w.metrics.RecordAssetJob("failed")
		settleErr = w.queue.Park(ctx, job)
	}
	if settleErr != nil {
		logger.Error("Error marking job as failed", zap.String("job_id", job.ID), zap.Error(settleErr))
	}
}

func (w *Worker) processJob(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeDeleteAsset:
		assetID, err := job.AssetID()
		if err != nil {
			return fmt.Errorf("%w: %v", errMalformed, err)
		}
		logger.Info("Deleting remote asset", zap.String("asset_id", assetID))
		return w.media.Delete(ctx, assetID)
	default:
		return fmt.Errorf("%w: unknown job type %s", errMalformed, job.Type)
	}
}

func (w *Worker) promoteDelayed() {
	defer w.wg.Done()

	ticker := time.NewTicker(delayedPoll)
	defer ticker.Stop()

	for {
		select {
		case <-w.shutdown:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := w.queue.ProcessDelayedJobs(ctx); err != nil {
				logger.Error("Error processing delayed jobs", zap.Error(err))
			}
			cancel()
		}
	}
}

func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.shutdown:
	case <-time.After(d):
	}
}

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pk55-api/logger"
)

type JobType string

const (
	// JobTypeDeleteAsset removes an object from the media host.
	JobTypeDeleteAsset JobType = "delete_asset"
)

const (
	DefaultQueueName = "pk55_jobs"

	MaxRetries = 5
)

type Job struct {
	ID         string                 `json:"id"`
	Type       JobType                `json:"type"`
	Data       map[string]interface{} `json:"data"`
	CreatedAt  time.Time              `json:"created_at"`
	RetryCount int                    `json:"retry_count"`

	// raw is the payload as popped, needed to remove it from the
	// processing list byte for byte.
	raw string
}

// AssetID returns the media key carried by a delete job.
func (j *Job) AssetID() (string, error) {
	id, ok := j.Data["asset_id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("invalid asset_id in job %s", j.ID)
	}
	return id, nil
}

type Queue struct {
	client     *redis.Client
	queueName  string
	processing string
	delayed    string
	failed     string
}

func NewQueue(redisURL, queueName string) (*Queue, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return New(client, queueName), nil
}

// New wraps an existing client.
func New(client *redis.Client, queueName string) *Queue {
	if queueName == "" {
		queueName = DefaultQueueName
	}
	return &Queue{
		client:     client,
		queueName:  queueName,
		processing: queueName + ":processing",
		delayed:    queueName + ":delayed",
		failed:     queueName + ":failed",
	}
}

func (q *Queue) Enqueue(ctx context.Context, jobType JobType, data map[string]interface{}) (*Job, error) {
	job := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Data:      data,
		CreatedAt: time.Now(),
	}

	jobJSON, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.client.LPush(ctx, q.queueName, jobJSON).Err(); err != nil {
		return nil, fmt.Errorf("failed to push job to queue: %w", err)
	}

	logger.Info("Enqueued job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	return job, nil
}

// RemoveAsset schedules the deletion of a media object in the background.
func (q *Queue) RemoveAsset(ctx context.Context, assetID string) error {
	_, err := q.Enqueue(ctx, JobTypeDeleteAsset, map[string]interface{}{
		"asset_id": assetID,
	})
	return err
}

// Dequeue blocks up to timeout for a job. It returns nil, nil when the
// queue stayed empty. The job is moved onto the processing list atomically,
// so a crash before CompleteJob leaves it there for RequeueProcessing.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	raw, err := q.client.BRPopLPush(ctx, q.queueName, q.processing, timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job from queue: %w", err)
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// unreadable payloads would be retried forever
		q.client.LRem(ctx, q.processing, 1, raw)
		q.client.RPush(ctx, q.failed, raw)
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	job.raw = raw
	if job.Data == nil {
		job.Data = make(map[string]interface{})
	}

	return &job, nil
}

// RequeueProcessing moves every job left on the processing list back onto
// the main queue. Call it before any worker starts, since in-flight jobs of
// this process would be requeued too.
func (q *Queue) RequeueProcessing(ctx context.Context) (int, error) {
	moved := 0
	for {
		err := q.client.RPopLPush(ctx, q.processing, q.queueName).Err()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return moved, fmt.Errorf("failed to requeue processing jobs: %w", err)
		}
		moved++
	}

	if moved > 0 {
		logger.Warn("Requeued interrupted jobs", zap.Int("count", moved))
	}
	return moved, nil
}

func (q *Queue) CompleteJob(ctx context.Context, job *Job) error {
	if err := q.client.LRem(ctx, q.processing, 1, job.raw).Err(); err != nil {
		return fmt.Errorf("failed to remove job from processing queue: %w", err)
	}

	logger.Info("Completed job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	return nil
}

// RetryDelay is the backoff before retry n (1-based): 15s, 30s, 60s...
func RetryDelay(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	return time.Duration(15*(1<<(retry-1))) * time.Second
}

// FailJob schedules a retry with exponential backoff, or parks the job on
// the failed list once MaxRetries is exhausted.
func (q *Queue) FailJob(ctx context.Context, job *Job, jobErr error) error {
	if err := q.client.LRem(ctx, q.processing, 1, job.raw).Err(); err != nil {
		logger.Warn("Failed to remove job from processing queue", zap.String("job_id", job.ID), zap.Error(err))
	}

	job.RetryCount++
	job.Data["last_error"] = jobErr.Error()
	job.Data["failed_at"] = time.Now()

	if job.RetryCount <= MaxRetries {
		delay := RetryDelay(job.RetryCount)
		retryAt := time.Now().Add(delay)
		job.Data["next_retry_at"] = retryAt

		jobJSON, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}

		if err := q.client.ZAdd(ctx, q.delayed, &redis.Z{
			Score:  float64(retryAt.Unix()),
			Member: jobJSON,
		}).Err(); err != nil {
			logger.Warn("Failed to add job to delayed queue, adding to failed queue", zap.Error(err))
			return q.client.RPush(ctx, q.failed, jobJSON).Err()
		}

		logger.Info("Job scheduled for retry",
			zap.String("job_id", job.ID),
			zap.String("type", string(job.Type)),
			zap.Int("retry", job.RetryCount),
			zap.Int("max_retries", MaxRetries),
			zap.Duration("delay", delay))
		return nil
	}

	return q.Park(ctx, job)
}

// Park moves a job to the failed list without further retries.
func (q *Queue) Park(ctx context.Context, job *Job) error {
	if job.raw != "" {
		q.client.LRem(ctx, q.processing, 1, job.raw)
	}

	job.Data["final_failure_at"] = time.Now()
	jobJSON, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := q.client.RPush(ctx, q.failed, jobJSON).Err(); err != nil {
		return fmt.Errorf("failed to push job to failed queue: %w", err)
	}

	logger.Warn("Job moved to failed queue",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.Int("retries", job.RetryCount))
	return nil
}

// ProcessDelayedJobs moves due retries back onto the main list.
func (q *Queue) ProcessDelayedJobs(ctx context.Context) error {
	now := time.Now().Unix()

	jobs, err := q.client.ZRangeByScore(ctx, q.delayed, &redis.ZRangeBy{
		Min: "0",
		Max: fmt.Sprintf("%d", now),
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to get delayed jobs: %w", err)
	}

	for _, jobJSON := range jobs {
		// only the caller that removes the member requeues it
		removed, err := q.client.ZRem(ctx, q.delayed, jobJSON).Result()
		if err != nil {
			logger.Warn("Failed to remove job from delayed queue", zap.Error(err))
			continue
		}
		if removed == 0 {
			continue
		}

		if err := q.client.LPush(ctx, q.queueName, jobJSON).Err(); err != nil {
			logger.Warn("Failed to move delayed job to main queue", zap.Error(err))
			continue
		}
	}

	if len(jobs) > 0 {
		logger.Debug("Moved delayed jobs to main queue", zap.Int("count", len(jobs)))
	}
	return nil
}

// Ping checks the Redis connection, for health reporting.
func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *Queue) Client() *redis.Client {
	return q.client
}

func (q *Queue) Close() error {
	return q.client.Close()
}

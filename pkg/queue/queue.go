package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueImpressions is the Redis list key for ad impression jobs.
	QueueImpressions = "worker:ad_impressions"
	// QueueDelayed is a sorted set of retries scored by the unix millisecond they become due.
	QueueDelayed = "worker:ad_impressions:delayed"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is how long a failed job waits in QueueDelayed.
	RetryBackoff = 10 * time.Second
	// dequeueTimeout bounds BLPOP so the worker loop notices cancellation.
	dequeueTimeout = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeAdImpression JobType = "ad_impression"
)

// ImpressionPayload is the payload for ad impression jobs.
type ImpressionPayload struct {
	AdRef     string     `json:"ad_ref"`
	SessionID uuid.UUID  `json:"session_id"`
	ContentID string     `json:"content_id,omitempty"`
	ViewerID  *uuid.UUID `json:"viewer_id,omitempty"`
	UserAgent string     `json:"user_agent,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   time.Time  `json:"ended_at"`
	EndReason string     `json:"end_reason"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	NotBefore time.Time       `json:"not_before,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewJob wraps a payload into a job envelope.
func NewJob(jobType JobType, payload interface{}) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   body,
		CreatedAt: time.Now(),
	}, nil
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client redis.Cmdable
	logger *zap.Logger
	now    func() time.Time
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client redis.Cmdable, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger, now: time.Now}
}

// EnqueueImpression enqueues an ad impression job.
func (q *Queue) EnqueueImpression(ctx context.Context, payload ImpressionPayload) error {
	job, err := NewJob(JobTypeAdImpression, payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, QueueImpressions, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued impression job", zap.String("job_id", job.ID), zap.String("ad_ref", payload.AdRef))
	return nil
}

// Dequeue blocks until a job is available, the poll timeout passes, or ctx is done.
// A nil job with nil error means nothing was available.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	if err := q.promoteDue(ctx); err != nil {
		q.logger.Warn("promote delayed jobs failed", zap.Error(err))
	}
	result, err := q.client.BLPop(ctx, dequeueTimeout, QueueImpressions).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, err
	case len(result) < 2:
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		// Unreadable envelopes go to the DLQ as-is so they can be inspected.
		q.logger.Warn("invalid job envelope", zap.Error(err))
		if pushErr := q.client.RPush(ctx, QueueDLQ, result[1]).Err(); pushErr != nil {
			q.logger.Error("dlq push failed", zap.Error(pushErr))
		}
		return nil, nil
	}
	return &job, nil
}

// Retry schedules the job again after RetryBackoff with an incremented attempt. Once attempt
// reaches MaxRetries it goes to the DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Attempt >= MaxRetries {
		if err := q.push(ctx, QueueDLQ, job); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	job.NotBefore = q.now().Add(RetryBackoff)
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	z := redis.Z{Score: float64(job.NotBefore.UnixMilli()), Member: string(raw)}
	if err := q.client.ZAdd(ctx, QueueDelayed, z).Err(); err != nil {
		return fmt.Errorf("zadd %s: %w", QueueDelayed, err)
	}
	q.logger.Info("job retry scheduled", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Time("not_before", job.NotBefore))
	return nil
}

// promoteDue moves delayed jobs whose time has come back onto the work list. ZREM decides
// ownership, so with several workers each job is promoted once.
func (q *Queue) promoteDue(ctx context.Context) error {
	upTo := strconv.FormatInt(q.now().UnixMilli(), 10)
	due, err := q.client.ZRangeByScore(ctx, QueueDelayed, &redis.ZRangeBy{Min: "-inf", Max: upTo}).Result()
	if err != nil {
		return fmt.Errorf("zrangebyscore %s: %w", QueueDelayed, err)
	}
	for _, raw := range due {
		removed, err := q.client.ZRem(ctx, QueueDelayed, raw).Result()
		if err != nil {
			return fmt.Errorf("zrem %s: %w", QueueDelayed, err)
		}
		if removed == 0 {
			continue
		}
		if err := q.client.RPush(ctx, QueueImpressions, raw).Err(); err != nil {
			return fmt.Errorf("rpush %s: %w", QueueImpressions, err)
		}
	}
	return nil
}

// Depth reports how many impression jobs are pending (ready or waiting to retry) and how many
// are dead-lettered.
func (q *Queue) Depth(ctx context.Context) (pending, dead int64, err error) {
	ready, err := q.client.LLen(ctx, QueueImpressions).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("llen %s: %w", QueueImpressions, err)
	}
	delayed, err := q.client.ZCard(ctx, QueueDelayed).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("zcard %s: %w", QueueDelayed, err)
	}
	pending = ready + delayed
	dead, err = q.client.LLen(ctx, QueueDLQ).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("llen %s: %w", QueueDLQ, err)
	}
	return pending, dead, nil
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	return nil
}

package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cinestream/backend/internal/metrics"
	"github.com/cinestream/backend/internal/models"
	"github.com/cinestream/backend/pkg/queue"
	"github.com/cinestream/backend/pkg/telemetry"
)

// ErrInvalidPayload marks jobs that can never succeed; they go straight to the DLQ.
var ErrInvalidPayload = errors.New("invalid impression payload")

// ImpressionStore persists impressions.
type ImpressionStore interface {
	Insert(ctx context.Context, imp *models.AdImpression) error
}

// JobQueue is the part of queue.Queue the processor needs.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// ImpressionProcessor stores ad impression jobs: parse the viewer's user agent, insert the row.
type ImpressionProcessor struct {
	store   ImpressionStore
	queue   JobQueue
	logger  *zap.Logger
	backoff time.Duration // pause after a failed dequeue
}

// NewImpressionProcessor creates an impression processor.
func NewImpressionProcessor(store ImpressionStore, q JobQueue, logger *zap.Logger) *ImpressionProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImpressionProcessor{store: store, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one impression job.
func (p *ImpressionProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeAdImpression {
		return fmt.Errorf("%w: unknown job type %s", ErrInvalidPayload, job.Type)
	}
	var payload queue.ImpressionPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if strings.TrimSpace(payload.AdRef) == "" {
		return fmt.Errorf("%w: missing ad_ref", ErrInvalidPayload)
	}
	if payload.EndReason == "" {
		payload.EndReason = models.ImpressionEndExpired
	}

	imp := &models.AdImpression{
		AdRef:     payload.AdRef,
		SessionID: payload.SessionID,
		ContentID: payload.ContentID,
		ViewerID:  payload.ViewerID,
		Device:    parseDevice(payload.UserAgent),
		Browser:   parseBrowser(payload.UserAgent),
		StartedAt: payload.StartedAt,
		EndedAt:   payload.EndedAt,
		EndReason: payload.EndReason,
	}
	if err := p.store.Insert(ctx, imp); err != nil {
		return fmt.Errorf("store impression: %w", err)
	}
	p.logger.Debug("impression stored", zap.String("job_id", job.ID), zap.String("ad_ref", imp.AdRef), zap.String("device", imp.Device))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ImpressionProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("impression worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}
		p.handle(ctx, job)
	}
}

// handle processes job and routes failures to retry or the DLQ.
func (p *ImpressionProcessor) handle(ctx context.Context, job *queue.Job) {
	p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
	err := p.Process(ctx, job)
	if err == nil {
		metrics.Impressions.WithLabelValues("stored").Inc()
		return
	}

	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
	telemetry.CaptureError(err, map[string]string{"operation": "impression_insert", "job_id": job.ID})
	if errors.Is(err, ErrInvalidPayload) {
		job.Attempt = queue.MaxRetries - 1
	}
	if reErr := p.queue.Retry(ctx, job); reErr != nil {
		p.logger.Error("retry enqueue failed", zap.Error(reErr))
	}
	if job.Attempt >= queue.MaxRetries {
		metrics.Impressions.WithLabelValues("dead").Inc()
		return
	}
	// The queue holds the job back for RetryBackoff; the loop moves on to the next one.
	metrics.Impressions.WithLabelValues("retried").Inc()
}

func (p *ImpressionProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Package worker runs background jobs from the Redis queue. Its one job type
// deletes sponsor logos that were replaced.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/golf-outing/backend/pkg/queue"
)

// LogoDeleter removes a logo object by its public URL.
type LogoDeleter interface {
	DeleteLogo(ctx context.Context, logoURL string) error
}

// JobQueue is the consuming side of the job queue.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// LogoCleanupProcessor processes logo cleanup jobs.
type LogoCleanupProcessor struct {
	logos   LogoDeleter
	queue   JobQueue
	logger  *zap.Logger
	backoff time.Duration
}

// NewLogoCleanupProcessor creates a logo cleanup processor.
func NewLogoCleanupProcessor(logos LogoDeleter, q JobQueue, logger *zap.Logger) *LogoCleanupProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogoCleanupProcessor{logos: logos, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one job.
func (p *LogoCleanupProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeLogoCleanup {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.LogoCleanupPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.LogoURL == "" {
		p.logger.Warn("logo cleanup job without url", zap.String("job_id", job.ID))
		return nil
	}
	if err := p.logos.DeleteLogo(ctx, payload.LogoURL); err != nil {
		return fmt.Errorf("delete logo: %w", err)
	}
	p.logger.Info("replaced logo removed",
		zap.String("sponsor_id", payload.SponsorID.String()),
		zap.String("logo_url", payload.LogoURL),
		zap.String("reason", payload.Reason))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error. It returns
// when ctx is done.
func (p *LogoCleanupProcessor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("logo worker stopping")
			return
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("dequeue error", zap.Error(err))
				p.wait(ctx)
			}
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.wait(ctx)
		}
	}
}

func (p *LogoCleanupProcessor) wait(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

package jobs

import (
	"context"
	"time"

	"recallgraph/internal/ingest"
	"recallgraph/internal/store"
	"recallgraph/pkg/errors"
	"recallgraph/pkg/logger"
	"go.uber.org/zap"
)

const (
	// MaxAttempts is the retry budget per job before dead-lettering
	MaxAttempts = 3
	// MaxBatchSize caps a single drain invocation
	MaxBatchSize = 50
	// DefaultBatchSize is used when the caller doesn't ask for a size
	DefaultBatchSize = 10
	// staleClaimAge is how long a job may sit in processing before a drain
	// assumes its claimer died and releases it for re-claim
	staleClaimAge = 10 * time.Minute
)

// Queue is the job-store surface the drainer needs
type Queue interface {
	ClaimBatch(ctx context.Context, limit, maxAttempts int) ([]store.Job, error)
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error)
	MarkDone(ctx context.Context, jobID string) error
	MarkError(ctx context.Context, jobID, lastError string) error
	DeadLetterJob(ctx context.Context, job store.Job, lastError string) error
}

// Processor runs the extract-and-upsert pipeline for one save
type Processor interface {
	ProcessSave(ctx context.Context, saveID, userPhone string) (*ingest.Result, error)
}

// Drainer claims a batch of retryable jobs and processes them one at a
// time. Sequential on purpose: predictable load on the LLM collaborator
// beats throughput here.
type Drainer struct {
	queue     Queue
	processor Processor
	jobDelay  time.Duration
	logger    *zap.Logger
}

// NewDrainer creates a drain worker. jobDelay is the fixed pause inserted
// between jobs in a batch.
func NewDrainer(queue Queue, processor Processor, jobDelay time.Duration) *Drainer {
	return &Drainer{
		queue:     queue,
		processor: processor,
		jobDelay:  jobDelay,
		logger:    logger.Get(),
	}
}

// JobResult is the per-job detail reported for successfully processed jobs
type JobResult struct {
	JobID         string   `json:"job_id"`
	SaveID        string   `json:"save_id"`
	UserPhone     string   `json:"user_phone"`
	GraphActive   bool     `json:"graph_active"`
	EntityCount   int      `json:"entity_count"`
	RelationCount int      `json:"relation_count"`
	Entities      []string `json:"entities"`
}

// DrainResult aggregates one drain invocation
type DrainResult struct {
	Processed    int         `json:"processed"`
	Errors       int         `json:"errors"`
	TotalFetched int         `json:"total_fetched"`
	Results      []JobResult `json:"results"`
}

// Drain claims up to batchSize jobs (clamped to 50, default 10) and runs
// each through the processor. A failing job never aborts the batch: its
// status transition is committed independently and the loop moves on.
func (d *Drainer) Drain(ctx context.Context, batchSize int) (*DrainResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchSize > MaxBatchSize {
		batchSize = MaxBatchSize
	}

	// Recover jobs a crashed or interrupted drain left in processing.
	if released, err := d.queue.ReleaseStale(ctx, staleClaimAge); err != nil {
		d.logger.Warn("Failed to release stale jobs", zap.Error(err))
	} else if released > 0 {
		d.logger.Warn("Released stale claimed jobs", zap.Int("released", released))
	}

	claimed, err := d.queue.ClaimBatch(ctx, batchSize, MaxAttempts)
	if err != nil {
		return nil, err
	}

	result := &DrainResult{
		TotalFetched: len(claimed),
		Results:      []JobResult{},
	}

	for i, job := range claimed {
		if i > 0 && d.jobDelay > 0 {
			// Throttle the extraction collaborator between jobs.
			select {
			case <-time.After(d.jobDelay):
			case <-ctx.Done():
				// Claimed-but-unprocessed jobs go back to error so the
				// next drain can claim them; attempts stay burned.
				d.releaseClaimed(context.WithoutCancel(ctx), claimed[i:])
				return result, ctx.Err()
			}
		}

		outcome, err := d.processor.ProcessSave(ctx, job.SaveID, job.UserPhone)
		if err != nil {
			d.failJob(ctx, job, err)
			result.Errors++
			continue
		}

		if err := d.queue.MarkDone(ctx, job.ID); err != nil {
			d.logger.Error("Failed to mark job done", zap.String("job_id", job.ID), zap.Error(err))
			result.Errors++
			continue
		}

		result.Processed++
		result.Results = append(result.Results, JobResult{
			JobID:         job.ID,
			SaveID:        job.SaveID,
			UserPhone:     job.UserPhone,
			GraphActive:   outcome.GraphActive,
			EntityCount:   outcome.EntityCount,
			RelationCount: outcome.RelationCount,
			Entities:      outcome.Entities,
		})
	}

	d.logger.Info("Drain finished",
		zap.Int("fetched", result.TotalFetched),
		zap.Int("processed", result.Processed),
		zap.Int("errors", result.Errors),
	)

	return result, nil
}

// releaseClaimed returns claimed jobs this drain never ran back to error
func (d *Drainer) releaseClaimed(ctx context.Context, remaining []store.Job) {
	for _, job := range remaining {
		if err := d.queue.MarkError(ctx, job.ID, "drain interrupted"); err != nil {
			d.logger.Error("Failed to release claimed job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// failJob routes a job failure: terminal failures and exhausted retry
// budgets dead-letter immediately; everything else goes back to error
// status for a future drain. Attempts were already incremented by the
// claim, so a job on its MaxAttempts-th failure dies here.
func (d *Drainer) failJob(ctx context.Context, job store.Job, jobErr error) {
	d.logger.Warn("Job failed",
		zap.String("job_id", job.ID),
		zap.String("save_id", job.SaveID),
		zap.Int("attempts", job.Attempts),
		zap.Error(jobErr),
	)

	if job.Attempts >= MaxAttempts || errors.IsTerminal(jobErr) {
		if err := d.queue.DeadLetterJob(ctx, job, jobErr.Error()); err != nil {
			d.logger.Error("Failed to dead-letter job", zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}

	if err := d.queue.MarkError(ctx, job.ID, jobErr.Error()); err != nil {
		d.logger.Error("Failed to mark job errored", zap.String("job_id", job.ID), zap.Error(err))
	}
}

package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Job statuses. done and dead are terminal.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobDone       = "done"
	JobError      = "error"
	JobDead       = "dead"
)

// Job is one row of the graph job queue
type Job struct {
	ID        string    `json:"id"`
	SaveID    string    `json:"save_id"`
	UserPhone string    `json:"user_phone"`
	Status    string    `json:"status"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeadLetter is the terminal record of a job that exhausted its retries
type DeadLetter struct {
	OriginalJobID string    `json:"original_job_id"`
	SaveID        string    `json:"save_id"`
	UserPhone     string    `json:"user_phone"`
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"last_error"`
	CreatedAt     time.Time `json:"created_at"`
}

// JobStore manages the graph job queue and its dead letters
type JobStore struct {
	db *pgxpool.Pool
}

// NewJobStore creates a job store over the given pool
func NewJobStore(db *pgxpool.Pool) *JobStore {
	return &JobStore{db: db}
}

// Enqueue creates a pending job for a save
func (s *JobStore) Enqueue(ctx context.Context, saveID, userPhone string) (*Job, error) {
	query := `
		INSERT INTO graph_jobs (id, save_id, user_phone, status)
		VALUES ($1, $2, $3, 'pending')
		RETURNING id, save_id, user_phone, status, attempts, last_error, created_at, updated_at
	`

	row := s.db.QueryRow(ctx, query, uuid.New().String(), saveID, userPhone)
	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("enqueueing job for save %s: %w", saveID, err)
	}
	return job, nil
}

// ClaimBatch atomically claims up to limit retryable jobs, oldest first:
// the status transition to processing and the attempts increment happen in
// a single conditional UPDATE, so two concurrent drains can never claim the
// same job. SKIP LOCKED lets overlapping drains pass each other instead of
// blocking.
func (s *JobStore) ClaimBatch(ctx context.Context, limit, maxAttempts int) ([]Job, error) {
	query := `
		UPDATE graph_jobs
		SET status = 'processing', attempts = attempts + 1, updated_at = now()
		WHERE id IN (
			SELECT id FROM graph_jobs
			WHERE status IN ('pending', 'error') AND attempts < $2
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, save_id, user_phone, status, attempts, last_error, created_at, updated_at
	`

	rows, err := s.db.Query(ctx, query, limit, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("claiming jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning claimed job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading claimed jobs: %w", err)
	}

	// Claim order is not guaranteed by UPDATE ... RETURNING; restore it.
	sortJobsByCreatedAt(jobs)

	return jobs, nil
}

// ReleaseStale returns jobs stuck in processing (a crashed or interrupted
// drain never finished them) back to error so the next claim can pick them
// up. Only rows whose last transition is older than the threshold are
// touched, so jobs a live drain is working on stay claimed.
func (s *JobStore) ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error) {
	query := `
		UPDATE graph_jobs
		SET status = 'error', last_error = 'reclaimed from stale processing', updated_at = now()
		WHERE status = 'processing' AND updated_at < $1
	`

	tag, err := s.db.Exec(ctx, query, time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("releasing stale jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// MarkDone transitions a job to its successful terminal state
func (s *JobStore) MarkDone(ctx context.Context, jobID string) error {
	query := `
		UPDATE graph_jobs
		SET status = 'done', last_error = '', updated_at = now()
		WHERE id = $1
	`
	if _, err := s.db.Exec(ctx, query, jobID); err != nil {
		return fmt.Errorf("marking job %s done: %w", jobID, err)
	}
	return nil
}

// MarkError records a retryable failure; the job stays eligible for a
// future drain while attempts remain.
func (s *JobStore) MarkError(ctx context.Context, jobID, lastError string) error {
	query := `
		UPDATE graph_jobs
		SET status = 'error', last_error = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := s.db.Exec(ctx, query, jobID, lastError); err != nil {
		return fmt.Errorf("marking job %s errored: %w", jobID, err)
	}
	return nil
}

// DeadLetterJob atomically writes the dead-letter record and moves the job
// to its dead terminal state. ON CONFLICT keeps the record append-once even
// if the transition is retried.
func (s *JobStore) DeadLetterJob(ctx context.Context, job Job, lastError string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting dead-letter transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO graph_dead_letters (original_job_id, save_id, user_phone, attempts, last_error)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (original_job_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, insert, job.ID, job.SaveID, job.UserPhone, job.Attempts, lastError); err != nil {
		return fmt.Errorf("writing dead letter for job %s: %w", job.ID, err)
	}

	update := `
		UPDATE graph_jobs
		SET status = 'dead', last_error = $2, updated_at = now()
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, update, job.ID, lastError); err != nil {
		return fmt.Errorf("marking job %s dead: %w", job.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing dead letter for job %s: %w", job.ID, err)
	}
	return nil
}

// ListDeadLetters returns recent dead letters, optionally filtered by phone
func (s *JobStore) ListDeadLetters(ctx context.Context, userPhone string, limit int) ([]DeadLetter, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT original_job_id, save_id, user_phone, attempts, last_error, created_at
		FROM graph_dead_letters
		WHERE ($1 = '' OR user_phone = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, userPhone, limit)
	if err != nil {
		return nil, fmt.Errorf("listing dead letters: %w", err)
	}
	defer rows.Close()

	var letters []DeadLetter
	for rows.Next() {
		var dl DeadLetter
		if err := rows.Scan(&dl.OriginalJobID, &dl.SaveID, &dl.UserPhone, &dl.Attempts, &dl.LastError, &dl.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning dead letter: %w", err)
		}
		letters = append(letters, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading dead letters: %w", err)
	}

	return letters, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	err := row.Scan(
		&job.ID,
		&job.SaveID,
		&job.UserPhone,
		&job.Status,
		&job.Attempts,
		&job.LastError,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func sortJobsByCreatedAt(jobs []Job) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/leadwise/persona-service/internal/domain"
)

// JobStore owns the reclassification job table and its change log. Both
// the API service and the worker go through it, so status transitions
// have one source of truth.
type JobStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewJobStore creates a new JobStore instance
func NewJobStore(db *sqlx.DB, logger *slog.Logger) *JobStore {
	return &JobStore{
		db:     db,
		logger: logger,
	}
}

const jobColumns = `
	id, status, filter_kind, filter_keyword_id, filter_persona_id, filter_keywords,
	dry_run, scanned, changed, skipped_locked, errors,
	attempts, max_attempts, cancel_requested, worker_id, error_message,
	last_heartbeat_at, started_at, completed_at, created_at, updated_at
`

// CreateJob inserts a new PENDING job.
func (s *JobStore) CreateJob(ctx context.Context, job *domain.ReclassificationJob) error {
	query := `
		INSERT INTO reclassification_jobs (
			id, status, filter_kind, filter_keyword_id, filter_persona_id, filter_keywords,
			dry_run, max_attempts, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, NOW(), NOW()
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		domain.JobStatusPending,
		job.FilterKind,
		job.FilterKeywordID,
		job.FilterPersonaID,
		job.FilterKeywords,
		job.DryRun,
		job.MaxAttempts,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("Reclassification job created",
		slog.String("job_id", job.ID),
		slog.String("filter_kind", job.FilterKind),
		slog.Bool("dry_run", job.DryRun),
	)

	return nil
}

// GetJobByID retrieves a job from the database by its ID
func (s *JobStore) GetJobByID(ctx context.Context, jobID string) (*domain.ReclassificationJob, error) {
	var job domain.ReclassificationJob
	query := `SELECT ` + jobColumns + ` FROM reclassification_jobs WHERE id = $1`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// JobListFilter narrows ListJobs results.
type JobListFilter struct {
	Status   string
	PageSize int
	Cursor   *JobCursor
}

// JobCursor is a keyset cursor over (created_at, id) descending.
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// ListJobs returns jobs newest first, one page plus one extra row so
// the caller can tell whether a next page exists.
func (s *JobStore) ListJobs(ctx context.Context, filter JobListFilter) ([]domain.ReclassificationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM reclassification_jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []domain.ReclassificationJob
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// ClaimNext atomically claims the next runnable job for a worker: the
// oldest PENDING job, or any PROCESSING job whose heartbeat is older
// than orphanAfter (a worker died mid-scan and the job is adopted).
// The conditional UPDATE means two workers can never claim the same
// job; the loser sees no rows and simply moves on. Counters reset on
// claim because an adopted scan restarts from the beginning.
func (s *JobStore) ClaimNext(ctx context.Context, workerID string, orphanAfter time.Duration) (*domain.ReclassificationJob, error) {
	query := `
		UPDATE reclassification_jobs
		SET status = $1,
		    worker_id = $2,
		    scanned = 0,
		    changed = 0,
		    skipped_locked = 0,
		    started_at = COALESCE(started_at, NOW()),
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE id = (
			SELECT id FROM reclassification_jobs
			WHERE status = $3
			   OR (status = $1 AND last_heartbeat_at < NOW() - make_interval(secs => $4))
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + jobColumns

	var job domain.ReclassificationJob
	err := s.db.QueryRowxContext(ctx, query,
		domain.JobStatusProcessing,
		workerID,
		domain.JobStatusPending,
		orphanAfter.Seconds(),
	).StructScan(&job)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	s.logger.Info("Job claimed",
		slog.String("job_id", job.ID),
		slog.String("worker_id", workerID),
		slog.String("filter_kind", job.FilterKind),
		slog.Bool("dry_run", job.DryRun),
	)

	return &job, nil
}

// RecordProgress persists counters after a batch and refreshes the
// heartbeat so other workers do not adopt a live job. The worker_id
// guard keeps a worker whose job was adopted after a missed heartbeat
// from clobbering the adopter's state; it gets ErrJobLost instead.
func (s *JobStore) RecordProgress(ctx context.Context, jobID, workerID string, c domain.JobCounters) error {
	query := `
		UPDATE reclassification_jobs
		SET scanned = $1,
		    changed = $2,
		    skipped_locked = $3,
		    errors = $4,
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE id = $5 AND status = $6 AND worker_id = $7
	`

	result, err := s.db.ExecContext(ctx, query,
		c.Scanned, c.Changed, c.SkippedLocked, c.Errors,
		jobID, domain.JobStatusProcessing, workerID,
	)
	if err != nil {
		return fmt.Errorf("failed to record job progress: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		s.logger.Warn("Job progress update rejected, job no longer owned by this worker",
			slog.String("job_id", jobID),
			slog.String("worker_id", workerID),
		)
		return domain.ErrJobLost
	}

	return nil
}

// IsCancelRequested reads the cancellation flag the worker checks
// between batches.
func (s *JobStore) IsCancelRequested(ctx context.Context, jobID string) (bool, error) {
	var requested bool
	query := `SELECT cancel_requested FROM reclassification_jobs WHERE id = $1`

	err := s.db.GetContext(ctx, &requested, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, domain.ErrJobNotFound
		}
		return false, fmt.Errorf("failed to read cancel flag: %w", err)
	}

	return requested, nil
}

// MarkCompleted moves a PROCESSING job to COMPLETED with final counters.
func (s *JobStore) MarkCompleted(ctx context.Context, jobID, workerID string, c domain.JobCounters) error {
	return s.finish(ctx, jobID, workerID, domain.JobStatusCompleted, c, "")
}

// MarkCancelled moves a PROCESSING job to CANCELLED. Counters reflect
// work already committed before the cancellation was observed.
func (s *JobStore) MarkCancelled(ctx context.Context, jobID, workerID string, c domain.JobCounters) error {
	return s.finish(ctx, jobID, workerID, domain.JobStatusCancelled, c, "")
}

// MarkFailed moves a PROCESSING job straight to FAILED regardless of
// remaining attempts. Used for errors a retry cannot cure.
func (s *JobStore) MarkFailed(ctx context.Context, jobID, workerID string, c domain.JobCounters, failErr error) error {
	return s.finish(ctx, jobID, workerID, domain.JobStatusFailed, c, failErr.Error())
}

func (s *JobStore) finish(ctx context.Context, jobID, workerID, status string, c domain.JobCounters, errMsg string) error {
	query := `
		UPDATE reclassification_jobs
		SET status = $1,
		    scanned = $2,
		    changed = $3,
		    skipped_locked = $4,
		    errors = $5,
		    error_message = NULLIF($6, ''),
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $7 AND status = $8 AND worker_id = $9
	`

	result, err := s.db.ExecContext(ctx, query,
		status, c.Scanned, c.Changed, c.SkippedLocked, c.Errors, errMsg,
		jobID, domain.JobStatusProcessing, workerID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		s.logger.Warn("Job finish rejected, job no longer owned by this worker",
			slog.String("job_id", jobID),
			slog.String("worker_id", workerID),
		)
		return domain.ErrJobLost
	}

	s.logger.Info("Job finished",
		slog.String("job_id", jobID),
		slog.String("status", status),
		slog.Int64("scanned", c.Scanned),
		slog.Int64("changed", c.Changed),
		slog.Int64("skipped_locked", c.SkippedLocked),
	)

	return nil
}

// ReleaseFailure records a failed run: while attempts remain the job
// returns to PENDING for any worker to retry; otherwise it lands in
// FAILED with the error recorded. Only the owning worker may release.
func (s *JobStore) ReleaseFailure(ctx context.Context, jobID, workerID string, attempts int, failErr error) error {
	var job domain.ReclassificationJob
	query := `
		UPDATE reclassification_jobs
		SET status = CASE WHEN $1 < max_attempts THEN $2 ELSE $3 END,
		    attempts = $1,
		    errors = errors + 1,
		    error_message = $4,
		    worker_id = NULL,
		    completed_at = CASE WHEN $1 < max_attempts THEN NULL ELSE NOW() END,
		    updated_at = NOW()
		WHERE id = $5 AND status = $6 AND worker_id = $7
		RETURNING ` + jobColumns

	err := s.db.QueryRowxContext(ctx, query,
		attempts,
		domain.JobStatusPending,
		domain.JobStatusFailed,
		failErr.Error(),
		jobID,
		domain.JobStatusProcessing,
		workerID,
	).StructScan(&job)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Job was cancelled or adopted elsewhere between the error
			// and this release; nothing left to record.
			return nil
		}
		return fmt.Errorf("failed to release job after failure: %w", err)
	}

	s.logger.Warn("Job run failed",
		slog.String("job_id", jobID),
		slog.String("status", job.Status),
		slog.Int("attempts", attempts),
		slog.Int("max_attempts", job.MaxAttempts),
		slog.String("error", failErr.Error()),
	)

	return nil
}

// RequestCancel cancels a job. PENDING jobs flip to CANCELLED directly;
// PROCESSING jobs get the cancel flag, which the worker honors between
// batches. Terminal jobs return ErrJobNotCancellable.
func (s *JobStore) RequestCancel(ctx context.Context, jobID string) (*domain.ReclassificationJob, error) {
	var job domain.ReclassificationJob
	query := `
		UPDATE reclassification_jobs
		SET status = CASE WHEN status = $1 THEN $2 ELSE status END,
		    cancel_requested = TRUE,
		    completed_at = CASE WHEN status = $1 THEN NOW() ELSE completed_at END,
		    updated_at = NOW()
		WHERE id = $3 AND status IN ($1, $4)
		RETURNING ` + jobColumns

	err := s.db.QueryRowxContext(ctx, query,
		domain.JobStatusPending,
		domain.JobStatusCancelled,
		jobID,
		domain.JobStatusProcessing,
	).StructScan(&job)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish a missing job from a non-cancellable one.
			if _, getErr := s.GetJobByID(ctx, jobID); getErr != nil {
				return nil, getErr
			}
			return nil, domain.ErrJobNotCancellable
		}
		return nil, fmt.Errorf("failed to cancel job: %w", err)
	}

	s.logger.Info("Job cancellation requested",
		slog.String("job_id", jobID),
		slog.String("status", job.Status),
	)

	return &job, nil
}

// Retry resets a FAILED job to PENDING with attempts zeroed.
func (s *JobStore) Retry(ctx context.Context, jobID string) (*domain.ReclassificationJob, error) {
	var job domain.ReclassificationJob
	query := `
		UPDATE reclassification_jobs
		SET status = $1,
		    attempts = 0,
		    cancel_requested = FALSE,
		    error_message = NULL,
		    worker_id = NULL,
		    completed_at = NULL,
		    updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING ` + jobColumns

	err := s.db.QueryRowxContext(ctx, query,
		domain.JobStatusPending,
		jobID,
		domain.JobStatusFailed,
	).StructScan(&job)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := s.GetJobByID(ctx, jobID); getErr != nil {
				return nil, getErr
			}
			return nil, domain.ErrJobNotRetryable
		}
		return nil, fmt.Errorf("failed to retry job: %w", err)
	}

	s.logger.Info("Job reset for retry",
		slog.String("job_id", jobID),
	)

	return &job, nil
}

// InsertChanges appends a batch of audit entries to the change log.
func (s *JobStore) InsertChanges(ctx context.Context, changes []domain.JobChange) error {
	if len(changes) == 0 {
		return nil
	}

	query := `
		INSERT INTO job_changes (job_id, contact_id, persona_before, persona_after, applied, created_at)
		VALUES (:job_id, :contact_id, :persona_before, :persona_after, :applied, NOW())
	`

	if _, err := s.db.NamedExecContext(ctx, query, changes); err != nil {
		return fmt.Errorf("failed to insert job changes: %w", err)
	}

	return nil
}

// ListChanges pages through a job's change log in insertion order.
func (s *JobStore) ListChanges(ctx context.Context, jobID string, afterID int64, limit int) ([]domain.JobChange, error) {
	query := `
		SELECT id, job_id, contact_id, persona_before, persona_after, applied, created_at
		FROM job_changes
		WHERE job_id = $1 AND id > $2
		ORDER BY id
		LIMIT $3
	`

	var changes []domain.JobChange
	if err := s.db.SelectContext(ctx, &changes, query, jobID, afterID, limit); err != nil {
		return nil, fmt.Errorf("failed to list job changes: %w", err)
	}

	return changes, nil
}

package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/leadwise/persona-service/internal/classifier"
	"github.com/leadwise/persona-service/internal/domain"
	"github.com/leadwise/persona-service/internal/metrics"
)

// runJob executes one claimed job end to end and records its outcome.
func (w *Worker) runJob(ctx context.Context, job *domain.ReclassificationJob) {
	w.logger.Info("Running reclassification job",
		slog.String("job_id", job.ID),
		slog.String("filter_kind", job.FilterKind),
		slog.Bool("dry_run", job.DryRun),
		slog.Int("attempts", job.Attempts),
	)

	counters, err := w.scan(ctx, job)

	var retryable *domain.RetryableError

	switch {
	case err == nil:
		if markErr := w.jobs.MarkCompleted(ctx, job.ID, w.workerID, counters); markErr != nil {
			w.logger.Error("Failed to mark job completed",
				slog.String("job_id", job.ID),
				slog.String("error", markErr.Error()),
			)
			return
		}
		metrics.JobsFinished.WithLabelValues(domain.JobStatusCompleted).Inc()

	case errors.Is(err, domain.ErrJobCancelled):
		// Changes committed before the cancellation was observed stay
		// counted; only the remaining scan is abandoned.
		if markErr := w.jobs.MarkCancelled(ctx, job.ID, w.workerID, counters); markErr != nil {
			w.logger.Error("Failed to mark job cancelled",
				slog.String("job_id", job.ID),
				slog.String("error", markErr.Error()),
			)
			return
		}
		metrics.JobsFinished.WithLabelValues(domain.JobStatusCancelled).Inc()

	case errors.Is(err, domain.ErrJobLost):
		// Another worker adopted this job after a missed heartbeat; its
		// state belongs to the adopter now, so nothing to record here.
		w.logger.Warn("Job lost to another worker mid-scan",
			slog.String("job_id", job.ID),
		)

	case errors.As(err, &retryable):
		// Transient failure, typically storage. The job goes back to
		// PENDING while attempts remain.
		attempts := job.Attempts + 1
		if releaseErr := w.jobs.ReleaseFailure(ctx, job.ID, w.workerID, attempts, err); releaseErr != nil {
			w.logger.Error("Failed to release job after error",
				slog.String("job_id", job.ID),
				slog.String("error", releaseErr.Error()),
			)
			return
		}
		if attempts >= job.MaxAttempts {
			metrics.JobsFinished.WithLabelValues(domain.JobStatusFailed).Inc()
		}

	default:
		// A retry cannot cure this error, e.g. a catalog with no default
		// persona. Fail immediately instead of burning attempts.
		if markErr := w.jobs.MarkFailed(ctx, job.ID, w.workerID, counters, err); markErr != nil {
			w.logger.Error("Failed to mark job failed",
				slog.String("job_id", job.ID),
				slog.String("error", markErr.Error()),
			)
			return
		}
		metrics.JobsFinished.WithLabelValues(domain.JobStatusFailed).Inc()
	}
}

// scan walks the filtered contact set in stable batches. It returns
// ErrJobCancelled when a cancellation request is observed between
// batches; any other error aborts the current attempt without touching
// contacts beyond the last committed batch.
func (w *Worker) scan(ctx context.Context, job *domain.ReclassificationJob) (domain.JobCounters, error) {
	filter := job.Filter()
	if filter.Kind == domain.FilterAffected {
		// Defensive renormalization: the filter must match on the same
		// form the contact records cache.
		normalized := make([]string, 0, len(filter.Keywords))
		for _, kw := range filter.Keywords {
			if n := classifier.Normalize(kw); n != "" {
				normalized = append(normalized, n)
			}
		}
		filter.Keywords = normalized
	}

	// Errors carry over across attempts; the scan counters restart.
	counters := domain.JobCounters{Errors: job.Errors}
	var cursor int64

	for {
		cancelled, err := w.jobs.IsCancelRequested(ctx, job.ID)
		if err != nil {
			return counters, domain.NewRetryableError(fmt.Errorf("failed to check cancellation: %w", err))
		}
		if cancelled {
			w.logger.Info("Job cancellation observed between batches",
				slog.String("job_id", job.ID),
				slog.Int64("scanned", counters.Scanned),
			)
			return counters, domain.ErrJobCancelled
		}

		batch, err := w.contacts.ListBatch(ctx, filter, cursor, w.batchSize)
		if err != nil {
			return counters, domain.NewRetryableError(fmt.Errorf("failed to read contact batch: %w", err))
		}
		if len(batch) == 0 {
			return counters, nil
		}

		changes, batchCounters, err := w.processBatch(ctx, job, batch)
		if err != nil {
			return counters, err
		}
		counters.Add(batchCounters)

		if err := w.jobs.InsertChanges(ctx, changes); err != nil {
			return counters, domain.NewRetryableError(err)
		}

		// Progress plus heartbeat after every batch, so observers can
		// poll and other workers know this job is alive.
		if err := w.jobs.RecordProgress(ctx, job.ID, w.workerID, counters); err != nil {
			if errors.Is(err, domain.ErrJobLost) {
				return counters, err
			}
			return counters, domain.NewRetryableError(err)
		}

		cursor = batch[len(batch)-1].ID
	}
}

// processBatch classifies one batch of contacts and returns the audit
// entries plus counters for it. Writes are skipped entirely for dry
// runs and for locked contacts.
func (w *Worker) processBatch(ctx context.Context, job *domain.ReclassificationJob, batch []domain.Contact) ([]domain.JobChange, domain.JobCounters, error) {
	var counters domain.JobCounters
	changes := make([]domain.JobChange, 0, len(batch))

	for i := range batch {
		contact := &batch[i]
		counters.Scanned++
		metrics.ContactsScanned.Inc()

		if contact.PersonaLocked {
			counters.SkippedLocked++
			metrics.ContactsSkippedLocked.Inc()
			continue
		}

		result, err := w.classifier.Classify(ctx, contact.JobTitle.String)
		if err != nil {
			return nil, counters, fmt.Errorf("failed to classify contact %d: %w", contact.ID, err)
		}

		if result.PersonaID == contact.CurrentPersonaID() {
			continue
		}

		if !job.DryRun {
			if err := w.contacts.ApplyClassification(ctx, contact.ID, result.PersonaID, result.NormalizedTitle); err != nil {
				return nil, counters, domain.NewRetryableError(err)
			}
		}

		changes = append(changes, domain.JobChange{
			JobID:         job.ID,
			ContactID:     contact.ID,
			PersonaBefore: contact.BuyerPersonaID,
			PersonaAfter:  sql.NullInt64{Int64: result.PersonaID, Valid: true},
			Applied:       !job.DryRun,
		})
		counters.Changed++
		metrics.ContactsChanged.WithLabelValues(strconv.FormatBool(job.DryRun)).Inc()
	}

	return changes, counters, nil
}

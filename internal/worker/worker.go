package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leadwise/persona-service/internal/classifier"
	"github.com/leadwise/persona-service/internal/domain"
	"github.com/leadwise/persona-service/internal/metrics"
)

// JobStore is the durable job table the worker coordinates through.
// Implemented by storage.JobStore; tests supply fakes.
type JobStore interface {
	ClaimNext(ctx context.Context, workerID string, orphanAfter time.Duration) (*domain.ReclassificationJob, error)
	RecordProgress(ctx context.Context, jobID, workerID string, c domain.JobCounters) error
	IsCancelRequested(ctx context.Context, jobID string) (bool, error)
	MarkCompleted(ctx context.Context, jobID, workerID string, c domain.JobCounters) error
	MarkCancelled(ctx context.Context, jobID, workerID string, c domain.JobCounters) error
	MarkFailed(ctx context.Context, jobID, workerID string, c domain.JobCounters, failErr error) error
	ReleaseFailure(ctx context.Context, jobID, workerID string, attempts int, failErr error) error
	InsertChanges(ctx context.Context, changes []domain.JobChange) error
}

// ContactStore is the contact collection a scan reads and writes.
type ContactStore interface {
	ListBatch(ctx context.Context, filter domain.JobFilter, afterID int64, limit int) ([]domain.Contact, error)
	ApplyClassification(ctx context.Context, contactID, personaID int64, normalizedTitle string) error
}

// Classifier assigns personas during a scan.
type Classifier interface {
	Classify(ctx context.Context, jobTitle string) (*classifier.Result, error)
}

// Config holds worker configuration
type Config struct {
	Logger        *slog.Logger
	Jobs          JobStore
	Contacts      ContactStore
	Classifier    Classifier
	PollInterval  time.Duration
	OrphanTimeout time.Duration
	BatchSize     int
}

// Worker drives reclassification jobs with a single periodic poll loop.
// Multiple replicas are safe: mutual exclusion lives entirely in the
// job store's atomic claim, not in this process.
type Worker struct {
	logger        *slog.Logger
	jobs          JobStore
	contacts      ContactStore
	classifier    Classifier
	workerID      string
	pollInterval  time.Duration
	orphanTimeout time.Duration
	batchSize     int

	nudge    chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWorker creates a new worker instance with a unique worker identity.
func NewWorker(cfg *Config) *Worker {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "worker"
	}

	return &Worker{
		logger:        cfg.Logger,
		jobs:          cfg.Jobs,
		contacts:      cfg.Contacts,
		classifier:    cfg.Classifier,
		workerID:      fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8]),
		pollInterval:  cfg.PollInterval,
		orphanTimeout: cfg.OrphanTimeout,
		batchSize:     cfg.BatchSize,
		nudge:         make(chan struct{}, 1),
		stopChan:      make(chan struct{}),
	}
}

// WorkerID returns this process's worker identity.
func (w *Worker) WorkerID() string {
	return w.workerID
}

// Nudge wakes the poll loop early, used when a job-created event
// arrives so fresh jobs do not wait out a full poll interval. Polling
// remains the source of truth; a lost nudge only delays pickup.
func (w *Worker) Nudge() {
	select {
	case w.nudge <- struct{}{}:
	default:
	}
}

// Start runs the poll loop until the context is canceled or Stop is
// called. Each wakeup drains every claimable job before sleeping again.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting reclassification worker",
		slog.String("worker_id", w.workerID),
		slog.Duration("poll_interval", w.pollInterval),
		slog.Duration("orphan_timeout", w.orphanTimeout),
		slog.Int("batch_size", w.batchSize),
	)

	w.wg.Add(1)
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Poll once at startup so work queued during downtime starts
	// immediately.
	w.drainJobs(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker context canceled, stopping poll loop")
			return nil
		case <-w.stopChan:
			w.logger.Info("Worker stop requested, stopping poll loop")
			return nil
		case <-ticker.C:
			w.drainJobs(ctx)
		case <-w.nudge:
			w.drainJobs(ctx)
		}
	}
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	close(w.stopChan)
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// drainJobs claims and runs jobs until no claimable job remains. Other
// replicas racing on the same jobs lose the claim silently and skip.
func (w *Worker) drainJobs(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		default:
		}

		job, err := w.jobs.ClaimNext(ctx, w.workerID, w.orphanTimeout)
		if err != nil {
			w.logger.Error("Failed to claim job",
				slog.String("error", err.Error()),
			)
			return
		}
		if job == nil {
			return
		}

		metrics.JobsClaimed.Inc()
		w.runJob(ctx, job)
	}
}

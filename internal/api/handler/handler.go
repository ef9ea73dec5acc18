package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/leadwise/persona-service/internal/api/dto"
	"github.com/leadwise/persona-service/internal/classifier"
	"github.com/leadwise/persona-service/internal/domain"
	"github.com/leadwise/persona-service/internal/storage"
	"github.com/leadwise/persona-service/shared/rabbitmq"
)

// jobStore is the slice of storage.JobStore the HTTP layer touches.
// Tests supply fakes.
type jobStore interface {
	CreateJob(ctx context.Context, job *domain.ReclassificationJob) error
	GetJobByID(ctx context.Context, jobID string) (*domain.ReclassificationJob, error)
	ListJobs(ctx context.Context, filter storage.JobListFilter) ([]domain.ReclassificationJob, error)
	RequestCancel(ctx context.Context, jobID string) (*domain.ReclassificationJob, error)
	Retry(ctx context.Context, jobID string) (*domain.ReclassificationJob, error)
	ListChanges(ctx context.Context, jobID string, afterID int64, limit int) ([]domain.JobChange, error)
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	Jobs         *storage.JobStore
	Contacts     *storage.ContactStore
	Catalog      *storage.CatalogStore
	Snapshots    *storage.SnapshotStore
	Classifier   *classifier.Classifier
	RabbitClient *rabbitmq.Client
}

// Handler serves all persona-service HTTP endpoints.
type Handler struct {
	logger     *slog.Logger
	jobs       jobStore
	contacts   *storage.ContactStore
	catalog    *storage.CatalogStore
	snapshots  *storage.SnapshotStore
	classifier *classifier.Classifier
	rabbit     *rabbitmq.Client
}

// New creates a new Handler instance
func New(deps *Dependencies) *Handler {
	return &Handler{
		logger:     deps.Logger,
		jobs:       deps.Jobs,
		contacts:   deps.Contacts,
		catalog:    deps.Catalog,
		snapshots:  deps.Snapshots,
		classifier: deps.Classifier,
		rabbit:     deps.RabbitClient,
	}
}

// publishEvent broadcasts an event on the fanout exchange. Delivery is
// best effort: workers poll the database anyway, so a failed publish
// only delays them and must not fail the request.
func (h *Handler) publishEvent(ctx context.Context, event domain.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to encode event", slog.String("error", err.Error()))
		return
	}

	if err := h.rabbit.PublishWithRetry(ctx, body, "application/json"); err != nil {
		h.logger.Warn("Failed to publish event, relying on worker polling",
			slog.String("kind", event.Kind),
			slog.String("error", err.Error()),
		)
	}
}

// dryRunOrDefault resolves an optional dry_run field. Omitted means
// true: a job only writes when the caller explicitly opted in.
func dryRunOrDefault(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}

func toJobDTO(job *domain.ReclassificationJob) dto.JobDTO {
	d := dto.JobDTO{
		JobID:           job.ID,
		Status:          job.Status,
		FilterKind:      job.FilterKind,
		FilterKeywords:  []string(job.FilterKeywords),
		DryRun:          job.DryRun,
		Scanned:         job.Scanned,
		Changed:         job.Changed,
		SkippedLocked:   job.SkippedLocked,
		Errors:          job.Errors,
		Attempts:        job.Attempts,
		MaxAttempts:     job.MaxAttempts,
		CancelRequested: job.CancelRequested,
		CreatedAt:       job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       job.UpdatedAt.Format(time.RFC3339),
	}
	if job.FilterKeywordID.Valid {
		d.FilterKeywordID = &job.FilterKeywordID.Int64
	}
	if job.FilterPersonaID.Valid {
		d.FilterPersonaID = &job.FilterPersonaID.Int64
	}
	if job.WorkerID.Valid {
		d.WorkerID = job.WorkerID.String
	}
	if job.ErrorMessage.Valid {
		d.ErrorMessage = job.ErrorMessage.String
	}
	if job.StartedAt.Valid {
		d.StartedAt = job.StartedAt.Time.Format(time.RFC3339)
	}
	if job.CompletedAt.Valid {
		d.CompletedAt = job.CompletedAt.Time.Format(time.RFC3339)
	}
	return d
}

func toContactDTO(c *domain.Contact) dto.ContactDTO {
	d := dto.ContactDTO{
		ID:                 c.ID,
		FullName:           c.FullName,
		PersonaLocked:      c.PersonaLocked,
		PersonaSetManually: c.PersonaSetManually,
	}
	if c.JobTitle.Valid {
		d.JobTitle = c.JobTitle.String
	}
	if c.JobTitleNormalized.Valid {
		d.JobTitleNormalized = c.JobTitleNormalized.String
	}
	if c.BuyerPersonaID.Valid {
		d.BuyerPersonaID = &c.BuyerPersonaID.Int64
	}
	return d
}

func toChangeDTO(ch *domain.JobChange) dto.JobChangeDTO {
	d := dto.JobChangeDTO{
		ID:        ch.ID,
		ContactID: ch.ContactID,
		Applied:   ch.Applied,
		CreatedAt: ch.CreatedAt.Format(time.RFC3339),
	}
	if ch.PersonaBefore.Valid {
		d.PersonaBefore = &ch.PersonaBefore.Int64
	}
	if ch.PersonaAfter.Valid {
		d.PersonaAfter = &ch.PersonaAfter.Int64
	}
	return d
}

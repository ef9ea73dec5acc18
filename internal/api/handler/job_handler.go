package handler

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leadwise/persona-service/internal/api/dto"
	"github.com/leadwise/persona-service/internal/classifier"
	"github.com/leadwise/persona-service/internal/domain"
	"github.com/leadwise/persona-service/internal/storage"
)

// ReclassifyAll handles POST /api/v1/reclassify
// Queues a job that rescans every contact in the collection.
func (h *Handler) ReclassifyAll(c *gin.Context) {
	// An empty body is a valid request: everything defaults.
	var req dto.ReclassifyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	job := &domain.ReclassificationJob{
		ID:          uuid.New().String(),
		Status:      domain.JobStatusPending,
		FilterKind:  domain.FilterAll,
		DryRun:      dryRunOrDefault(req.DryRun),
		MaxAttempts: domain.DefaultMaxAttempts,
	}
	h.createJob(c, job)
}

// ReclassifyByKeyword handles POST /api/v1/reclassify/by-keyword
// Queues a job limited to contacts whose title matches one keyword.
func (h *Handler) ReclassifyByKeyword(c *gin.Context) {
	var req dto.ReclassifyByKeywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	// Reject unknown keyword ids up front rather than queuing a scan
	// that matches nothing.
	if _, err := h.catalog.GetKeywordByID(c.Request.Context(), req.KeywordID); err != nil {
		if errors.Is(err, domain.ErrKeywordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Keyword not found"})
			return
		}
		h.logger.Error("Failed to look up keyword", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up keyword"})
		return
	}

	job := &domain.ReclassificationJob{
		ID:              uuid.New().String(),
		Status:          domain.JobStatusPending,
		FilterKind:      domain.FilterByKeyword,
		FilterKeywordID: sql.NullInt64{Int64: req.KeywordID, Valid: true},
		DryRun:          dryRunOrDefault(req.DryRun),
		MaxAttempts:     domain.DefaultMaxAttempts,
	}
	h.createJob(c, job)
}

// ReclassifyByPersona handles POST /api/v1/reclassify/by-persona
// Queues a job limited to contacts currently assigned to one persona.
func (h *Handler) ReclassifyByPersona(c *gin.Context) {
	var req dto.ReclassifyByPersonaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	job := &domain.ReclassificationJob{
		ID:              uuid.New().String(),
		Status:          domain.JobStatusPending,
		FilterKind:      domain.FilterByPersona,
		FilterPersonaID: sql.NullInt64{Int64: req.PersonaID, Valid: true},
		DryRun:          dryRunOrDefault(req.DryRun),
		MaxAttempts:     domain.DefaultMaxAttempts,
	}
	h.createJob(c, job)
}

// ReclassifyAffected handles POST /api/v1/reclassify/affected
// Queues a job limited to contacts whose title matches any of the given
// keyword strings, typically the ones touched by a catalog edit.
func (h *Handler) ReclassifyAffected(c *gin.Context) {
	var req dto.ReclassifyAffectedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	normalized := make([]string, 0, len(req.Keywords))
	for _, kw := range req.Keywords {
		if n := classifier.Normalize(kw); n != "" {
			normalized = append(normalized, n)
		}
	}
	if len(normalized) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No usable keywords after normalization"})
		return
	}

	job := &domain.ReclassificationJob{
		ID:             uuid.New().String(),
		Status:         domain.JobStatusPending,
		FilterKind:     domain.FilterAffected,
		FilterKeywords: normalized,
		DryRun:         dryRunOrDefault(req.DryRun),
		MaxAttempts:    domain.DefaultMaxAttempts,
	}
	h.createJob(c, job)
}

// createJob persists the job, nudges workers, and writes the response.
func (h *Handler) createJob(c *gin.Context, job *domain.ReclassificationJob) {
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := h.jobs.CreateJob(c.Request.Context(), job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job"})
		return
	}

	h.publishEvent(c.Request.Context(), domain.Event{
		Kind:  domain.EventJobCreated,
		JobID: job.ID,
	})

	c.JSON(http.StatusAccepted, toJobDTO(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
// Returns job details plus the first page of its change log.
func (h *Handler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
		return
	}

	job, err := h.jobs.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get job"})
		return
	}

	changes, err := h.jobs.ListChanges(c.Request.Context(), jobID, 0, firstChangesPage)
	if err != nil {
		h.logger.Error("Failed to list job changes", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get job"})
		return
	}

	out := make([]dto.JobChangeDTO, len(changes))
	for i := range changes {
		out[i] = toChangeDTO(&changes[i])
	}

	c.JSON(http.StatusOK, dto.JobDetailResponse{
		JobDTO:  toJobDTO(job),
		Changes: out,
	})
}

// firstChangesPage is how much of the change log rides along on the job
// detail response before callers switch to the /changes endpoint.
const firstChangesPage = 100

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first with keyset pagination.
func (h *Handler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
		return
	}

	jobs, err := h.jobs.ListJobs(c.Request.Context(), storage.JobListFilter{
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	out := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		out[i] = toJobDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       out,
		NextCursor: nextCursor,
	})
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
// PENDING jobs flip straight to CANCELLED; PROCESSING jobs get a flag
// the worker observes at its next batch boundary.
func (h *Handler) CancelJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
		return
	}

	job, err := h.jobs.RequestCancel(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		case errors.Is(err, domain.ErrJobNotCancellable):
			c.JSON(http.StatusConflict, gin.H{"error": "Job is already in a terminal state"})
		default:
			h.logger.Error("Failed to cancel job", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel job"})
		}
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// RetryJob handles POST /api/v1/jobs/:job_id/retry
// Resets a FAILED job to PENDING with a fresh attempt budget.
func (h *Handler) RetryJob(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
		return
	}

	job, err := h.jobs.Retry(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrJobNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		case errors.Is(err, domain.ErrJobNotRetryable):
			c.JSON(http.StatusConflict, gin.H{"error": "Only failed jobs can be retried"})
		default:
			h.logger.Error("Failed to retry job", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retry job"})
		}
		return
	}

	h.publishEvent(c.Request.Context(), domain.Event{
		Kind:  domain.EventJobCreated,
		JobID: job.ID,
	})

	c.JSON(http.StatusOK, toJobDTO(job))
}

// ListJobChanges handles GET /api/v1/jobs/:job_id/changes
// Pages through a job's audit log in insertion order.
func (h *Handler) ListJobChanges(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
		return
	}

	afterID, err := strconv.ParseInt(c.DefaultQuery("after_id", "0"), 10, 64)
	if err != nil || afterID < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "after_id must be a non-negative integer"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}
	if limit > 500 {
		limit = 500
	}

	// 404 for unknown jobs rather than an empty page.
	if _, err := h.jobs.GetJobByID(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get job"})
		return
	}

	changes, err := h.jobs.ListChanges(c.Request.Context(), jobID, afterID, limit)
	if err != nil {
		h.logger.Error("Failed to list job changes", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list job changes"})
		return
	}

	out := make([]dto.JobChangeDTO, len(changes))
	for i := range changes {
		out[i] = toChangeDTO(&changes[i])
	}

	resp := dto.ListChangesResponse{Changes: out}
	if len(changes) == limit {
		resp.NextAfterID = changes[len(changes)-1].ID
	}

	c.JSON(http.StatusOK, resp)
}

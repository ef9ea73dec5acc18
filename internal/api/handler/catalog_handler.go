package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/leadwise/persona-service/internal/api/dto"
	"github.com/leadwise/persona-service/internal/classifier"
	"github.com/leadwise/persona-service/internal/domain"
)

// ListPersonas handles GET /api/v1/personas
// Returns the catalog's personas in evaluation order.
func (h *Handler) ListPersonas(c *gin.Context) {
	personas, err := h.catalog.ListPersonas(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list personas", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list personas"})
		return
	}

	out := make([]dto.PersonaDTO, len(personas))
	for i, p := range personas {
		out[i] = dto.PersonaDTO{
			ID:        p.ID,
			Name:      p.Name,
			Priority:  p.Priority,
			IsDefault: p.IsDefault,
		}
	}

	c.JSON(http.StatusOK, gin.H{"personas": out})
}

// CreateKeyword handles POST /api/v1/keywords
// Registers (or reassigns) a keyword under a persona, broadcasts a
// catalog-changed event, and optionally queues an affected-contacts job
// so existing matches pick up the new mapping.
func (h *Handler) CreateKeyword(c *gin.Context) {
	var req dto.CreateKeywordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	normalized := classifier.Normalize(req.Keyword)
	if normalized == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Keyword normalizes to an empty string"})
		return
	}

	kw, err := h.catalog.CreateKeyword(c.Request.Context(), req.Keyword, normalized, req.PersonaID)
	if err != nil {
		h.logger.Error("Failed to create keyword", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create keyword"})
		return
	}

	h.publishEvent(c.Request.Context(), domain.Event{
		Kind:     domain.EventCatalogChanged,
		Keywords: []string{kw.KeywordNormalized},
	})

	resp := gin.H{"keyword": toKeywordDTO(kw)}
	if req.Reclassify {
		job, err := h.queueAffectedJob(c, []string{kw.KeywordNormalized}, dryRunOrDefault(req.DryRun))
		if err != nil {
			return
		}
		resp["job"] = toJobDTO(job)
	}

	c.JSON(http.StatusCreated, resp)
}

// DeleteKeyword handles DELETE /api/v1/keywords/:keyword_id
// Removes a keyword, broadcasts a catalog-changed event, and with
// ?reclassify=true queues a job over the contacts that matched it.
func (h *Handler) DeleteKeyword(c *gin.Context) {
	keywordID, err := strconv.ParseInt(c.Param("keyword_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "keyword_id must be an integer"})
		return
	}

	kw, err := h.catalog.DeleteKeyword(c.Request.Context(), keywordID)
	if err != nil {
		if errors.Is(err, domain.ErrKeywordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Keyword not found"})
			return
		}
		h.logger.Error("Failed to delete keyword", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete keyword"})
		return
	}

	h.publishEvent(c.Request.Context(), domain.Event{
		Kind:     domain.EventCatalogChanged,
		Keywords: []string{kw.KeywordNormalized},
	})

	resp := gin.H{"keyword": toKeywordDTO(kw)}
	if c.Query("reclassify") == "true" {
		dryRun := c.DefaultQuery("dry_run", "true") != "false"
		job, err := h.queueAffectedJob(c, []string{kw.KeywordNormalized}, dryRun)
		if err != nil {
			return
		}
		resp["job"] = toJobDTO(job)
	}

	c.JSON(http.StatusOK, resp)
}

// queueAffectedJob creates and announces an affected-contacts job. On
// failure the HTTP error has already been written.
func (h *Handler) queueAffectedJob(c *gin.Context, keywords []string, dryRun bool) (*domain.ReclassificationJob, error) {
	job := &domain.ReclassificationJob{
		ID:             uuid.New().String(),
		Status:         domain.JobStatusPending,
		FilterKind:     domain.FilterAffected,
		FilterKeywords: keywords,
		DryRun:         dryRun,
		MaxAttempts:    domain.DefaultMaxAttempts,
	}

	if err := h.jobs.CreateJob(c.Request.Context(), job); err != nil {
		h.logger.Error("Failed to queue affected-contacts job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Keyword updated but reclassification job failed"})
		return nil, err
	}

	h.publishEvent(c.Request.Context(), domain.Event{
		Kind:  domain.EventJobCreated,
		JobID: job.ID,
	})

	return job, nil
}

func toKeywordDTO(kw *domain.JobKeyword) dto.KeywordDTO {
	return dto.KeywordDTO{
		ID:                kw.ID,
		Keyword:           kw.Keyword,
		KeywordNormalized: kw.KeywordNormalized,
		PersonaID:         kw.BuyerPersonaID,
	}
}

package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leadwise/persona-service/internal/api/dto"
)

// Diagnose handles POST /api/v1/classify/diagnose
// Explains how one job title would be classified without touching any
// contact. An empty or unmatchable title resolves to the default
// persona, so this always returns a result.
func (h *Handler) Diagnose(c *gin.Context) {
	var req dto.DiagnoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.classifier.Classify(c.Request.Context(), req.JobTitle)
	if err != nil {
		h.logger.Error("Failed to classify title", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to classify title"})
		return
	}

	c.JSON(http.StatusOK, result)
}

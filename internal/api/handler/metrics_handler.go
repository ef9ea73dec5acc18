package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leadwise/persona-service/internal/api/dto"
	"github.com/leadwise/persona-service/internal/domain"
)

// LatestSnapshot handles GET /api/v1/metrics/latest
// Returns the most recent coverage snapshot.
func (h *Handler) LatestSnapshot(c *gin.Context) {
	snap, err := h.snapshots.LatestSnapshot(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to read latest snapshot", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read latest snapshot"})
		return
	}
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No snapshots taken yet"})
		return
	}

	c.JSON(http.StatusOK, toSnapshotDTO(snap))
}

// SnapshotHistory handles GET /api/v1/metrics/history
// Returns snapshots from the last N days, newest first.
func (h *Handler) SnapshotHistory(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil || days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
		return
	}
	if days > 90 {
		days = 90
	}

	snaps, err := h.snapshots.SnapshotHistory(c.Request.Context(), days)
	if err != nil {
		h.logger.Error("Failed to read snapshot history", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read snapshot history"})
		return
	}

	out := make([]dto.SnapshotDTO, len(snaps))
	for i := range snaps {
		out[i] = toSnapshotDTO(&snaps[i])
	}

	c.JSON(http.StatusOK, gin.H{"snapshots": out, "days": days})
}

func toSnapshotDTO(snap *domain.MetricsSnapshot) dto.SnapshotDTO {
	return dto.SnapshotDTO{
		ID:             snap.ID,
		TakenAt:        snap.TakenAt.Format(time.RFC3339),
		TotalContacts:  snap.TotalContacts,
		ByPersona:      snap.ByPersona,
		LockedCount:    snap.LockedCount,
		ManualCount:    snap.ManualCount,
		WithTitlePct:   snap.WithTitlePct,
		NormalizedPct:  snap.NormalizedPct,
		ClassifiedPct:  snap.ClassifiedPct,
		ClassifiedNum:  snap.ClassifiedNum,
		KeywordUsage:   snap.KeywordUsage,
		TopKeywords:    snap.TopKeywords,
		UnusedKeywords: snap.UnusedKeywords,
		Deltas:         snap.Deltas,
	}
}

package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/leadwise/persona-service/internal/api/dto"
	"github.com/leadwise/persona-service/internal/domain"
)

// GetContact handles GET /api/v1/contacts/:contact_id
// Returns a contact's classification state.
func (h *Handler) GetContact(c *gin.Context) {
	contactID, err := strconv.ParseInt(c.Param("contact_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "contact_id must be an integer"})
		return
	}

	contact, err := h.contacts.GetContactByID(c.Request.Context(), contactID)
	if err != nil {
		if errors.Is(err, domain.ErrContactNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
			return
		}
		h.logger.Error("Failed to get contact", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get contact"})
		return
	}

	c.JSON(http.StatusOK, toContactDTO(contact))
}

// LockContact handles POST /api/v1/contacts/:contact_id/lock
// Sets or clears the persona lock. Locked contacts are counted but
// never modified by reclassification jobs.
func (h *Handler) LockContact(c *gin.Context) {
	contactID, err := strconv.ParseInt(c.Param("contact_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "contact_id must be an integer"})
		return
	}

	var req dto.LockContactRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Locked == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "locked field is required"})
		return
	}

	contact, err := h.contacts.SetLock(c.Request.Context(), contactID, *req.Locked)
	if err != nil {
		if errors.Is(err, domain.ErrContactNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Contact not found"})
			return
		}
		h.logger.Error("Failed to update contact lock", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update contact lock"})
		return
	}

	c.JSON(http.StatusOK, toContactDTO(contact))
}

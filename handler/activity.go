package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"beacon/core/repository"
)

// ActivityHandler serves the append-only activity log.
type ActivityHandler struct {
	logs *repository.ActivityLogRepository
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(logs *repository.ActivityLogRepository) *ActivityHandler {
	return &ActivityHandler{logs: logs}
}

// ListActivity handles GET /beacon/activity
// Query parameters:
//   - limit: integer (max number of entries, default 50)
func (h *ActivityHandler) ListActivity(c *gin.Context) {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := h.logs.GetRecent(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to list activity",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"activity": entries,
		"count":    len(entries),
	})
}

// ListInstanceActivity handles GET /beacon/instances/:id/activity
func (h *ActivityHandler) ListInstanceActivity(c *gin.Context) {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := h.logs.GetByEntityID(c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to list instance activity",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"activity": entries,
		"count":    len(entries),
	})
}

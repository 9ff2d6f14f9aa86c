package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"beacon/core/service"
)

// TunnelHandler handles tunnel-health HTTP requests.
type TunnelHandler struct {
	tunnels *service.TunnelHealthMonitor
}

// NewTunnelHandler creates a new tunnel handler.
func NewTunnelHandler(tunnels *service.TunnelHealthMonitor) *TunnelHandler {
	return &TunnelHandler{tunnels: tunnels}
}

// ListTunnels handles GET /beacon/tunnels
func (h *TunnelHandler) ListTunnels(c *gin.Context) {
	statuses := h.tunnels.GetAllTunnelStatuses()
	c.JSON(http.StatusOK, gin.H{
		"tunnels": statuses,
		"count":   len(statuses),
	})
}

// GetTunnel handles GET /beacon/tunnels/:machineId
func (h *TunnelHandler) GetTunnel(c *gin.Context) {
	status, ok := h.tunnels.GetTunnelStatus(c.Param("machineId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No tunnel found",
		})
		return
	}
	c.JSON(http.StatusOK, status)
}

// ForceReconnect handles POST /beacon/tunnels/:machineId/reconnect
// A reconnect already in flight for the machine answers 409 instead of
// queuing a second one.
func (h *TunnelHandler) ForceReconnect(c *gin.Context) {
	machineID := c.Param("machineId")

	err := h.tunnels.ForceReconnect(c.Request.Context(), machineID)
	switch {
	case errors.Is(err, service.ErrNoTunnel):
		c.JSON(http.StatusNotFound, gin.H{
			"error": "No tunnel found",
		})
	case errors.Is(err, service.ErrReconnectInProgress):
		c.JSON(http.StatusConflict, gin.H{
			"error": "Reconnect already in progress",
		})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to reconnect tunnel",
			"detail": err.Error(),
		})
	default:
		c.JSON(http.StatusOK, gin.H{
			"message": "Tunnel reconnected",
			"id":      machineID,
		})
	}
}

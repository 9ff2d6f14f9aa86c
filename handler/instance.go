// Package handler provides HTTP handlers for the Beacon API.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"beacon/core/models"
	"beacon/core/repository"
	"beacon/core/service"
	"beacon/utils/pathutil"
)

// InstanceHandler handles instance-related HTTP requests.
type InstanceHandler struct {
	instances *repository.InstanceRepository
	ledger    *service.ActivityLedger
}

// NewInstanceHandler creates a new instance handler.
func NewInstanceHandler(instances *repository.InstanceRepository, ledger *service.ActivityLedger) *InstanceHandler {
	return &InstanceHandler{
		instances: instances,
		ledger:    ledger,
	}
}

// ListInstances handles GET /beacon/instances
func (h *InstanceHandler) ListInstances(c *gin.Context) {
	instances, err := h.instances.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to list instances",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"instances": instances,
		"count":     len(instances),
	})
}

// CreateInstance handles POST /beacon/instances
func (h *InstanceHandler) CreateInstance(c *gin.Context) {
	var req struct {
		Name             string `json:"name" binding:"required"`
		WorkingDirectory string `json:"working_directory" binding:"required"`
		MachineID        string `json:"machine_id"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid request body",
			"detail": err.Error(),
		})
		return
	}

	now := time.Now()
	inst := &models.Instance{
		ID:               uuid.NewString(),
		Name:             req.Name,
		WorkingDirectory: pathutil.Normalize(req.WorkingDirectory),
		Status:           models.StatusIdle,
		MachineID:        req.MachineID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := h.instances.Create(inst); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to create instance",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, inst)
}

// GetInstance handles GET /beacon/instances/:id
func (h *InstanceHandler) GetInstance(c *gin.Context) {
	instanceID := c.Param("id")

	inst, err := h.instances.GetByID(instanceID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Instance not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to get instance",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, inst)
}

// DeleteInstance handles DELETE /beacon/instances/:id
func (h *InstanceHandler) DeleteInstance(c *gin.Context) {
	instanceID := c.Param("id")

	if err := h.instances.Delete(instanceID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to delete instance",
			"detail": err.Error(),
		})
		return
	}
	h.ledger.Remove(instanceID)

	c.JSON(http.StatusOK, gin.H{
		"message": "Instance deleted",
		"id":      instanceID,
	})
}

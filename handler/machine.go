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
)

// MachineHandler handles remote-machine HTTP requests, including
// preflight inspections and keychain operations.
type MachineHandler struct {
	machines  *repository.MachineRepository
	vault     *service.CredentialVault
	preflight *service.PreflightInspector
	tunnels   *service.TunnelHealthMonitor
	executor  service.RemoteCommandExecutor
}

// NewMachineHandler creates a new machine handler.
func NewMachineHandler(machines *repository.MachineRepository, vault *service.CredentialVault, preflight *service.PreflightInspector, tunnels *service.TunnelHealthMonitor, executor service.RemoteCommandExecutor) *MachineHandler {
	return &MachineHandler{
		machines:  machines,
		vault:     vault,
		preflight: preflight,
		tunnels:   tunnels,
		executor:  executor,
	}
}

// ListMachines handles GET /beacon/machines
func (h *MachineHandler) ListMachines(c *gin.Context) {
	machines, err := h.machines.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to list machines",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"machines": machines,
		"count":    len(machines),
	})
}

// CreateMachine handles POST /beacon/machines
// An optional keychain_password is stored in the credential vault; the
// password itself is never persisted in the database.
func (h *MachineHandler) CreateMachine(c *gin.Context) {
	var req struct {
		Name             string `json:"name" binding:"required"`
		Hostname         string `json:"hostname" binding:"required"`
		Port             int    `json:"port"`
		Username         string `json:"username"`
		KeychainPassword string `json:"keychain_password"`
		LocalPort        int    `json:"local_port"`
		RemotePort       int    `json:"remote_port"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid request body",
			"detail": err.Error(),
		})
		return
	}
	if req.Port == 0 {
		req.Port = 22
	}

	machine := &models.RemoteMachine{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Hostname:  req.Hostname,
		Port:      req.Port,
		Username:  req.Username,
		CreatedAt: time.Now(),
	}

	if req.KeychainPassword != "" {
		if err := h.vault.Store(machine.ID, req.KeychainPassword); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":  "Failed to store keychain password",
				"detail": err.Error(),
			})
			return
		}
		machine.CredentialRef = machine.ID
	}

	if err := h.machines.Create(machine); err != nil {
		// Do not leave an orphaned secret behind.
		if machine.CredentialRef != "" {
			h.vault.Delete(machine.ID)
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to create machine",
			"detail": err.Error(),
		})
		return
	}

	if req.LocalPort != 0 && req.RemotePort != 0 {
		h.tunnels.Track(machine.ID, machine.Name, req.LocalPort, req.RemotePort)
	}

	c.JSON(http.StatusCreated, machine)
}

// GetMachine handles GET /beacon/machines/:id
func (h *MachineHandler) GetMachine(c *gin.Context) {
	machine, err := h.machines.GetByID(c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Machine not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to get machine",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, machine)
}

// DeleteMachine handles DELETE /beacon/machines/:id
// Removes the machine, its tunnel tracking, its session cache entry,
// and its stored secret.
func (h *MachineHandler) DeleteMachine(c *gin.Context) {
	machineID := c.Param("id")

	if err := h.machines.Delete(machineID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to delete machine",
			"detail": err.Error(),
		})
		return
	}

	h.tunnels.Untrack(machineID)
	h.vault.MarkLocked(machineID)
	if err := h.vault.Delete(machineID); err != nil && !errors.Is(err, service.ErrUnsupportedPlatform) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Machine deleted, but its stored secret was not",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Machine deleted",
		"id":      machineID,
	})
}

// RunPreflight handles GET /beacon/machines/:id/preflight
func (h *MachineHandler) RunPreflight(c *gin.Context) {
	report := h.preflight.RunAllChecks(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, report)
}

// QuickCheck handles GET /beacon/machines/:id/preflight/quick
func (h *MachineHandler) QuickCheck(c *gin.Context) {
	result := h.preflight.QuickCheck(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, result)
}

// GetKeychainStatus handles GET /beacon/machines/:id/keychain
func (h *MachineHandler) GetKeychainStatus(c *gin.Context) {
	status := h.vault.GetKeychainStatus(c.Request.Context(), c.Param("id"), h.executor)
	c.JSON(http.StatusOK, status)
}

// UnlockKeychain handles POST /beacon/machines/:id/keychain/unlock
func (h *MachineHandler) UnlockKeychain(c *gin.Context) {
	machineID := c.Param("id")

	machine, err := h.machines.GetByID(machineID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Machine not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to get machine",
			"detail": err.Error(),
		})
		return
	}

	result, err := h.vault.UnlockWithVerification(c.Request.Context(), machineID, machine.Name, h.executor)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrNoStoredPassword):
			status = http.StatusPreconditionFailed
		case errors.Is(err, service.ErrAuthenticationFailed):
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{
			"error":    "Failed to unlock keychain",
			"detail":   err.Error(),
			"attempts": result.Attempts,
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// StoreKeychainPassword handles PUT /beacon/machines/:id/keychain
func (h *MachineHandler) StoreKeychainPassword(c *gin.Context) {
	machineID := c.Param("id")

	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid request body",
			"detail": err.Error(),
		})
		return
	}

	if _, err := h.machines.GetByID(machineID); errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Machine not found",
		})
		return
	}

	if err := h.vault.Store(machineID, req.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to store keychain password",
			"detail": err.Error(),
		})
		return
	}

	// A new password invalidates whatever the session believed.
	h.vault.MarkLocked(machineID)

	c.JSON(http.StatusOK, gin.H{
		"message": "Keychain password stored",
		"id":      machineID,
	})
}

// DeleteKeychainPassword handles DELETE /beacon/machines/:id/keychain
func (h *MachineHandler) DeleteKeychainPassword(c *gin.Context) {
	machineID := c.Param("id")

	if err := h.vault.Delete(machineID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to delete keychain password",
			"detail": err.Error(),
		})
		return
	}
	h.vault.MarkLocked(machineID)

	c.JSON(http.StatusOK, gin.H{
		"message": "Keychain password deleted",
		"id":      machineID,
	})
}

package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"beacon/core/models"
	"beacon/core/service"
	"beacon/utils/pathutil"
)

// instanceDirectory is the slice of the persistence layer hook
// resolution needs.
type instanceDirectory interface {
	List() ([]*models.Instance, error)
}

// activityRecorder accepts resolved lifecycle events.
type activityRecorder interface {
	RecordActivity(entityID, event string) error
}

// HookHandler receives lifecycle events from agent hooks. Hooks fire
// from inside agent sessions and identify themselves by instance ID
// when they have one, or by working directory when they do not.
type HookHandler struct {
	instances instanceDirectory
	reconcile activityRecorder
}

// NewHookHandler creates a new hook handler.
func NewHookHandler(instances instanceDirectory, reconcile activityRecorder) *HookHandler {
	return &HookHandler{
		instances: instances,
		reconcile: reconcile,
	}
}

type hookRequest struct {
	InstanceID       string `json:"instance_id"`
	WorkingDirectory string `json:"working_directory"`
	Event            string `json:"event"`
}

// Status handles POST /beacon/hooks/status. The body's event field
// carries "started" or "finished"; anything else is rejected.
func (h *HookHandler) Status(c *gin.Context) {
	var req hookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid request body",
			"detail": err.Error(),
		})
		return
	}

	var event string
	switch req.Event {
	case "", service.HookStarted:
		event = service.HookStarted
	case service.HookFinished:
		event = service.HookFinished
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Unknown status event: " + req.Event,
		})
		return
	}

	h.record(c, req, event)
}

// Notification handles POST /beacon/hooks/notification. The agent is
// waiting for input, so its work is done: treated as finished.
func (h *HookHandler) Notification(c *gin.Context) {
	h.bindAndRecord(c, service.HookFinished)
}

// Stop handles POST /beacon/hooks/stop (agent session ended): treated
// as finished.
func (h *HookHandler) Stop(c *gin.Context) {
	h.bindAndRecord(c, service.HookFinished)
}

func (h *HookHandler) bindAndRecord(c *gin.Context, event string) {
	var req hookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Invalid request body",
			"detail": err.Error(),
		})
		return
	}
	h.record(c, req, event)
}

func (h *HookHandler) record(c *gin.Context, req hookRequest, event string) {
	instanceID := req.InstanceID
	if instanceID == "" {
		instanceID = h.resolveByDirectory(req.WorkingDirectory)
	}

	// A hook from a session nobody is tracking is normal during setup
	// and teardown. Acknowledge it so the hook script does not retry,
	// and keep a trace in the server log.
	if instanceID == "" {
		log.Printf("Hook %s: no instance matches working directory %q", event, req.WorkingDirectory)
		c.JSON(http.StatusAccepted, gin.H{
			"message": "No matching instance",
		})
		return
	}

	if err := h.reconcile.RecordActivity(instanceID, event); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "Failed to record activity",
			"detail": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Recorded",
		"instance": instanceID,
		"event":    event,
	})
}

// resolveByDirectory maps a hook's working directory to a tracked
// instance. Returns "" when nothing matches.
func (h *HookHandler) resolveByDirectory(dir string) string {
	if dir == "" {
		return ""
	}

	instances, err := h.instances.List()
	if err != nil {
		log.Printf("Hook resolution: list instances failed: %v", err)
		return ""
	}

	candidates := make([]string, len(instances))
	for i, inst := range instances {
		candidates[i] = inst.WorkingDirectory
	}

	idx := pathutil.BestMatch(dir, candidates)
	if idx < 0 {
		return ""
	}
	return instances[idx].ID
}

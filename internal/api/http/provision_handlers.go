package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/HomePanel/backend/internal/domain/provision"
)

// ProvisionCreate starts a game server installation
func (h *Handlers) ProvisionCreate(c *gin.Context) {
	var req provision.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	taskID, err := h.provision.Create(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"taskId":  taskID,
		"message": h.provision.StartedMessage(),
	})
}

// ProvisionStatus reports task progress. Unknown IDs are answered with
// phase "unknown", never 404.
func (h *Handlers) ProvisionStatus(c *gin.Context) {
	snap := h.provision.Status(c.Param("taskId"))
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"taskId":    snap.ID,
		"phase":     snap.Phase,
		"progress":  snap.Progress,
		"message":   snap.Message,
		"updatedAt": snap.UpdatedAt,
	})
}

// ProvisionServers lists installed servers
func (h *Handlers) ProvisionServers(c *gin.Context) {
	servers := h.provision.Servers()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"servers": servers,
		"count":   len(servers),
	})
}

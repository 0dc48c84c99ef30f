package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/HomePanel/backend/internal/domain/inventory"
	"github.com/GriffinCanCode/HomePanel/backend/internal/domain/provision"
	"github.com/GriffinCanCode/HomePanel/backend/internal/domain/shell"
	"github.com/GriffinCanCode/HomePanel/backend/internal/domain/task"
)

// ShellService is the session manager as seen by the API
type ShellService interface {
	Connect(ctx context.Context, req shell.ConnectRequest) (*shell.ConnectResult, error)
	Execute(ctx context.Context, sessionID, command string) (*shell.ExecResult, error)
	Disconnect(sessionID string) error
	Status(ctx context.Context, sessionID string) shell.StatusResult
	List() []shell.SessionInfo
	Count() int
}

// ProvisionService is the provisioning runner as seen by the API
type ProvisionService interface {
	Create(ctx context.Context, req provision.Request) (string, error)
	Status(taskID string) task.Snapshot
	Servers() []inventory.Record
	ActiveTasks() int
	StartedMessage() string
}

// Handlers contains all HTTP handlers
type Handlers struct {
	shell     ShellService
	provision ProvisionService
	logger    *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(shellService ShellService, provisionService ProvisionService, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		shell:     shellService,
		provision: provisionService,
		logger:    logger,
	}
}

// Health reports liveness with a few counters
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"status":   "healthy",
		"sessions": h.shell.Count(),
		"tasks":    h.provision.ActiveTasks(),
	})
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, shell.ErrInvalidRequest),
		errors.Is(err, provision.ErrInvalidRequest),
		errors.Is(err, provision.ErrUnknownServerType),
		errors.Is(err, provision.ErrDuplicateName):
		return http.StatusBadRequest
	case errors.Is(err, shell.ErrAuthentication),
		errors.Is(err, shell.ErrNoActiveSession):
		return http.StatusUnauthorized
	case errors.Is(err, shell.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "Invalid request: " + err.Error(),
	})
}

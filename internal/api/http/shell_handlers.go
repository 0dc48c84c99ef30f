package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/HomePanel/backend/internal/domain/shell"
)

type connectRequest struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Secret   string `json:"secret"`
}

type executeRequest struct {
	SessionID string `json:"sessionId"`
	Command   string `json:"command"`
}

type sessionRequest struct {
	SessionID string `json:"sessionId"`
}

// ShellConnect opens a remote shell session
func (h *Handlers) ShellConnect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.shell.Connect(c.Request.Context(), shell.ConnectRequest{
		Host:     req.Host,
		Port:     req.Port,
		Username: req.Username,
		Secret:   req.Secret,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"message":          "Connected",
		"sessionId":        res.SessionID,
		"prompt":           res.Prompt,
		"currentDirectory": res.CurrentDirectory,
	})
}

// ShellExecute runs one command. A timed-out command still returns the
// output collected so far.
func (h *Handlers) ShellExecute(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.shell.Execute(c.Request.Context(), req.SessionID, req.Command)
	if err != nil && res != nil && errors.Is(err, shell.ErrTimeout) {
		c.JSON(http.StatusGatewayTimeout, gin.H{
			"success":          false,
			"error":            err.Error(),
			"output":           res.Output,
			"exitStatus":       res.ExitStatus,
			"prompt":           res.Prompt,
			"currentDirectory": res.CurrentDirectory,
		})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"output":           res.Output,
		"exitStatus":       res.ExitStatus,
		"prompt":           res.Prompt,
		"currentDirectory": res.CurrentDirectory,
	})
}

// ShellDisconnect closes a session. Disconnecting an absent session is
// reported but not treated as an error status.
func (h *Handlers) ShellDisconnect(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.shell.Disconnect(req.SessionID); err != nil {
		if errors.Is(err, shell.ErrNoActiveSession) {
			c.JSON(http.StatusOK, gin.H{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Disconnected",
	})
}

// ShellStatus reports whether a session's transport is alive
func (h *Handlers) ShellStatus(c *gin.Context) {
	st := h.shell.Status(c.Request.Context(), c.Query("sessionId"))
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"connected": st.Connected,
		"host":      st.Host,
		"username":  st.Username,
	})
}

// ShellSessions lists open sessions
func (h *Handlers) ShellSessions(c *gin.Context) {
	sessions := h.shell.List()
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"sessions": sessions,
		"count":    len(sessions),
	})
}

package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the API on router
func RegisterRoutes(router gin.IRouter, h *Handlers) {
	router.GET("/health", h.Health)

	sh := router.Group("/shell")
	{
		sh.POST("/connect", h.ShellConnect)
		sh.POST("/execute", h.ShellExecute)
		sh.POST("/disconnect", h.ShellDisconnect)
		sh.GET("/status", h.ShellStatus)
		sh.GET("/sessions", h.ShellSessions)
	}

	prov := router.Group("/provision")
	{
		prov.POST("/create", h.ProvisionCreate)
		prov.GET("/status/:taskId", h.ProvisionStatus)
		prov.GET("/servers", h.ProvisionServers)
	}
}

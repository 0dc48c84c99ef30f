/*
Package monitoring provides Prometheus metrics for the backend.

# Overview

Each Metrics value owns a private registry, so tests can build as many
servers as they like without duplicate-registration panics.

Tracked:

- HTTP requests (count, latency, response size), labeled by route template
- Shell sessions (open gauge, connect outcomes, command outcomes, execute latency, idle evictions)
- Provisioning tasks (in-flight gauge, terminal phases by server type, wall time)
- Artifact download volume and uptime

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics.RecordShellCommand)
	// ... run command ...
	timer.Stop("ok")
*/
package monitoring

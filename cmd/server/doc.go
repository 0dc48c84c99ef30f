// Package main is the entry point for the HomePanel backend.
//
// The server exposes two services over a JSON API:
//
//	Browser → HomePanel backend → SSH → home machines (interactive shells)
//	                            → local disk (game server installations)
//
// Configuration:
//   - Environment variables (12-factor), see internal/infrastructure/config
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 8000
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown. Open shell sessions are closed
//     and running installations are given SHUTDOWN_TIMEOUT to finish.
package main

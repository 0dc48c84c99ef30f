// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output
//
// Subsystems take a named child logger so every line carries its origin:
//
//	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
//	shellLog := logger.Component("shell")
//	shellLog.Info("Session opened", zap.String("session_id", id))
//
// Secrets (shell passwords) are never passed to a logger.
package logging

// Package middleware provides the HTTP middleware stack for the panel API.
//
// Middleware stack includes:
//   - CORS: cross-origin access for the panel frontend
//   - RateLimit: per-IP token buckets, idle clients dropped after StaleAfter
//   - RequestLogger: one zap line per request, never the body
//
// Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware

// Package server provides the HTTP server for the assessment service,
// using Gin with HTTP/2 (h2c) support.
//
// The server follows the component pattern with lifecycle management,
// health endpoints, and configurable middleware.
//
// # Middleware
//
// Built-in middleware (server/middleware):
//
//   - Recovery: Panic recovery with structured logging
//   - Logging: Request/response logging with duration tracking
//   - CORS: Cross-origin resource sharing configuration
//   - RequestID: Request ID generation and propagation
//   - RateLimit: Sliding-window rate limiting
//   - BodySize: Request body size limits
//
// # Endpoints
//
// Built-in endpoints (server/endpoint):
//
//   - /health: Health check aggregation across components
//   - /health/live: Kubernetes liveness probe
//   - /health/ready: Kubernetes readiness probe
//   - /version: Build version information
//   - /info: Application information
//   - /metrics: Runtime memory and goroutine metrics
package server

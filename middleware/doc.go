// Package middleware adapts goVPS.Engine to net/http.
//
// # Handlers
//
//   - [Guard] authenticates the bearer access token and stores the principal.
//   - [RequireCapability] rejects principals lacking a capability.
//   - [ClientIP] records the caller address and user agent for throttling
//     and audit.
//   - [Logging] and [Recover] log each request and contain panics.
//
// Authentication and authorization decisions are delegated to the engine.
// This package never parses tokens or reads the store itself.
package middleware

// Package middleware provides HTTP middleware for the session API.
//
// CORS admits the browser editor from a foreign origin and exposes the
// headers the archive export needs. RateLimit applies a per-IP token
// bucket with opportunistic cleanup of idle buckets; GlobalRateLimit is
// the single-bucket variant selected by the rate limit scope setting.
//
// The WebSocket endpoint bypasses rate limiting: one long-lived
// connection carries many operations and is bounded by its own queue.
package middleware

// Package http exposes the session API over request/response JSON.
//
// Routes mirror the WebSocket operations one to one so stateless
// tooling (curl, CI scripts) can drive a session without holding a
// socket. Error responses carry the code-bearing envelope; statuses
// map from the error taxonomy.
//
// The preview routes serve mirrored content straight from disk, which
// keeps a session's site reachable through the removal grace period.
package http

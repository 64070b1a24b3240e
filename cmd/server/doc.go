// Package main is the entry point for the DevSession backend server.
//
// The server backs a browser-based development environment: it owns
// sandbox sessions, mirrors their files on disk, runs their processes
// and terminals, and streams everything back over a websocket.
//
// Architecture:
//
//	Editor (browser) → WebSocket /ws → session registry
//	                 → REST API      → files, processes, export
//	                 → GET /preview  → the session's served site
//
// Configuration:
//   - Environment variables (12-factor)
//   - Optional YAML file (-config) overlaying the environment
//   - CLI flags override both
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -workspace /var/lib/devsession
//
//	# Development mode (console logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main

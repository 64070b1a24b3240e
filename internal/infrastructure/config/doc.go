// Package config provides 12-factor configuration management for the backend.
//
// Configuration is loaded from environment variables with sensible defaults.
// An optional YAML file overlays the environment, and CLI flags override
// both for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Workspace: Root directory of the on-disk session mirror
//   - Session: Idle-cleanup grace period
//   - Process: Output history cap, kill grace, default shell
//   - Preview: Preview base URL and synthetic ready delay
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, WORKSPACE_ROOT
//   - SESSION_GRACE_PERIOD, PREVIEW_READY_DELAY, PREVIEW_BASE_URL
//   - PROCESS_OUTPUT_BUFFER, PROCESS_KILL_GRACE, PROCESS_SHELL
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config

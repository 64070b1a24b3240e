/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the backend
service, tracking HTTP requests, session lifecycle, file store operations,
process executions, event broadcasts, and websocket traffic.

# Features

- HTTP request metrics (latency, throughput, size)
- Session lifecycle metrics (active, created, removed, reclaimed)
- File store operation metrics (counts, latency)
- Process metrics (spawned, active, exit outcomes)
- Terminal metrics (opened, active)
- Event hub metrics (broadcasts by type, drops on slow clients)
- WebSocket connection metrics
- System metrics (uptime)

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record custom metrics
	metrics.SetSessionsActive(5)
	metrics.IncProcessesSpawned()

	// Time operations
	timer := monitoring.NewTimer(metrics, "write")
	// ... perform operation ...
	timer.Stop("success")

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring

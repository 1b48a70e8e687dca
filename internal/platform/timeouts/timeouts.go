// Package timeouts defines shared timeout constants used across the service.
// Centralizing these values prevents drift between boundaries and makes the
// durations discoverable.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// Heartbeat sets the keepalive interval for long-lived update streams.
// Idle transport connections are kept open by emitting a no-op frame on
// this cadence independent of event traffic.
const Heartbeat = 10 * time.Second

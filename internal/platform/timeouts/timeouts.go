// Package timeouts defines shared timeout constants for the connect binaries.
package timeouts

import "time"

// HealthProbe caps how long a maintenance probe waits for SERVING.
const HealthProbe = 5 * time.Second

// Sweep bounds a single expired-state sweep against storage.
const Sweep = 30 * time.Second

// Shutdown limits how long the gRPC server waits for in-flight calls
// during graceful shutdown.
const Shutdown = 5 * time.Second

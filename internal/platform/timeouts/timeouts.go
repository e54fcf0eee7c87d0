// Package timeouts defines shared timeout constants used across services.
// Centralizing these values prevents drift between service boundaries and
// makes the durations discoverable.
package timeouts

import "time"

// DirectoryRequest caps the time allowed for a single batched lookup
// against the identity or team directory.
const DirectoryRequest = 2 * time.Second

// StorageStartup bounds the total wait for the SQLite store to become
// reachable during process startup. Exceeding it fails the process.
const StorageStartup = 10 * time.Second

// StorageRequest caps a single store call, including the wait for a free
// connection when the pool is exhausted.
const StorageRequest = 5 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

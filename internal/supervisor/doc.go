// Package supervisor implements the master daemon described by this API's
// launch protocol: it allocates a port, spawns a session process bound to
// it, and learns that process's init outcome over a pipe rather than by
// waiting on the process itself. A dedicated goroutine per session owns the
// eventual Wait() call, so the request-handling path is never blocked by a
// long-lived (or hung) session.
//
// File layout:
//
//	server.go  - the /api/startSimulation and /api/sessions HTTP surface
//	spawn.go   - port allocation, the init handshake, and the reaper goroutine
//	store.go   - the SQLite-backed session-launch audit trail
//	metrics.go - Prometheus instrumentation
package supervisor

// Package memory monitors heap usage against a soft limit (explicit or
// GOMEMLIMIT) and exposes backpressure signals: ShouldThrottle for
// slowing batch work and IsPaused for suspending it entirely. The
// preload cache also reads AvailableGB for its admission heuristic.
package memory

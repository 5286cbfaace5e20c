/*
Package preload implements the image preload cache: it loads image
resources ahead of need, deduplicates concurrent requests, and bounds
its own concurrency and memory footprint.

# Scheduling

Loads are executed by a fixed pool of MaxConcurrent workers pulling
from a priority queue (high > medium > low, FIFO within a tier), so a
large low-priority batch cannot starve an urgent thumbnail. Concurrent
requests for the same URL share a single underlying load and a single
result (single-flight).

# Admission control

Before starting a new network load the cache consults its signal
source: a data-saver preference, a device-memory reading under 1 GB,
or a cache footprint at its configured ceiling each refuse the load.
A refusal is a distinguishable skip result, never an error — a missing
preload must not break the primary flow, so no method of this package
returns an error to its caller; every outcome is encoded in Result.

# Timeouts and cancellation

Each waiter is bounded by LoadTimeout, but the underlying load is not
cancelled when the timeout fires: it runs to completion and may still
populate the cache afterwards, which benefits the next request for the
same URL. Statistics count each underlying load once, whether it is
reported by the worker or by a waiter that gave up first.

# Eviction

Entries past MaxCacheBytes are evicted least-recently-used. Clear
drops everything and resets the statistics.

The cache is an injected dependency, not a process-wide singleton:
construct one in the composition root and hand it to the viewport
orchestrator and anything else that preloads.
*/
package preload

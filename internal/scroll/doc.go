/*
Package scroll implements the infinite-scroll controller: a small state
machine over {idle, loading, error} driven by viewport visibility
transitions of a sentinel element.

The controller is UI-framework agnostic. The host either calls
HandleVisibility directly on every viewport report, or attaches a
VisibilitySource whose subscription delivers reports. Thresholds and
proximity margins belong to the visibility primitive, not to the
controller — it only cares about the Intersecting transition.

Ordering guarantees: at most one fetch is in flight at a time, and
reports arriving while loading are dropped rather than queued; the next
page is only attempted after the current fetch settles. Once
SetHasNextPage(false) is called, nothing fires until Reset.

The attach lifecycle is a resource-lifetime contract: Attach releases
the previous subscription before taking a new one (including
Attach(nil), which only releases), and Detach fully releases
observation on teardown.
*/
package scroll

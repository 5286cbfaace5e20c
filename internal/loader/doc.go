/*
Package loader composes the retry executor and the infinite-scroll
controller over a page-fetch collaborator to deliver an accumulating,
ordered list of items with recoverable failure state.

Pages are requested and appended strictly in increasing page order;
out-of-order completion cannot happen because only one page fetch is in
flight at a time by construction. A failed incremental page never
disturbs the already-accumulated items — the failing page number is
remembered so Retry can re-attempt exactly that page, except for page 1
where a retry is equivalent to a fresh Refresh.

The loader performs no deduplication across pages: if the underlying
data shifts between fetches (an upload reordering albums, say),
duplicate IDs are possible. See DESIGN.md for the reasoning.
*/
package loader

/*
Package viewport turns the host UI's view state into preload work.

The orchestrator holds the current item list and focus index and, on
every NotifyItems or NotifyFocus call, computes a bounded window of
items worth loading ahead of need. Importance decays linearly with
distance from the focus, the focus and its immediate neighbours carry
the user-interaction signal, and an optional small budget of
full-resolution prefetches rides along at reduced importance. The
window is handed to the preload cache's SmartPreload in the
background, so notifying never blocks the UI thread that called it.

Grid mode preloads ahead of the focus (a scrolling album grid only
ever reveals what comes next); viewer mode centers the window on the
focus because the user can step both ways.
*/
package viewport

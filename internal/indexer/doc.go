/*
Package indexer keeps the library in sync with the photo directory.

A full pass walks the tree, probes image dimensions with a bounded
worker pool, groups photos into one album per capture day (file mtime
stands in for EXIF capture date), and upserts everything in batched
transactions with pauses between batches so queries stay responsive.
Photos that disappeared from disk are cleaned up at the end of the
pass.

Between full passes a lightweight poller watches the root directory's
mtime, its top-level entry count, and subdirectory mtimes; any change
triggers a re-index without ever walking the whole tree.
*/
package indexer

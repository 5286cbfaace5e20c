// Package main provides galleryctl, a command line client for a
// running photoflow server. It drives the same incremental-loading
// stack a UI would: the paginated loader with retry for listings, and
// the preload cache with the viewport orchestrator for cache warming.
package main

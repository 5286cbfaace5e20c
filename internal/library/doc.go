// Package library is the SQLite-backed photo library: albums grouped
// by capture date, their photos, and cached index statistics. The
// indexer writes through batch transactions; the API reads through
// paginated queries whose hasNextPage metadata drives incremental
// loading on the client.
package library

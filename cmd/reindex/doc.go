// Package main provides the reindex command line tool for library
// maintenance outside the running server: one-shot indexing, stats,
// and database compaction. It operates directly on the SQLite library,
// so stop the server (or accept WAL contention) before running it
// against a live database.
package main

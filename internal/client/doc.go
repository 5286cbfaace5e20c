// Package client is the Go SDK for the photoflow JSON API. The Client
// maps HTTP failures onto the error kinds the retry layer understands:
// a 404 satisfies errors.Is with library.ErrNotFound and is never
// retried, while 5xx and transport failures mark themselves temporary.
// AlbumFetcher and PhotoFetcher plug directly into a loader for
// incremental, retry-wrapped page accumulation.
package client

// Package media handles image decoding: probing dimensions for the
// indexer and generating cached thumbnails for the API, using libvips
// when available and pure-Go decoders otherwise.
package media

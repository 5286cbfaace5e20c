// Package handlers provides HTTP request handlers for the photo API.
//
// It includes handlers for:
//   - Album listing and paginated photo listing
//   - Original file and thumbnail serving
//   - Health checks, version, and library stats
//   - Triggering background re-indexes
package handlers

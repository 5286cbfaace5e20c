// Package middleware provides the HTTP middleware chain: request
// logging in W3C Extended Log Format, Prometheus request metrics with
// bounded label cardinality, and gzip compression for JSON responses.
package middleware

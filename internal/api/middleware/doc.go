// Package middleware holds the gin middleware shared by every API route:
// CORS, rate limiting, request identifiers and access logging.
package middleware

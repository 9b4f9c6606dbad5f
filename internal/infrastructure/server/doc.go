// Package server wires configuration, the coordination backend, the catalog
// mirror, the catalog store and the renderer into one gin HTTP server.
package server

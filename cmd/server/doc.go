// Package main is the entry point for the package control plane server.
//
// The server keeps the ordered list of package repositories in ZooKeeper and
// renders application definitions from package definitions.
//
// Architecture:
//
//	HTTP client → gin router → repository catalog → ZooKeeper (CAS writes)
//	                                              ↖ mirror (watch)
//	                         → renderer (mustache + JSON schema)
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# ZooKeeper-backed
//	ZK_SERVERS=zk-1:2181,zk-2:2181 ./server -port 7070
//
//	# Local development, in-memory catalog, colored logs
//	./server -backend memory -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main

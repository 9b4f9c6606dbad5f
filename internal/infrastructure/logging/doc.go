// Package logging provides structured logging using uber/zap.
//
// Production mode writes JSON for machine parsing. Development mode writes
// colored console output.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("Server starting", zap.String("port", "8000"))
//	logger.Error("Failed to connect", zap.Error(err))
//
// A *Logger also satisfies Printf-style logger interfaces, which is how the
// ZooKeeper client's connection chatter ends up in the structured log.
package logging

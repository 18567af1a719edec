// Package api implements the admin HTTP API of the agent.
//
// It is a small read-only status surface, separate from the local
// execution endpoint that controllers talk to:
//
//	GET /api/v1/health           liveness and version
//	GET /api/v1/metrics          runtime, MQTT and database statistics
//	GET /api/v1/local-execution  identity, listener state and registered devices
//	GET /api/v1/audit            paginated command audit trail
//
// Errors use the {status, code, message} JSON envelope. The server binds
// the configured host and port (default 127.0.0.1:8080) and carries no
// authentication.
package api

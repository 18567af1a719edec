// Package logging provides structured logging for NORA local.
//
// This package wraps Go's standard log/slog package so every component
// logs the same way: JSON in production, text for development, with the
// service name and version on every entry.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	lexLog := logger.Component("localexec")
//	lexLog.Info("listeners started", "command_port", 6987)
//
// Never log secrets such as the MQTT password or InfluxDB token.
package logging

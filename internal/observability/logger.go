// Package observability provides logger construction for the CLI and server.
package observability

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the shared logger for command execution. It is initialized
// to a no-op logger so packages can log safely before InitCLILogger runs.
var CLILogger = zap.NewNop()

// InitCLILogger configures the shared CLI logger. Level is one of
// debug, info, warn, error (or "test", which suppresses output below
// error to keep test logs quiet). When jsonOutput is true, log records
// are emitted as JSON instead of the console format.
func InitCLILogger(level string, jsonOutput bool) {
	CLILogger = newLogger(level, jsonOutput)
}

// NewComponentLogger returns a named child of the CLI logger for a
// long-lived subsystem like the poll scheduler or the HTTP server.
func NewComponentLogger(component string) *zap.Logger {
	return CLILogger.Named(component)
}

func newLogger(level string, jsonOutput bool) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if jsonOutput {
		enc = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), parseLevel(level))
	return zap.New(core)
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error", "test":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Package observability constructs the process loggers.
//
// Two named loggers are exposed: CLILogger for operator-facing command
// output (console encoder, stderr) and RunLogger for the structured log of
// a batch in flight (JSON encoder). Both honor the configured level. They
// default to no-ops so library consumers and tests that never call Init
// stay quiet.
package observability

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the operator-facing logger used by commands.
var CLILogger = zap.NewNop()

// RunLogger is the structured logger threaded through batch runs.
var RunLogger = zap.NewNop()

// Init builds the package loggers. Level is a zap level name (debug,
// info, warn, error); format is "console" or "json" and selects the
// CLILogger encoder. RunLogger is always JSON.
func Init(level, format string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	jsonCfg := zap.NewProductionEncoderConfig()
	jsonCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cliEncoder zapcore.Encoder
	switch format {
	case "", "console":
		cliEncoder = zapcore.NewConsoleEncoder(consoleCfg)
	case "json":
		cliEncoder = zapcore.NewJSONEncoder(jsonCfg)
	default:
		return fmt.Errorf("invalid log format %q: want console or json", format)
	}

	stderr := zapcore.Lock(os.Stderr)
	CLILogger = zap.New(zapcore.NewCore(cliEncoder, stderr, lvl))
	RunLogger = zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(jsonCfg), stderr, lvl))
	return nil
}

// Sync flushes both loggers. Safe to call on no-op loggers.
func Sync() {
	_ = CLILogger.Sync()
	_ = RunLogger.Sync()
}

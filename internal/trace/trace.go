// Package trace implements the ASYNC_TRACE diagnostic toggle: when set,
// workers emit one debug log line per stage (dial on connect; route, exec,
// deflate, complete per dispatched job) in addition to their normal
// operational logging.
package trace

import (
	"log/slog"
	"os"
)

const envVar = "ASYNC_TRACE"

// Enabled reports whether ASYNC_TRACE is set to a truthy value.
func Enabled() bool {
	v := os.Getenv(envVar)

	return v != "" && v != "0" && v != "false"
}

// Stage logs one dispatch-stage event at debug level when tracing is
// enabled. args follows slog's alternating key/value convention.
func Stage(logger *slog.Logger, stage string, args ...any) {
	if !Enabled() || logger == nil {
		return
	}

	logger.Debug("trace: "+stage, args...)
}

package logging

import (
	"fmt"
	"time"
)

// DebugStart logs the start of an operation and returns a function that logs
// its outcome with duration. Backend calls are wrapped with it.
func DebugStart(logger *Logger, operation string, format string, args ...interface{}) func(error) {
	if logger == nil {
		return func(error) {}
	}

	detail := ""
	if format != "" {
		detail = fmt.Sprintf(format, args...)
	}
	if detail != "" {
		logger.Debug("Start %s: %s", operation, detail)
	} else {
		logger.Debug("Start %s", operation)
	}

	started := time.Now()
	return func(err error) {
		elapsed := time.Since(started).Round(time.Millisecond)
		if err != nil {
			logger.Debug("End %s (error=%v, duration=%s)", operation, err, elapsed)
			return
		}
		logger.Debug("End %s (ok, duration=%s)", operation, elapsed)
	}
}

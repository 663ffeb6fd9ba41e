// Package async runs fire-and-forget background work with panic containment.
package async

import "runtime/debug"

// Logger is the minimal surface for reporting a crashed goroutine.
type Logger interface {
	Error(format string, args ...any)
}

// Go runs fn on its own goroutine. A panic in fn is logged with its stack
// under the given job name instead of taking the process down; a nil logger
// silently discards the report.
func Go(logger Logger, name string, fn func()) {
	go func() {
		defer func() {
			r := recover()
			if r == nil || logger == nil {
				return
			}
			logger.Error("background job %s panicked: %v\n%s", name, r, debug.Stack())
		}()
		fn()
	}()
}

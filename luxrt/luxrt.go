// Package luxrt adapts the panic-safe goroutine launcher every long-running
// subsystem uses to start background work.
package luxrt

import (
	"fmt"
	"runtime/debug"

	"github.com/paulwrubel/luxide/logx"
)

var crashLog = logx.Subsystem("crash")

// Go runs fn in a new goroutine, recovering and logging any panic instead of
// letting it take down the process. Used for long-lived loops (the
// scheduler's control loop, the progress collector) that must keep the
// server alive even if one iteration misbehaves.
func Go(fn func()) {
	go func() {
		defer recoverAndLog()
		fn()
	}()
}

// Safe runs fn and converts a panic into an error rather than crashing the
// goroutine silently. A tracer tile worker wraps its work this way so a
// panicking tile surfaces as an errgroup error instead of leaving the
// render stuck with no diagnostic.
func Safe(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(r)
			err = fmt.Errorf("luxrt: recovered panic: %v", r)
		}
	}()
	return fn()
}

func recoverAndLog() {
	if r := recover(); r != nil {
		logPanic(r)
	}
}

func logPanic(r any) {
	crashLog.Printf("recovered panic: %v\n%s", r, debug.Stack())
}

// Package logx is a thin subsystem-tagged wrapper over the standard
// library logger, writing to os.Stderr.
package logx

import (
	"fmt"
	"log"
	"os"
)

var std = log.New(os.Stderr, "", log.LstdFlags)

// Subsystem is a short tag (e.g. "manager", "httpapi", "crash")
// prefixed to every line it logs.
type Subsystem string

func (s Subsystem) Printf(format string, args ...any) {
	std.Printf("[%s] %s", s, fmt.Sprintf(format, args...))
}

func (s Subsystem) Println(args ...any) {
	std.Println(append([]any{"[" + string(s) + "]"}, args...)...)
}

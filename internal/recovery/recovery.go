// internal/recovery/recovery.go
package recovery

import (
	"fmt"
	"os"
	"runtime/debug"

	"go.uber.org/zap"
)

// exit is replaced in tests.
var exit = os.Exit

// HandlePanic should be deferred at the top of main() or goroutines.
// It reports the panic and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		report(r)
		exit(1)
	}
}

// HandlePanicFunc reports the panic, calls cleanup and exits with code 1.
// The keyer's dispatcher uses it to release the audio device.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		report(r)
		if cleanup != nil {
			cleanup()
		}
		exit(1)
	}
}

// report writes the panic to stderr and to the global logger, which the
// root command points at the log file.
func report(r any) {
	stack := debug.Stack()
	_, _ = fmt.Fprintf(os.Stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, stack)
	logger := zap.L()
	logger.Error("panic", zap.Any("value", r), zap.ByteString("stack", stack))
	_ = logger.Sync()
}

package core

import (
	"fmt"
	"os"
	"runtime/debug"
	"sync"

	"github.com/lixenwraith/csf-player/terminal"
)

var (
	crashMu      sync.Mutex
	crashCleanup func()
)

// SetCrashCleanup registers the terminal teardown run before a crash report
func SetCrashCleanup(fn func()) {
	crashMu.Lock()
	crashCleanup = fn
	crashMu.Unlock()
}

// restoreTerminal runs the registered cleanup, falling back to raw reset sequences
func restoreTerminal() {
	crashMu.Lock()
	fn := crashCleanup
	crashMu.Unlock()

	if fn != nil {
		fn()
		return
	}
	terminal.EmergencyReset(os.Stdout)
}

// HandleCrash is the unified panic handler that resets the terminal and prints the stack trace
func HandleCrash(r any) {
	if r == nil {
		return
	}

	restoreTerminal()

	fmt.Fprintf(os.Stderr, "\n\x1b[31mCSF-PLAYER CRASHED: %v\x1b[0m\n", r)
	fmt.Fprintf(os.Stderr, "Stack Trace:\n%s\n", debug.Stack())

	os.Exit(1)
}

package interp

import "os"

// WatchSignals drains sigc and marks the shell interrupted on Ctrl-C
// or SIGTERM, which execStmts checks between statements (spec.md §5):
// an embedding CLI is expected to run this in its own goroutine for
// the lifetime of the process.
func (sh *Shell) WatchSignals(sigc <-chan os.Signal) {
	for range sigc {
		sh.interrupted = true
	}
}

// ClearInterrupt resets the interrupted flag once a new top-level
// command begins, so one Ctrl-C doesn't abort every future command.
func (sh *Shell) ClearInterrupt() { sh.interrupted = false }

//go:build unix

package interp

import (
	"bufio"
	"strings"
	"testing"

	"github.com/creack/pty"

	"github.com/posixsh/posh/syntax"
)

// TestRunStdoutOverPty drives a script's stdout through a real
// pseudo-terminal rather than a plain pipe, the way an interactive
// goshell session's output is wired. A pty's line discipline rewrites
// a bare "\n" to "\r\n", so this exercises actual terminal I/O rather
// than just an in-memory buffer.
func TestRunStdoutOverPty(t *testing.T) {
	primary, secondary, err := pty.Open()
	if err != nil {
		t.Skipf("pty.Open: %v (no pty available in this sandbox)", err)
	}
	defer primary.Close()
	defer secondary.Close()

	sh, err := New(strings.NewReader(""), secondary, secondary, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	prog, err := syntax.Parse("test", "echo one; echo two\n")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, runErr := sh.Run(prog)
		done <- runErr
	}()

	br := bufio.NewReader(primary)
	line1, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if line1 != "one\r\n" {
		t.Errorf("first line = %q, want %q", line1, "one\r\n")
	}
	line2, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if line2 != "two\r\n" {
		t.Errorf("second line = %q, want %q", line2, "two\r\n")
	}

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

// TestBackgroundJobRunsConcurrently exercises the goroutine-based job
// model (job.go, DESIGN.md's "job control is in-process" decision):
// backgrounding a command must not block the statement after it.
func TestBackgroundJobRunsConcurrently(t *testing.T) {
	status, out := runWithStdin(t, "", "sleep 0.2 & echo foreground\nwait\necho done\n")
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	if out != "foreground\ndone\n" {
		t.Errorf("stdout = %q, want %q", out, "foreground\ndone\n")
	}
}

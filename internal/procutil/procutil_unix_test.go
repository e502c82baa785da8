//go:build unix

package procutil

import (
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/creack/pty"
)

func TestPrepareGroupAndKillGroup(t *testing.T) {
	cmd := exec.Command("sleep", "5")
	PrepareGroup(cmd)
	if err := cmd.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pgid := cmd.Process.Pid

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	if err := KillGroup(pgid); err != nil {
		t.Fatalf("KillGroup: %v", err)
	}

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected the killed process to report an error, got nil")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("process did not exit after KillGroup")
	}
}

func TestDecodeSignaled(t *testing.T) {
	cmd := exec.Command("sleep", "5")
	PrepareGroup(cmd)
	if err := cmd.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	pid := cmd.Process.Pid
	if err := InterruptGroup(pid); err != nil {
		t.Fatalf("InterruptGroup: %v", err)
	}
	err := cmd.Wait()
	if err == nil {
		t.Fatal("expected an error from an interrupted process")
	}
	ee, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("got %T, want *exec.ExitError", err)
	}
	ws, ok := ee.Sys().(syscall.WaitStatus)
	if !ok {
		t.Fatalf("got %T, want syscall.WaitStatus", ee.Sys())
	}
	decoded := Decode(ws)
	if !decoded.Signaled || decoded.Signal != syscall.SIGINT {
		t.Errorf("Decode() = %+v, want Signaled SIGINT", decoded)
	}
	if decoded.ExitCode != 128+int(syscall.SIGINT) {
		t.Errorf("ExitCode = %d, want %d", decoded.ExitCode, 128+int(syscall.SIGINT))
	}
}

func TestIsInteractiveTerminalPty(t *testing.T) {
	primary, secondary, err := pty.Open()
	if err != nil {
		t.Skipf("pty.Open: %v (no pty available in this sandbox)", err)
	}
	defer primary.Close()
	defer secondary.Close()

	if !IsInteractiveTerminal(int(secondary.Fd())) {
		t.Error("IsInteractiveTerminal(pty) = false, want true")
	}
}

func TestIsInteractiveTerminalPipe(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	if IsInteractiveTerminal(int(r.Fd())) {
		t.Error("IsInteractiveTerminal(pipe) = true, want false")
	}
}

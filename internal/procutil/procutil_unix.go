//go:build unix

// Package procutil wraps the process-group and terminal primitives
// spec.md §5's job-control model rests on: every background pipeline
// gets its own process group so Ctrl-C and SIGTSTP delivered to the
// foreground group never reach backgrounded work, and fg/bg can hand
// the controlling terminal back and forth.
package procutil

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// PrepareGroup marks cmd to start in a new process group so it can be
// signalled as a unit (spec.md §3's Job.pgid), mirroring the teacher's
// interp/handler_unix.go.
func PrepareGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// SignalGroup delivers sig to every process in pgid's group.
func SignalGroup(pgid int, sig syscall.Signal) error {
	return syscall.Kill(-pgid, sig)
}

// InterruptGroup sends SIGINT to the whole process group, the signal a
// foreground Ctrl-C delivers (spec.md §5).
func InterruptGroup(pgid int) error { return SignalGroup(pgid, syscall.SIGINT) }

// KillGroup sends SIGKILL to the whole process group.
func KillGroup(pgid int) error { return SignalGroup(pgid, syscall.SIGKILL) }

// StopGroup sends SIGTSTP, the signal that moves a foreground job to
// the Stopped state spec.md §3's Job lifecycle names.
func StopGroup(pgid int) error { return SignalGroup(pgid, syscall.SIGTSTP) }

// ContinueGroup sends SIGCONT, resuming a stopped job for fg/bg.
func ContinueGroup(pgid int) error { return SignalGroup(pgid, syscall.SIGCONT) }

// WaitStatus decodes a *os.ProcessState's raw status into the
// information spec.md's 128+N exit-status rule needs: whether the
// process was signalled, and which signal.
type WaitStatus struct {
	ExitCode int
	Signaled bool
	Signal   syscall.Signal
}

// Decode extracts WaitStatus from a syscall.WaitStatus as reported
// through a completed exec.Cmd.
func Decode(ws syscall.WaitStatus) WaitStatus {
	switch {
	case ws.Signaled():
		return WaitStatus{ExitCode: 128 + int(ws.Signal()), Signaled: true, Signal: ws.Signal()}
	default:
		return WaitStatus{ExitCode: ws.ExitStatus()}
	}
}

// IsInteractiveTerminal reports whether fd is attached to a terminal,
// the check spec.md §3 uses to decide whether job-control signals and
// prompts are meaningful at all.
func IsInteractiveTerminal(fd int) bool {
	return term.IsTerminal(fd)
}

// ForegroundPgid reports the process group currently holding the
// controlling terminal on fd, used by fg/bg to validate a job is
// actually eligible to be foregrounded.
func ForegroundPgid(fd int) (int, error) {
	return unix.IoctlGetInt(fd, unix.TIOCGPGRP)
}

// SetForegroundPgid hands the controlling terminal to pgid, the
// mechanism `fg` uses to resume a job in the foreground.
func SetForegroundPgid(fd, pgid int) error {
	return unix.IoctlSetPointerInt(fd, unix.TIOCSPGRP, pgid)
}

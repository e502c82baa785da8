//go:build windows

package procutil

import (
	"os"
	"os/exec"
	"syscall"
)

func PrepareGroup(cmd *exec.Cmd) {}

func SignalGroup(pgid int, sig syscall.Signal) error { return nil }

func InterruptGroup(pgid int) error { return nil }
func KillGroup(pgid int) error      { return nil }
func StopGroup(pgid int) error      { return nil }
func ContinueGroup(pgid int) error  { return nil }

type WaitStatus struct {
	ExitCode int
	Signaled bool
	Signal   syscall.Signal
}

func Decode(ws syscall.WaitStatus) WaitStatus {
	return WaitStatus{ExitCode: int(ws)}
}

func IsInteractiveTerminal(fd int) bool { return false }

func ForegroundPgid(fd int) (int, error) { return 0, os.ErrInvalid }

func SetForegroundPgid(fd, pgid int) error { return os.ErrInvalid }

//go:build !windows

package supervisor

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"minerlink/pkg/privilege"
)

type platformStrategy struct{}

func (platformStrategy) Detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}

func (platformStrategy) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err != nil && err != unix.EPERM {
		return false
	}
	return !zombie(pid)
}

func (platformStrategy) Terminate(pid int) error {
	return signal(pid, unix.SIGTERM)
}

func (platformStrategy) Kill(pid int) error {
	return signal(pid, unix.SIGKILL)
}

func signal(pid int, sig unix.Signal) error {
	err := unix.Kill(pid, sig)
	switch err {
	case nil, unix.ESRCH:
		return nil
	case unix.EPERM:
		return privilege.FromErrno(&os.SyscallError{Syscall: "kill", Err: err})
	}
	return err
}

// zombie reports an exited but unreaped process; /proc is absent off Linux.
func zombie(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	i := bytes.LastIndexByte(data, ')')
	if i < 0 || i+2 >= len(data) {
		return false
	}
	return data[i+2] == 'Z'
}

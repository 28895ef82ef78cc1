//go:build windows

package supervisor

import (
	"os/exec"
	"strconv"
	"syscall"

	"github.com/juju/errors"
	"golang.org/x/sys/windows"

	"minerlink/pkg/privilege"
)

const stillActive = 259

type platformStrategy struct{}

func (platformStrategy) Detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.DETACHED_PROCESS | windows.CREATE_NEW_PROCESS_GROUP,
		HideWindow:    true,
	}
}

func (platformStrategy) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		// Access denied still means the process exists.
		return err == windows.ERROR_ACCESS_DENIED
	}
	defer windows.CloseHandle(h)
	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == stillActive
}

// Terminate uses taskkill without /F, which posts WM_CLOSE to the process.
func (platformStrategy) Terminate(pid int) error {
	out, err := exec.Command("taskkill", "/PID", strconv.Itoa(pid)).CombinedOutput()
	if err != nil {
		return errors.Annotatef(err, "taskkill: %s", out)
	}
	return nil
}

func (platformStrategy) Kill(pid int) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		if err == windows.ERROR_INVALID_PARAMETER {
			return nil
		}
		if err == windows.ERROR_ACCESS_DENIED {
			return errors.Annotate(privilege.ErrPrivilegeRequired, err.Error())
		}
		return errors.Trace(err)
	}
	defer windows.CloseHandle(h)
	return errors.Trace(windows.TerminateProcess(h, 1))
}

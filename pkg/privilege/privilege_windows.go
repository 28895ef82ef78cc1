//go:build windows

package privilege

import (
	"os"
	"strings"
	"syscall"

	"github.com/juju/errors"
	"golang.org/x/sys/windows"
)

func isPrivileged() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

// relaunch asks UAC for consent via ShellExecute "runas". The elevated copy
// runs in its own console, so only the launch result is known here.
func relaunch(exe string, args []string) (int, error) {
	if err := os.Setenv(ElevatedEnv, "1"); err != nil {
		return 1, errors.Trace(err)
	}
	verb, _ := syscall.UTF16PtrFromString("runas")
	file, _ := syscall.UTF16PtrFromString(exe)
	params, _ := syscall.UTF16PtrFromString(quoteArgs(args))
	cwd, _ := os.Getwd()
	dir, _ := syscall.UTF16PtrFromString(cwd)
	if err := windows.ShellExecute(0, verb, file, params, dir, windows.SW_NORMAL); err != nil {
		return 1, errors.Annotate(ErrPrivilegeRequired, err.Error())
	}
	return 0, nil
}

func quoteArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = windows.EscapeArg(a)
	}
	return strings.Join(quoted, " ")
}

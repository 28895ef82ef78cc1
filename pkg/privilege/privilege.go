// Package privilege detects whether the process may perform privileged
// operations and relaunches the current command elevated, at most once.
package privilege

import (
	"os"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("minerlink.privilege")

// ErrPrivilegeRequired is returned by operations that need root or an
// elevated Windows token.
const ErrPrivilegeRequired = errors.ConstError("elevated privileges required")

// ElevatedEnv marks a process that was started through Relaunch.
const ElevatedEnv = "MINERLINK_ELEVATED"

// Elevated reports whether this process is already the elevated relaunch.
func Elevated() bool {
	return os.Getenv(ElevatedEnv) == "1"
}

// IsPrivileged reports whether the current process holds administrative rights.
func IsPrivileged() bool {
	return isPrivileged()
}

// Require returns ErrPrivilegeRequired when the process is not privileged.
func Require(op string) error {
	if isPrivileged() {
		return nil
	}
	return errors.Annotate(ErrPrivilegeRequired, op)
}

// Relaunch re-runs the current executable with args through the platform
// elevation mechanism and returns its exit code. It refuses to run from a
// process that is itself an elevated relaunch.
func Relaunch(args []string) (int, error) {
	if Elevated() {
		return 1, errors.Annotate(ErrPrivilegeRequired, "still not permitted after elevation")
	}
	exe, err := os.Executable()
	if err != nil {
		return 1, errors.Annotate(err, "locating executable")
	}
	logger.Infof("re-running with elevated privileges: %s %v", exe, args)
	return relaunch(exe, args)
}

// FromErrno maps permission failures from signals or syscalls onto
// ErrPrivilegeRequired and returns other errors unchanged.
func FromErrno(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, os.ErrPermission) {
		return errors.Annotate(ErrPrivilegeRequired, err.Error())
	}
	return err
}

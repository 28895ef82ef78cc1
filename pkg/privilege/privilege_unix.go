//go:build !windows

package privilege

import (
	"os"
	"os/exec"

	"github.com/juju/errors"
)

func isPrivileged() bool {
	return os.Geteuid() == 0
}

func relaunch(exe string, args []string) (int, error) {
	sudo, err := exec.LookPath("sudo")
	if err != nil {
		return 1, errors.Annotate(ErrPrivilegeRequired, "sudo not available")
	}
	cmdArgs := append([]string{"--preserve-env", exe}, args...)
	cmd := exec.Command(sudo, cmdArgs...)
	cmd.Env = append(os.Environ(), ElevatedEnv+"=1")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return 1, errors.Annotate(err, "running sudo")
	}
	return 0, nil
}

package main

import (
	"fmt"
	"os"

	"github.com/juju/errors"

	"minerlink/pkg/heartbeat"
	"minerlink/pkg/privilege"
	"minerlink/pkg/provision"
	"minerlink/pkg/supervisor"
	"minerlink/pkg/tunnel"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	err := Execute()
	if err == nil {
		return 0
	}
	if errors.Is(err, privilege.ErrPrivilegeRequired) && !privilege.Elevated() {
		fmt.Fprintln(os.Stderr, Warning.Render("elevated privileges required, re-running with elevation"))
		code, rerr := privilege.Relaunch(args)
		if rerr == nil {
			return code
		}
		err = rerr
	}
	fmt.Fprintln(os.Stderr, ErrorText.Render("error: ")+err.Error())
	if hint := remediation(err); hint != "" {
		fmt.Fprintln(os.Stderr, DimText.Render("hint: "+hint))
	}
	return 1
}

func remediation(err error) string {
	switch {
	case errors.Is(err, provision.ErrMissingCredential):
		return "set SSH_PASSWORD in your environment or in the .env file of the project root"
	case errors.Is(err, privilege.ErrPrivilegeRequired):
		return "run the command as root (sudo) or from an elevated prompt"
	case errors.Is(err, provision.ErrServiceUnavailable):
		return "install openssh-server and check that sshd can start, see " + cfg.LogDir
	case errors.Is(err, supervisor.ErrAlreadyRunning):
		return "use `minerlink restart` or stop the unit first"
	case errors.Is(err, tunnel.ErrTunnelTimeout):
		return "check NGROK_AUTH_TOKEN and " + cfg.LogDir + "/tunnel_stderr.log"
	case errors.Is(err, heartbeat.ErrNotRegistered):
		return "run `minerlink register` first"
	}
	return ""
}

package provision

import (
	"bytes"
	"fmt"
	"os"

	"github.com/juju/errors"

	"minerlink/pkg/fsutil"
)

const (
	linuxSSHDConfig   = "/etc/ssh/sshd_config"
	windowsSSHDConfig = `C:\ProgramData\ssh\sshd_config`
)

func sftpServer(goos string) string {
	switch goos {
	case "windows":
		return "sftp-server.exe"
	case "darwin":
		return "/usr/libexec/sftp-server"
	}
	return "/usr/lib/openssh/sftp-server"
}

// renderSSHDConfig returns the managed sshd configuration for port.
func renderSSHDConfig(goos string, port uint16) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Managed by minerlink. Local edits are overwritten.\n")
	fmt.Fprintf(&b, "Port %d\n", port)
	fmt.Fprintf(&b, "PermitRootLogin yes\n")
	fmt.Fprintf(&b, "AuthorizedKeysFile .ssh/authorized_keys\n")
	fmt.Fprintf(&b, "PasswordAuthentication yes\n")
	fmt.Fprintf(&b, "PermitEmptyPasswords no\n")
	fmt.Fprintf(&b, "ChallengeResponseAuthentication no\n")
	if goos != "windows" {
		fmt.Fprintf(&b, "UsePAM yes\n")
	}
	fmt.Fprintf(&b, "Subsystem sftp %s\n", sftpServer(goos))
	return b.Bytes()
}

// writeSSHDConfig installs the managed config and reports whether the file
// content changed.
func writeSSHDConfig(path string, content []byte) (bool, error) {
	current, err := os.ReadFile(path)
	if err == nil && bytes.Equal(current, content) {
		return false, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, errors.Annotatef(err, "reading %s", path)
	}
	if err := fsutil.WriteFileAtomic(path, content, 0o644); err != nil {
		return false, errors.Annotate(err, "writing sshd config")
	}
	logger.Infof("wrote %s", path)
	return true, nil
}

// Package provision makes the local SSH server reachable with the
// configured password: package install, sshd configuration, service
// start and boot enablement, account password and firewall opening.
package provision

import (
	"context"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	"minerlink/pkg/privilege"
)

var logger = loggo.GetLogger("minerlink.provision")

const (
	// ErrMissingCredential means SSH_PASSWORD is not configured.
	ErrMissingCredential = errors.ConstError("SSH_PASSWORD is not set")
	// ErrServiceUnavailable means no service-management tier could start sshd.
	ErrServiceUnavailable = errors.ConstError("ssh service could not be started")
)

// Config holds the inputs of provisioning. Empty paths select platform defaults.
type Config struct {
	Password       string
	VerifyLogin    bool
	SSHDConfigPath string
	RCLocalPath    string
	PrivSepDir     string
}

type Provisioner struct {
	cfg    Config
	runner Runner
	goos   string

	privileged     func() bool
	lookupUser     func() (name, home string, err error)
	systemdRunning func() bool
	newDBus        DBusAPIFactory
	verify         func(ctx context.Context, port uint16, username, password string) error
}

// New returns a Provisioner for the running platform.
func New(cfg Config, runner Runner) *Provisioner {
	if runner == nil {
		runner = ExecRunner{}
	}
	p := &Provisioner{
		cfg:            cfg,
		runner:         runner,
		goos:           runtime.GOOS,
		privileged:     privilege.IsPrivileged,
		lookupUser:     loginUser,
		systemdRunning: systemdRunning,
		newDBus:        NewDBusAPI,
		verify:         verifyLogin,
	}
	p.applyDefaults()
	return p
}

func (p *Provisioner) applyDefaults() {
	if p.cfg.SSHDConfigPath == "" {
		p.cfg.SSHDConfigPath = linuxSSHDConfig
		if p.goos == "windows" {
			p.cfg.SSHDConfigPath = windowsSSHDConfig
		}
	}
	if p.cfg.RCLocalPath == "" {
		p.cfg.RCLocalPath = "/etc/rc.local"
	}
	if p.cfg.PrivSepDir == "" {
		p.cfg.PrivSepDir = "/run/sshd"
	}
}

// CheckCredential fails with ErrMissingCredential for an empty password.
func CheckCredential(password string) error {
	if password == "" {
		return errors.Trace(ErrMissingCredential)
	}
	return nil
}

// Provision ensures an SSH server listens on port and accepts the
// configured password for the login user, returning the credentials. It is
// idempotent: repeating it with unchanged inputs changes nothing.
func (p *Provisioner) Provision(ctx context.Context, port uint16) (string, string, error) {
	if err := CheckCredential(p.cfg.Password); err != nil {
		return "", "", err
	}
	if !p.privileged() {
		return "", "", errors.Annotate(privilege.ErrPrivilegeRequired, "configuring the ssh server")
	}
	username, home, err := p.lookupUser()
	if err != nil {
		return "", "", errors.Annotate(err, "resolving login user")
	}

	switch p.goos {
	case "linux":
		err = p.provisionLinux(ctx, port, username, home)
	case "windows":
		err = p.provisionWindows(ctx, port, username)
	case "darwin":
		err = p.provisionDarwin(ctx, port, username, home)
	default:
		err = errors.NotSupportedf("ssh provisioning on %s", p.goos)
	}
	if err != nil {
		return "", "", errors.Trace(err)
	}

	if err := p.openFirewall(ctx, port); err != nil {
		logger.Warningf("firewall not updated for port %d: %v", port, err)
	}
	if p.cfg.VerifyLogin && p.verify != nil {
		if err := p.verify(ctx, port, username, p.cfg.Password); err != nil {
			logger.Warningf("ssh login check failed: %v", err)
		} else {
			logger.Infof("ssh login verified for %s on port %d", username, port)
		}
	}
	return username, p.cfg.Password, nil
}

func (p *Provisioner) provisionLinux(ctx context.Context, port uint16, username, home string) error {
	if err := p.ensurePackage(ctx); err != nil {
		return errors.Trace(err)
	}
	changed, err := writeSSHDConfig(p.cfg.SSHDConfigPath, renderSSHDConfig(p.goos, port))
	if err != nil {
		return errors.Trace(err)
	}
	if err := p.ensureService(ctx, changed); err != nil {
		return errors.Trace(err)
	}
	if _, err := p.runner.Run(ctx, username+":"+p.cfg.Password+"\n", "chpasswd"); err != nil {
		return errors.Annotatef(err, "setting password for %s", username)
	}
	return errors.Trace(ensureSSHDir(home, username))
}

// ensurePackage installs openssh-server through apt, refreshing the package
// index once when the first install fails.
func (p *Provisioner) ensurePackage(ctx context.Context) error {
	if _, err := p.runner.LookPath("dpkg"); err != nil {
		if _, err := os.Stat("/usr/sbin/sshd"); err == nil {
			return nil
		}
		return errors.Annotate(ErrServiceUnavailable, "openssh-server missing and no dpkg to install it")
	}
	if _, err := p.runner.Run(ctx, "", "dpkg", "-s", "openssh-server"); err == nil {
		return nil
	}
	logger.Infof("installing openssh-server")
	_, err := p.runner.Run(ctx, "", "apt-get", "install", "-y", "openssh-server")
	if err == nil {
		return nil
	}
	logger.Warningf("install failed, refreshing package index: %v", err)
	if _, err := p.runner.Run(ctx, "", "apt-get", "update"); err != nil {
		return errors.Annotate(err, "apt-get update")
	}
	if _, err := p.runner.Run(ctx, "", "apt-get", "install", "-y", "openssh-server"); err != nil {
		return errors.Annotate(err, "installing openssh-server")
	}
	return nil
}

func (p *Provisioner) provisionWindows(ctx context.Context, port uint16, username string) error {
	install := `Get-WindowsCapability -Online -Name OpenSSH.Server* | Where-Object State -ne 'Installed' | Add-WindowsCapability -Online`
	if _, err := p.powershell(ctx, install); err != nil {
		return errors.Annotate(err, "installing OpenSSH server")
	}
	changed, err := writeSSHDConfig(p.cfg.SSHDConfigPath, renderSSHDConfig(p.goos, port))
	if err != nil {
		return errors.Trace(err)
	}
	verb := "Start-Service"
	if changed {
		verb = "Restart-Service"
	}
	if _, err := p.powershell(ctx, verb+" sshd"); err != nil {
		return errors.Annotate(ErrServiceUnavailable, err.Error())
	}
	if _, err := p.powershell(ctx, "Set-Service -Name sshd -StartupType Automatic"); err != nil {
		logger.Warningf("sshd not enabled at boot: %v", err)
	}
	if _, err := p.runner.Run(ctx, "", "net", "user", username, p.cfg.Password); err != nil {
		return errors.Annotatef(err, "setting password for %s", username)
	}
	return nil
}

func (p *Provisioner) provisionDarwin(ctx context.Context, port uint16, username, home string) error {
	changed, err := writeSSHDConfig(p.cfg.SSHDConfigPath, renderSSHDConfig(p.goos, port))
	if err != nil {
		return errors.Trace(err)
	}
	if _, err := p.runner.Run(ctx, "", "systemsetup", "-setremotelogin", "on"); err != nil {
		return errors.Annotate(ErrServiceUnavailable, err.Error())
	}
	if changed {
		if _, err := p.runner.Run(ctx, "", "launchctl", "kickstart", "-k", "system/com.openssh.sshd"); err != nil {
			logger.Warningf("sshd not restarted: %v", err)
		}
	}
	if _, err := p.runner.Run(ctx, "", "dscl", ".", "-passwd", "/Users/"+username, p.cfg.Password); err != nil {
		return errors.Annotatef(err, "setting password for %s", username)
	}
	return errors.Trace(ensureSSHDir(home, username))
}

func (p *Provisioner) powershell(ctx context.Context, script string) ([]byte, error) {
	return p.runner.Run(ctx, "", "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
}

// loginUser prefers the invoking user when running under sudo.
func loginUser() (string, string, error) {
	if name := os.Getenv("SUDO_USER"); name != "" && name != "root" {
		u, err := user.Lookup(name)
		if err == nil {
			return u.Username, u.HomeDir, nil
		}
	}
	u, err := user.Current()
	if err != nil {
		return "", "", errors.Trace(err)
	}
	return u.Username, u.HomeDir, nil
}

func ensureSSHDir(home, username string) error {
	if home == "" {
		return nil
	}
	dir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Annotatef(err, "creating %s", dir)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		return errors.Annotatef(err, "securing %s", dir)
	}
	if u, err := user.Lookup(username); err == nil {
		uid, errU := strconv.Atoi(u.Uid)
		gid, errG := strconv.Atoi(u.Gid)
		if errU == nil && errG == nil {
			_ = os.Lchown(dir, uid, gid)
		}
	}
	return nil
}

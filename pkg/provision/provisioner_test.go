package provision

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/juju/errors"

	"minerlink/pkg/privilege"
)

type call struct {
	line  string
	stdin string
}

type fakeRunner struct {
	calls   []call
	fail    map[string]int // command prefix -> remaining failures, -1 for always
	missing map[string]bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{fail: map[string]int{}, missing: map[string]bool{}}
}

func (f *fakeRunner) Run(_ context.Context, stdin string, name string, args ...string) ([]byte, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, call{line: line, stdin: stdin})
	for prefix, n := range f.fail {
		if !strings.HasPrefix(line, prefix) || n == 0 {
			continue
		}
		if n > 0 {
			f.fail[prefix] = n - 1
		}
		return []byte("boom"), errors.Errorf("%s failed", line)
	}
	return nil, nil
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.missing[name] {
		return "", errors.NotFoundf(name)
	}
	return "/usr/bin/" + name, nil
}

func (f *fakeRunner) lines() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.line
	}
	return out
}

func (f *fakeRunner) reset() { f.calls = nil }

func newTestProvisioner(c *qt.C, r *fakeRunner) *Provisioner {
	dir := c.TempDir()
	p := New(Config{
		Password:       "hunter2",
		SSHDConfigPath: filepath.Join(dir, "ssh", "sshd_config"),
		RCLocalPath:    filepath.Join(dir, "rc.local"),
		PrivSepDir:     filepath.Join(dir, "run", "sshd"),
	}, r)
	p.goos = "linux"
	p.privileged = func() bool { return true }
	home := filepath.Join(dir, "home")
	p.lookupUser = func() (string, string, error) { return "miner", home, nil }
	p.systemdRunning = func() bool { return false }
	p.verify = nil
	return p
}

func TestProvisionWithoutPasswordTouchesNothing(t *testing.T) {
	c := qt.New(t)
	r := newFakeRunner()
	p := newTestProvisioner(c, r)
	p.cfg.Password = ""

	_, _, err := p.Provision(context.Background(), 22)
	c.Assert(err, qt.ErrorIs, ErrMissingCredential)
	c.Assert(r.calls, qt.HasLen, 0)
	_, statErr := os.Stat(p.cfg.SSHDConfigPath)
	c.Assert(statErr, qt.ErrorIs, os.ErrNotExist)
}

func TestProvisionRequiresPrivilege(t *testing.T) {
	c := qt.New(t)
	r := newFakeRunner()
	p := newTestProvisioner(c, r)
	p.privileged = func() bool { return false }

	_, _, err := p.Provision(context.Background(), 22)
	c.Assert(err, qt.ErrorIs, privilege.ErrPrivilegeRequired)
	c.Assert(r.calls, qt.HasLen, 0)
}

func TestProvisionIsIdempotent(t *testing.T) {
	c := qt.New(t)
	r := newFakeRunner()
	p := newTestProvisioner(c, r)

	user, pass, err := p.Provision(context.Background(), 22)
	c.Assert(err, qt.IsNil)
	c.Assert(user, qt.Equals, "miner")
	c.Assert(pass, qt.Equals, "hunter2")
	c.Assert(r.lines(), qt.DeepEquals, []string{
		"dpkg -s openssh-server",
		"service ssh restart",
		"update-rc.d ssh enable",
		"chpasswd",
		"ufw allow 22/tcp",
	})
	c.Assert(r.calls[3].stdin, qt.Equals, "miner:hunter2\n")
	first, err := os.ReadFile(p.cfg.SSHDConfigPath)
	c.Assert(err, qt.IsNil)

	r.reset()
	_, _, err = p.Provision(context.Background(), 22)
	c.Assert(err, qt.IsNil)
	c.Assert(r.lines(), qt.DeepEquals, []string{
		"dpkg -s openssh-server",
		"service ssh start",
		"update-rc.d ssh enable",
		"chpasswd",
		"ufw allow 22/tcp",
	})
	second, err := os.ReadFile(p.cfg.SSHDConfigPath)
	c.Assert(err, qt.IsNil)
	c.Assert(string(second), qt.Equals, string(first))
}

func TestProvisionCreatesPrivateSSHDir(t *testing.T) {
	c := qt.New(t)
	p := newTestProvisioner(c, newFakeRunner())
	_, home, _ := p.lookupUser()

	_, _, err := p.Provision(context.Background(), 22)
	c.Assert(err, qt.IsNil)
	info, err := os.Stat(filepath.Join(home, ".ssh"))
	c.Assert(err, qt.IsNil)
	c.Assert(info.Mode().Perm(), qt.Equals, os.FileMode(0o700))
}

func TestProvisionInstallRetriesAfterUpdate(t *testing.T) {
	c := qt.New(t)
	r := newFakeRunner()
	r.fail["dpkg -s"] = -1
	r.fail["apt-get install"] = 1
	p := newTestProvisioner(c, r)

	_, _, err := p.Provision(context.Background(), 22)
	c.Assert(err, qt.IsNil)
	c.Assert(r.lines()[:4], qt.DeepEquals, []string{
		"dpkg -s openssh-server",
		"apt-get install -y openssh-server",
		"apt-get update",
		"apt-get install -y openssh-server",
	})
}

func TestProvisionFallsBackToDirectDaemon(t *testing.T) {
	c := qt.New(t)
	r := newFakeRunner()
	r.missing["service"] = true
	r.fail["pgrep"] = -1
	p := newTestProvisioner(c, r)

	_, _, err := p.Provision(context.Background(), 22)
	c.Assert(err, qt.IsNil)
	c.Assert(r.lines(), qt.Contains, "/usr/sbin/sshd")

	_, _, err = p.Provision(context.Background(), 22)
	c.Assert(err, qt.IsNil)
	data, err := os.ReadFile(p.cfg.RCLocalPath)
	c.Assert(err, qt.IsNil)
	c.Assert(strings.Count(string(data), "/usr/sbin/sshd"), qt.Equals, 1)
	_, err = os.Stat(p.cfg.PrivSepDir)
	c.Assert(err, qt.IsNil)
}

func TestProvisionReloadsRunningDaemonOnChange(t *testing.T) {
	c := qt.New(t)
	r := newFakeRunner()
	r.missing["service"] = true
	p := newTestProvisioner(c, r)

	_, _, err := p.Provision(context.Background(), 2222)
	c.Assert(err, qt.IsNil)
	c.Assert(r.lines(), qt.Contains, "pkill -HUP -x sshd")
	c.Assert(r.lines(), qt.Not(qt.Contains), "/usr/sbin/sshd")
}

func TestProvisionAllTiersFail(t *testing.T) {
	c := qt.New(t)
	r := newFakeRunner()
	r.fail["service"] = -1
	r.fail["pgrep"] = -1
	r.fail["/usr/sbin/sshd"] = -1
	p := newTestProvisioner(c, r)

	_, _, err := p.Provision(context.Background(), 22)
	c.Assert(err, qt.ErrorIs, ErrServiceUnavailable)
	c.Assert(r.lines(), qt.Not(qt.Contains), "chpasswd")
}

func TestFirewallFailureIsNotFatal(t *testing.T) {
	c := qt.New(t)
	r := newFakeRunner()
	r.fail["ufw"] = -1
	p := newTestProvisioner(c, r)

	_, _, err := p.Provision(context.Background(), 22)
	c.Assert(err, qt.IsNil)
}

func TestFirewallUsesIptablesCheckThenAdd(t *testing.T) {
	c := qt.New(t)
	r := newFakeRunner()
	r.missing["ufw"] = true
	r.fail["iptables -C"] = -1
	p := newTestProvisioner(c, r)

	_, _, err := p.Provision(context.Background(), 22)
	c.Assert(err, qt.IsNil)
	lines := r.lines()
	c.Assert(lines[len(lines)-2:], qt.DeepEquals, []string{
		"iptables -C INPUT -p tcp --dport 22 -j ACCEPT",
		"iptables -A INPUT -p tcp --dport 22 -j ACCEPT",
	})
}

func TestLoginCheckFailureIsOnlyLogged(t *testing.T) {
	c := qt.New(t)
	p := newTestProvisioner(c, newFakeRunner())
	p.cfg.VerifyLogin = true
	var gotPort uint16
	p.verify = func(_ context.Context, port uint16, user, pass string) error {
		gotPort = port
		return errors.New("auth failed")
	}

	_, _, err := p.Provision(context.Background(), 22)
	c.Assert(err, qt.IsNil)
	c.Assert(gotPort, qt.Equals, uint16(22))
}

func TestProvisionWindows(t *testing.T) {
	c := qt.New(t)
	r := newFakeRunner()
	r.fail["netsh advfirewall firewall show"] = -1
	p := newTestProvisioner(c, r)
	p.goos = "windows"

	_, _, err := p.Provision(context.Background(), 22)
	c.Assert(err, qt.IsNil)
	lines := r.lines()
	c.Assert(lines, qt.Contains, "powershell -NoProfile -NonInteractive -Command Restart-Service sshd")
	c.Assert(lines, qt.Contains, "net user miner hunter2")
	c.Assert(lines[len(lines)-1], qt.Equals,
		"netsh advfirewall firewall add rule name=minerlink-ssh-22 dir=in action=allow protocol=TCP localport=22")

	data, err := os.ReadFile(p.cfg.SSHDConfigPath)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Contains, "Subsystem sftp sftp-server.exe")
	c.Assert(string(data), qt.Not(qt.Contains), "UsePAM")
}

func TestRenderSSHDConfig(t *testing.T) {
	c := qt.New(t)
	got := string(renderSSHDConfig("linux", 2222))
	c.Assert(got, qt.Contains, "Port 2222\n")
	c.Assert(got, qt.Contains, "PasswordAuthentication yes\n")
	c.Assert(got, qt.Contains, "PermitEmptyPasswords no\n")
	c.Assert(got, qt.Contains, "Subsystem sftp /usr/lib/openssh/sftp-server\n")
}

//go:build linux

package provision

import (
	"context"
	"testing"

	"github.com/coreos/go-systemd/v22/dbus"
	qt "github.com/frankban/quicktest"
	"github.com/juju/errors"
)

type stubDBus struct {
	calls   []string
	status  map[string]string // unit -> job result
	closed  bool
	enabled [][]string
}

func (s *stubDBus) Close() { s.closed = true }

func (s *stubDBus) StartUnit(name string, mode string, ch chan<- string) (int, error) {
	return s.job("StartUnit "+name+" "+mode, name, ch)
}

func (s *stubDBus) RestartUnit(name string, mode string, ch chan<- string) (int, error) {
	return s.job("RestartUnit "+name+" "+mode, name, ch)
}

func (s *stubDBus) job(call, unit string, ch chan<- string) (int, error) {
	s.calls = append(s.calls, call)
	status, ok := s.status[unit]
	if !ok {
		return 0, errors.NotFoundf("unit %s", unit)
	}
	go func() { ch <- status }()
	return 1, nil
}

func (s *stubDBus) EnableUnitFiles(files []string, runtime bool, force bool) (bool, []dbus.EnableUnitFileChange, error) {
	s.enabled = append(s.enabled, files)
	return true, nil, nil
}

func TestSystemdTierStartsAndEnables(t *testing.T) {
	c := qt.New(t)
	r := newFakeRunner()
	p := newTestProvisioner(c, r)
	stub := &stubDBus{status: map[string]string{"ssh.service": "done"}}
	p.systemdRunning = func() bool { return true }
	p.newDBus = func() (DBusAPI, error) { return stub, nil }

	_, _, err := p.Provision(context.Background(), 22)
	c.Assert(err, qt.IsNil)
	c.Assert(stub.calls, qt.DeepEquals, []string{"RestartUnit ssh.service replace"})
	c.Assert(stub.enabled, qt.DeepEquals, [][]string{{"ssh.service"}})
	c.Assert(stub.closed, qt.IsTrue)
	c.Assert(r.lines(), qt.Not(qt.Contains), "service ssh restart")

	stub.calls = nil
	_, _, err = p.Provision(context.Background(), 22)
	c.Assert(err, qt.IsNil)
	c.Assert(stub.calls, qt.DeepEquals, []string{"StartUnit ssh.service replace"})
}

func TestSystemdTierTriesSSHDUnit(t *testing.T) {
	c := qt.New(t)
	p := newTestProvisioner(c, newFakeRunner())
	stub := &stubDBus{status: map[string]string{"sshd.service": "done"}}
	p.systemdRunning = func() bool { return true }
	p.newDBus = func() (DBusAPI, error) { return stub, nil }

	c.Assert(p.systemdTier(context.Background(), false), qt.IsNil)
	c.Assert(stub.calls, qt.DeepEquals, []string{
		"StartUnit ssh.service replace",
		"StartUnit sshd.service replace",
	})
	c.Assert(stub.enabled, qt.DeepEquals, [][]string{{"sshd.service"}})
}

func TestSystemdFailedJobFallsThrough(t *testing.T) {
	c := qt.New(t)
	r := newFakeRunner()
	p := newTestProvisioner(c, r)
	stub := &stubDBus{status: map[string]string{"ssh.service": "failed", "sshd.service": "failed"}}
	p.systemdRunning = func() bool { return true }
	p.newDBus = func() (DBusAPI, error) { return stub, nil }

	_, _, err := p.Provision(context.Background(), 22)
	c.Assert(err, qt.IsNil)
	c.Assert(r.lines(), qt.Contains, "service ssh restart")
}

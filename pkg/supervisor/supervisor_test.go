package supervisor

import (
	"os"
	"os/exec"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/juju/errors"

	"minerlink/pkg/privilege"
)

type fakeStrategy struct {
	alive      map[int]bool
	terminated []int
	killed     []int
	termErr    error
	ignoreTerm bool
}

func (f *fakeStrategy) Detach(*exec.Cmd) {}

func (f *fakeStrategy) Alive(pid int) bool { return f.alive[pid] }

func (f *fakeStrategy) Terminate(pid int) error {
	f.terminated = append(f.terminated, pid)
	if f.termErr != nil {
		return f.termErr
	}
	if !f.ignoreTerm {
		f.alive[pid] = false
	}
	return nil
}

func (f *fakeStrategy) Kill(pid int) error {
	f.killed = append(f.killed, pid)
	f.alive[pid] = false
	return nil
}

func newFakeSupervisor(c *qt.C, f *fakeStrategy) *Supervisor {
	return New(Config{Root: c.TempDir(), StopTimeout: 50 * time.Millisecond, PollInterval: 5 * time.Millisecond}, f)
}

func TestStopRefusedSignalKeepsPIDFile(t *testing.T) {
	c := qt.New(t)
	f := &fakeStrategy{
		alive:   map[int]bool{4242: true},
		termErr: errors.Annotate(privilege.ErrPrivilegeRequired, "operation not permitted"),
	}
	s := newFakeSupervisor(c, f)
	c.Assert(writePID(s.PIDFile("system"), 4242), qt.IsNil)

	err := s.Stop("system", false)
	c.Assert(err, qt.ErrorIs, privilege.ErrPrivilegeRequired)
	_, statErr := os.Stat(s.PIDFile("system"))
	c.Assert(statErr, qt.IsNil)
	c.Assert(f.killed, qt.HasLen, 0)
}

func TestStopFallsBackToKill(t *testing.T) {
	c := qt.New(t)
	f := &fakeStrategy{alive: map[int]bool{7: true}, ignoreTerm: true}
	s := newFakeSupervisor(c, f)
	c.Assert(writePID(s.PIDFile("api"), 7), qt.IsNil)

	c.Assert(s.Stop("api", false), qt.IsNil)
	c.Assert(f.terminated, qt.DeepEquals, []int{7})
	c.Assert(f.killed, qt.DeepEquals, []int{7})
	_, err := os.Stat(s.PIDFile("api"))
	c.Assert(err, qt.ErrorIs, os.ErrNotExist)
}

func TestStopForceOnlyKills(t *testing.T) {
	c := qt.New(t)
	f := &fakeStrategy{alive: map[int]bool{9: true}}
	s := newFakeSupervisor(c, f)
	c.Assert(writePID(s.PIDFile("api"), 9), qt.IsNil)

	c.Assert(s.Stop("api", true), qt.IsNil)
	c.Assert(f.terminated, qt.HasLen, 0)
	c.Assert(f.killed, qt.DeepEquals, []int{9})
}

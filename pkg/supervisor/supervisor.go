// Package supervisor starts, stops and inspects detached background units
// tracked by PID files, allowing at most one live instance per unit.
package supervisor

import (
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"minerlink/pkg/model"
	"minerlink/pkg/privilege"
)

var logger = loggo.GetLogger("minerlink.supervisor")

// ErrAlreadyRunning is returned by Start and Claim when a live instance of
// the unit already owns its PID file.
const ErrAlreadyRunning = errors.ConstError("unit already running")

// Config locates the PID and log files and bounds the graceful stop.
type Config struct {
	Root         string // <config_root>
	LogDir       string // <config_root>/logs
	StopTimeout  time.Duration
	PollInterval time.Duration
	Clock        clock.Clock
}

type Supervisor struct {
	cfg      Config
	strategy Strategy
}

// New returns a Supervisor using strategy, or the platform strategy when nil.
func New(cfg Config, strategy Strategy) *Supervisor {
	if strategy == nil {
		strategy = NewStrategy()
	}
	if cfg.LogDir == "" {
		cfg.LogDir = filepath.Join(cfg.Root, "logs")
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	return &Supervisor{cfg: cfg, strategy: strategy}
}

// Strategy exposes the platform strategy so other components can launch
// detached helpers the same way units are launched.
func (s *Supervisor) Strategy() Strategy {
	return s.strategy
}

// PIDFile returns <root>/<unit>/pids/<unit>.pid.
func (s *Supervisor) PIDFile(name string) string {
	return filepath.Join(s.cfg.Root, name, "pids", name+".pid")
}

// LogFiles returns the stdout and stderr log paths of a unit.
func (s *Supervisor) LogFiles(name string) (string, string) {
	return filepath.Join(s.cfg.LogDir, name+"_stdout.log"),
		filepath.Join(s.cfg.LogDir, name+"_stderr.log")
}

// Unit describes name including its current liveness.
func (s *Supervisor) Unit(name string) model.ProcessUnit {
	stdout, stderr := s.LogFiles(name)
	running, pid := s.Status(name)
	return model.ProcessUnit{
		Name:      name,
		PID:       pid,
		Running:   running,
		PIDFile:   s.PIDFile(name),
		StdoutLog: stdout,
		StderrLog: stderr,
	}
}

func (s *Supervisor) Units(names []string) []model.ProcessUnit {
	out := make([]model.ProcessUnit, 0, len(names))
	for _, n := range names {
		out = append(out, s.Unit(n))
	}
	return out
}

// Status reports whether the unit is running. A PID file naming a dead
// process is removed as a side effect.
func (s *Supervisor) Status(name string) (bool, int) {
	pid, err := s.livePID(name)
	if err != nil {
		logger.Warningf("unit %s: %v", name, err)
		return false, 0
	}
	return pid != 0, pid
}

// livePID returns the pid of the running instance or 0, cleaning up a
// stale or unreadable PID file.
func (s *Supervisor) livePID(name string) (int, error) {
	path := s.PIDFile(name)
	pid, err := readPID(path)
	if err != nil {
		logger.Warningf("removing unreadable pid file for %s: %v", name, err)
		return 0, removePID(path)
	}
	if pid == 0 {
		return 0, nil
	}
	if s.strategy.Alive(pid) {
		return pid, nil
	}
	logger.Warningf("removing stale pid file for %s (pid %d not running)", name, pid)
	return 0, removePID(path)
}

// Start spawns command detached with output appended to the unit's log
// files and records its pid. It fails with ErrAlreadyRunning when a live
// instance exists.
func (s *Supervisor) Start(name, command string, args, env []string) (int, error) {
	pid, err := s.livePID(name)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if pid != 0 {
		return pid, errors.Annotatef(ErrAlreadyRunning, "%s (pid %d)", name, pid)
	}

	if err := os.MkdirAll(s.cfg.LogDir, 0o755); err != nil {
		return 0, errors.Annotate(err, "creating log directory")
	}
	stdoutPath, stderrPath := s.LogFiles(name)
	stdout, err := os.OpenFile(stdoutPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, errors.Annotatef(err, "opening %s", stdoutPath)
	}
	defer stdout.Close()
	stderr, err := os.OpenFile(stderrPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, errors.Annotatef(err, "opening %s", stderrPath)
	}
	defer stderr.Close()

	cmd := exec.Command(command, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if env != nil {
		cmd.Env = env
	}
	s.strategy.Detach(cmd)
	if err := cmd.Start(); err != nil {
		return 0, errors.Annotatef(err, "starting %s", name)
	}
	pid = cmd.Process.Pid
	// Reap the child if this process outlives it.
	go func() { _ = cmd.Wait() }()

	if err := writePID(s.PIDFile(name), pid); err != nil {
		_ = s.strategy.Kill(pid)
		return 0, errors.Annotatef(err, "recording pid of %s", name)
	}
	logger.Infof("started %s (pid %d)", name, pid)
	return pid, nil
}

// Stop ends the unit: graceful termination bounded by StopTimeout, then a
// forced kill. force skips the graceful step. The PID file is removed on
// every path that delivered a signal. A refused signal leaves the file in
// place and reports privilege.ErrPrivilegeRequired.
func (s *Supervisor) Stop(name string, force bool) error {
	path := s.PIDFile(name)
	pid, err := s.livePID(name)
	if err != nil {
		return errors.Trace(err)
	}
	if pid == 0 {
		return nil
	}

	if !force {
		err := s.strategy.Terminate(pid)
		switch {
		case errors.Is(err, privilege.ErrPrivilegeRequired):
			return errors.Annotatef(err, "terminating %s (pid %d)", name, pid)
		case err != nil:
			logger.Warningf("graceful stop of %s (pid %d) failed: %v", name, pid, err)
		case s.waitExit(pid, s.cfg.StopTimeout):
			logger.Infof("stopped %s (pid %d)", name, pid)
			return removePID(path)
		default:
			logger.Warningf("%s (pid %d) did not exit within %s, killing", name, pid, s.cfg.StopTimeout)
		}
	}

	if err := s.strategy.Kill(pid); err != nil {
		return errors.Annotatef(err, "killing %s (pid %d)", name, pid)
	}
	if !s.waitExit(pid, s.cfg.StopTimeout) {
		logger.Errorf("%s (pid %d) still alive after kill", name, pid)
	}
	logger.Infof("killed %s (pid %d)", name, pid)
	return removePID(path)
}

func (s *Supervisor) waitExit(pid int, timeout time.Duration) bool {
	deadline := s.cfg.Clock.Now().Add(timeout)
	for {
		if !s.strategy.Alive(pid) {
			return true
		}
		if !s.cfg.Clock.Now().Before(deadline) {
			return false
		}
		<-s.cfg.Clock.After(s.cfg.PollInterval)
	}
}

// Claim records the calling process as the running instance of name. A PID
// file that already holds this process's pid is accepted, which is the case
// when the unit was launched by Start.
func (s *Supervisor) Claim(name string) error {
	self := os.Getpid()
	pid, err := s.livePID(name)
	if err != nil {
		return errors.Trace(err)
	}
	if pid == self {
		return nil
	}
	if pid != 0 {
		return errors.Annotatef(ErrAlreadyRunning, "%s (pid %d)", name, pid)
	}
	return errors.Trace(writePID(s.PIDFile(name), self))
}

// Release removes the PID file if it still belongs to the calling process.
func (s *Supervisor) Release(name string) {
	path := s.PIDFile(name)
	pid, err := readPID(path)
	if err != nil || pid != os.Getpid() {
		return
	}
	if err := removePID(path); err != nil {
		logger.Warningf("%v", err)
	}
}

// Package tunnel runs the public TCP tunnel client and reports the public
// endpoint it was assigned.
package tunnel

import (
	"context"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/retry"

	"minerlink/pkg/backoff"
	"minerlink/pkg/model"
)

var logger = loggo.GetLogger("minerlink.tunnel")

// ErrTunnelTimeout is returned by Start when no tunnel appears in time.
const ErrTunnelTimeout = errors.ConstError("tunnel did not come up in time")

const errNoTunnel = errors.ConstError("no tunnel reported yet")

// ProcessStrategy launches the client detached and kills it.
type ProcessStrategy interface {
	Detach(cmd *exec.Cmd)
	Kill(pid int) error
}

type Config struct {
	Binary          string
	AuthToken       string
	ConfigDir       string
	LogDir          string
	APIURL          string
	StartTimeout    time.Duration
	PollInterval    time.Duration
	LivenessTimeout time.Duration
	// Settle is the pause after killing a previous client, so that it
	// releases the control API port before the new one binds it.
	Settle time.Duration
	Clock  clock.Clock
}

// Controller owns the tunnel client process. It is safe for concurrent use,
// though the health loop drives it from a single goroutine.
type Controller struct {
	cfg      Config
	strategy ProcessStrategy
	client   *http.Client
	killAll  func() error

	mu      sync.Mutex
	state   model.TunnelState
	session model.TunnelSession
	proc    *os.Process
}

func New(cfg Config, strategy ProcessStrategy) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.StartTimeout <= 0 {
		cfg.StartTimeout = 30 * time.Second
	}
	if cfg.LivenessTimeout <= 0 {
		cfg.LivenessTimeout = 5 * time.Second
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 2 * time.Second
	}
	c := &Controller{
		cfg:      cfg,
		strategy: strategy,
		client:   &http.Client{},
		state:    model.TunnelStopped,
	}
	c.killAll = c.killByName
	return c
}

func (c *Controller) State() model.TunnelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Session() model.TunnelSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Controller) setState(s model.TunnelState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Start replaces any running client with a fresh one forwarding localPort
// and waits at most StartTimeout for the control API to report the public
// endpoint.
func (c *Controller) Start(ctx context.Context, localPort uint16) (string, uint16, error) {
	if c.kill() {
		select {
		case <-c.cfg.Clock.After(c.cfg.Settle):
		case <-ctx.Done():
			return "", 0, errors.Annotate(ctx.Err(), "stopping previous tunnel client")
		}
	}
	c.setState(model.TunnelStarting)

	if c.cfg.AuthToken == "" {
		logger.Warningf("NGROK_AUTH_TOKEN is empty, tcp tunnels usually require it")
	}
	confPath, err := writeClientConfig(c.cfg.ConfigDir, c.cfg.AuthToken, localPort)
	if err != nil {
		c.setState(model.TunnelStopped)
		return "", 0, errors.Trace(err)
	}
	if err := c.launch(confPath); err != nil {
		c.setState(model.TunnelStopped)
		return "", 0, errors.Trace(err)
	}

	host, port, err := c.waitForTunnel(ctx)
	if err != nil {
		c.Kill()
		return "", 0, err
	}

	c.mu.Lock()
	c.state = model.TunnelActive
	c.session = model.TunnelSession{
		LocalPort:  localPort,
		PublicHost: host,
		PublicPort: port,
		StartedAt:  c.cfg.Clock.Now(),
	}
	c.mu.Unlock()
	logger.Infof("tunnel active: %s:%d -> localhost:%d", host, port, localPort)
	return host, port, nil
}

func (c *Controller) launch(confPath string) error {
	if err := os.MkdirAll(c.cfg.LogDir, 0o755); err != nil {
		return errors.Annotate(err, "creating log directory")
	}
	stdout, err := os.OpenFile(filepath.Join(c.cfg.LogDir, "tunnel_stdout.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Trace(err)
	}
	defer stdout.Close()
	stderr, err := os.OpenFile(filepath.Join(c.cfg.LogDir, "tunnel_stderr.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Trace(err)
	}
	defer stderr.Close()

	cmd := exec.Command(c.cfg.Binary, "start", "--all", "--config", confPath)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if c.strategy != nil {
		c.strategy.Detach(cmd)
	}
	if err := cmd.Start(); err != nil {
		return errors.Annotatef(err, "launching %s", c.cfg.Binary)
	}
	go func() { _ = cmd.Wait() }()

	c.mu.Lock()
	c.proc = cmd.Process
	c.mu.Unlock()
	logger.Debugf("tunnel client launched (pid %d)", cmd.Process.Pid)
	return nil
}

func (c *Controller) waitForTunnel(parent context.Context) (string, uint16, error) {
	ctx, cancel := context.WithTimeout(parent, c.cfg.StartTimeout)
	defer cancel()
	attempts := int(c.cfg.StartTimeout / c.cfg.PollInterval)
	if attempts < 1 {
		attempts = 1
	}
	var host string
	var port uint16
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			pollCtx, pollCancel := context.WithTimeout(ctx, c.cfg.LivenessTimeout)
			defer pollCancel()
			tunnels, err := listTunnels(pollCtx, c.client, c.cfg.APIURL)
			if err != nil {
				return err
			}
			t, ok := pickTunnel(tunnels)
			if !ok {
				return errNoTunnel
			}
			host, port, err = parsePublicURL(t.PublicURL)
			return err
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("waiting for tunnel (attempt %d): %v", attempt, err)
		},
		Attempts:    attempts,
		Delay:       c.cfg.PollInterval,
		BackoffFunc: backoff.Fixed(c.cfg.PollInterval).BackoffFunc(),
		Clock:       c.cfg.Clock,
		Stop:        ctx.Done(),
	})
	switch {
	case err == nil:
		return host, port, nil
	case retry.IsRetryStopped(err):
		if parent.Err() != nil {
			return "", 0, errors.Annotate(parent.Err(), "waiting for tunnel")
		}
		return "", 0, errors.Annotatef(ErrTunnelTimeout, "after %s", c.cfg.StartTimeout)
	case retry.IsAttemptsExceeded(err):
		return "", 0, errors.Annotatef(ErrTunnelTimeout, "after %s: %v", c.cfg.StartTimeout, retry.LastError(err))
	}
	return "", 0, errors.Trace(err)
}

// CheckLiveness performs one bounded query of the control API. It reports
// false on any failure and never returns an error.
func (c *Controller) CheckLiveness(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.LivenessTimeout)
	defer cancel()
	tunnels, err := listTunnels(ctx, c.client, c.cfg.APIURL)
	ok := err == nil && len(tunnels) > 0

	c.mu.Lock()
	defer c.mu.Unlock()
	if ok {
		c.session.ConsecutiveFailures = 0
		return true
	}
	c.session.ConsecutiveFailures++
	if err != nil {
		logger.Debugf("liveness check failed: %v", err)
	} else {
		logger.Debugf("liveness check failed: no tunnels listed")
	}
	return false
}

// Kill terminates the tunnel client, including instances this process did
// not launch. A client that is not running is not an error.
func (c *Controller) Kill() {
	c.kill()
}

// kill reports whether any client process was signalled.
func (c *Controller) kill() bool {
	killed := false
	c.mu.Lock()
	proc := c.proc
	c.proc = nil
	c.state = model.TunnelStopped
	c.mu.Unlock()

	if proc != nil && c.strategy != nil {
		if err := c.strategy.Kill(proc.Pid); err != nil {
			logger.Debugf("killing tunnel client pid %d: %v", proc.Pid, err)
		} else {
			killed = true
		}
	}
	if err := c.killAll(); err != nil {
		logger.Debugf("no tunnel client to kill: %v", err)
	} else {
		killed = true
	}
	return killed
}

func (c *Controller) killByName() error {
	name := filepath.Base(c.cfg.Binary)
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		if filepath.Ext(name) == "" {
			name += ".exe"
		}
		cmd = exec.Command("taskkill", "/F", "/IM", name)
	} else {
		cmd = exec.Command("pkill", "-x", name)
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Errorf("%v: %s", err, out)
	}
	return nil
}

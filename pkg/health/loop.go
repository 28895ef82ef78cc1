// Package health runs the engine's main cycle: provision once, bring the
// tunnel up, publish, then watch the tunnel and recover it.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"minerlink/pkg/backoff"
	"minerlink/pkg/connectivity"
	"minerlink/pkg/journal"
)

var logger = loggo.GetLogger("minerlink.health")

type Provisioner interface {
	Provision(ctx context.Context, port uint16) (string, string, error)
}

type Tunnel interface {
	Start(ctx context.Context, localPort uint16) (string, uint16, error)
	CheckLiveness(ctx context.Context) bool
	Kill()
}

type Publisher interface {
	PublishAndSync(ctx context.Context, username, password, host string, port uint16) (connectivity.Published, error)
}

type Recorder interface {
	Record(ctx context.Context, kind, host string, port uint16, detail string) error
}

type Config struct {
	Port             uint16
	LivenessInterval time.Duration
	StartRetry       backoff.Policy
	Recovery         backoff.Policy
	AlertThreshold   int
	Clock            clock.Clock
}

type Loop struct {
	cfg       Config
	prov      Provisioner
	tunnel    Tunnel
	publisher Publisher
	recorder  Recorder

	username string
	password string
	failures int
}

// New builds a loop. recorder may be nil.
func New(cfg Config, prov Provisioner, tunnel Tunnel, publisher Publisher, recorder Recorder) *Loop {
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	return &Loop{cfg: cfg, prov: prov, tunnel: tunnel, publisher: publisher, recorder: recorder}
}

// Run blocks until ctx is cancelled, returning nil, or until provisioning
// fails. The tunnel is killed on the way out.
func (l *Loop) Run(ctx context.Context) error {
	user, pw, err := l.prov.Provision(ctx, l.cfg.Port)
	if err != nil {
		return errors.Annotate(err, "provisioning credentials")
	}
	l.username, l.password = user, pw
	defer func() {
		logger.Infof("stopping tunnel")
		l.tunnel.Kill()
	}()

	host, port, ok := l.startUntilUp(ctx)
	if !ok {
		return nil
	}
	l.publish(ctx, host, port)

	waited := false
	for {
		if !waited && !l.sleep(ctx, l.cfg.LivenessInterval) {
			return nil
		}
		var cont bool
		if cont, waited = l.cycle(ctx); !cont {
			return nil
		}
	}
}

func (l *Loop) startUntilUp(ctx context.Context) (string, uint16, bool) {
	for {
		host, port, err := l.tunnel.Start(ctx, l.cfg.Port)
		if err == nil {
			l.succeeded(ctx, journal.KindStart, host, port)
			return host, port, true
		}
		if ctx.Err() != nil {
			return "", 0, false
		}
		l.failed(ctx, journal.KindStartFailed, err.Error())
		logger.Errorf("tunnel start failed: %v", err)
		if !l.sleep(ctx, l.cfg.StartRetry.Delay(l.failures-1)) {
			return "", 0, false
		}
	}
}

// cycle performs one liveness check and, on failure, one recovery attempt.
// cont is false once ctx is done; waited reports that the recovery backoff
// already ran, so the next check is due immediately.
func (l *Loop) cycle(ctx context.Context) (cont, waited bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("health cycle panicked: %v", r)
			cont, waited = l.backoff(ctx), true
		}
	}()

	if l.tunnel.CheckLiveness(ctx) {
		if l.failures > 0 {
			logger.Infof("tunnel healthy again")
		}
		l.failures = 0
		return true, false
	}
	if ctx.Err() != nil {
		return false, false
	}
	logger.Warningf("no active tunnel found, restarting")
	l.failed(ctx, journal.KindLivenessFailed, "")

	host, port, err := l.tunnel.Start(ctx, l.cfg.Port)
	if err != nil {
		if ctx.Err() != nil {
			return false, false
		}
		logger.Errorf("tunnel recovery failed: %v", err)
		l.record(ctx, journal.KindStartFailed, "", 0, err.Error())
		return l.backoff(ctx), true
	}
	l.succeeded(ctx, journal.KindRecovered, host, port)
	l.publish(ctx, host, port)
	return true, false
}

func (l *Loop) backoff(ctx context.Context) bool {
	return l.sleep(ctx, l.cfg.Recovery.Delay(l.failures-1))
}

func (l *Loop) publish(ctx context.Context, host string, port uint16) {
	if _, err := l.publisher.PublishAndSync(ctx, l.username, l.password, host, port); err != nil {
		logger.Errorf("publishing connectivity failed: %v", err)
	}
}

func (l *Loop) succeeded(ctx context.Context, kind, host string, port uint16) {
	logger.Infof("tunnel up at %s:%d", host, port)
	l.failures = 0
	l.record(ctx, kind, host, port, "")
}

// failed counts a failure and raises the alert once per streak.
func (l *Loop) failed(ctx context.Context, kind, detail string) {
	l.failures++
	l.record(ctx, kind, "", 0, detail)
	if l.cfg.AlertThreshold > 0 && l.failures == l.cfg.AlertThreshold {
		msg := fmt.Sprintf("tunnel unhealthy for %d consecutive checks", l.failures)
		logger.Errorf("ALERT: %s", msg)
		l.record(ctx, journal.KindAlert, "", 0, msg)
	}
}

func (l *Loop) record(ctx context.Context, kind, host string, port uint16, detail string) {
	if l.recorder == nil {
		return
	}
	_ = l.recorder.Record(ctx, kind, host, port, detail)
}

func (l *Loop) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-l.cfg.Clock.After(d):
		return true
	}
}

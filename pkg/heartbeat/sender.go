// Package heartbeat periodically reports this miner as online.
package heartbeat

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"minerlink/pkg/backoff"
	"minerlink/pkg/model"
	"minerlink/pkg/probe"
	"minerlink/pkg/registry"
	"minerlink/pkg/version"
)

var logger = loggo.GetLogger("minerlink.heartbeat")

// ErrNotRegistered means there is no miner id to report for.
const ErrNotRegistered = errors.ConstError("miner is not registered")

type Client interface {
	SendHeartbeat(ctx context.Context, hb model.HeartbeatRequest) error
}

type Config struct {
	RegistrationPath string
	InternalIP       string
	// Policy is the wait after a success (Initial) and how it grows on
	// consecutive failures.
	Policy backoff.Policy
	Clock  clock.Clock
}

type Sender struct {
	cfg    Config
	client Client
	probe  probe.SystemProbe
}

func New(cfg Config, client Client, p probe.SystemProbe) *Sender {
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.Policy.Initial <= 0 {
		cfg.Policy = backoff.Exponential(30*time.Second, 300*time.Second)
	}
	return &Sender{cfg: cfg, client: client, probe: p}
}

// Run sends heartbeats until ctx is done. A node without a registration
// record fails immediately with ErrNotRegistered.
func (s *Sender) Run(ctx context.Context) error {
	rec, err := registry.LoadRecord(s.cfg.RegistrationPath)
	if err != nil {
		return errors.Annotate(err, "reading registration record")
	}
	if rec == nil {
		return errors.Trace(ErrNotRegistered)
	}
	logger.Infof("sending heartbeats for miner %s", rec.MinerID)

	failures := 0
	for {
		if err := s.client.SendHeartbeat(ctx, s.build(ctx, rec.MinerID)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			logger.Warningf("heartbeat failed (%d in a row): %v", failures, err)
		} else {
			if failures > 0 {
				logger.Infof("heartbeat recovered after %d failures", failures)
			}
			failures = 0
			logger.Debugf("heartbeat sent")
		}
		wait := s.cfg.Policy.Delay(failures)
		select {
		case <-ctx.Done():
			return nil
		case <-s.cfg.Clock.After(wait):
		}
	}
}

func (s *Sender) build(ctx context.Context, minerID string) model.HeartbeatRequest {
	hb := model.HeartbeatRequest{
		Timestamp: s.cfg.Clock.Now().UTC().Format(time.RFC3339),
		Status:    "online",
		Version:   version.Build,
		Metrics: model.HeartbeatMetrics{
			MinerID:       minerID,
			ResourceUsage: map[string]interface{}{},
			ActiveJobs:    []string{},
		},
	}
	if s.probe == nil {
		return hb
	}
	if host, err := s.probe.Host(ctx); err == nil {
		hb.Metrics.SystemInfo = host
	} else {
		logger.Debugf("host info: %v", err)
	}
	hb.Metrics.SystemInfo.IPAddress = s.cfg.InternalIP
	if usage, err := s.probe.Usage(ctx); err == nil {
		hb.Metrics.Metrics = usage
	} else {
		logger.Debugf("usage metrics: %v", err)
	}
	return hb
}

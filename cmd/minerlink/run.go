package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/errors"
	"github.com/spf13/cobra"

	"minerlink/pkg/apiserver"
	"minerlink/pkg/auth"
	"minerlink/pkg/backoff"
	"minerlink/pkg/connectivity"
	"minerlink/pkg/health"
	"minerlink/pkg/heartbeat"
	"minerlink/pkg/journal"
	"minerlink/pkg/mirror"
	"minerlink/pkg/probe"
	"minerlink/pkg/provision"
	"minerlink/pkg/registry"
	"minerlink/pkg/supervisor"
	"minerlink/pkg/tunnel"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:    "run <unit>",
	Short:  "Run a unit in the foreground",
	Hidden: true,
	Args:   cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if !isUnit(name) {
			return errors.NotValidf("unit %q", name)
		}
		sup := newSupervisor()
		if err := sup.Claim(name); err != nil {
			return errors.Trace(err)
		}
		defer sup.Release(name)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Infof("unit %s running (pid %d)", name, os.Getpid())
		var err error
		switch name {
		case unitSystem:
			err = runSystem(ctx, sup)
		case unitAPI:
			err = runAPI(ctx, sup)
		case unitHeartbeat:
			err = runHeartbeat(ctx)
		}
		if err != nil {
			logger.Errorf("unit %s failed: %v", name, err)
			return err
		}
		logger.Infof("unit %s stopped", name)
		return nil
	},
}

func openJournal(ctx context.Context) *journal.Journal {
	j, err := journal.Open(ctx, cfg.JournalPath())
	if err != nil {
		logger.Warningf("journal disabled: %v", err)
		return nil
	}
	return j
}

func newRegistry() *registry.Client {
	if cfg.RegistryURL == "" {
		return nil
	}
	cl, err := registry.New(registry.Config{
		BaseURL: cfg.RegistryURL,
		Token:   cfg.RegistryToken,
		CAFile:  cfg.RegistryCAFile,
		Timeout: cfg.RegistryTimeout,
	})
	if err != nil {
		logger.Warningf("registry client disabled: %v", err)
		return nil
	}
	return cl
}

func newMirror() connectivity.Mirror {
	if !mirror.Enabled() || cfg.ConsulAddr == "" {
		return nil
	}
	host, _ := os.Hostname()
	m, err := mirror.New(mirror.Config{Addr: cfg.ConsulAddr, Token: cfg.ConsulToken, Hostname: host})
	if err != nil {
		logger.Warningf("consul mirror disabled: %v", err)
		return nil
	}
	return m
}

func runSystem(ctx context.Context, sup *supervisor.Supervisor) error {
	deps := connectivity.Deps{Probe: probe.New()}
	if cl := newRegistry(); cl != nil {
		deps.Registry = cl
	}
	if m := newMirror(); m != nil {
		deps.Mirror = m
	}
	var recorder health.Recorder
	if j := openJournal(ctx); j != nil {
		defer j.Close()
		deps.Recorder = j
		recorder = j
		if _, err := j.Prune(ctx, 1000); err != nil {
			logger.Debugf("journal prune: %v", err)
		}
	}

	store := connectivity.NewStore(connectivity.Config{
		SystemInfoPath:   cfg.SystemInfoPath(),
		RegistrationPath: cfg.RegistrationPath(),
	}, deps)

	prov := provision.New(provision.Config{
		Password:    cfg.SSHPassword,
		VerifyLogin: cfg.VerifySSH,
	}, provision.ExecRunner{})

	ctl := tunnel.New(tunnel.Config{
		Binary:          cfg.NgrokBinary,
		AuthToken:       cfg.NgrokAuthToken,
		ConfigDir:       cfg.NgrokConfigDir,
		LogDir:          cfg.LogDir,
		APIURL:          cfg.TunnelAPIURL,
		StartTimeout:    cfg.TunnelStartTimeout,
		PollInterval:    cfg.TunnelPollInterval,
		LivenessTimeout: cfg.LivenessTimeout,
	}, sup.Strategy())

	loop := health.New(health.Config{
		Port:             cfg.SSHPort,
		LivenessInterval: cfg.LivenessInterval,
		StartRetry:       backoff.Fixed(cfg.StartRetryDelay),
		Recovery:         backoff.Fixed(cfg.RecoveryBackoff),
		AlertThreshold:   cfg.AlertThreshold,
	}, prov, ctl, store, recorder)
	return loop.Run(ctx)
}

func runAPI(ctx context.Context, sup *supervisor.Supervisor) error {
	var issuer *auth.Issuer
	if cfg.APIJWTSecret != "" {
		iss, err := auth.NewIssuer(cfg.APIJWTSecret)
		if err != nil {
			return errors.Trace(err)
		}
		issuer = iss
	}
	var events apiserver.EventSource
	if j := openJournal(ctx); j != nil {
		defer j.Close()
		events = j
	}
	srv := apiserver.New(apiserver.Config{
		Addr:           cfg.APIAddr,
		SystemInfoPath: cfg.SystemInfoPath(),
		UnitNames:      allUnits,
		Issuer:         issuer,
	}, sup, events)
	return srv.Run(ctx)
}

func runHeartbeat(ctx context.Context) error {
	cl := newRegistry()
	if cl == nil {
		return errors.NotValidf("empty SERVER_URL")
	}
	s := heartbeat.New(heartbeat.Config{
		RegistrationPath: cfg.RegistrationPath(),
		InternalIP:       connectivity.DetectInternalIP(),
		Policy:           backoff.Exponential(cfg.HeartbeatInterval, cfg.HeartbeatMaxInterval),
	}, cl, probe.New())
	return s.Run(ctx)
}

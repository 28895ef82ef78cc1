package main

import (
	"os"

	"github.com/juju/errors"

	"minerlink/pkg/heartbeat"
	"minerlink/pkg/privilege"
	"minerlink/pkg/provision"
	"minerlink/pkg/registry"
	"minerlink/pkg/supervisor"
)

const (
	unitSystem    = "system"
	unitAPI       = "api"
	unitHeartbeat = "heartbeat"
)

// allUnits is also the start order.
var allUnits = []string{unitSystem, unitAPI, unitHeartbeat}

// resolveUnits validates names and returns them in start order; no names
// selects every unit.
func resolveUnits(names []string) ([]string, error) {
	if len(names) == 0 {
		return allUnits, nil
	}
	want := map[string]bool{}
	for _, n := range names {
		if !isUnit(n) {
			return nil, errors.NotValidf("unit %q (expected one of %v)", n, allUnits)
		}
		want[n] = true
	}
	var out []string
	for _, n := range allUnits {
		if want[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

func isUnit(name string) bool {
	for _, u := range allUnits {
		if u == name {
			return true
		}
	}
	return false
}

func newSupervisor() *supervisor.Supervisor {
	return supervisor.New(supervisor.Config{
		Root:        cfg.ConfigRoot,
		LogDir:      cfg.LogDir,
		StopTimeout: cfg.StopTimeout,
	}, nil)
}

// preflight rejects a start that the unit would fail on right away.
func preflight(name string) error {
	switch name {
	case unitSystem:
		if err := provision.CheckCredential(cfg.SSHPassword); err != nil {
			return errors.Trace(err)
		}
		return privilege.Require("starting the system unit")
	case unitHeartbeat:
		rec, err := registry.LoadRecord(cfg.RegistrationPath())
		if err != nil {
			return errors.Trace(err)
		}
		if rec == nil {
			return errors.Trace(heartbeat.ErrNotRegistered)
		}
	}
	return nil
}

func startUnit(sup *supervisor.Supervisor, name string) (int, error) {
	if err := preflight(name); err != nil {
		return 0, errors.Annotatef(err, "starting %s", name)
	}
	exe, err := os.Executable()
	if err != nil {
		return 0, errors.Annotate(err, "locating executable")
	}
	return sup.Start(name, exe, []string{"run", name}, nil)
}

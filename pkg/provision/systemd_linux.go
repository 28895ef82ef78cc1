//go:build linux

package provision

import (
	"context"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/coreos/go-systemd/v22/util"
	"github.com/juju/errors"
)

// DBusAPI is the subset of the systemd D-Bus connection used here.
type DBusAPI interface {
	Close()
	StartUnit(name string, mode string, ch chan<- string) (int, error)
	RestartUnit(name string, mode string, ch chan<- string) (int, error)
	EnableUnitFiles(files []string, runtime bool, force bool) (bool, []dbus.EnableUnitFileChange, error)
}

type DBusAPIFactory = func() (DBusAPI, error)

var NewDBusAPI = func() (DBusAPI, error) {
	return dbus.New()
}

func systemdRunning() bool {
	return util.IsRunningSystemd()
}

// systemdTier starts (or restarts) the ssh unit over D-Bus and enables it.
func (p *Provisioner) systemdTier(ctx context.Context, restart bool) error {
	if !p.systemdRunning() {
		return errors.NotSupportedf("systemd")
	}
	conn, err := p.newDBus()
	if err != nil {
		return errors.Annotate(err, "connecting to systemd")
	}
	defer conn.Close()

	var lastErr error
	for _, unit := range []string{"ssh.service", "sshd.service"} {
		if err := startUnit(ctx, conn, unit, restart); err != nil {
			lastErr = err
			continue
		}
		if _, _, err := conn.EnableUnitFiles([]string{unit}, false, true); err != nil {
			logger.Warningf("%s not enabled at boot: %v", unit, err)
		}
		return nil
	}
	return errors.Trace(lastErr)
}

func startUnit(ctx context.Context, conn DBusAPI, unit string, restart bool) error {
	statusCh := make(chan string, 1)
	var err error
	if restart {
		_, err = conn.RestartUnit(unit, "replace", statusCh)
	} else {
		_, err = conn.StartUnit(unit, "replace", statusCh)
	}
	if err != nil {
		return errors.Annotatef(err, "dbus request for %s", unit)
	}
	select {
	case status := <-statusCh:
		if status != "done" {
			return errors.Errorf("%s: job finished with %q", unit, status)
		}
		return nil
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
}

//go:build !linux

package provision

import (
	"context"

	"github.com/juju/errors"
)

type DBusAPI interface {
	Close()
}

type DBusAPIFactory = func() (DBusAPI, error)

var NewDBusAPI = func() (DBusAPI, error) {
	return nil, errors.NotSupportedf("systemd")
}

func systemdRunning() bool { return false }

func (p *Provisioner) systemdTier(context.Context, bool) error {
	return errors.NotSupportedf("systemd on %s", p.goos)
}

package provision

import (
	"context"
	"os"
	"strings"

	"github.com/juju/errors"
)

// serviceTier is one way of starting sshd and enabling it at boot.
type serviceTier struct {
	name string
	run  func(ctx context.Context, restart bool) error
}

// ensureService walks the tiers in order and stops at the first success.
// restart is set when the configuration changed and a running daemon must
// reload it.
func (p *Provisioner) ensureService(ctx context.Context, restart bool) error {
	tiers := []serviceTier{
		{name: "systemd", run: p.systemdTier},
		{name: "service", run: p.legacyTier},
		{name: "direct", run: p.directTier},
	}
	var failures []string
	for _, t := range tiers {
		err := t.run(ctx, restart)
		if err == nil {
			logger.Infof("ssh service ensured via %s", t.name)
			return nil
		}
		logger.Warningf("ssh service via %s failed: %v", t.name, err)
		failures = append(failures, t.name+": "+err.Error())
	}
	return errors.Annotate(ErrServiceUnavailable, strings.Join(failures, "; "))
}

func (p *Provisioner) legacyTier(ctx context.Context, restart bool) error {
	if _, err := p.runner.LookPath("service"); err != nil {
		return errors.NotFoundf("service command")
	}
	action := "start"
	if restart {
		action = "restart"
	}
	var lastErr error
	for _, unit := range []string{"ssh", "sshd"} {
		if _, err := p.runner.Run(ctx, "", "service", unit, action); err != nil {
			lastErr = err
			continue
		}
		if _, err := p.runner.LookPath("update-rc.d"); err == nil {
			if _, err := p.runner.Run(ctx, "", "update-rc.d", unit, "enable"); err != nil {
				logger.Warningf("%s not enabled at boot: %v", unit, err)
			}
		}
		return nil
	}
	return errors.Trace(lastErr)
}

// directTier runs the daemon itself when no service manager is usable,
// as inside minimal containers.
func (p *Provisioner) directTier(ctx context.Context, restart bool) error {
	if err := os.MkdirAll(p.cfg.PrivSepDir, 0o755); err != nil {
		return errors.Annotatef(err, "creating %s", p.cfg.PrivSepDir)
	}
	if _, err := p.runner.Run(ctx, "", "pgrep", "-x", "sshd"); err == nil {
		if restart {
			if _, err := p.runner.Run(ctx, "", "pkill", "-HUP", "-x", "sshd"); err != nil {
				return errors.Annotate(err, "reloading sshd")
			}
		}
	} else if _, err := p.runner.Run(ctx, "", "/usr/sbin/sshd"); err != nil {
		return errors.Annotate(err, "launching sshd")
	}
	if err := p.enableInRCLocal(); err != nil {
		logger.Warningf("sshd not enabled at boot: %v", err)
	}
	return nil
}

const rcLocalEntry = "/usr/sbin/sshd"

// enableInRCLocal appends the daemon to rc.local once.
func (p *Provisioner) enableInRCLocal() error {
	path := p.cfg.RCLocalPath
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Trace(err)
	}
	if strings.Contains(string(data), rcLocalEntry) {
		return nil
	}
	content := string(data)
	if content == "" {
		content = "#!/bin/sh -e\n"
	}
	content = strings.TrimSuffix(content, "\n") + "\n# Start SSH server\n" + rcLocalEntry + "\n"
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(os.Chmod(path, 0o755))
}

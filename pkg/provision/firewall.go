package provision

import (
	"context"
	"fmt"
	"strconv"

	"github.com/juju/errors"
)

// openFirewall allows inbound TCP on port. Callers log failures; a missing
// firewall tool is not an error.
func (p *Provisioner) openFirewall(ctx context.Context, port uint16) error {
	ps := strconv.Itoa(int(port))
	switch p.goos {
	case "windows":
		name := "minerlink-ssh-" + ps
		if _, err := p.runner.Run(ctx, "", "netsh", "advfirewall", "firewall", "show", "rule", "name="+name); err == nil {
			return nil
		}
		_, err := p.runner.Run(ctx, "", "netsh", "advfirewall", "firewall", "add", "rule",
			"name="+name, "dir=in", "action=allow", "protocol=TCP", "localport="+ps)
		return errors.Trace(err)
	case "linux":
	default:
		return nil
	}

	if _, err := p.runner.LookPath("ufw"); err == nil {
		_, err := p.runner.Run(ctx, "", "ufw", "allow", fmt.Sprintf("%d/tcp", port))
		return errors.Trace(err)
	}
	if _, err := p.runner.LookPath("iptables"); err != nil {
		logger.Debugf("no firewall tool found, leaving port %d as is", port)
		return nil
	}
	return p.ensureIptablesRule(ctx,
		[]string{"-C", "INPUT", "-p", "tcp", "--dport", ps, "-j", "ACCEPT"},
		[]string{"-A", "INPUT", "-p", "tcp", "--dport", ps, "-j", "ACCEPT"},
	)
}

func (p *Provisioner) ensureIptablesRule(ctx context.Context, checkArgs, addArgs []string) error {
	if _, err := p.runner.Run(ctx, "", "iptables", checkArgs...); err == nil {
		return nil
	}
	if _, err := p.runner.Run(ctx, "", "iptables", addArgs...); err != nil {
		return errors.Annotatef(err, "add %v", addArgs)
	}
	return nil
}

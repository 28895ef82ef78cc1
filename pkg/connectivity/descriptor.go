package connectivity

import (
	"sort"
	"strconv"

	"minerlink/pkg/model"
)

// SSHPort is always listed in a descriptor's open ports.
const SSHPort = "22"

// Build derives a descriptor. The SSH URI is computed here and nowhere
// else; an empty host means no tunnel, giving an empty URI and port 0.
func Build(internalIP, username, password, host string, port uint16, extraPorts ...string) model.ConnectivityDescriptor {
	d := model.ConnectivityDescriptor{
		InternalIP: internalIP,
		Username:   username,
		Password:   password,
		OpenPorts:  portSet(extraPorts),
	}
	if host != "" {
		d.PublicHost = host
		d.PublicPort = port
		d.SSHURI = "ssh://" + username + "@" + host + ":" + strconv.Itoa(int(port))
	}
	return d
}

func portSet(extra []string) []string {
	seen := map[string]struct{}{SSHPort: {}}
	out := []string{SSHPort}
	for _, p := range extra {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

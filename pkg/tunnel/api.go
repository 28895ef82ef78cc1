package tunnel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/juju/errors"
)

type tunnelList struct {
	Tunnels []apiTunnel `json:"tunnels"`
}

type apiTunnel struct {
	Name      string `json:"name"`
	PublicURL string `json:"public_url"`
	Proto     string `json:"proto"`
}

// listTunnels queries the tunnel client's local control API.
func listTunnels(ctx context.Context, client *http.Client, apiURL string) ([]apiTunnel, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, errors.Trace(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("control api returned %s", resp.Status)
	}
	var list tunnelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, errors.Annotate(err, "decoding control api response")
	}
	return list.Tunnels, nil
}

// pickTunnel prefers the first tcp tunnel and falls back to the first entry.
func pickTunnel(tunnels []apiTunnel) (apiTunnel, bool) {
	for _, t := range tunnels {
		if t.Proto == "tcp" {
			return t, true
		}
	}
	if len(tunnels) == 0 {
		return apiTunnel{}, false
	}
	return tunnels[0], true
}

// parsePublicURL splits "tcp://host:port" into host and port.
func parsePublicURL(raw string) (string, uint16, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, errors.NotValidf("public url %q", raw)
	}
	host := u.Hostname()
	port, err := strconv.ParseUint(u.Port(), 10, 16)
	if host == "" || err != nil || port == 0 {
		return "", 0, errors.NotValidf("public url %q", raw)
	}
	return host, uint16(port), nil
}

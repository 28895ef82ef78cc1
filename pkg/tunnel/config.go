package tunnel

import (
	"path/filepath"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	"minerlink/pkg/fsutil"
)

type clientConfig struct {
	Version   string                  `yaml:"version"`
	AuthToken string                  `yaml:"authtoken,omitempty"`
	Tunnels   map[string]tunnelConfig `yaml:"tunnels"`
}

type tunnelConfig struct {
	Proto string `yaml:"proto"`
	Addr  uint16 `yaml:"addr"`
}

func renderClientConfig(authToken string, localPort uint16) ([]byte, error) {
	cfg := clientConfig{
		Version:   "2",
		AuthToken: authToken,
		Tunnels: map[string]tunnelConfig{
			"ssh": {Proto: "tcp", Addr: localPort},
		},
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, errors.Annotate(err, "encoding tunnel client config")
	}
	return out, nil
}

// writeClientConfig writes <dir>/ngrok.yml and returns its path.
func writeClientConfig(dir, authToken string, localPort uint16) (string, error) {
	data, err := renderClientConfig(authToken, localPort)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "ngrok.yml")
	if err := fsutil.WriteFileAtomic(path, data, 0o600); err != nil {
		return "", errors.Trace(err)
	}
	return path, nil
}

package config

import (
	"os"

	"github.com/juju/errors"

	"minerlink/pkg/fsutil"
)

// NetworkConfig records which registry network this node joined.
type NetworkConfig struct {
	Network string `json:"network"`
}

// LoadNetworkConfig returns the zero value when the file does not exist.
func LoadNetworkConfig(path string) (NetworkConfig, error) {
	var nc NetworkConfig
	if err := fsutil.ReadJSON(path, &nc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NetworkConfig{}, nil
		}
		return NetworkConfig{}, errors.Trace(err)
	}
	return nc, nil
}

func SaveNetworkConfig(path string, nc NetworkConfig) error {
	return errors.Trace(fsutil.WriteJSONAtomic(path, nc, 0o644))
}

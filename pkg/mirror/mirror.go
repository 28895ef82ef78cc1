// Package mirror copies the node's network object into Consul KV so other
// tooling can discover it. Builds without the consul tag get a stub.
package mirror

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	"minerlink/pkg/model"
)

var logger = loggo.GetLogger("minerlink.mirror")

const KeyPrefix = "minerlink/nodes/"

type Config struct {
	Addr     string
	Token    string
	Hostname string
}

// Key is the KV key holding a node's entry.
func Key(hostname string) string {
	return KeyPrefix + strings.ToLower(strings.TrimSpace(hostname))
}

type entry struct {
	Hostname string            `json:"hostname"`
	Network  model.NetworkInfo `json:"network"`
	Updated  time.Time         `json:"updated"`
}

// encode drops the password; Consul KV is readable cluster-wide.
func encode(hostname string, network model.NetworkInfo, now time.Time) ([]byte, error) {
	network.Password = ""
	b, err := json.Marshal(entry{Hostname: hostname, Network: network, Updated: now.UTC()})
	return b, errors.Trace(err)
}

//go:build consul

package mirror

import (
	"context"
	"time"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/juju/errors"

	"minerlink/pkg/model"
)

// Enabled reports whether this build can mirror.
func Enabled() bool { return true }

type Consul struct {
	kv       *consulapi.KV
	hostname string
}

func New(cfg Config) (*Consul, error) {
	if cfg.Hostname == "" {
		return nil, errors.NotValidf("empty hostname")
	}
	ccfg := consulapi.DefaultConfig()
	if cfg.Addr != "" {
		ccfg.Address = cfg.Addr
	}
	if cfg.Token != "" {
		ccfg.Token = cfg.Token
	}
	cli, err := consulapi.NewClient(ccfg)
	if err != nil {
		return nil, errors.Annotate(err, "consul client")
	}
	return &Consul{kv: cli.KV(), hostname: cfg.Hostname}, nil
}

func (c *Consul) Mirror(ctx context.Context, network model.NetworkInfo) error {
	b, err := encode(c.hostname, network, time.Now())
	if err != nil {
		return errors.Trace(err)
	}
	key := Key(c.hostname)
	opts := (&consulapi.WriteOptions{}).WithContext(ctx)
	if _, err := c.kv.Put(&consulapi.KVPair{Key: key, Value: b}, opts); err != nil {
		return errors.Annotatef(err, "consul put %s", key)
	}
	logger.Debugf("mirrored network to %s", key)
	return nil
}

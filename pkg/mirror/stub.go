//go:build !consul

package mirror

import (
	"context"

	"github.com/juju/errors"

	"minerlink/pkg/model"
)

// Enabled reports whether this build can mirror.
func Enabled() bool { return false }

type Consul struct{}

func New(cfg Config) (*Consul, error) {
	return nil, errors.NotSupportedf("consul mirror (build with -tags consul)")
}

func (*Consul) Mirror(ctx context.Context, network model.NetworkInfo) error {
	return errors.NotSupportedf("consul mirror")
}

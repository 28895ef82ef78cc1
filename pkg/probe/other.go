//go:build !linux

package probe

import (
	"context"
	"runtime"

	"github.com/juju/errors"

	"minerlink/pkg/model"
)

// Generic reports what the runtime knows without platform tooling.
type Generic struct{}

func New() SystemProbe { return Generic{} }

func (Generic) Hardware(ctx context.Context) (Hardware, error) {
	return Hardware{ResourceType: "CPU", CPU: &model.CPUSpecs{TotalCPUs: runtime.NumCPU()}}, nil
}

func (Generic) Usage(ctx context.Context) (model.UsageMetrics, error) {
	return model.UsageMetrics{}, errors.NotSupportedf("usage metrics on %s", runtime.GOOS)
}

func (Generic) Host(ctx context.Context) (model.HostInfo, error) {
	return model.HostInfo{Hostname: hostname(), OSVersion: runtime.GOOS + "/" + runtime.GOARCH}, nil
}

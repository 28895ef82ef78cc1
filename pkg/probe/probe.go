// Package probe collects host facts: hardware for the system info document
// and usage numbers for heartbeats.
package probe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/juju/loggo"

	"minerlink/pkg/model"
)

var logger = loggo.GetLogger("minerlink.probe")

// SystemProbe is implemented per platform.
type SystemProbe interface {
	Hardware(ctx context.Context) (Hardware, error)
	Usage(ctx context.Context) (model.UsageMetrics, error)
	Host(ctx context.Context) (model.HostInfo, error)
}

// Hardware describes the compute resource this node offers.
type Hardware struct {
	ResourceType string // CPU or GPU
	RAMBytes     uint64
	CPU          *model.CPUSpecs
	GPUs         []model.GPUSpecs
	Storage      *model.StorageInfo
}

// RAM formats RAMBytes the way the registry expects, e.g. "15.54GB".
func (h Hardware) RAM() string {
	return formatGB(h.RAMBytes)
}

// Resource fills a compute resource with the hardware facts.
func (h Hardware) Resource(id string, network model.NetworkInfo) model.ComputeResource {
	return model.ComputeResource{
		ID:           id,
		ResourceType: h.ResourceType,
		RAM:          h.RAM(),
		Storage:      h.Storage,
		CPUSpecs:     h.CPU,
		GPUSpecs:     h.GPUs,
		Network:      network,
	}
}

type commandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Output()
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		logger.Debugf("hostname: %v", err)
		return "unknown"
	}
	return h
}

func formatGB(b uint64) string {
	return fmt.Sprintf("%.2fGB", float64(b)/(1<<30))
}

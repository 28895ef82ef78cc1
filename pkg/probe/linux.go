//go:build linux

package probe

import (
	"context"
	"os"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"golang.org/x/sys/unix"

	"minerlink/pkg/model"
)

// Linux reads /proc and shells out to lscpu and nvidia-smi.
type Linux struct {
	ProcRoot string
	DiskPath string
	Sample   time.Duration
	Clock    clock.Clock

	run commandFunc
}

func New() SystemProbe {
	return &Linux{ProcRoot: "/proc", DiskPath: "/", Sample: 500 * time.Millisecond, Clock: clock.WallClock, run: runCommand}
}

func (l *Linux) read(name string) ([]byte, error) {
	return os.ReadFile(l.ProcRoot + "/" + name)
}

func (l *Linux) Hardware(ctx context.Context) (Hardware, error) {
	data, err := l.read("meminfo")
	if err != nil {
		return Hardware{}, errors.Annotate(err, "read meminfo")
	}
	mem, err := ParseMemInfo(data)
	if err != nil {
		return Hardware{}, errors.Trace(err)
	}
	hw := Hardware{ResourceType: "CPU", RAMBytes: mem.Total}

	if out, err := l.run(ctx, "lscpu"); err == nil {
		hw.CPU = ParseLSCPU(out)
	} else {
		logger.Debugf("lscpu unavailable: %v", err)
	}
	if out, err := l.run(ctx, "nvidia-smi", "--query-gpu=name,memory.total,driver_version", "--format=csv,noheader,nounits"); err == nil {
		if gpus := ParseNvidiaSMI(out); len(gpus) > 0 {
			hw.GPUs = gpus
			hw.ResourceType = "GPU"
		}
	}
	var st unix.Statfs_t
	if err := unix.Statfs(l.DiskPath, &st); err == nil {
		hw.Storage = &model.StorageInfo{
			Type:     "disk",
			Capacity: formatGB(st.Blocks * uint64(st.Bsize)),
		}
	}
	return hw, nil
}

func (l *Linux) Usage(ctx context.Context) (model.UsageMetrics, error) {
	var u model.UsageMetrics

	prev, err := l.cpuTimes()
	if err != nil {
		return u, errors.Trace(err)
	}
	select {
	case <-ctx.Done():
		return u, errors.Trace(ctx.Err())
	case <-l.Clock.After(l.Sample):
	}
	cur, err := l.cpuTimes()
	if err != nil {
		return u, errors.Trace(err)
	}
	u.CPUUsage = CPUPercent(prev, cur)

	if data, err := l.read("meminfo"); err == nil {
		if mem, err := ParseMemInfo(data); err == nil {
			u.MemoryUsage = mem.UsedPercent()
		}
	}
	var st unix.Statfs_t
	if err := unix.Statfs(l.DiskPath, &st); err == nil && st.Blocks > 0 {
		u.DiskUsage = 100 * float64(st.Blocks-st.Bavail) / float64(st.Blocks)
	}
	return u, nil
}

func (l *Linux) cpuTimes() (CPUTimes, error) {
	data, err := l.read("stat")
	if err != nil {
		return CPUTimes{}, errors.Annotate(err, "read stat")
	}
	return ParseProcStat(data)
}

func (l *Linux) Host(ctx context.Context) (model.HostInfo, error) {
	info := model.HostInfo{Hostname: hostname()}
	if data, err := os.ReadFile("/etc/os-release"); err == nil {
		info.OSVersion = ParseOSRelease(data)
	}
	if info.OSVersion == "" {
		var uts unix.Utsname
		if err := unix.Uname(&uts); err == nil {
			info.OSVersion = "Linux " + unix.ByteSliceToString(uts.Release[:])
		}
	}
	data, err := l.read("uptime")
	if err != nil {
		return info, errors.Annotate(err, "read uptime")
	}
	up, err := ParseUptime(data)
	if err != nil {
		return info, errors.Trace(err)
	}
	info.Uptime = up
	info.LastBoot = l.Clock.Now().Add(-time.Duration(up * float64(time.Second))).UTC().Format(time.RFC3339)
	return info, nil
}

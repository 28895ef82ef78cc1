package probe

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"github.com/juju/errors"

	"minerlink/pkg/model"
)

// ParseLSCPU reads `lscpu` output.
func ParseLSCPU(out []byte) *model.CPUSpecs {
	spec := &model.CPUSpecs{}
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		key, val, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		switch key {
		case "CPU op-mode(s)":
			spec.OpModes = val
		case "Address sizes":
			spec.AddressSizes = val
		case "Byte Order":
			spec.ByteOrder = val
		case "CPU(s)":
			spec.TotalCPUs = atoi(val)
		case "On-line CPU(s) list":
			spec.OnlineCPUs = val
		case "Vendor ID":
			spec.VendorID = val
		case "Model name":
			spec.CPUName = val
		case "CPU family":
			spec.CPUFamily = atoi(val)
		case "Model":
			spec.Model = atoi(val)
		case "Thread(s) per core":
			spec.ThreadsPerCore = atoi(val)
		case "Core(s) per socket":
			spec.CoresPerSocket = atoi(val)
		case "Socket(s)":
			spec.Sockets = atoi(val)
		case "Stepping":
			spec.Stepping = atoi(val)
		case "CPU max MHz":
			spec.CPUMaxMHz, _ = strconv.ParseFloat(val, 64)
		case "CPU min MHz":
			spec.CPUMinMHz, _ = strconv.ParseFloat(val, 64)
		}
	}
	return spec
}

// MemInfo holds the /proc/meminfo values in bytes.
type MemInfo struct {
	Total     uint64
	Available uint64
}

// UsedPercent is the share of memory not available, 0..100.
func (m MemInfo) UsedPercent() float64 {
	if m.Total == 0 {
		return 0
	}
	return 100 * float64(m.Total-m.Available) / float64(m.Total)
}

// ParseMemInfo reads /proc/meminfo. MemAvailable falls back to MemFree on
// old kernels.
func ParseMemInfo(data []byte) (MemInfo, error) {
	var (
		m         MemInfo
		free      uint64
		haveAvail bool
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		if len(fields) > 2 && fields[2] == "kB" {
			v *= 1024
		}
		switch fields[0] {
		case "MemTotal:":
			m.Total = v
		case "MemAvailable:":
			m.Available = v
			haveAvail = true
		case "MemFree:":
			free = v
		}
	}
	if m.Total == 0 {
		return m, errors.NotFoundf("MemTotal in meminfo")
	}
	if !haveAvail {
		m.Available = free
	}
	return m, nil
}

// CPUTimes is the aggregate line of /proc/stat.
type CPUTimes struct {
	Idle  uint64
	Total uint64
}

// ParseProcStat reads the first "cpu" line of /proc/stat. Idle includes iowait.
func ParseProcStat(data []byte) (CPUTimes, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		var t CPUTimes
		for i, f := range fields[1:] {
			v, err := strconv.ParseUint(f, 10, 64)
			if err != nil {
				return CPUTimes{}, errors.NotValidf("cpu field %q", f)
			}
			t.Total += v
			if i == 3 || i == 4 {
				t.Idle += v
			}
		}
		return t, nil
	}
	return CPUTimes{}, errors.NotFoundf("cpu line in /proc/stat")
}

// CPUPercent is the busy share between two samples, 0..100.
func CPUPercent(prev, cur CPUTimes) float64 {
	total := float64(cur.Total) - float64(prev.Total)
	if total <= 0 {
		return 0
	}
	idle := float64(cur.Idle) - float64(prev.Idle)
	return 100 * (total - idle) / total
}

// ParseUptime returns the first value of /proc/uptime in seconds.
func ParseUptime(data []byte) (float64, error) {
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, errors.NotValidf("empty uptime")
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, errors.NotValidf("uptime %q", fields[0])
	}
	return v, nil
}

// ParseNvidiaSMI reads
// `nvidia-smi --query-gpu=name,memory.total,driver_version --format=csv,noheader,nounits`.
func ParseNvidiaSMI(out []byte) []model.GPUSpecs {
	var gpus []model.GPUSpecs
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		parts := strings.Split(sc.Text(), ",")
		if len(parts) < 2 {
			continue
		}
		g := model.GPUSpecs{
			Name:     strings.TrimSpace(parts[0]),
			MemoryMB: atoi(strings.TrimSpace(parts[1])),
		}
		if len(parts) > 2 {
			g.Driver = strings.TrimSpace(parts[2])
		}
		if g.Name == "" {
			continue
		}
		gpus = append(gpus, g)
	}
	return gpus
}

// ParseOSRelease returns PRETTY_NAME from /etc/os-release.
func ParseOSRelease(data []byte) string {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if v, ok := strings.CutPrefix(sc.Text(), "PRETTY_NAME="); ok {
			return strings.Trim(v, `"`)
		}
	}
	return ""
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

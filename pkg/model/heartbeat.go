package model

// HeartbeatRequest is posted to the registry's heart_beat endpoint.
type HeartbeatRequest struct {
	Timestamp string           `json:"timestamp"`
	Status    string           `json:"status"` // online
	Version   string           `json:"version"`
	Metrics   HeartbeatMetrics `json:"metrics"`
}

type HeartbeatMetrics struct {
	MinerID       string                 `json:"miner_id"`
	SystemInfo    HostInfo               `json:"system_info"`
	Metrics       UsageMetrics           `json:"metrics"`
	ResourceUsage map[string]interface{} `json:"resource_usage"`
	ActiveJobs    []string               `json:"active_jobs"`
}

type HostInfo struct {
	Hostname  string  `json:"hostname"`
	IPAddress string  `json:"ip_address"`
	OSVersion string  `json:"os_version"`
	Uptime    float64 `json:"uptime"`
	LastBoot  string  `json:"last_boot"`
}

type UsageMetrics struct {
	CPUUsage       float64  `json:"cpu_usage"`
	MemoryUsage    float64  `json:"memory_usage"`
	DiskUsage      float64  `json:"disk_usage"`
	NetworkLatency float64  `json:"network_latency"`
	Temperature    *float64 `json:"temperature"`
}

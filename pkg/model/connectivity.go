package model

// ConnectivityDescriptor is the canonical statement of how to reach this node.
// A fresh value is built for every publish cycle; SSHURI is derived by the
// builder from the other fields and never assigned on its own.
type ConnectivityDescriptor struct {
	InternalIP string   `json:"internalIp"`
	PublicHost string   `json:"publicHost"`
	PublicPort uint16   `json:"publicPort"`
	SSHURI     string   `json:"sshUri"`
	Username   string   `json:"username"`
	Password   string   `json:"-"`
	OpenPorts  []string `json:"openPorts"`
}

// Network returns the wire form used in system_info.json and by the registry.
func (d ConnectivityDescriptor) Network() NetworkInfo {
	ports := make([]string, len(d.OpenPorts))
	copy(ports, d.OpenPorts)
	return NetworkInfo{
		InternalIP: d.InternalIP,
		SSH:        d.SSHURI,
		OpenPorts:  ports,
		Password:   d.Password,
		Username:   d.Username,
	}
}

// NetworkInfo is the network object of a compute resource.
type NetworkInfo struct {
	InternalIP string   `json:"internal_ip"`
	SSH        string   `json:"ssh"`
	OpenPorts  []string `json:"open_ports"`
	Password   string   `json:"password"`
	Username   string   `json:"username"`
}

// SystemInfo is one element of system_info.json.
type SystemInfo struct {
	Location         string            `json:"location"`
	ComputeResources []ComputeResource `json:"compute_resources"`
}

type ComputeResource struct {
	ID           string       `json:"id"`
	ResourceType string       `json:"resource_type"` // CPU or GPU
	RAM          string       `json:"ram"`
	Storage      *StorageInfo `json:"storage,omitempty"`
	CPUSpecs     *CPUSpecs    `json:"cpu_specs,omitempty"`
	GPUSpecs     []GPUSpecs   `json:"gpu_specs,omitempty"`
	Network      NetworkInfo  `json:"network"`
}

type StorageInfo struct {
	Type       string `json:"type"`
	Capacity   string `json:"capacity"`
	ReadSpeed  string `json:"read_speed"`
	WriteSpeed string `json:"write_speed"`
}

type CPUSpecs struct {
	OpModes        string  `json:"op_modes,omitempty"`
	AddressSizes   string  `json:"address_sizes,omitempty"`
	ByteOrder      string  `json:"byte_order,omitempty"`
	TotalCPUs      int     `json:"total_cpus,omitempty"`
	OnlineCPUs     string  `json:"online_cpus,omitempty"`
	VendorID       string  `json:"vendor_id,omitempty"`
	CPUName        string  `json:"cpu_name,omitempty"`
	CPUFamily      int     `json:"cpu_family,omitempty"`
	Model          int     `json:"model,omitempty"`
	ThreadsPerCore int     `json:"threads_per_core,omitempty"`
	CoresPerSocket int     `json:"cores_per_socket,omitempty"`
	Sockets        int     `json:"sockets,omitempty"`
	Stepping       int     `json:"stepping,omitempty"`
	CPUMaxMHz      float64 `json:"cpu_max_mhz,omitempty"`
	CPUMinMHz      float64 `json:"cpu_min_mhz,omitempty"`
}

type GPUSpecs struct {
	Name     string `json:"gpu_name"`
	MemoryMB int    `json:"memory_size_mb"`
	Driver   string `json:"driver_version,omitempty"`
}

package model

import (
	"sort"
	"strings"
)

// RegistrationRecord is the local proof that this node is known to the registry.
type RegistrationRecord struct {
	MinerID  string       `json:"miner_id"`
	Username string       `json:"username"`
	Network  *NetworkInfo `json:"network,omitempty"`
}

// RegistrationRequest is submitted once to create the miner in the registry.
type RegistrationRequest struct {
	Name             string            `json:"name"`
	Location         string            `json:"location"`
	Description      string            `json:"description,omitempty"`
	ComputeResources []ComputeResource `json:"compute_resources"`
}

type RegistrationResponse struct {
	MinerID        string   `json:"miner_id"`
	Message        string   `json:"message,omitempty"`
	AddedResources []string `json:"added_resources,omitempty"`
}

// MinerDetails is what the registry reports back for a miner.
type MinerDetails struct {
	MinerID          string            `json:"miner_id"`
	Status           string            `json:"status,omitempty"`
	Network          *NetworkInfo      `json:"network,omitempty"`
	ComputeResources []ComputeResource `json:"compute_resources,omitempty"`
}

// CurrentNetwork returns the network object the registry holds, if any.
func (m MinerDetails) CurrentNetwork() *NetworkInfo {
	if m.Network != nil {
		return m.Network
	}
	for i := range m.ComputeResources {
		if m.ComputeResources[i].Network.SSH != "" {
			return &m.ComputeResources[i].Network
		}
	}
	return nil
}

// Sync components.
const (
	SyncRegistryPush   = "registry_push"
	SyncRegistryVerify = "registry_verify"
	SyncConsulMirror   = "consul_mirror"
)

// SyncReport maps each remote sync component to whether it succeeded.
// An empty report means there was nothing to sync.
type SyncReport map[string]bool

func (r SyncReport) OK() bool {
	for _, ok := range r {
		if !ok {
			return false
		}
	}
	return true
}

// Failed lists the failed components in a stable order.
func (r SyncReport) Failed() []string {
	var out []string
	for k, ok := range r {
		if !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func (r SyncReport) String() string {
	if len(r) == 0 {
		return "not registered"
	}
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		state := "ok"
		if !r[k] {
			state = "failed"
		}
		parts = append(parts, k+"="+state)
	}
	return strings.Join(parts, " ")
}

package supervisor

import "os/exec"

// Strategy isolates the platform-specific parts of process supervision.
type Strategy interface {
	// Detach configures cmd so the child survives the parent and its terminal.
	Detach(cmd *exec.Cmd)
	// Alive reports whether pid names a live process.
	Alive(pid int) bool
	// Terminate asks the process to exit gracefully.
	Terminate(pid int) error
	// Kill forcibly ends the process.
	Kill(pid int) error
}

// NewStrategy returns the strategy for the running platform.
func NewStrategy() Strategy {
	return platformStrategy{}
}

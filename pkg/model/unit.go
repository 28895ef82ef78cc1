package model

// ProcessUnit describes a supervised background unit and the files tracking it.
// PID is zero when the unit is not running.
type ProcessUnit struct {
	Name      string `json:"name"`
	PID       int    `json:"pid,omitempty"`
	Running   bool   `json:"running"`
	PIDFile   string `json:"pidFile"`
	StdoutLog string `json:"stdoutLog"`
	StderrLog string `json:"stderrLog"`
}

// Package config loads the engine configuration from the environment and
// optional .env files into one explicit value passed to every component.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("minerlink.config")

const (
	DefaultRegistryURL  = "https://orchestrator-gekh.onrender.com/api/v1"
	DefaultTunnelAPIURL = "http://localhost:4040/api/tunnels"
	DefaultAPIAddr      = "127.0.0.1:8000"
)

// EngineConfig carries every path, credential and timing the engine needs.
type EngineConfig struct {
	ConfigRoot  string
	ProjectRoot string
	LogDir      string
	LogLevel    string

	SSHPassword string
	SSHPort     uint16
	VerifySSH   bool

	NgrokBinary    string
	NgrokAuthToken string
	NgrokConfigDir string
	TunnelAPIURL   string

	RegistryURL     string
	RegistryToken   string
	RegistryCAFile  string
	RegistryTimeout time.Duration

	LivenessTimeout    time.Duration
	LivenessInterval   time.Duration
	StartRetryDelay    time.Duration
	RecoveryBackoff    time.Duration
	TunnelStartTimeout time.Duration
	TunnelPollInterval time.Duration
	StopTimeout        time.Duration
	AlertThreshold     int

	HeartbeatInterval    time.Duration
	HeartbeatMaxInterval time.Duration

	APIAddr      string
	APIJWTSecret string

	ConsulAddr  string
	ConsulToken string
}

// Default returns the configuration used when nothing is overridden.
func Default() EngineConfig {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	root := filepath.Join(home, ".polaris")
	return EngineConfig{
		ConfigRoot:  root,
		ProjectRoot: cwd,
		LogDir:      filepath.Join(root, "logs"),
		LogLevel:    "INFO",

		SSHPort:   22,
		VerifySSH: true,

		NgrokBinary:    "ngrok",
		NgrokConfigDir: filepath.Join(home, ".ngrok2"),
		TunnelAPIURL:   DefaultTunnelAPIURL,

		RegistryURL:     DefaultRegistryURL,
		RegistryTimeout: 10 * time.Second,

		LivenessTimeout:    5 * time.Second,
		LivenessInterval:   10 * time.Second,
		StartRetryDelay:    15 * time.Second,
		RecoveryBackoff:    15 * time.Second,
		TunnelStartTimeout: 30 * time.Second,
		TunnelPollInterval: time.Second,
		StopTimeout:        10 * time.Second,
		AlertThreshold:     5,

		HeartbeatInterval:    30 * time.Second,
		HeartbeatMaxInterval: 300 * time.Second,

		APIAddr: DefaultAPIAddr,
	}
}

// Load reads .env files (the existing environment wins) and then applies
// environment overrides on top of Default.
func Load() (EngineConfig, error) {
	cfg := Default()
	if root := os.Getenv("MINERLINK_PROJECT_ROOT"); root != "" {
		cfg.ProjectRoot = root
	}
	for _, p := range dotEnvCandidates(cfg.ProjectRoot) {
		if err := loadDotEnv(p); err != nil {
			return cfg, errors.Annotatef(err, "loading %s", p)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, errors.Trace(err)
	}
	return cfg, nil
}

func dotEnvCandidates(projectRoot string) []string {
	out := []string{filepath.Join(projectRoot, ".env")}
	if cwd, err := os.Getwd(); err == nil {
		if p := filepath.Join(cwd, ".env"); p != out[0] {
			out = append(out, p)
		}
	}
	return out
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	logger.Debugf("loading environment from %s", path)
	return godotenv.Load(path)
}

func (c *EngineConfig) applyEnv() error {
	if v := os.Getenv("POLARIS_HOME"); v != "" {
		c.ConfigRoot = v
		c.LogDir = filepath.Join(v, "logs")
	}
	if v := os.Getenv("MINERLINK_PROJECT_ROOT"); v != "" {
		c.ProjectRoot = v
	}
	c.LogLevel = getenv("MINERLINK_LOG_LEVEL", c.LogLevel)
	c.SSHPassword = os.Getenv("SSH_PASSWORD")
	c.NgrokAuthToken = os.Getenv("NGROK_AUTH_TOKEN")
	c.NgrokBinary = getenv("NGROK_BIN", c.NgrokBinary)
	c.NgrokConfigDir = getenv("NGROK_CONFIG_DIR", c.NgrokConfigDir)
	c.TunnelAPIURL = getenv("NGROK_API_URL", c.TunnelAPIURL)
	c.RegistryURL = getenv("SERVER_URL", c.RegistryURL)
	c.RegistryToken = os.Getenv("REGISTRY_TOKEN")
	c.RegistryCAFile = os.Getenv("REGISTRY_CA_FILE")
	c.APIAddr = getenv("MINERLINK_API_ADDR", c.APIAddr)
	c.APIJWTSecret = os.Getenv("API_JWT_SECRET")
	c.ConsulAddr = os.Getenv("CONSUL_HTTP_ADDR")
	c.ConsulToken = os.Getenv("CONSUL_HTTP_TOKEN")

	if v := os.Getenv("SSH_PORT"); v != "" {
		port, err := strconv.ParseUint(v, 10, 16)
		if err != nil || port == 0 {
			return errors.NotValidf("SSH_PORT %q", v)
		}
		c.SSHPort = uint16(port)
	}
	if v := os.Getenv("MINERLINK_VERIFY_SSH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.NotValidf("MINERLINK_VERIFY_SSH %q", v)
		}
		c.VerifySSH = b
	}
	if v := os.Getenv("MINERLINK_ALERT_THRESHOLD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return errors.NotValidf("MINERLINK_ALERT_THRESHOLD %q", v)
		}
		c.AlertThreshold = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"MINERLINK_LIVENESS_TIMEOUT", &c.LivenessTimeout},
		{"MINERLINK_LIVENESS_INTERVAL", &c.LivenessInterval},
		{"MINERLINK_START_RETRY_DELAY", &c.StartRetryDelay},
		{"MINERLINK_RECOVERY_BACKOFF", &c.RecoveryBackoff},
		{"MINERLINK_TUNNEL_START_TIMEOUT", &c.TunnelStartTimeout},
		{"MINERLINK_STOP_TIMEOUT", &c.StopTimeout},
		{"MINERLINK_REGISTRY_TIMEOUT", &c.RegistryTimeout},
		{"MINERLINK_HEARTBEAT_INTERVAL", &c.HeartbeatInterval},
		{"MINERLINK_HEARTBEAT_MAX_INTERVAL", &c.HeartbeatMaxInterval},
	}
	for _, d := range durations {
		v := os.Getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil || parsed <= 0 {
			return errors.NotValidf("%s %q", d.key, v)
		}
		*d.dst = parsed
	}
	return nil
}

// PIDDir returns <config_root>/<unit>/pids.
func (c EngineConfig) PIDDir(unit string) string {
	return filepath.Join(c.ConfigRoot, unit, "pids")
}

func (c EngineConfig) SystemInfoPath() string {
	return filepath.Join(c.ProjectRoot, "system_info.json")
}

func (c EngineConfig) RegistrationPath() string {
	return filepath.Join(c.ProjectRoot, "user_info.json")
}

func (c EngineConfig) NetworkConfigPath() string {
	return filepath.Join(c.ConfigRoot, "network_config.json")
}

func (c EngineConfig) JournalPath() string {
	return filepath.Join(c.ConfigRoot, "state.db")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
)

func clearEnv(c *qt.C) {
	for _, k := range []string{
		"POLARIS_HOME", "MINERLINK_PROJECT_ROOT", "SSH_PASSWORD", "SSH_PORT",
		"SERVER_URL", "MINERLINK_LIVENESS_INTERVAL", "MINERLINK_ALERT_THRESHOLD",
		"NGROK_AUTH_TOKEN",
	} {
		c.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestDefaults(t *testing.T) {
	c := qt.New(t)
	cfg := Default()
	c.Assert(cfg.SSHPort, qt.Equals, uint16(22))
	c.Assert(cfg.LivenessTimeout, qt.Equals, 5*time.Second)
	c.Assert(cfg.LivenessInterval, qt.Equals, 10*time.Second)
	c.Assert(cfg.StartRetryDelay, qt.Equals, 15*time.Second)
	c.Assert(cfg.RecoveryBackoff, qt.Equals, 15*time.Second)
	c.Assert(cfg.TunnelStartTimeout, qt.Equals, 30*time.Second)
	c.Assert(cfg.TunnelPollInterval, qt.Equals, time.Second)
	c.Assert(cfg.StopTimeout, qt.Equals, 10*time.Second)
	c.Assert(cfg.RegistryTimeout, qt.Equals, 10*time.Second)
	c.Assert(cfg.TunnelAPIURL, qt.Equals, "http://localhost:4040/api/tunnels")
}

func TestLoadEnvOverrides(t *testing.T) {
	c := qt.New(t)
	clearEnv(c)
	home := t.TempDir()
	project := t.TempDir()
	c.Setenv("POLARIS_HOME", home)
	c.Setenv("MINERLINK_PROJECT_ROOT", project)
	c.Setenv("SSH_PASSWORD", "s3cret")
	c.Setenv("SSH_PORT", "2222")
	c.Setenv("MINERLINK_LIVENESS_INTERVAL", "250ms")

	cfg, err := Load()
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.ConfigRoot, qt.Equals, home)
	c.Assert(cfg.LogDir, qt.Equals, filepath.Join(home, "logs"))
	c.Assert(cfg.ProjectRoot, qt.Equals, project)
	c.Assert(cfg.SSHPassword, qt.Equals, "s3cret")
	c.Assert(cfg.SSHPort, qt.Equals, uint16(2222))
	c.Assert(cfg.LivenessInterval, qt.Equals, 250*time.Millisecond)
	c.Assert(cfg.PIDDir("system"), qt.Equals, filepath.Join(home, "system", "pids"))
	c.Assert(cfg.SystemInfoPath(), qt.Equals, filepath.Join(project, "system_info.json"))
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	c := qt.New(t)
	clearEnv(c)
	project := t.TempDir()
	c.Setenv("MINERLINK_PROJECT_ROOT", project)
	c.Setenv("SERVER_URL", "http://from-env")
	err := os.WriteFile(filepath.Join(project, ".env"), []byte("SERVER_URL=http://from-file\nNGROK_AUTH_TOKEN=tok\n"), 0o600)
	c.Assert(err, qt.IsNil)

	cfg, err := Load()
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.RegistryURL, qt.Equals, "http://from-env")
	c.Assert(cfg.NgrokAuthToken, qt.Equals, "tok")
}

func TestLoadRejectsBadValues(t *testing.T) {
	c := qt.New(t)
	clearEnv(c)
	c.Setenv("MINERLINK_PROJECT_ROOT", t.TempDir())
	c.Setenv("SSH_PORT", "99999")
	_, err := Load()
	c.Assert(err, qt.ErrorMatches, `SSH_PORT "99999" not valid`)
}

func TestNetworkConfigRoundTrip(t *testing.T) {
	c := qt.New(t)
	path := filepath.Join(t.TempDir(), "network_config.json")

	nc, err := LoadNetworkConfig(path)
	c.Assert(err, qt.IsNil)
	c.Assert(nc.Network, qt.Equals, "")

	c.Assert(SaveNetworkConfig(path, NetworkConfig{Network: "bittensor"}), qt.IsNil)
	nc, err = LoadNetworkConfig(path)
	c.Assert(err, qt.IsNil)
	c.Assert(nc.Network, qt.Equals, "bittensor")
}

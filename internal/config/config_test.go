package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/arp"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/netbios"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_NoConfigFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, nameresolve.DefaultOrder, cfg.Resolve.Order)
	assert.Equal(t, "WORKGROUP", cfg.Resolve.Workgroup)
	assert.Equal(t, netbios.DefaultUnicastTimeout, cfg.Timeouts.Unicast)
	assert.Equal(t, arp.DefaultTimeout, cfg.Timeouts.ARP)
	assert.Empty(t, cfg.Cache.Path, "caches default to memory")
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
resolve:
  order: "wins, bcast"
  workgroup: corp
  security: ADS
wins:
  servers:
    - 10.0.0.1
    - site2:10.0.0.2
timeouts:
  unicast: 500ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, []string{"wins", "bcast"}, cfg.Resolve.Order)
	assert.Equal(t, "CORP", cfg.Resolve.Workgroup)
	assert.True(t, cfg.Resolve.SecurityADS())
	assert.Equal(t, 500*time.Millisecond, cfg.Timeouts.Unicast)
	assert.Equal(t, netbios.DefaultWINSTimeout, cfg.Timeouts.WINS)
	assert.Equal(t, []string{"10.0.0.1", "site2:10.0.0.2"}, cfg.WINS.Servers)
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	path := writeConfig(t, `
resolve:
  workgroup: corp
`)
	t.Setenv("NBRESOLVE_RESOLVE_WORKGROUP", "branch")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "BRANCH", cfg.Resolve.Workgroup)
}

func TestLoad_InvalidConfig(t *testing.T) {
	path := writeConfig(t, `
resolve:
  order: [wins, dns]
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oneof")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.Logging.Level = "LOUD" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"debug level", func(c *Config) { c.Logging.Debug = "all" }},
		{"security", func(c *Config) { c.Resolve.Security = "share" }},
		{"order token", func(c *Config) { c.Resolve.Order = []string{"wins", "nis"} }},
		{"NULL with others", func(c *Config) { c.Resolve.Order = []string{"NULL", "wins"} }},
		{"socket address", func(c *Config) { c.Resolve.SocketAddress = "not-an-ip" }},
		{"wins server", func(c *Config) { c.WINS.Servers = []string{"tag:bogus"} }},
		{"negative timeout", func(c *Config) { c.Timeouts.WINS = -time.Second }},
		{"retries", func(c *Config) { c.Timeouts.Retries = 50 }},
		{"workgroup", func(c *Config) { c.Resolve.Workgroup = "" }},
	}

	require.NoError(t, Validate(GetDefaultConfig()))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestValidate_DisabledOrder(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Resolve.Order = []string{nameresolve.OrderDisabled}
	assert.NoError(t, Validate(cfg))
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Resolve.Workgroup = "CORP"
	cfg.Resolve.PasswordServers = []string{"dc1", "*"}
	cfg.Timeouts.Broadcast = 750 * time.Millisecond

	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	require.NoError(t, SaveConfig(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestInitConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	path, err := InitConfig(false)
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfigPath(), path)
	assert.True(t, DefaultConfigExists())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# nbresolve Configuration File")
	for _, section := range []string{"logging:", "resolve:", "wins:", "timeouts:", "cache:", "metrics:", "oui:"} {
		assert.Contains(t, string(content), section)
	}

	var parsed Config
	require.NoError(t, yaml.Unmarshal(content, &parsed))

	_, err = InitConfig(false)
	assert.ErrorContains(t, err, "already exists")

	_, err = InitConfig(true)
	assert.NoError(t, err)

	cfg, err := MustLoad("")
	require.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), cfg)
}

func TestMustLoad_Missing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, err := MustLoad("")
	assert.ErrorContains(t, err, "nbresolve init")

	_, err = MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "configuration file not found")
}

func TestBuildResolver(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Resolve.Order = []string{"wins", "bcast"}
	cfg.Resolve.Interfaces = []string{"10.0.0.10/24"}
	cfg.Resolve.SocketAddress = "10.0.0.10"
	cfg.Timeouts.Unicast = 300 * time.Millisecond
	cfg.Timeouts.Retries = 1
	cfg.Metrics.Enabled = true

	reg := prometheus.NewRegistry()
	r, closer, err := BuildResolver(cfg, reg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, closer.Close()) }()

	assert.Equal(t, []string{"wins", "bcast"}, r.Order())
	assert.NotNil(t, r.Affinity())
	assert.NotNil(t, r.ConnFailures())
	assert.Same(t, r.WINSTracker(), r.Client().Liveness)

	client := r.Client()
	assert.Equal(t, 300*time.Millisecond, client.UnicastTimeout)
	assert.Equal(t, 1, client.Retries)
	assert.Equal(t, "10.0.0.10", client.LocalAddr.String())
	assert.NotNil(t, client.Liveness)
	assert.NotNil(t, client.Status)
	assert.NotNil(t, client.Metrics)
	assert.Len(t, client.Interfaces.All(), 1)
}

func TestBuildResolver_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"wins server", func(c *Config) { c.WINS.Servers = []string{"not an address"} }},
		{"socket address", func(c *Config) { c.Resolve.SocketAddress = "nope" }},
		{"oui database", func(c *Config) { c.OUI.Database = filepath.Join(t.TempDir(), "missing.txt") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			_, _, err := BuildResolver(cfg, nil)
			assert.Error(t, err)
		})
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the nbresolve configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (NBRESOLVE_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Resolve holds the name resolution settings
	Resolve ResolveConfig `mapstructure:"resolve" yaml:"resolve"`

	// WINS lists the WINS servers to query
	WINS WINSConfig `mapstructure:"wins" yaml:"wins"`

	// Timeouts controls NetBIOS and DNS query timing
	Timeouts TimeoutsConfig `mapstructure:"timeouts" yaml:"timeouts"`

	// Cache configures the name, status and affinity caches
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Metrics contains Prometheus metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains the HTTP API server configuration used by "serve"
	API APIConfig `mapstructure:"api" yaml:"api"`

	// OUI configures MAC vendor annotation
	OUI OUIConfig `mapstructure:"oui" yaml:"oui"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`

	// Debug is the level of library debug messages bridged into the log.
	// Valid values: off, basic, verbose
	Debug string `mapstructure:"debug" validate:"omitempty,oneof=off basic verbose" yaml:"debug"`
}

// ResolveConfig holds the name resolution settings.
type ResolveConfig struct {
	// Order is the name resolve order. A single string is split on
	// whitespace and commas.
	// Valid tokens: lmhosts, wins, host, hosts, bcast, ads, kdc, NULL
	Order []string `mapstructure:"order" validate:"dive,oneof=lmhosts wins host hosts bcast ads kdc NULL" yaml:"order"`

	// Workgroup is our NetBIOS domain name
	Workgroup string `mapstructure:"workgroup" validate:"required" yaml:"workgroup"`

	// Realm is our Kerberos realm, empty outside an AD domain
	Realm string `mapstructure:"realm" yaml:"realm"`

	// Site is the AD site used for DC and KDC lookups
	Site string `mapstructure:"site" yaml:"site"`

	// Security is the server security mode
	// Valid values: user, domain, ads
	Security string `mapstructure:"security" validate:"required,oneof=user domain ads" yaml:"security"`

	// PasswordServers lists preferred domain controllers; "*" adds the
	// auto-discovered ones
	PasswordServers []string `mapstructure:"password_servers" yaml:"password_servers,omitempty"`

	// DisableNetBIOS turns off every NetBIOS query
	DisableNetBIOS bool `mapstructure:"disable_netbios" yaml:"disable_netbios"`

	// SocketAddress is the source address of outgoing NetBIOS packets
	SocketAddress string `mapstructure:"socket_address" validate:"omitempty,ip" yaml:"socket_address"`

	// Interfaces are "addr/bits" prefixes, addresses or interface names;
	// empty means all host interfaces
	Interfaces []string `mapstructure:"interfaces" yaml:"interfaces,omitempty"`

	// InNameServer is set when a name server runs alongside the resolver
	InNameServer bool `mapstructure:"in_name_server" yaml:"in_name_server"`

	// LMHostsFile is the lmhosts file path; empty disables lmhosts
	LMHostsFile string `mapstructure:"lmhosts_file" yaml:"lmhosts_file"`

	// DNSHostsFile answers host and SRV lookups from a zone file
	DNSHostsFile string `mapstructure:"dns_hosts_file" yaml:"dns_hosts_file"`

	// DNSServers are "host[:port]" nameservers; empty means resolv.conf
	DNSServers []string `mapstructure:"dns_servers" yaml:"dns_servers,omitempty"`
}

// SecurityADS reports whether the security mode is ads.
func (r ResolveConfig) SecurityADS() bool {
	return strings.EqualFold(r.Security, "ads")
}

// WINSConfig lists WINS servers as "ip" or "tag:ip".
type WINSConfig struct {
	Servers []string `mapstructure:"servers" yaml:"servers,omitempty"`
}

// TimeoutsConfig controls query timing.
type TimeoutsConfig struct {
	// Unicast bounds a single unicast name query
	Unicast time.Duration `mapstructure:"unicast" validate:"gt=0" yaml:"unicast"`

	// Broadcast bounds a single broadcast name query
	Broadcast time.Duration `mapstructure:"broadcast" validate:"gt=0" yaml:"broadcast"`

	// WINS bounds the query to one WINS server
	WINS time.Duration `mapstructure:"wins" validate:"gt=0" yaml:"wins"`

	// BcastFanout bounds a broadcast over all interfaces
	BcastFanout time.Duration `mapstructure:"bcast_fanout" validate:"gt=0" yaml:"bcast_fanout"`

	// NodeStatus bounds a node status query
	NodeStatus time.Duration `mapstructure:"node_status" validate:"gt=0" yaml:"node_status"`

	// Retransmit is the interval between retransmissions
	Retransmit time.Duration `mapstructure:"retransmit" validate:"gt=0" yaml:"retransmit"`

	// Retries is the number of retransmissions per query
	Retries int `mapstructure:"retries" validate:"gte=0,lte=10" yaml:"retries"`

	// DNS bounds a single DNS exchange
	DNS time.Duration `mapstructure:"dns" validate:"gt=0" yaml:"dns"`

	// ARP bounds the ARP request made for a node status reply without a MAC
	ARP time.Duration `mapstructure:"arp" validate:"gt=0" yaml:"arp"`
}

// CacheConfig configures the caches.
type CacheConfig struct {
	// Path is the badger directory; empty keeps the caches in memory
	Path string `mapstructure:"path" yaml:"path"`

	NameTTL        time.Duration `mapstructure:"name_ttl" validate:"gte=0" yaml:"name_ttl"`
	NegativeTTL    time.Duration `mapstructure:"negative_ttl" validate:"gte=0" yaml:"negative_ttl"`
	SAFTTL         time.Duration `mapstructure:"saf_ttl" validate:"gte=0" yaml:"saf_ttl"`
	SAFJoinTTL     time.Duration `mapstructure:"saf_join_ttl" validate:"gte=0" yaml:"saf_join_ttl"`
	WINSDeadTime   time.Duration `mapstructure:"wins_dead_time" validate:"gte=0" yaml:"wins_dead_time"`
	ConnFailureTTL time.Duration `mapstructure:"conn_failure_ttl" validate:"gte=0" yaml:"conn_failure_ttl"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and exposed
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Listen, when set, serves /metrics on its own address instead of
	// on the API listener
	Listen string `mapstructure:"listen" validate:"omitempty,hostname_port" yaml:"listen"`
}

// APIConfig contains the HTTP API server configuration.
type APIConfig struct {
	// Listen is the address the API server binds to
	Listen string `mapstructure:"listen" validate:"required" yaml:"listen"`

	// RequestTimeout bounds each API request
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0" yaml:"request_timeout"`
}

// OUIConfig configures MAC vendor annotation.
type OUIConfig struct {
	// Database is an IEEE oui.txt path; empty uses the built-in copy
	Database string `mapstructure:"database" yaml:"database"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (NBRESOLVE_*)
//  2. Configuration file
//  3. Default values
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  nbresolve init\n\n"+
				"Or specify a custom config file:\n"+
				"  nbresolve <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  nbresolve init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to path in YAML format.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: NBRESOLVE_RESOLVE_WORKGROUP=CORP
	v.SetEnvPrefix("NBRESOLVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		orderDecodeHook(),
	)
}

// durationDecodeHook converts strings like "30s" or "250ms" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// orderDecodeHook splits a string such as "lmhosts wins host bcast" into
// a slice, so lists can be given in smb.conf style or through the
// environment.
func orderDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string(nil)) {
			return data, nil
		}
		return strings.FieldsFunc(data.(string), func(r rune) bool {
			return r == ' ' || r == '\t' || r == ',' || r == ';'
		}), nil
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "nbresolve")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "nbresolve")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}

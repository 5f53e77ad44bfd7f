package config

import (
	"strings"
	"time"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/arp"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/cache"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/dns"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/netbios"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/wins"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyResolveDefaults(&cfg.Resolve)
	applyTimeoutDefaults(&cfg.Timeouts)
	applyCacheDefaults(&cfg.Cache)
	applyAPIDefaults(&cfg.API)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
	if cfg.Debug == "" {
		cfg.Debug = "off"
	}
	cfg.Debug = strings.ToLower(cfg.Debug)
}

// applyResolveDefaults fills the resolve order and normalizes names.
// A present but empty order is kept: it means host lookups only.
func applyResolveDefaults(cfg *ResolveConfig) {
	if cfg.Order == nil {
		cfg.Order = append([]string(nil), nameresolve.DefaultOrder...)
	}
	for i, tok := range cfg.Order {
		if !strings.EqualFold(tok, nameresolve.OrderDisabled) {
			cfg.Order[i] = strings.ToLower(tok)
		}
	}

	if cfg.Workgroup == "" {
		cfg.Workgroup = "WORKGROUP"
	}
	cfg.Workgroup = strings.ToUpper(cfg.Workgroup)
	cfg.Realm = strings.ToUpper(cfg.Realm)

	if cfg.Security == "" {
		cfg.Security = "user"
	}
	cfg.Security = strings.ToLower(cfg.Security)
}

func applyTimeoutDefaults(cfg *TimeoutsConfig) {
	if cfg.Unicast == 0 {
		cfg.Unicast = netbios.DefaultUnicastTimeout
	}
	if cfg.Broadcast == 0 {
		cfg.Broadcast = netbios.DefaultBroadcastTimeout
	}
	if cfg.WINS == 0 {
		cfg.WINS = netbios.DefaultWINSTimeout
	}
	if cfg.BcastFanout == 0 {
		cfg.BcastFanout = netbios.DefaultBcastFanoutTimeout
	}
	if cfg.NodeStatus == 0 {
		cfg.NodeStatus = netbios.DefaultNodeStatusTimeout
	}
	if cfg.Retransmit == 0 {
		cfg.Retransmit = netbios.DefaultRetransmitInterval
	}
	if cfg.Retries == 0 {
		cfg.Retries = netbios.DefaultRetries
	}
	if cfg.DNS == 0 {
		cfg.DNS = dns.DefaultTimeout
	}
	if cfg.ARP == 0 {
		cfg.ARP = arp.DefaultTimeout
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.NameTTL == 0 {
		cfg.NameTTL = cache.DefaultNameTTL
	}
	if cfg.NegativeTTL == 0 {
		cfg.NegativeTTL = cache.DefaultNegativeTTL
	}
	if cfg.SAFTTL == 0 {
		cfg.SAFTTL = cache.DefaultSAFTTL
	}
	if cfg.SAFJoinTTL == 0 {
		cfg.SAFJoinTTL = cache.DefaultSAFJoinTTL
	}
	if cfg.WINSDeadTime == 0 {
		cfg.WINSDeadTime = wins.DefaultDeadTime
	}
	if cfg.ConnFailureTTL == 0 {
		cfg.ConnFailureTTL = cache.DefaultConnFailureTTL
	}
}

func applyAPIDefaults(cfg *APIConfig) {
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:8137"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
}

// GetDefaultConfig returns a configuration with all defaults applied.
// The caches live in memory and NetBIOS uses the standard resolve order.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

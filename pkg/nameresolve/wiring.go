package nameresolve

import (
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/arp"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/cache"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/dns"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/lmhosts"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/netbios"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/oui"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/wins"
)

func init() {
	// Wire up debug logging for all subpackages
	netbios.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(MethodNetBIOS, format, args...)
	}
	wins.DebugLogger = func(format string, args ...interface{}) {
		debugLog(MethodWINS, format, args...)
	}
	dns.DebugLogger = func(format string, args ...interface{}) {
		debugLog(MethodADS, format, args...)
	}
	lmhosts.DebugLogger = func(format string, args ...interface{}) {
		debugLog(MethodLMHosts, format, args...)
	}
	cache.DebugLogger = func(format string, args ...interface{}) {
		debugLogVerbose(MethodCache, format, args...)
	}
	arp.DebugLogger = func(format string, args ...interface{}) {
		debugLog(MethodARP, format, args...)
	}
	oui.DebugLogger = func(format string, args ...interface{}) {
		debugLog(MethodVendor, format, args...)
	}
}

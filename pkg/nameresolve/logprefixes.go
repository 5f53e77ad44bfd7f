package nameresolve

// Method identifies the component that produced a log message.
type Method string

const (
	MethodResolve Method = "resolve"
	MethodNetBIOS Method = "netbios"
	MethodWINS    Method = "wins"
	MethodBcast   Method = "bcast"
	MethodHosts   Method = "hosts"
	MethodADS     Method = "ads"
	MethodLMHosts Method = "lmhosts"
	MethodCache   Method = "cache"
	MethodARP     Method = "arp"
	MethodVendor  Method = "vendor"
)

// Log prefix constants for resolution methods and components.
// Format follows [Component] or [Component:Subcomponent] pattern.
const (
	LogPrefixResolve = "[Resolve]"

	LogPrefixNetBIOS = "[Resolve:NetBIOS]"
	LogPrefixWINS    = "[Resolve:WINS]"
	LogPrefixBcast   = "[Resolve:Bcast]"
	LogPrefixHosts   = "[Resolve:Hosts]"
	LogPrefixADS     = "[Resolve:ADS]"
	LogPrefixLMHosts = "[Resolve:LMHosts]"
	LogPrefixCache   = "[Resolve:Cache]"
	LogPrefixARP     = "[Resolve:ARP]"
	LogPrefixOUI     = "[Resolve:OUI]"

	// Debug prefix - use as "[DEBUG][Resolve:*]" format
	LogPrefixDebug = "[DEBUG]"
)

// MethodToPrefix returns the log prefix for a given method.
// This can be used by consumers who want consistent prefixes in their debug logger callback.
func MethodToPrefix(method Method) string {
	switch method {
	case MethodNetBIOS:
		return LogPrefixNetBIOS
	case MethodWINS:
		return LogPrefixWINS
	case MethodBcast:
		return LogPrefixBcast
	case MethodHosts:
		return LogPrefixHosts
	case MethodADS:
		return LogPrefixADS
	case MethodLMHosts:
		return LogPrefixLMHosts
	case MethodCache:
		return LogPrefixCache
	case MethodARP:
		return LogPrefixARP
	case MethodVendor:
		return LogPrefixOUI
	default:
		return LogPrefixResolve
	}
}

package nameresolve

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// DebugLevel controls how much resolver tracing reaches the DebugLogger.
type DebugLevel int32

const (
	// DebugOff disables all debug logging.
	DebugOff DebugLevel = iota
	// DebugBasic traces which backend answered, cache hits and failures.
	DebugBasic
	// DebugVerbose adds per-packet NetBIOS and cache detail.
	DebugVerbose
)

var debugLevelNames = [...]string{"off", "basic", "verbose"}

func (l DebugLevel) String() string {
	if l < 0 || int(l) >= len(debugLevelNames) {
		return fmt.Sprintf("DebugLevel(%d)", int32(l))
	}
	return debugLevelNames[l]
}

// ParseDebugLevel maps "off", "basic" and "verbose" to a level. The empty
// string is off.
func ParseDebugLevel(s string) (DebugLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DebugOff, nil
	}
	for i, name := range debugLevelNames {
		if s == name {
			return DebugLevel(i), nil
		}
	}
	return DebugOff, fmt.Errorf("unknown debug level %q", s)
}

// DebugLogger receives resolver trace messages tagged with the component
// that produced them.
type DebugLogger func(method Method, format string, args ...interface{})

var (
	debugLogger atomic.Pointer[DebugLogger]
	debugLevel  atomic.Int32
)

// SetDebugLogger installs the trace callback. Nil disables tracing.
func SetDebugLogger(logger DebugLogger) {
	if logger == nil {
		debugLogger.Store(nil)
		return
	}
	debugLogger.Store(&logger)
}

// SetDebugLevel sets the trace verbosity.
func SetDebugLevel(level DebugLevel) {
	debugLevel.Store(int32(level))
}

// GetDebugLevel returns the current trace verbosity.
func GetDebugLevel() DebugLevel {
	return DebugLevel(debugLevel.Load())
}

func emit(threshold DebugLevel, method Method, format string, args []interface{}) {
	if GetDebugLevel() < threshold {
		return
	}
	if logger := debugLogger.Load(); logger != nil {
		(*logger)(method, format, args...)
	}
}

func debugLog(method Method, format string, args ...interface{}) {
	emit(DebugBasic, method, format, args)
}

func debugLogVerbose(method Method, format string, args ...interface{}) {
	emit(DebugVerbose, method, format, args)
}

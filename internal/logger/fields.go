package logger

import (
	"log/slog"
	"time"
)

// Standard field keys.
const (
	KeyName      = "name"
	KeyType      = "type"
	KeyAddr      = "addr"
	KeyDomain    = "domain"
	KeySite      = "site"
	KeyBackend   = "backend"
	KeyCount     = "count"
	KeyDuration  = "duration_ms"
	KeyError     = "error"
	KeyRequestID = "request_id"
	KeyMethod    = "method"
	KeyPath      = "path"
	KeyStatus    = "status"
)

// Err returns an error attribute, or an empty one for a nil error.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// DurationMs returns the time since start in milliseconds.
func DurationMs(start time.Time) slog.Attr {
	return slog.Float64(KeyDuration, Duration(start))
}

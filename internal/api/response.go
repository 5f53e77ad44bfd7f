package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/marcuoli/go-nameresolve/internal/logger"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve"
	"github.com/marcuoli/go-nameresolve/pkg/nameresolve/nmb"
)

// Response is the envelope of every API reply.
type Response struct {
	Status    string      `json:"status" yaml:"status"`
	Timestamp time.Time   `json:"timestamp" yaml:"timestamp"`
	Data      interface{} `json:"data,omitempty" yaml:"data,omitempty"`
	Error     string      `json:"error,omitempty" yaml:"error,omitempty"`
}

// Address is one resolved address.
type Address struct {
	Addr string `json:"addr" yaml:"addr"`
	Port uint16 `json:"port,omitempty" yaml:"port,omitempty"`
}

// ResolveResult is the payload of /v1/resolve.
type ResolveResult struct {
	Name  string    `json:"name" yaml:"name"`
	Type  string    `json:"type" yaml:"type"`
	Addrs []Address `json:"addrs" yaml:"addrs"`
}

// DCListResult is the payload of /v1/dclist.
type DCListResult struct {
	Domain  string    `json:"domain" yaml:"domain"`
	Site    string    `json:"site,omitempty" yaml:"site,omitempty"`
	Servers []Address `json:"servers" yaml:"servers"`
}

// NameEntry is one row of a node status name table.
type NameEntry struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Group       bool   `json:"group" yaml:"group"`
	Active      bool   `json:"active" yaml:"active"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// StatusResult is the payload of /v1/status.
type StatusResult struct {
	Addr      string      `json:"addr" yaml:"addr"`
	Hostname  string      `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	MAC       string      `json:"mac,omitempty" yaml:"mac,omitempty"`
	MACSource string      `json:"mac_source,omitempty" yaml:"mac_source,omitempty"`
	Vendor    string      `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	Names     []NameEntry `json:"names" yaml:"names"`
}

// Addresses converts a resolver list for output.
func Addresses(list []nameresolve.Service) []Address {
	out := make([]Address, 0, len(list))
	for _, s := range list {
		a := Address{Addr: s.Addr.String()}
		if s.Port != nameresolve.PortNone {
			a.Port = s.Port
		}
		out = append(out, a)
	}
	return out
}

// NewStatusResult converts a node status reply for output.
func NewStatusResult(hs *nameresolve.HostStatus) StatusResult {
	res := StatusResult{
		Addr:      hs.Addr.String(),
		Hostname:  hs.Hostname,
		MACSource: hs.MACSource,
		Vendor:    hs.Vendor,
		Names:     make([]NameEntry, 0, len(hs.Names)),
	}
	if hs.MAC != nil {
		res.MAC = hs.MAC.String()
	}
	for _, n := range hs.Names {
		res.Names = append(res.Names, nameEntry(n))
	}
	return res
}

func nameEntry(n nmb.NodeName) NameEntry {
	return NameEntry{
		Name:        n.Name,
		Type:        nameresolve.NameType(n.Type).String(),
		Group:       n.IsGroup(),
		Active:      n.IsActive(),
		Description: n.Description(),
	}
}

// writeJSON encodes to a buffer first so an encoding failure can still
// produce an error response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", logger.Err(err))
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func writeOK(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, Response{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, Response{
		Status:    "error",
		Timestamp: time.Now().UTC(),
		Error:     err.Error(),
	})
}

// errorStatus maps resolver errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, nameresolve.ErrNotFound),
		errors.Is(err, nameresolve.ErrNoLogonServers),
		errors.Is(err, nameresolve.ErrBadNetworkName):
		return http.StatusNotFound
	case errors.Is(err, nameresolve.ErrInvalidParameter),
		errors.Is(err, nameresolve.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, nameresolve.ErrNetBIOSDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, nameresolve.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

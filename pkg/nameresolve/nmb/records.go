package nmb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"strings"
)

const (
	addrEntryLen = 6
	nodeNameLen  = 18

	// NameFlagGroup marks a group name in NB and NBSTAT records.
	NameFlagGroup uint16 = 0x8000
	// NameFlagActive marks an active name in NBSTAT records.
	NameFlagActive uint16 = 0x0400
)

// AddrEntry is one address of a name query answer.
type AddrEntry struct {
	Addr     netip.Addr
	Group    bool
	NodeType uint8
}

// ParseAddrEntries decodes the rdata of an NB answer. A trailing partial
// entry is ignored.
func ParseAddrEntries(data []byte) []AddrEntry {
	var out []AddrEntry
	for off := 0; off+addrEntryLen <= len(data); off += addrEntryLen {
		flags := binary.BigEndian.Uint16(data[off : off+2])
		var a [4]byte
		copy(a[:], data[off+2:off+6])
		out = append(out, AddrEntry{
			Addr:     netip.AddrFrom4(a),
			Group:    flags&NameFlagGroup != 0,
			NodeType: uint8(flags>>13) & 0x03,
		})
	}
	return out
}

// MarshalAddrEntries encodes NB rdata. Non-IPv4 addresses are skipped.
func MarshalAddrEntries(entries []AddrEntry) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		if !e.Addr.Is4() && !e.Addr.Is4In6() {
			continue
		}
		flags := uint16(e.NodeType&0x03) << 13
		if e.Group {
			flags |= NameFlagGroup
		}
		_ = binary.Write(&buf, binary.BigEndian, flags)
		a := e.Addr.Unmap().As4()
		buf.Write(a[:])
	}
	return buf.Bytes()
}

// NodeName is one entry of a node status name table.
type NodeName struct {
	Name  string
	Type  byte
	Flags uint16
}

// IsGroup reports whether the name is a group name.
func (n NodeName) IsGroup() bool { return n.Flags&NameFlagGroup != 0 }

// IsActive reports whether the name is active.
func (n NodeName) IsActive() bool { return n.Flags&NameFlagActive != 0 }

// Description returns the conventional meaning of the name type.
func (n NodeName) Description() string { return SuffixDescription(n.Type) }

// NodeStatus is the decoded rdata of a node status answer.
type NodeStatus struct {
	Names []NodeName
	MAC   net.HardwareAddr
}

// Hostname returns the first unique workstation name, if any.
func (s *NodeStatus) Hostname() string {
	for _, n := range s.Names {
		if n.Type == 0x00 && !n.IsGroup() {
			return n.Name
		}
	}
	return ""
}

// ParseNodeStatus decodes NBSTAT rdata. Entries that run past the end of the
// data are dropped; the MAC is set only when six bytes follow the table.
func ParseNodeStatus(data []byte) (*NodeStatus, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty node status", ErrShortPacket)
	}
	numNames := int(data[0])
	off := 1
	st := &NodeStatus{}
	for i := 0; i < numNames && off+nodeNameLen <= len(data); i++ {
		entry := data[off : off+nodeNameLen]
		st.Names = append(st.Names, NodeName{
			Name:  strings.TrimRight(string(entry[0:15]), " \x00"),
			Type:  entry[15],
			Flags: binary.BigEndian.Uint16(entry[16:18]),
		})
		off += nodeNameLen
	}
	if off+6 <= len(data) {
		st.MAC = net.HardwareAddr(bytes.Clone(data[off : off+6]))
	}
	return st, nil
}

// MarshalNodeStatus encodes NBSTAT rdata.
func MarshalNodeStatus(st *NodeStatus) ([]byte, error) {
	if len(st.Names) > 0xFF {
		return nil, fmt.Errorf("nmb: too many names: %d", len(st.Names))
	}
	var buf bytes.Buffer
	buf.WriteByte(byte(len(st.Names)))
	for _, n := range st.Names {
		raw := Name{Name: n.Name, Type: n.Type}.raw()
		buf.Write(raw[:])
		_ = binary.Write(&buf, binary.BigEndian, n.Flags)
	}
	mac := make([]byte, 6)
	copy(mac, st.MAC)
	buf.Write(mac)
	return buf.Bytes(), nil
}

// SuffixDescription describes a NetBIOS name type.
func SuffixDescription(suffix byte) string {
	switch suffix {
	case 0x00:
		return "Workstation"
	case 0x03:
		return "Messenger"
	case 0x06:
		return "RAS Server"
	case 0x1B:
		return "Domain Master Browser"
	case 0x1C:
		return "Domain Controller"
	case 0x1D:
		return "Local Master Browser"
	case 0x1E:
		return "Browser Election"
	case 0x1F:
		return "NetDDE"
	case 0x20:
		return "File Server"
	case 0x21:
		return "RAS Client"
	case 0xBE:
		return "Network Monitor Agent"
	case 0xBF:
		return "Network Monitor Utility"
	default:
		return fmt.Sprintf("Unknown (0x%02X)", suffix)
	}
}

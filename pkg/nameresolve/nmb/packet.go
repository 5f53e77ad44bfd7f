// Package nmb encodes and decodes NetBIOS name service packets (RFC 1001/1002).
//
// The layout resembles DNS but the record types and flag bits overlap DNS
// meanings, so the codec is kept separate from any DNS library.
package nmb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	// Port is the UDP port of the NetBIOS name service.
	Port = 137
	// MaxPacketSize bounds the datagrams read from the wire.
	MaxPacketSize = 8192

	// TypeNB is the general name query/answer record type.
	TypeNB uint16 = 0x0020
	// TypeNBSTAT is the node status record type.
	TypeNBSTAT uint16 = 0x0021
	// ClassIN is the only class used by the name service.
	ClassIN uint16 = 0x0001

	// OpcodeQuery is the name query opcode.
	OpcodeQuery uint8 = 0
)

// Response codes.
const (
	RcodeOK          uint8 = 0
	RcodeFormatError uint8 = 1
	RcodeServerError uint8 = 2
	RcodeNameError   uint8 = 3
	RcodeNotImpl     uint8 = 4
	RcodeRefused     uint8 = 5
)

const headerLen = 12

var (
	// ErrShortPacket is returned when a packet ends before its declared contents.
	ErrShortPacket = errors.New("nmb: short packet")
	// ErrBadName is returned for a malformed encoded name.
	ErrBadName = errors.New("nmb: malformed name")
)

// Flags is the set of NM flags carried by a response.
type Flags uint8

const (
	FlagAuthoritative Flags = 1 << iota
	FlagTruncated
	FlagRecursionDesired
	FlagRecursionAvailable
	FlagBroadcast
)

// Has reports whether all bits of x are set.
func (f Flags) Has(x Flags) bool { return f&x == x }

func (f Flags) String() string {
	var parts []string
	for _, fl := range []struct {
		bit  Flags
		name string
	}{
		{FlagAuthoritative, "AA"},
		{FlagTruncated, "TC"},
		{FlagRecursionDesired, "RD"},
		{FlagRecursionAvailable, "RA"},
		{FlagBroadcast, "B"},
	} {
		if f.Has(fl.bit) {
			parts = append(parts, fl.name)
		}
	}
	return strings.Join(parts, "|")
}

// Header is the fixed part of every name service packet.
type Header struct {
	TrnID              uint16
	Response           bool
	Opcode             uint8
	Authoritative      bool
	Truncated          bool
	RecursionDesired   bool
	RecursionAvailable bool
	Broadcast          bool
	Rcode              uint8
}

// Flags returns the NM flags of the header.
func (h Header) Flags() Flags {
	var f Flags
	if h.Authoritative {
		f |= FlagAuthoritative
	}
	if h.Truncated {
		f |= FlagTruncated
	}
	if h.RecursionDesired {
		f |= FlagRecursionDesired
	}
	if h.RecursionAvailable {
		f |= FlagRecursionAvailable
	}
	if h.Broadcast {
		f |= FlagBroadcast
	}
	return f
}

func (h Header) word() uint16 {
	var w uint16
	if h.Response {
		w |= 0x8000
	}
	w |= uint16(h.Opcode&0x0F) << 11
	if h.Authoritative {
		w |= 0x0400
	}
	if h.Truncated {
		w |= 0x0200
	}
	if h.RecursionDesired {
		w |= 0x0100
	}
	if h.RecursionAvailable {
		w |= 0x0080
	}
	if h.Broadcast {
		w |= 0x0010
	}
	w |= uint16(h.Rcode & 0x0F)
	return w
}

func headerFromWord(trnID, w uint16) Header {
	return Header{
		TrnID:              trnID,
		Response:           w&0x8000 != 0,
		Opcode:             uint8(w>>11) & 0x0F,
		Authoritative:      w&0x0400 != 0,
		Truncated:          w&0x0200 != 0,
		RecursionDesired:   w&0x0100 != 0,
		RecursionAvailable: w&0x0080 != 0,
		Broadcast:          w&0x0010 != 0,
		Rcode:              uint8(w & 0x0F),
	}
}

// Question is an entry of the question section.
type Question struct {
	Name  Name
	Type  uint16
	Class uint16
}

// Resource is an answer, authority or additional record.
type Resource struct {
	Name  Name
	Type  uint16
	Class uint16
	TTL   uint32
	Data  []byte
}

// Packet is a decoded name service packet.
type Packet struct {
	Header     Header
	Questions  []Question
	Answers    []Resource
	Authority  []Resource
	Additional []Resource
}

// Marshal encodes the packet for the wire.
func (p *Packet) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.BigEndian, p.Header.TrnID)
	_ = binary.Write(&buf, binary.BigEndian, p.Header.word())
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(p.Questions)))
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(p.Answers)))
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(p.Authority)))
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(p.Additional)))

	for _, q := range p.Questions {
		if err := q.Name.encode(&buf); err != nil {
			return nil, err
		}
		_ = binary.Write(&buf, binary.BigEndian, q.Type)
		_ = binary.Write(&buf, binary.BigEndian, q.Class)
	}
	for _, section := range [][]Resource{p.Answers, p.Authority, p.Additional} {
		for _, rr := range section {
			if len(rr.Data) > 0xFFFF {
				return nil, fmt.Errorf("nmb: record data too long: %d bytes", len(rr.Data))
			}
			if err := rr.Name.encode(&buf); err != nil {
				return nil, err
			}
			_ = binary.Write(&buf, binary.BigEndian, rr.Type)
			_ = binary.Write(&buf, binary.BigEndian, rr.Class)
			_ = binary.Write(&buf, binary.BigEndian, rr.TTL)
			_ = binary.Write(&buf, binary.BigEndian, uint16(len(rr.Data)))
			buf.Write(rr.Data)
		}
	}
	if buf.Len() > MaxPacketSize {
		return nil, fmt.Errorf("nmb: packet too large: %d bytes", buf.Len())
	}
	return buf.Bytes(), nil
}

// Parse decodes a packet. The returned packet does not alias data.
func Parse(data []byte) (*Packet, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(data))
	}
	data = bytes.Clone(data)

	p := &Packet{
		Header: headerFromWord(binary.BigEndian.Uint16(data[0:2]), binary.BigEndian.Uint16(data[2:4])),
	}
	qd := int(binary.BigEndian.Uint16(data[4:6]))
	an := int(binary.BigEndian.Uint16(data[6:8]))
	ns := int(binary.BigEndian.Uint16(data[8:10]))
	ar := int(binary.BigEndian.Uint16(data[10:12]))

	off := headerLen
	for i := 0; i < qd; i++ {
		name, next, err := decodeName(data, off)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		if next+4 > len(data) {
			return nil, ErrShortPacket
		}
		p.Questions = append(p.Questions, Question{
			Name:  name,
			Type:  binary.BigEndian.Uint16(data[next : next+2]),
			Class: binary.BigEndian.Uint16(data[next+2 : next+4]),
		})
		off = next + 4
	}

	var err error
	if p.Answers, off, err = parseResources(data, off, an); err != nil {
		return nil, fmt.Errorf("answers: %w", err)
	}
	if p.Authority, off, err = parseResources(data, off, ns); err != nil {
		return nil, fmt.Errorf("authority: %w", err)
	}
	if p.Additional, _, err = parseResources(data, off, ar); err != nil {
		return nil, fmt.Errorf("additional: %w", err)
	}
	return p, nil
}

func parseResources(data []byte, off, count int) ([]Resource, int, error) {
	var out []Resource
	for i := 0; i < count; i++ {
		name, next, err := decodeName(data, off)
		if err != nil {
			return nil, 0, err
		}
		if next+10 > len(data) {
			return nil, 0, ErrShortPacket
		}
		rr := Resource{
			Name:  name,
			Type:  binary.BigEndian.Uint16(data[next : next+2]),
			Class: binary.BigEndian.Uint16(data[next+2 : next+4]),
			TTL:   binary.BigEndian.Uint32(data[next+4 : next+8]),
		}
		rdlen := int(binary.BigEndian.Uint16(data[next+8 : next+10]))
		off = next + 10
		if off+rdlen > len(data) {
			return nil, 0, ErrShortPacket
		}
		rr.Data = data[off : off+rdlen]
		off += rdlen
		out = append(out, rr)
	}
	return out, off, nil
}

// NewNameQuery builds a name query request for name.
func NewNameQuery(trnID uint16, name Name, bcast, recurse bool) *Packet {
	return &Packet{
		Header: Header{
			TrnID:            trnID,
			Opcode:           OpcodeQuery,
			RecursionDesired: recurse,
			Broadcast:        bcast,
		},
		Questions: []Question{{Name: name, Type: TypeNB, Class: ClassIN}},
	}
}

// NewNodeStatusQuery builds a node status request for name.
func NewNodeStatusQuery(trnID uint16, name Name) *Packet {
	return &Packet{
		Header:    Header{TrnID: trnID, Opcode: OpcodeQuery},
		Questions: []Question{{Name: name, Type: TypeNBSTAT, Class: ClassIN}},
	}
}

// NewNameQueryResponse builds a positive name query response carrying entries.
func NewNameQueryResponse(trnID uint16, name Name, ttl uint32, entries []AddrEntry) *Packet {
	return &Packet{
		Header: Header{
			TrnID:            trnID,
			Response:         true,
			Opcode:           OpcodeQuery,
			Authoritative:    true,
			RecursionDesired: true,
		},
		Answers: []Resource{{
			Name:  name,
			Type:  TypeNB,
			Class: ClassIN,
			TTL:   ttl,
			Data:  MarshalAddrEntries(entries),
		}},
	}
}

// NewNegativeResponse builds a name query response with an error rcode.
func NewNegativeResponse(trnID uint16, name Name, rcode uint8) *Packet {
	return &Packet{
		Header: Header{
			TrnID:            trnID,
			Response:         true,
			Opcode:           OpcodeQuery,
			Authoritative:    true,
			RecursionDesired: true,
			Rcode:            rcode,
		},
		Answers: []Resource{{Name: name, Type: TypeNB, Class: ClassIN}},
	}
}

// NewNodeStatusResponse builds a node status response.
func NewNodeStatusResponse(trnID uint16, name Name, status *NodeStatus) (*Packet, error) {
	data, err := MarshalNodeStatus(status)
	if err != nil {
		return nil, err
	}
	return &Packet{
		Header: Header{TrnID: trnID, Response: true, Opcode: OpcodeQuery, Authoritative: true},
		Answers: []Resource{{
			Name:  name,
			Type:  TypeNBSTAT,
			Class: ClassIN,
			Data:  data,
		}},
	}, nil
}

// RcodeText describes a negative response code.
func RcodeText(rcode uint8) string {
	switch rcode {
	case RcodeFormatError:
		return "Request was invalidly formatted."
	case RcodeServerError:
		return "Problem with NBNS, cannot process name."
	case RcodeNameError:
		return "The name requested does not exist."
	case RcodeNotImpl:
		return "Unsupported request error."
	case RcodeRefused:
		return "Query refused error."
	default:
		return "Unrecognized error code."
	}
}

package nmb

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	// NameLength is the number of significant characters in a NetBIOS name.
	NameLength = 15

	encodedLength = 32
	maxLabel      = 63
	maxPointers   = 16
)

// Name is a NetBIOS name with its type suffix and optional scope.
type Name struct {
	Name  string
	Type  byte
	Scope string
}

// String renders the name the way nmblookup does, e.g. "FILESRV<20>".
func (n Name) String() string {
	s := fmt.Sprintf("%s<%02x>", n.Name, n.Type)
	if n.Scope != "" {
		s += "." + n.Scope
	}
	return s
}

// raw returns the 16 byte form: upper-cased, space padded to 15 characters
// and followed by the type. The wildcard "*" is padded with NULs instead.
func (n Name) raw() [16]byte {
	var b [16]byte
	if n.Name == "*" {
		b[0] = '*'
		b[15] = n.Type
		return b
	}
	name := strings.ToUpper(n.Name)
	if len(name) > NameLength {
		name = name[:NameLength]
	}
	copy(b[:], name)
	for i := len(name); i < NameLength; i++ {
		b[i] = ' '
	}
	b[15] = n.Type
	return b
}

// encode writes the RFC 1001 first-level encoding of n into buf.
func (n Name) encode(buf *bytes.Buffer) error {
	buf.WriteByte(encodedLength)
	for _, c := range n.raw() {
		buf.WriteByte('A' + (c >> 4))
		buf.WriteByte('A' + (c & 0x0F))
	}
	if n.Scope != "" {
		for _, label := range strings.Split(n.Scope, ".") {
			if label == "" || len(label) > maxLabel {
				return fmt.Errorf("%w: bad scope label %q", ErrBadName, label)
			}
			buf.WriteByte(byte(len(label)))
			buf.WriteString(label)
		}
	}
	buf.WriteByte(0)
	return nil
}

// decodeName reads an encoded name starting at off and returns it with the
// offset of the first byte after it. Compression pointers are followed.
func decodeName(data []byte, off int) (Name, int, error) {
	var (
		n      Name
		labels []string
		end    = -1
		hops   int
		first  = true
	)
	for {
		if off >= len(data) {
			return n, 0, ErrShortPacket
		}
		l := int(data[off])
		switch {
		case l == 0:
			off++
			if end < 0 {
				end = off
			}
			n.Scope = strings.Join(labels, ".")
			return n, end, nil
		case l&0xC0 == 0xC0:
			if off+1 >= len(data) {
				return n, 0, ErrShortPacket
			}
			hops++
			if hops > maxPointers {
				return n, 0, fmt.Errorf("%w: pointer loop", ErrBadName)
			}
			if end < 0 {
				end = off + 2
			}
			off = (l&0x3F)<<8 | int(data[off+1])
			continue
		case l > maxLabel:
			return n, 0, fmt.Errorf("%w: label length %d", ErrBadName, l)
		}
		off++
		if off+l > len(data) {
			return n, 0, ErrShortPacket
		}
		label := data[off : off+l]
		off += l
		if first {
			first = false
			if l != encodedLength {
				return n, 0, fmt.Errorf("%w: encoded length %d", ErrBadName, l)
			}
			var raw [16]byte
			for i := 0; i < 16; i++ {
				hi, lo := label[2*i]-'A', label[2*i+1]-'A'
				if hi > 0x0F || lo > 0x0F {
					return n, 0, fmt.Errorf("%w: bad character", ErrBadName)
				}
				raw[i] = hi<<4 | lo
			}
			n.Name = strings.TrimRight(string(raw[:NameLength]), " \x00")
			n.Type = raw[15]
			continue
		}
		labels = append(labels, string(label))
	}
}

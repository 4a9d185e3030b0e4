// Package codec encodes and decodes the fixed-layout mesh packet to and from
// its on-air byte representation.
//
// The wire format matches the firmware's message_t struct field-for-field
// (§3 of the design): every field sits at a fixed offset and the total size
// is constant. Numeric fields are stored in the target family's native byte
// order; every known target for this firmware (ESP32/Xtensa, Cortex-M) is
// little-endian, so that's what this codec uses.
package codec

import (
	"encoding/binary"
	"errors"

	"github.com/kabili207/espmesh-go/core/address"
)

const (
	// PayloadSize is the width of the opaque application payload.
	PayloadSize = 64

	// MaxNodes is the maximum number of hops a path can record.
	MaxNodes = 9

	// KindBroadcast marks a broadcast/discovery packet.
	KindBroadcast = 1
	// KindData marks a data packet.
	KindData = 2

	// WireSize is the total encoded size of a Packet, in bytes.
	WireSize = PayloadSize + 1 /*ttl*/ + 1 /*kind*/ + 1 /*bcastAck*/ + 1 /*dataAck*/ +
		address.Size /*dst*/ + address.Size /*src*/ + 4 /*packetID*/ +
		(MaxNodes * address.Size) /*path*/ + 1 /*pathIndex*/ + 1 /*pathLength*/ + 1 /*pathExists*/
)

var nativeEndian = binary.LittleEndian

// ErrMalformed is returned when decoding a buffer that is too short or
// internally inconsistent to be a valid Packet.
var ErrMalformed = errors.New("codec: malformed packet")

// Packet is the in-memory representation of one mesh datagram.
//
// Path/PathIndex/PathLength/PathExists carry the source-routed forwarding
// state described in §4.6–§4.7: when PathExists is true, Path is
// prescriptive (the packet must follow exactly this route); when false,
// Path is being accumulated as the packet travels toward its destination.
type Packet struct {
	Payload [PayloadSize]byte

	TTL      uint8
	Kind     uint8
	BcastAck bool
	DataAck  bool

	Dst address.Address
	Src address.Address

	PacketID uint32

	Path       [MaxNodes]address.Address
	PathIndex  uint8
	PathLength uint8
	PathExists bool
}

// SetText truncates s to PayloadSize-1 bytes and NUL-terminates it into
// Payload. Longer inputs are silently truncated, per §4.1.
func (p *Packet) SetText(s string) {
	var buf [PayloadSize]byte
	n := copy(buf[:PayloadSize-1], s)
	buf[n] = 0
	p.Payload = buf
}

// Text returns the payload interpreted as a NUL-terminated string.
func (p *Packet) Text() string {
	n := 0
	for n < len(p.Payload) && p.Payload[n] != 0 {
		n++
	}
	return string(p.Payload[:n])
}

// Clone returns a deep copy of p. Packet has no reference fields so this is
// a plain value copy, but Clone exists to make forwarding code's intent
// explicit (the caller is taking an independent copy before mutating it).
func (p *Packet) Clone() *Packet {
	clone := *p
	return &clone
}

// Encode writes p to its fixed-size wire representation.
func (p *Packet) Encode() [WireSize]byte {
	var buf [WireSize]byte
	i := 0

	copy(buf[i:], p.Payload[:])
	i += PayloadSize

	buf[i] = p.TTL
	i++
	buf[i] = p.Kind
	i++
	buf[i] = boolByte(p.BcastAck)
	i++
	buf[i] = boolByte(p.DataAck)
	i++

	copy(buf[i:], p.Dst[:])
	i += address.Size
	copy(buf[i:], p.Src[:])
	i += address.Size

	nativeEndian.PutUint32(buf[i:], p.PacketID)
	i += 4

	for n := 0; n < MaxNodes; n++ {
		copy(buf[i:], p.Path[n][:])
		i += address.Size
	}

	buf[i] = p.PathIndex
	i++
	buf[i] = p.PathLength
	i++
	buf[i] = boolByte(p.PathExists)
	i++

	return buf
}

// Decode parses a wire buffer into a Packet. The buffer must be at least
// WireSize bytes; anything shorter is ErrMalformed.
func Decode(data []byte) (*Packet, error) {
	if len(data) < WireSize {
		return nil, ErrMalformed
	}

	p := &Packet{}
	i := 0

	copy(p.Payload[:], data[i:i+PayloadSize])
	i += PayloadSize

	p.TTL = data[i]
	i++
	p.Kind = data[i]
	i++
	p.BcastAck = data[i] != 0
	i++
	p.DataAck = data[i] != 0
	i++

	copy(p.Dst[:], data[i:i+address.Size])
	i += address.Size
	copy(p.Src[:], data[i:i+address.Size])
	i += address.Size

	p.PacketID = nativeEndian.Uint32(data[i:])
	i += 4

	for n := 0; n < MaxNodes; n++ {
		copy(p.Path[n][:], data[i:i+address.Size])
		i += address.Size
	}

	p.PathIndex = data[i]
	i++
	p.PathLength = data[i]
	i++
	p.PathExists = data[i] != 0
	i++

	if p.PathLength > MaxNodes || p.PathIndex > p.PathLength {
		return nil, ErrMalformed
	}

	return p, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

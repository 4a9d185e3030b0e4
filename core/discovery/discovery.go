// Package discovery implements path recording for packets sent without a
// cached route (§4.6): every hop appends itself to the packet's Path, the
// destination reverses the accumulated list into an ack, and the
// originator reverses it back before committing it to the path cache.
//
// Grounded on the reference firmware's AppendBaseMAC (append-self-and-bump-
// counters) and ReverseArray (in-place reversal), translated from fixed
// C arrays to Go slices over codec.Packet's Path/PathIndex/PathLength
// fields.
package discovery

import (
	"errors"

	"github.com/kabili207/espmesh-go/core/address"
	"github.com/kabili207/espmesh-go/core/codec"
)

// ErrPathFull is returned by AppendHop when the packet's path already has
// codec.MaxNodes hops recorded.
var ErrPathFull = errors.New("discovery: path is full")

// AppendHop appends self to pkt's recorded path and advances PathIndex and
// PathLength, mutating pkt in place.
func AppendHop(pkt *codec.Packet, self address.Address) error {
	if int(pkt.PathLength) >= codec.MaxNodes {
		return ErrPathFull
	}
	pkt.Path[pkt.PathLength] = self
	pkt.PathLength++
	pkt.PathIndex = pkt.PathLength
	return nil
}

// Hops returns the recorded path as a plain slice of length PathLength.
func Hops(pkt *codec.Packet) []address.Address {
	hops := make([]address.Address, pkt.PathLength)
	copy(hops, pkt.Path[:pkt.PathLength])
	return hops
}

// Reverse reverses hops in place and returns it, for symmetry with the
// callers that want the expression form. Reverse is its own inverse:
// applying it twice restores the original order (§8 round-trip law).
func Reverse(hops []address.Address) []address.Address {
	for i, j := 0, len(hops)-1; i < j; i, j = i+1, j-1 {
		hops[i], hops[j] = hops[j], hops[i]
	}
	return hops
}

// SetHops overwrites pkt's recorded path with hops, which must have length
// <= codec.MaxNodes.
func SetHops(pkt *codec.Packet, hops []address.Address) error {
	if len(hops) > codec.MaxNodes {
		return ErrPathFull
	}
	var path [codec.MaxNodes]address.Address
	copy(path[:], hops)
	pkt.Path = path
	pkt.PathLength = uint8(len(hops))
	pkt.PathIndex = pkt.PathLength
	pkt.PathExists = true
	return nil
}

// BuildAckPath produces the path to embed in a data-ack: the destination's
// own view of the route so far (the originator-to-destination hop list,
// with the destination itself appended), reversed into destination-to-
// originator order for retracing on the way back.
func BuildAckPath(pkt *codec.Packet, self address.Address) ([]address.Address, error) {
	if err := AppendHop(pkt, self); err != nil {
		return nil, err
	}
	return Reverse(Hops(pkt)), nil
}

// RecordFromAck recovers the originator-first path to commit to the path
// cache from a data-ack's embedded (destination-first) path.
func RecordFromAck(ackHops []address.Address) []address.Address {
	out := make([]address.Address, len(ackHops))
	copy(out, ackHops)
	return Reverse(out)
}

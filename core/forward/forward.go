// Package forward implements the forwarding engine (§4.7): the decision of
// what to do with a received packet whose destination is neither this node
// nor the broadcast address. Grounded on device/router/router.go's
// HandlePacket gating logic (TTL/dedupe/path checks before a forward
// decision is made), narrowed to this spec's exact 4-step algorithm and
// its source-routed-or-flood dichotomy instead of MeshCore's flood/direct/
// trace variants.
package forward

import (
	"errors"

	"github.com/kabili207/espmesh-go/core/address"
	"github.com/kabili207/espmesh-go/core/codec"
)

// ErrPathDesynchronised is returned when a source-routed packet names this
// node at an index that doesn't match its actual position, which should
// never happen absent a malformed or attacking peer.
var ErrPathDesynchronised = errors.New("forward: path desynchronised")

// Kind distinguishes the action Decide recommends.
type Kind int

const (
	// Drop discards the packet without retransmission.
	Drop Kind = iota
	// Unicast retransmits the packet (unmodified except as already
	// mutated by Decide) to exactly one neighbour.
	Unicast
	// Flood retransmits the packet to every neighbour in To.
	Flood
)

// Action is the outcome of a forwarding decision.
type Action struct {
	Kind Kind
	To   []address.Address
}

// Decide applies the 4-step forwarding algorithm to pkt, which is assumed
// already addressed to neither self nor the broadcast address. pkt is
// mutated in place (PathIndex advanced, or TTL decremented and Path
// extended) to reflect the retransmission the caller should perform.
func Decide(pkt *codec.Packet, self, arrivedFrom address.Address, neighbours []address.Address) (Action, error) {
	// 1. TTL exhausted.
	if pkt.TTL == 0 {
		return Action{Kind: Drop}, nil
	}

	if pkt.PathExists {
		// 2. Source-routed and we are the expected next hop.
		if int(pkt.PathIndex) < codec.MaxNodes && pkt.Path[pkt.PathIndex] == self {
			pkt.PathIndex++
			if int(pkt.PathIndex) >= codec.MaxNodes {
				return Action{Kind: Drop}, ErrPathDesynchronised
			}
			next := pkt.Path[pkt.PathIndex]
			return Action{Kind: Unicast, To: []address.Address{next}}, nil
		}
		// 3. Source-routed but we are not where the route expects us.
		return Action{Kind: Drop}, ErrPathDesynchronised
	}

	// 4. No route yet: flood, recording our own hop and bounding by TTL.
	if int(pkt.PathLength) < codec.MaxNodes {
		pkt.Path[pkt.PathLength] = self
		pkt.PathLength++
		pkt.PathIndex = pkt.PathLength
	}
	pkt.TTL--

	targets := make([]address.Address, 0, len(neighbours))
	for _, n := range neighbours {
		if n != arrivedFrom {
			targets = append(targets, n)
		}
	}
	if len(targets) == 0 {
		return Action{Kind: Drop}, nil
	}
	return Action{Kind: Flood, To: targets}, nil
}

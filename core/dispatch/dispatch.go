// Package dispatch classifies a received packet into the tagged variant
// the session loop switches on (§4.9), rather than letting callers branch
// on the Kind/BcastAck/DataAck fields directly. Grounded on
// transport/interfaces.go's small enum-with-String() idiom (Event,
// PacketSource).
package dispatch

import (
	"errors"

	"github.com/kabili207/espmesh-go/core/codec"
)

// Variant is the classification of a received packet.
type Variant int

const (
	Broadcast Variant = iota
	BroadcastAck
	Data
	DataAck
)

func (v Variant) String() string {
	switch v {
	case Broadcast:
		return "broadcast"
	case BroadcastAck:
		return "broadcast_ack"
	case Data:
		return "data"
	case DataAck:
		return "data_ack"
	default:
		return "unknown"
	}
}

// ErrUnknownKind is returned by Classify for a packet whose Kind is
// neither codec.KindBroadcast nor codec.KindData.
var ErrUnknownKind = errors.New("dispatch: unrecognized packet kind")

// Classify returns the tagged variant of pkt.
func Classify(pkt *codec.Packet) (Variant, error) {
	switch pkt.Kind {
	case codec.KindBroadcast:
		if pkt.BcastAck {
			return BroadcastAck, nil
		}
		return Broadcast, nil
	case codec.KindData:
		if pkt.DataAck {
			return DataAck, nil
		}
		return Data, nil
	default:
		return 0, ErrUnknownKind
	}
}

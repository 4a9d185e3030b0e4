// Package radio defines the link-layer boundary a mesh.Node drives (§4.11,
// §6): an ESP-NOW-like broadcast-medium peer-to-peer radio. Grounded on
// transport/interfaces.go's Transport interface shape (Start/Stop/
// connected-callback pattern), narrowed to the reference firmware's
// esp_now_* call surface instead of a stream transport.
package radio

import (
	"github.com/kabili207/espmesh-go/core/address"
	"github.com/kabili207/espmesh-go/core/peer"
)

// Driver is the external collaborator mesh.Node uses to send and receive
// raw link-layer datagrams. A real implementation wraps an ESP-NOW or LoRa
// radio; radio/loopback supplies an in-process reference implementation
// for tests and local simulation.
type Driver interface {
	// Init prepares the radio for use (e.g. esp_now_init()).
	Init() error

	// SetPMK installs the primary link-layer key.
	SetPMK(key [16]byte) error

	// AddPeer registers addr as a link-layer peer, optionally encrypted
	// with linkKey.
	AddPeer(addr address.Address, linkKey [16]byte, encrypt bool) error

	// DeletePeer removes a previously added peer.
	DeletePeer(addr address.Address) error

	// HasPeer reports whether addr is a registered peer.
	HasPeer(addr address.Address) bool

	// GetPeer returns the registered entry for addr, if any.
	GetPeer(addr address.Address) (peer.Entry, bool)

	// Send transmits payload to addr. Completion (success or failure) is
	// reported asynchronously via the callback registered with
	// OnSendComplete.
	Send(addr address.Address, payload []byte) error

	// OnSendComplete registers the callback invoked after each Send
	// resolves.
	OnSendComplete(fn func(addr address.Address, err error))

	// OnReceive registers the callback invoked for every inbound
	// datagram, identifying the immediate link-layer sender.
	OnReceive(fn func(linkSrc address.Address, payload []byte))
}

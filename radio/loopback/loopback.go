// Package loopback implements radio.Driver as an in-process shared medium,
// the reference transport for unit and scenario tests. A Medium is a
// registry of Drivers keyed by address; a send to dst delivers only to the
// Driver registered under dst (a send to the broadcast address reaches no
// one and reports an error), unless a link filter installed via
// SetLinkFilter excludes the pair — the mechanism the end-to-end scenario
// tests use to simulate a non-complete neighbour graph (e.g. a three-node
// A-B-C line where A cannot hear C directly).
package loopback

import (
	"errors"
	"sync"

	"github.com/kabili207/espmesh-go/core/address"
	"github.com/kabili207/espmesh-go/core/peer"
)

var errUndelivered = errors.New("loopback: no reachable driver registered for destination")

// LinkFilter reports whether a datagram sent from src can reach dst over
// the simulated medium.
type LinkFilter func(src, dst address.Address) bool

// Medium is the shared broadcast domain a set of Drivers register with.
type Medium struct {
	mu      sync.Mutex
	drivers map[address.Address]*Driver
	filter  LinkFilter
}

// NewMedium creates an empty Medium where every registered pair can reach
// each other, until SetLinkFilter narrows that.
func NewMedium() *Medium {
	return &Medium{drivers: make(map[address.Address]*Driver)}
}

// SetLinkFilter installs a filter restricting which pairs of addresses can
// reach each other. A nil filter (the default) allows every pair.
func (m *Medium) SetLinkFilter(f LinkFilter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = f
}

func (m *Medium) register(addr address.Address, d *Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[addr] = d
}

func (m *Medium) deliver(src, dst address.Address, payload []byte) bool {
	m.mu.Lock()
	filter := m.filter
	target, ok := m.drivers[dst]
	m.mu.Unlock()

	if !ok {
		return false
	}
	if filter != nil && !filter(src, dst) {
		return false
	}

	target.mu.Lock()
	cb := target.onReceive
	target.mu.Unlock()
	if cb != nil {
		cb(src, payload)
	}
	return true
}

// Driver is a radio.Driver backed by a Medium.
type Driver struct {
	self   address.Address
	medium *Medium

	mu             sync.Mutex
	peers          map[address.Address]peer.Entry
	onSendComplete func(addr address.Address, err error)
	onReceive      func(linkSrc address.Address, payload []byte)
}

// New creates a Driver for self, registered with medium.
func New(self address.Address, medium *Medium) *Driver {
	d := &Driver{self: self, medium: medium, peers: make(map[address.Address]peer.Entry)}
	medium.register(self, d)
	return d
}

func (d *Driver) Init() error {
	return nil
}

func (d *Driver) SetPMK(key [16]byte) error {
	return nil
}

func (d *Driver) AddPeer(addr address.Address, linkKey [16]byte, encrypt bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peers[addr] = peer.Entry{Address: addr, LinkKey: linkKey, Encrypted: encrypt}
	return nil
}

func (d *Driver) DeletePeer(addr address.Address) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.peers, addr)
	return nil
}

func (d *Driver) HasPeer(addr address.Address) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.peers[addr]
	return ok
}

func (d *Driver) GetPeer(addr address.Address) (peer.Entry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.peers[addr]
	return e, ok
}

// Send delivers payload to addr over the medium, synchronously invoking
// the send-complete callback (a real radio would do this asynchronously;
// the loopback medium has no transmission delay worth simulating).
func (d *Driver) Send(addr address.Address, payload []byte) error {
	cp := make([]byte, len(payload))
	copy(cp, payload)

	delivered := d.medium.deliver(d.self, addr, cp)

	d.mu.Lock()
	cb := d.onSendComplete
	d.mu.Unlock()
	if cb != nil {
		var err error
		if !delivered {
			err = errUndelivered
		}
		cb(addr, err)
	}
	return nil
}

func (d *Driver) OnSendComplete(fn func(addr address.Address, err error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSendComplete = fn
}

func (d *Driver) OnReceive(fn func(linkSrc address.Address, payload []byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onReceive = fn
}

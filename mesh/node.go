// Package mesh provides Node, the session/dispatch loop (§4.9) that owns
// every routing component behind one value and drives the single
// goroutine that mutates routing state, mirroring the reference
// firmware's single-threaded loop(). Grounded on device/router/router.go's
// Router (Config + component fields + Start/drain-goroutine shape) and the
// firmware's loop() (drain queue, service retransmit timer, send if ready).
package mesh

import (
	"context"
	"crypto/ed25519"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kabili207/espmesh-go/core/address"
	"github.com/kabili207/espmesh-go/core/clock"
	"github.com/kabili207/espmesh-go/core/codec"
	"github.com/kabili207/espmesh-go/core/dedupe"
	"github.com/kabili207/espmesh-go/core/discovery"
	"github.com/kabili207/espmesh-go/core/dispatch"
	"github.com/kabili207/espmesh-go/core/forward"
	"github.com/kabili207/espmesh-go/core/fsm"
	"github.com/kabili207/espmesh-go/core/identity"
	"github.com/kabili207/espmesh-go/core/pathcache"
	"github.com/kabili207/espmesh-go/core/peer"
	"github.com/kabili207/espmesh-go/core/rng"
	"github.com/kabili207/espmesh-go/core/rxqueue"
	"github.com/kabili207/espmesh-go/radio"
	"github.com/kabili207/espmesh-go/store"
)

// DefaultTickInterval is how often Run's loop drains the receive queue and
// services the reliability FSM, analogous to the reference firmware's
// end-of-loop delay(50).
const DefaultTickInterval = 20 * time.Millisecond

// DefaultTTL is the TTL an originated packet starts with when no cached
// path is available: the most hops a route through every other node in a
// full topology could require.
const DefaultTTL = codec.MaxNodes - 1

// ErrClosed reports a shut-down node. Nothing in this package returns it:
// after Run's context is cancelled, SendText blocks until its own ctx ends
// and then returns ctx.Err().
var ErrClosed = errors.New("mesh: node is shut down")

// Config configures a Node.
type Config struct {
	Self  address.Address
	Radio radio.Driver

	// PathStore backs the persistent path cache. Required.
	PathStore store.Store

	// Peers is the neighbour table. A default table is created if nil.
	Peers *peer.Table

	// Identity signs and verifies recorded paths in data-acks. Optional;
	// when nil, acks are neither signed nor verified.
	Identity *identity.KeyPair

	Clock clock.Clock
	RNG   rng.Source

	TickInterval    time.Duration
	RxQueueCapacity int
	DedupCapacity   int
	DefaultTTL      uint8

	Logger *slog.Logger
}

type sendRequest struct {
	pkt  *codec.Packet
	resp chan error
}

// Node is a mesh participant: it owns the packet codec, peer table,
// receive queue, duplicate filter, path cache, reliability FSM, and
// identity behind one value, and drives them all from a single goroutine
// (Run). The radio driver's callbacks run on their own goroutine(s) and
// only push to the receive queue or record send-complete status; they
// never touch this state directly.
type Node struct {
	cfg  Config
	log  *slog.Logger
	self address.Address

	radio radio.Driver
	peers *peer.Table
	rx    *rxqueue.Queue
	// dedupFwd and dedupAck are separate filters because a data/broadcast
	// packet and its eventual ack carry the same PacketID (the ack
	// correlates to the session it closes, §4.8) but travel in opposite
	// directions through a forwarder; one filter would see the ack as a
	// replay of the original and drop it.
	dedupFwd *dedupe.Filter
	dedupAck *dedupe.Filter
	cache    *pathcache.Cache
	fsm      *fsm.FSM
	ident    *identity.KeyPair
	clk      clock.Clock
	rngSrc   rng.Source
	defaultTTL uint8

	sendMu    sync.Mutex
	sendReqCh chan sendRequest

	mu           sync.Mutex
	onDelivered  func(src address.Address, text string)
	eventHandler func(Event)
	pubKeys      map[address.Address]ed25519.PublicKey

	counters Counters
}

// EventKind classifies a session-lifecycle Event, the stream gateway/mqtt
// publishes as fleet telemetry (§4.14).
type EventKind int

const (
	// EventDelivered fires at the receiving end when a Data packet is
	// delivered to the application for the first time (not on a
	// dedupe-suppressed replay).
	EventDelivered EventKind = iota
	// EventTimeout fires at the originating end when a reliable send
	// fails after MaxTries retransmissions.
	EventTimeout
	// EventForwarded fires whenever this node retransmits a packet that
	// is addressed to neither itself nor the broadcast address.
	EventForwarded
	// EventPathLearned fires when a newly discovered route is committed
	// to the path cache.
	EventPathLearned
)

func (k EventKind) String() string {
	switch k {
	case EventDelivered:
		return "delivered"
	case EventTimeout:
		return "timeout"
	case EventForwarded:
		return "forwarded"
	case EventPathLearned:
		return "path_learned"
	default:
		return "unknown"
	}
}

// Event is one entry in the session-lifecycle stream a Node emits for
// telemetry gateways. Hops is populated only for EventPathLearned, and Text
// only for EventDelivered and EventTimeout.
type Event struct {
	Kind EventKind
	Src  address.Address
	Dst  address.Address
	Text string
	Hops []address.Address
}

// RegisterEventHandler registers the callback invoked for every session
// event (§4.14). There is no queueing: the handler runs synchronously on
// Node's main loop goroutine (or, for EventTimeout, on the goroutine that
// resolved the failed SendText call) and must not block.
func (n *Node) RegisterEventHandler(fn func(Event)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.eventHandler = fn
}

func (n *Node) emitEvent(ev Event) {
	n.mu.Lock()
	fn := n.eventHandler
	n.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

// New creates a Node from cfg. Defaults are filled for Logger, Clock, RNG,
// TickInterval, DefaultTTL and Peers; Radio and PathStore have no default
// and must be set.
func New(cfg Config) *Node {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.RNG == nil {
		cfg.RNG = rng.New()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.Peers == nil {
		cfg.Peers = peer.New(peer.Config{Logger: logger})
	}

	return &Node{
		cfg:        cfg,
		log:        logger.WithGroup("mesh"),
		self:       cfg.Self,
		radio:      cfg.Radio,
		peers:      cfg.Peers,
		rx:         rxqueue.New(cfg.RxQueueCapacity),
		dedupFwd:   dedupe.NewWithCapacity(cfg.DedupCapacity),
		dedupAck:   dedupe.NewWithCapacity(cfg.DedupCapacity),
		cache:      pathcache.New(cfg.PathStore),
		fsm:        fsm.New(cfg.Clock),
		ident:      cfg.Identity,
		clk:        cfg.Clock,
		rngSrc:     cfg.RNG,
		defaultTTL: cfg.DefaultTTL,
		sendReqCh:  make(chan sendRequest),
		pubKeys:    make(map[address.Address]ed25519.PublicKey),
	}
}

// RegisterOnDelivered registers the callback invoked when a reliably-sent
// text message addressed to this node is delivered.
func (n *Node) RegisterOnDelivered(fn func(src address.Address, text string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onDelivered = fn
}

// SetPeerPublicKey records addr's Ed25519 public key, used to verify the
// signature carried in data-acks originated by addr. Public keys are
// configured out-of-band here, just as link keys are pre-shared (§9) —
// this module defines no advert packet that would distribute them.
func (n *Node) SetPeerPublicKey(addr address.Address, pub ed25519.PublicKey) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pubKeys[addr] = pub
}

// Peers returns the node's neighbour table, for configuration (Add)
// before Run starts.
func (n *Node) Peers() *peer.Table {
	return n.peers
}

// PathCache returns the node's persistent path cache, mostly useful for
// tests asserting on learned routes.
func (n *Node) PathCache() *pathcache.Cache {
	return n.cache
}

// SendText reliably delivers text to dst, blocking until delivery is
// acknowledged or retries are exhausted (fsm.ErrDeliveryFailed). Callers
// are serialized by sendMu, which is how the single-slot FSM invariant is
// upheld without callers managing their own queue.
func (n *Node) SendText(ctx context.Context, dst address.Address, text string) error {
	n.sendMu.Lock()
	defer n.sendMu.Unlock()

	pkt := &codec.Packet{
		Kind: codec.KindData,
		Dst:  dst,
		Src:  n.self,
		TTL:  n.defaultTTL,
	}
	pkt.SetText(text)
	for {
		id := n.rngSrc.Uint32()
		if id != 0 {
			pkt.PacketID = id
			break
		}
	}

	resp := make(chan error, 1)
	select {
	case n.sendReqCh <- sendRequest{pkt: pkt, resp: resp}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the node's main loop until ctx is cancelled. It registers
// itself as the radio driver's receive callback, then ticks on
// cfg.TickInterval, draining the receive queue and servicing the
// reliability FSM's retransmit timer.
func (n *Node) Run(ctx context.Context) error {
	n.radio.OnReceive(func(linkSrc address.Address, payload []byte) {
		pkt, err := codec.Decode(payload)
		if err != nil {
			n.log.Debug("dropping malformed packet", "link_src", linkSrc.String(), "error", err)
			return
		}
		if err := n.rx.Push(rxqueue.Entry{Packet: pkt, LinkSource: linkSrc}); err != nil {
			n.log.Debug("receive queue full, dropping packet", "link_src", linkSrc.String())
		}
	})

	ticker := time.NewTicker(n.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-n.sendReqCh:
			n.beginSend(req)
		case <-ticker.C:
			n.drainReceiveQueue()
			n.pollFSM()
		}
	}
}

// beginSend transmits a newly originated packet and registers it with the
// FSM, forwarding the eventual delivery result to the caller blocked in
// SendText.
func (n *Node) beginSend(req sendRequest) {
	hops, cached := n.cache.Lookup(req.pkt.Dst)
	if cached && len(hops) >= 2 {
		var path [codec.MaxNodes]address.Address
		copy(path[:], hops)
		req.pkt.Path = path
		req.pkt.PathLength = uint8(len(hops))
		req.pkt.PathExists = true
		req.pkt.PathIndex = 1
		n.transmit(hops[1], req.pkt)
	} else {
		discovery.AppendHop(req.pkt, n.self)
		n.floodExcept(req.pkt, address.Address{})
	}

	done, err := n.fsm.Start(req.pkt)
	if err != nil {
		req.resp <- err
		return
	}
	go func() {
		err := <-done
		if errors.Is(err, fsm.ErrDeliveryFailed) {
			n.emitEvent(Event{Kind: EventTimeout, Src: n.self, Dst: req.pkt.Dst, Text: req.pkt.Text()})
		}
		req.resp <- err
	}()
}

func (n *Node) floodExcept(pkt *codec.Packet, exclude address.Address) {
	for _, nb := range n.peers.Neighbours() {
		if nb == exclude {
			continue
		}
		n.transmit(nb, pkt)
	}
}

func (n *Node) transmit(to address.Address, pkt *codec.Packet) {
	enc := pkt.Encode()
	n.counters.PacketsSent.Add(1)
	if err := n.radio.Send(to, enc[:]); err != nil {
		n.log.Warn("send failed", "to", to.String(), "error", err)
	}
}

// drainReceiveQueue processes every entry currently queued, in arrival
// order.
func (n *Node) drainReceiveQueue() {
	for {
		entry, ok := n.rx.Pop()
		if !ok {
			return
		}
		n.handleEntry(entry)
	}
}

func (n *Node) handleEntry(e rxqueue.Entry) {
	pkt := e.Packet
	n.counters.PacketsRecv.Add(1)
	variant, err := dispatch.Classify(pkt)
	if err != nil {
		n.log.Debug("dropping packet with unrecognized kind", "kind", pkt.Kind)
		return
	}

	var dup bool
	switch variant {
	case dispatch.DataAck, dispatch.BroadcastAck:
		dup = n.dedupAck.HasSeen(pkt.PacketID)
	default:
		dup = n.dedupFwd.HasSeen(pkt.PacketID)
	}
	if dup {
		n.counters.Duplicates.Add(1)
	}

	switch {
	case pkt.Dst == n.self:
		n.handleLocal(pkt, e.LinkSource, variant, dup)
	case pkt.Dst.IsBroadcast():
		if dup {
			return
		}
		n.handleBroadcastTerminal(pkt, e.LinkSource)
	default:
		if dup {
			return
		}
		n.handleForward(pkt, e.LinkSource)
	}
}

func (n *Node) handleLocal(pkt *codec.Packet, linkSrc address.Address, variant dispatch.Variant, dup bool) {
	switch variant {
	case dispatch.DataAck:
		if n.fsm.Ack(pkt.PacketID) && !dup {
			n.commitLearnedPath(pkt)
		}
	case dispatch.BroadcastAck:
		// Broadcasts are not tracked by the reliability FSM, but a
		// BroadcastAck reaching the original beacon sender is this node's
		// cue to complete the encryption handshake with the acking
		// neighbour, mirroring the reference firmware's
		// Check_Existing_Peer/SwitchToEncryption pair on ack receipt.
		n.peers.Add(pkt.Src, [16]byte{}, false)
		if err := n.peers.EnableEncryption(pkt.Src, [16]byte{}); err != nil {
			n.log.Warn("failed to enable encryption with peer", "addr", pkt.Src.String(), "error", err)
		}
	case dispatch.Data:
		if !dup {
			n.counters.Delivered.Add(1)
			n.mu.Lock()
			cb := n.onDelivered
			n.mu.Unlock()
			if cb != nil {
				cb(pkt.Src, pkt.Text())
			}
			n.emitEvent(Event{Kind: EventDelivered, Src: pkt.Src, Dst: n.self, Text: pkt.Text()})
		}
		n.sendDataAck(pkt)
	case dispatch.Broadcast:
		if !dup {
			n.peers.Add(pkt.Src, [16]byte{}, false)
			if err := n.peers.EnableEncryption(pkt.Src, [16]byte{}); err != nil {
				n.log.Warn("failed to enable encryption with peer", "addr", pkt.Src.String(), "error", err)
			}
			n.sendBroadcastAck(pkt)
		}
	}
}

func (n *Node) handleBroadcastTerminal(pkt *codec.Packet, linkSrc address.Address) {
	// Broadcasts are terminal: a packet whose Dst is the broadcast address
	// is consumed here; it is not re-flooded, no peer is registered and no
	// ack is sent. §4.9 step 1.
}

func (n *Node) handleForward(pkt *codec.Packet, linkSrc address.Address) {
	action, err := forward.Decide(pkt, n.self, linkSrc, n.peers.Neighbours())
	if err != nil {
		n.log.Debug("forwarding error", "error", err)
	}
	switch action.Kind {
	case forward.Drop:
	case forward.Unicast:
		n.transmit(action.To[0], pkt)
		n.counters.SentUnicast.Add(1)
		n.emitEvent(Event{Kind: EventForwarded, Src: pkt.Src, Dst: pkt.Dst})
	case forward.Flood:
		for _, to := range action.To {
			n.transmit(to, pkt)
		}
		n.counters.SentFlood.Add(uint64(len(action.To)))
		n.emitEvent(Event{Kind: EventForwarded, Src: pkt.Src, Dst: pkt.Dst})
	}
}

func (n *Node) buildAckHops(pkt *codec.Packet) ([]address.Address, error) {
	if pkt.PathExists {
		return discovery.Reverse(discovery.Hops(pkt)), nil
	}
	return discovery.BuildAckPath(pkt, n.self)
}

func (n *Node) sendDataAck(pkt *codec.Packet) {
	ackHops, err := n.buildAckHops(pkt)
	if err != nil || len(ackHops) < 2 {
		n.log.Debug("cannot build ack path", "error", err)
		return
	}

	ack := &codec.Packet{
		Kind:    codec.KindData,
		DataAck: true,
		Src:     n.self,
		Dst:     pkt.Src,
		PacketID: pkt.PacketID,
		TTL:     n.defaultTTL,
	}
	var path [codec.MaxNodes]address.Address
	copy(path[:], ackHops)
	ack.Path = path
	ack.PathLength = uint8(len(ackHops))
	ack.PathExists = true
	ack.PathIndex = 1

	if n.ident != nil {
		forwardPath := discovery.RecordFromAck(ackHops)
		sig := n.ident.SignPath(pkt.Src, n.self, forwardPath)
		copy(ack.Payload[:], sig)
	}

	n.transmit(ackHops[1], ack)
}

func (n *Node) sendBroadcastAck(pkt *codec.Packet) {
	ack := &codec.Packet{
		Kind:     codec.KindBroadcast,
		BcastAck: true,
		Src:      n.self,
		Dst:      pkt.Src,
		PacketID: pkt.PacketID,
		TTL:      n.defaultTTL,
	}
	n.transmit(pkt.Src, ack)
}

func (n *Node) commitLearnedPath(ackPkt *codec.Packet) {
	hops := discovery.RecordFromAck(discovery.Hops(ackPkt))
	if len(hops) < 2 || hops[0] != n.self {
		return
	}
	if _, alreadyCached := n.cache.Lookup(ackPkt.Src); alreadyCached {
		return
	}

	n.mu.Lock()
	pub, known := n.pubKeys[ackPkt.Src]
	n.mu.Unlock()
	if known {
		sig := make([]byte, ed25519.SignatureSize)
		copy(sig, ackPkt.Payload[:ed25519.SignatureSize])
		if !identity.VerifyPath(pub, n.self, ackPkt.Src, hops, sig) {
			n.log.Warn("data-ack path signature mismatch", "from", ackPkt.Src.String())
		}
	}

	if err := n.cache.Save(hops); err != nil {
		n.log.Warn("failed to persist learned path", "error", err)
		return
	}
	n.emitEvent(Event{Kind: EventPathLearned, Src: n.self, Dst: ackPkt.Src, Hops: hops})
}

// pollFSM services the reliability FSM's retransmit timer, resending the
// in-flight packet (same PacketID) or letting the session fail once
// retries are exhausted.
func (n *Node) pollFSM() {
	result := n.fsm.Poll()
	if result.Retransmit == nil {
		return
	}

	pkt := result.Retransmit
	hops, cached := n.cache.Lookup(pkt.Dst)
	if pkt.PathExists && len(hops) >= 2 && cached {
		n.transmit(hops[1], pkt)
		return
	}
	if pkt.PathExists && int(pkt.PathIndex) < codec.MaxNodes {
		n.transmit(pkt.Path[pkt.PathIndex], pkt)
		return
	}
	n.floodExcept(pkt, address.Address{})
}

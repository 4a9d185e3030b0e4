// Package fsm implements the single-slot reliability state machine run by
// the originator of a reliable send (§4.8). Forwarders are stateless with
// respect to reliability; only mesh.Node's own sends run through an FSM.
//
// Retransmission is polled from the main loop (Poll), not scheduled on a
// per-packet timer, mirroring the reference firmware's single-threaded
// loop() and the teacher lineage's preference for a lock-then-execute-
// outside-the-lock pattern (core/ack.Tracker.checkTimeouts), narrowed here
// to exactly one in-flight packet.
package fsm

import (
	"errors"
	"sync"

	"github.com/kabili207/espmesh-go/core/clock"
	"github.com/kabili207/espmesh-go/core/codec"
)

// State is one of the two states of the reliability FSM.
type State int

const (
	Ready State = iota
	AwaitingAck
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case AwaitingAck:
		return "awaiting_ack"
	default:
		return "unknown"
	}
}

const (
	// InitialRTO is the retransmission timeout of the first attempt, in
	// milliseconds.
	InitialRTO int64 = 3000

	// MaxTries is the number of retransmission attempts after the initial
	// send; the session fails when the attempt after the MaxTries-th
	// retransmission also times out (MaxTries+1 timeouts in all).
	MaxTries = 3
)

// ErrBusy is returned by Start when a packet is already in flight.
var ErrBusy = errors.New("fsm: a packet is already awaiting acknowledgement")

// ErrDeliveryFailed is delivered on the done channel returned by Start when
// MaxTries retransmissions all time out.
var ErrDeliveryFailed = errors.New("fsm: delivery failed after maximum retries")

// PollResult reports what action, if any, Poll decided the caller should
// take.
type PollResult struct {
	// Retransmit is non-nil when the caller should resend this exact
	// packet (same PacketID) over the radio again.
	Retransmit *codec.Packet

	// Failed is true the instant the session gives up, on the timeout of
	// its MaxTries-th retransmission.
	Failed bool
}

// FSM is a single-slot reliability state machine.
type FSM struct {
	clk clock.Clock

	mu      sync.Mutex
	state   State
	pending *codec.Packet
	sentAt  int64
	rto     int64
	retries int
	done    chan error
}

// New creates an FSM in the Ready state.
func New(clk clock.Clock) *FSM {
	return &FSM{clk: clk, state: Ready}
}

// State returns the FSM's current state.
func (f *FSM) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Start begins a reliable send of pkt. The caller must transmit pkt over
// the radio itself immediately after Start returns successfully; Start
// only performs the bookkeeping transition to AwaitingAck.
//
// Returns ErrBusy if a packet is already in flight (§4.8 invariant: at
// most one unacknowledged packet per originator). The returned channel
// receives nil when the packet is acknowledged, or ErrDeliveryFailed when
// retries are exhausted; it is written to exactly once and then closed.
func (f *FSM) Start(pkt *codec.Packet) (<-chan error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != Ready {
		return nil, ErrBusy
	}

	f.pending = pkt.Clone()
	f.sentAt = f.clk.NowMs()
	f.rto = InitialRTO
	f.retries = 0
	f.state = AwaitingAck
	f.done = make(chan error, 1)
	return f.done, nil
}

// Ack reports the arrival of an acknowledgement for packetID. Returns true
// if it matched the in-flight packet, in which case the FSM returns to
// Ready and the Start caller's done channel receives nil.
func (f *FSM) Ack(packetID uint32) bool {
	f.mu.Lock()
	if f.state != AwaitingAck || f.pending == nil || f.pending.PacketID != packetID {
		f.mu.Unlock()
		return false
	}
	done := f.done
	f.state = Ready
	f.pending = nil
	f.done = nil
	f.mu.Unlock()

	if done != nil {
		done <- nil
		close(done)
	}
	return true
}

// Pending returns the packet currently in flight, if any.
func (f *FSM) Pending() (*codec.Packet, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		return nil, false
	}
	return f.pending.Clone(), true
}

// Poll checks the in-flight packet's timeout against the clock. Call this
// from the main loop on every tick; it is a no-op when the FSM is Ready or
// the current RTO has not yet elapsed.
func (f *FSM) Poll() PollResult {
	f.mu.Lock()

	if f.state != AwaitingAck {
		f.mu.Unlock()
		return PollResult{}
	}

	now := f.clk.NowMs()
	if now-f.sentAt < f.rto {
		f.mu.Unlock()
		return PollResult{}
	}

	if f.retries < MaxTries {
		f.retries++
		f.rto *= 2
		f.sentAt = now
		pkt := f.pending
		f.mu.Unlock()
		return PollResult{Retransmit: pkt}
	}

	done := f.done
	f.state = Ready
	f.pending = nil
	f.done = nil
	f.mu.Unlock()

	if done != nil {
		done <- ErrDeliveryFailed
		close(done)
	}
	return PollResult{Failed: true}
}

package fsm

import (
	"testing"

	"github.com/kabili207/espmesh-go/core/codec"
)

type fakeClock struct{ ms int64 }

func (c *fakeClock) NowMs() int64 { return c.ms }

func TestStartTransitionsToAwaitingAck(t *testing.T) {
	clk := &fakeClock{}
	f := New(clk)
	if f.State() != Ready {
		t.Fatalf("initial state = %v, want Ready", f.State())
	}

	done, err := f.Start(&codec.Packet{PacketID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if done == nil {
		t.Fatal("Start returned nil done channel")
	}
	if f.State() != AwaitingAck {
		t.Fatalf("state after Start = %v, want AwaitingAck", f.State())
	}
}

func TestStartReturnsErrBusyWhileInFlight(t *testing.T) {
	clk := &fakeClock{}
	f := New(clk)
	if _, err := f.Start(&codec.Packet{PacketID: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Start(&codec.Packet{PacketID: 2}); err != ErrBusy {
		t.Errorf("got err = %v, want ErrBusy", err)
	}
}

func TestAckMatchingIDReturnsToReady(t *testing.T) {
	clk := &fakeClock{}
	f := New(clk)
	done, _ := f.Start(&codec.Packet{PacketID: 42})

	if !f.Ack(42) {
		t.Fatal("Ack(42): want true")
	}
	if f.State() != Ready {
		t.Fatalf("state after Ack = %v, want Ready", f.State())
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("done channel error = %v, want nil", err)
		}
	default:
		t.Fatal("done channel did not receive a value")
	}
}

func TestAckMismatchedIDIgnored(t *testing.T) {
	clk := &fakeClock{}
	f := New(clk)
	f.Start(&codec.Packet{PacketID: 42})

	if f.Ack(99) {
		t.Error("Ack(99) on a session awaiting id 42: want false")
	}
	if f.State() != AwaitingAck {
		t.Errorf("state after mismatched Ack = %v, want AwaitingAck", f.State())
	}
}

func TestPollRetransmitsWithDoublingRTO(t *testing.T) {
	clk := &fakeClock{}
	f := New(clk)
	f.Start(&codec.Packet{PacketID: 1})

	// Before RTO elapses: no-op.
	if r := f.Poll(); r.Retransmit != nil || r.Failed {
		t.Fatalf("premature Poll = %+v, want no-op", r)
	}

	clk.ms = 3000
	r := f.Poll()
	if r.Retransmit == nil || r.Retransmit.PacketID != 1 {
		t.Fatalf("1st retry Poll = %+v, want retransmit of packet 1", r)
	}

	clk.ms += 6000
	r = f.Poll()
	if r.Retransmit == nil {
		t.Fatalf("2nd retry Poll = %+v, want retransmit", r)
	}

	clk.ms += 12000
	r = f.Poll()
	if r.Retransmit == nil {
		t.Fatalf("3rd retry Poll = %+v, want retransmit", r)
	}

	// Exhausted: next timeout fails the session.
	clk.ms += 24000
	r = f.Poll()
	if !r.Failed {
		t.Fatalf("4th timeout Poll = %+v, want Failed", r)
	}
	if f.State() != Ready {
		t.Fatalf("state after exhaustion = %v, want Ready", f.State())
	}
}

func TestPollExhaustionDeliversErrToDoneChannel(t *testing.T) {
	clk := &fakeClock{}
	f := New(clk)
	done, _ := f.Start(&codec.Packet{PacketID: 1})

	clk.ms = 3000
	f.Poll()
	clk.ms += 6000
	f.Poll()
	clk.ms += 12000
	f.Poll()
	clk.ms += 24000
	f.Poll()

	select {
	case err := <-done:
		if err != ErrDeliveryFailed {
			t.Errorf("done channel error = %v, want ErrDeliveryFailed", err)
		}
	default:
		t.Fatal("done channel did not receive a value after exhaustion")
	}
}

func TestPollNoOpWhenReady(t *testing.T) {
	clk := &fakeClock{}
	f := New(clk)
	if r := f.Poll(); r.Retransmit != nil || r.Failed {
		t.Errorf("Poll on Ready FSM = %+v, want no-op", r)
	}
}

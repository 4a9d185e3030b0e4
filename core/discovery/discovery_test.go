package discovery

import (
	"testing"

	"github.com/kabili207/espmesh-go/core/address"
	"github.com/kabili207/espmesh-go/core/codec"
)

func addr(b byte) address.Address {
	var a address.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func TestAppendHopAdvancesCounters(t *testing.T) {
	pkt := &codec.Packet{}
	if err := AppendHop(pkt, addr(1)); err != nil {
		t.Fatal(err)
	}
	if pkt.PathLength != 1 || pkt.PathIndex != 1 {
		t.Fatalf("PathLength=%d PathIndex=%d, want 1,1", pkt.PathLength, pkt.PathIndex)
	}
	if pkt.Path[0] != addr(1) {
		t.Errorf("Path[0] = %v, want %v", pkt.Path[0], addr(1))
	}

	if err := AppendHop(pkt, addr(2)); err != nil {
		t.Fatal(err)
	}
	if pkt.PathLength != 2 || pkt.Path[1] != addr(2) {
		t.Errorf("second append: PathLength=%d Path[1]=%v", pkt.PathLength, pkt.Path[1])
	}
}

func TestAppendHopRejectsWhenFull(t *testing.T) {
	pkt := &codec.Packet{}
	for i := 0; i < codec.MaxNodes; i++ {
		if err := AppendHop(pkt, addr(byte(i))); err != nil {
			t.Fatal(err)
		}
	}
	if err := AppendHop(pkt, addr(99)); err != ErrPathFull {
		t.Errorf("got err = %v, want ErrPathFull", err)
	}
}

func TestReverseIsItsOwnInverse(t *testing.T) {
	original := []address.Address{addr(1), addr(2), addr(3), addr(4)}
	hops := make([]address.Address, len(original))
	copy(hops, original)

	Reverse(hops)
	Reverse(hops)

	for i := range original {
		if hops[i] != original[i] {
			t.Fatalf("double reverse did not restore original: got %v, want %v", hops, original)
		}
	}
}

func TestReverseOddLength(t *testing.T) {
	hops := []address.Address{addr(1), addr(2), addr(3)}
	Reverse(hops)
	want := []address.Address{addr(3), addr(2), addr(1)}
	for i := range want {
		if hops[i] != want[i] {
			t.Fatalf("got %v, want %v", hops, want)
		}
	}
}

func TestBuildAckPathThenRecordFromAckRoundTrip(t *testing.T) {
	// Originator A sends with no cached path; forwarder B appends itself.
	pkt := &codec.Packet{}
	a, b, c := addr(0xA), addr(0xB), addr(0xC)
	AppendHop(pkt, a)
	AppendHop(pkt, b)

	// Destination C appends itself and builds the ack path.
	ackPath, err := BuildAckPath(pkt, c)
	if err != nil {
		t.Fatal(err)
	}

	// Originator reverses the ack path back to originator-first order.
	recorded := RecordFromAck(ackPath)
	want := []address.Address{a, b, c}
	if len(recorded) != len(want) {
		t.Fatalf("got %v, want %v", recorded, want)
	}
	for i := range want {
		if recorded[i] != want[i] {
			t.Fatalf("got %v, want %v", recorded, want)
		}
	}
}

func TestSetHopsMarksPathExists(t *testing.T) {
	pkt := &codec.Packet{}
	hops := []address.Address{addr(1), addr(2)}
	if err := SetHops(pkt, hops); err != nil {
		t.Fatal(err)
	}
	if !pkt.PathExists || pkt.PathLength != 2 || pkt.PathIndex != 2 {
		t.Errorf("pkt = %+v, want PathExists and PathLength/PathIndex=2", pkt)
	}
}

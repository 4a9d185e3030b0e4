package rxqueue

import (
	"testing"

	"github.com/kabili207/espmesh-go/core/address"
	"github.com/kabili207/espmesh-go/core/codec"
)

func TestPushPopFIFOOrder(t *testing.T) {
	q := New(4)
	e1 := Entry{Packet: &codec.Packet{PacketID: 1}, LinkSource: address.Address{1}}
	e2 := Entry{Packet: &codec.Packet{PacketID: 2}, LinkSource: address.Address{2}}

	if err := q.Push(e1); err != nil {
		t.Fatal(err)
	}
	if err := q.Push(e2); err != nil {
		t.Fatal(err)
	}

	got, ok := q.Pop()
	if !ok || got.Packet.PacketID != 1 {
		t.Fatalf("first Pop = %+v, want packet id 1", got)
	}
	got, ok = q.Pop()
	if !ok || got.Packet.PacketID != 2 {
		t.Fatalf("second Pop = %+v, want packet id 2", got)
	}
}

func TestPopOnEmptyQueue(t *testing.T) {
	q := New(4)
	if _, ok := q.Pop(); ok {
		t.Error("Pop on empty queue: want false")
	}
}

func TestPushReturnsErrQueueFullAtCapacity(t *testing.T) {
	q := New(2)
	q.Push(Entry{Packet: &codec.Packet{PacketID: 1}})
	q.Push(Entry{Packet: &codec.Packet{PacketID: 2}})
	if err := q.Push(Entry{Packet: &codec.Packet{PacketID: 3}}); err != ErrQueueFull {
		t.Errorf("got err = %v, want ErrQueueFull", err)
	}
	if q.Len() != 2 {
		t.Errorf("Len() = %d, want 2", q.Len())
	}
}

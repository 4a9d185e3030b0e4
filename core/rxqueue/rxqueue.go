// Package rxqueue is the bounded FIFO between the radio driver's receive
// callback and the main dispatch loop (§4.3). Adapted from the teacher
// lineage's priority/delay SendQueue, narrowed to a plain bounded inbound
// FIFO: a mutex-guarded slice holding at most its capacity of entries.
package rxqueue

import (
	"errors"
	"sync"

	"github.com/kabili207/espmesh-go/core/address"
	"github.com/kabili207/espmesh-go/core/codec"
)

// DefaultCapacity is the default queue capacity.
const DefaultCapacity = 64

// ErrQueueFull is returned by Push when the queue has no room. The caller
// (the radio callback) drops the datagram; the sender will retransmit.
var ErrQueueFull = errors.New("rxqueue: queue full")

// Entry is one received packet awaiting dispatch.
type Entry struct {
	Packet     *codec.Packet
	LinkSource address.Address
}

// Queue is a bounded single-producer/single-consumer FIFO, mutex-guarded
// since the producer (radio callback) and consumer (main loop) run on
// different goroutines.
type Queue struct {
	mu       sync.Mutex
	items    []Entry
	capacity int
}

// New creates a Queue with the given capacity. A non-positive capacity
// falls back to DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{capacity: capacity}
}

// Push enqueues e. Returns ErrQueueFull if the queue is at capacity.
func (q *Queue) Push(e Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		return ErrQueueFull
	}
	q.items = append(q.items, e)
	return nil
}

// Pop removes and returns the oldest entry, or false if the queue is empty.
func (q *Queue) Pop() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Entry{}, false
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e, true
}

// Len returns the number of entries currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

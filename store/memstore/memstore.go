// Package memstore provides an in-memory store.Store, used in unit tests and
// by simulations that don't need persistence across process restarts.
package memstore

import "github.com/kabili207/espmesh-go/store"

// Store is a store.Store backed by a plain byte slice. Commit is a no-op.
type Store struct {
	data []byte
}

// New creates a Store of the given size, every byte initialized to 0xFF
// (matching the reference firmware's erased-flash convention).
func New(size int) *Store {
	data := make([]byte, size)
	for i := range data {
		data[i] = 0xFF
	}
	return &Store{data: data}
}

func (s *Store) ReadAt(off int) (byte, error) {
	if off < 0 || off >= len(s.data) {
		return 0, store.ErrOutOfRange
	}
	return s.data[off], nil
}

func (s *Store) WriteAt(off int, b byte) error {
	if off < 0 || off >= len(s.data) {
		return store.ErrOutOfRange
	}
	s.data[off] = b
	return nil
}

func (s *Store) Commit() error {
	return nil
}

func (s *Store) Size() int {
	return len(s.data)
}

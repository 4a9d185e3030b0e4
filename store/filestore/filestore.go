// Package filestore provides a file-backed store.Store, so a simulated
// reboot (closing and reopening the file) actually exercises persistence
// across process restarts, as §8's durability property requires.
package filestore

import (
	"fmt"
	"os"

	"github.com/kabili207/espmesh-go/store"
)

// Store is a store.Store backed by a single file on disk.
type Store struct {
	f    *os.File
	size int
}

// Open opens (creating if necessary) the file at path as a Store of the
// given size. A newly created file is initialized to all 0xFF.
func Open(path string, size int) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filestore: opening %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("filestore: stat %s: %w", path, err)
	}

	s := &Store{f: f, size: size}
	if info.Size() == 0 {
		buf := make([]byte, size)
		for i := range buf {
			buf[i] = 0xFF
		}
		if _, err := f.WriteAt(buf, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("filestore: initializing %s: %w", path, err)
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return nil, fmt.Errorf("filestore: syncing %s: %w", path, err)
		}
	} else if int(info.Size()) != size {
		f.Close()
		return nil, fmt.Errorf("filestore: %s has size %d, want %d", path, info.Size(), size)
	}

	return s, nil
}

func (s *Store) ReadAt(off int) (byte, error) {
	if off < 0 || off >= s.size {
		return 0, store.ErrOutOfRange
	}
	var buf [1]byte
	if _, err := s.f.ReadAt(buf[:], int64(off)); err != nil {
		return 0, fmt.Errorf("filestore: read at %d: %w", off, err)
	}
	return buf[0], nil
}

func (s *Store) WriteAt(off int, b byte) error {
	if off < 0 || off >= s.size {
		return store.ErrOutOfRange
	}
	buf := [1]byte{b}
	if _, err := s.f.WriteAt(buf[:], int64(off)); err != nil {
		return fmt.Errorf("filestore: write at %d: %w", off, err)
	}
	return nil
}

func (s *Store) Commit() error {
	return s.f.Sync()
}

func (s *Store) Size() int {
	return s.size
}

// Close releases the underlying file handle without removing the file. The
// on-disk contents survive, so a later Open against the same path resumes
// state (the "simulated reboot" §8 depends on).
func (s *Store) Close() error {
	return s.f.Close()
}

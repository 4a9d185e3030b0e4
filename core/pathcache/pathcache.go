// Package pathcache persists learned source routes (§4.5), so path
// discovery (§4.6) only has to run once per destination across reboots.
//
// Records are framed as {length byte, length×6 address bytes, 4-byte
// integrity tag}, concatenated starting at the offset named by a header
// byte at store.Size()-1 (0xFF when the cache is empty). This replaces the
// reference firmware's 0x00/0xFF delimiter scheme, which cannot distinguish
// a genuinely empty slot from a record that happens to contain a 0x00 or
// 0xFF address byte (§9). The integrity tag is a truncated blake2s hash of
// the hop list, guarding against a flash bit-flip silently handing back a
// corrupted path instead of simply missing the cache.
package pathcache

import (
	"sync"

	"golang.org/x/crypto/blake2s"

	"github.com/kabili207/espmesh-go/core/address"
	"github.com/kabili207/espmesh-go/core/codec"
	"github.com/kabili207/espmesh-go/store"
)

const (
	lengthFree = 0xFF
	tagSize    = 4
)

// Cache is a path cache backed by a store.Store, with an in-memory mirror
// populated lazily on first use.
type Cache struct {
	mu         sync.Mutex
	st         store.Store
	mirror     map[address.Address][]address.Address
	loaded     bool
	headerSet  bool
	nextOffset int
}

// New creates a Cache over st. The store is not read until the first
// Lookup or Save.
func New(st store.Store) *Cache {
	return &Cache{st: st, mirror: make(map[address.Address][]address.Address)}
}

func recordTag(hops []address.Address) [tagSize]byte {
	buf := make([]byte, 0, len(hops)*address.Size)
	for _, h := range hops {
		buf = append(buf, h[:]...)
	}
	sum := blake2s.Sum256(buf)
	var tag [tagSize]byte
	copy(tag[:], sum[:tagSize])
	return tag
}

func recordSize(numHops int) int {
	return 1 + numHops*address.Size + tagSize
}

// load scans the persistent store into the in-memory mirror. Must be
// called with mu held.
func (c *Cache) load() {
	if c.loaded {
		return
	}
	c.loaded = true
	c.mirror = make(map[address.Address][]address.Address)

	headerOff := c.st.Size() - 1
	header, err := c.st.ReadAt(headerOff)
	if err != nil || header == lengthFree {
		c.nextOffset = 0
		c.headerSet = false
		return
	}
	c.headerSet = true

	offset := int(header)
	for offset < headerOff {
		length, err := c.st.ReadAt(offset)
		if err != nil || length == lengthFree {
			break
		}
		if int(length) > codec.MaxNodes {
			break
		}

		size := recordSize(int(length))
		if offset+size > headerOff {
			break
		}

		hops := make([]address.Address, length)
		pos := offset + 1
		for i := range hops {
			for j := 0; j < address.Size; j++ {
				b, err := c.st.ReadAt(pos)
				if err != nil {
					break
				}
				hops[i][j] = b
				pos++
			}
		}

		var tag [tagSize]byte
		for i := range tag {
			b, err := c.st.ReadAt(pos)
			if err != nil {
				break
			}
			tag[i] = b
			pos++
		}

		if tag == recordTag(hops) && length > 0 {
			dst := hops[length-1]
			if _, exists := c.mirror[dst]; !exists {
				c.mirror[dst] = hops
			}
		}

		offset += size
	}
	c.nextOffset = offset
}

// Lookup returns the cached path to dst, if any.
func (c *Cache) Lookup(dst address.Address) ([]address.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()

	hops, ok := c.mirror[dst]
	if !ok {
		return nil, false
	}
	out := make([]address.Address, len(hops))
	copy(out, hops)
	return out, true
}

// Save appends a newly learned path to dst := hops[len(hops)-1]. A no-op if
// a path to that destination is already cached (§8 idempotence law).
func (c *Cache) Save(hops []address.Address) error {
	if len(hops) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.load()

	dst := hops[len(hops)-1]
	if _, exists := c.mirror[dst]; exists {
		return nil
	}

	headerOff := c.st.Size() - 1
	size := recordSize(len(hops))
	if c.nextOffset+size > headerOff {
		return store.ErrFull
	}

	firstRecord := !c.headerSet

	offset := c.nextOffset
	if err := c.st.WriteAt(offset, byte(len(hops))); err != nil {
		return err
	}
	pos := offset + 1
	for _, h := range hops {
		for _, b := range h {
			if err := c.st.WriteAt(pos, b); err != nil {
				return err
			}
			pos++
		}
	}
	tag := recordTag(hops)
	for _, b := range tag {
		if err := c.st.WriteAt(pos, b); err != nil {
			return err
		}
		pos++
	}

	if firstRecord {
		if err := c.st.WriteAt(headerOff, byte(offset)); err != nil {
			return err
		}
		c.headerSet = true
	}

	if err := c.st.Commit(); err != nil {
		return err
	}

	stored := make([]address.Address, len(hops))
	copy(stored, hops)
	c.mirror[dst] = stored
	c.nextOffset = offset + size
	return nil
}

// Reset erases every persisted record and clears the in-memory mirror.
func (c *Cache) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < c.st.Size(); i++ {
		if err := c.st.WriteAt(i, lengthFree); err != nil {
			return err
		}
	}
	if err := c.st.Commit(); err != nil {
		return err
	}

	c.mirror = make(map[address.Address][]address.Address)
	c.nextOffset = 0
	c.loaded = true
	c.headerSet = false
	return nil
}

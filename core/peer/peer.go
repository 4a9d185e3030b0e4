// Package peer maintains the neighbour table consulted by the forwarding
// engine (§4.7). Entries live in this table only: adding, removing or
// re-keying a peer here makes no radio.Driver AddPeer/DeletePeer call.
package peer

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/kabili207/espmesh-go/core/address"
)

// DefaultMaxPeers is the default neighbour table capacity.
const DefaultMaxPeers = 20

// ErrTableFull is returned when Add is called on a full table for an
// address not already present.
var ErrTableFull = errors.New("peer: table full")

// Entry describes one known neighbour.
type Entry struct {
	Address   address.Address
	LinkKey   [16]byte
	Encrypted bool
}

// Config configures a Table.
type Config struct {
	// MaxPeers is the maximum number of distinct neighbours tracked.
	// Default: DefaultMaxPeers.
	MaxPeers int

	// Logger falls back to slog.Default() if nil.
	Logger *slog.Logger
}

// Table is a thread-safe neighbour table. The set of known addresses
// doubles as the forwarding engine's flood-fan-out set N (§4.7); it is a
// set, not a multiset (§9) — re-adding an address updates its entry rather
// than creating a duplicate.
type Table struct {
	cfg Config
	log *slog.Logger

	mu      sync.RWMutex
	entries map[address.Address]*Entry
	order   []address.Address
}

// New creates a Table with the given configuration.
func New(cfg Config) *Table {
	if cfg.MaxPeers <= 0 {
		cfg.MaxPeers = DefaultMaxPeers
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{
		cfg:     cfg,
		log:     logger.WithGroup("peer"),
		entries: make(map[address.Address]*Entry),
	}
}

// Add inserts or updates the entry for addr. Returns ErrTableFull if addr
// is new and the table is at capacity.
func (t *Table) Add(addr address.Address, linkKey [16]byte, encrypted bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[addr]; !exists && len(t.entries) >= t.cfg.MaxPeers {
		return ErrTableFull
	}

	if _, exists := t.entries[addr]; !exists {
		t.order = append(t.order, addr)
	}
	t.entries[addr] = &Entry{Address: addr, LinkKey: linkKey, Encrypted: encrypted}
	t.log.Debug("peer added", "addr", addr.String(), "encrypted", encrypted)
	return nil
}

// EnableEncryption installs key as addr's link-layer key and marks it
// encrypted (§4.2). A no-op if addr is already encrypted; otherwise addr
// is deleted and re-added with key and the encryption flag set. The
// delete step cannot itself fail (it is a no-op if addr is unknown), but
// the re-add is attempted regardless, so a full table still surfaces
// ErrTableFull to the caller.
func (t *Table) EnableEncryption(addr address.Address, key [16]byte) error {
	if entry, ok := t.Get(addr); ok && entry.Encrypted {
		return nil
	}
	t.Remove(addr)
	if err := t.Add(addr, key, true); err != nil {
		t.log.Warn("failed to re-add peer with encryption enabled", "addr", addr.String(), "error", err)
		return err
	}
	return nil
}

// Remove deletes addr from the table. A no-op if addr was not present.
func (t *Table) Remove(addr address.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[addr]; !exists {
		return
	}
	delete(t.entries, addr)
	for i, a := range t.order {
		if a == addr {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	t.log.Debug("peer removed", "addr", addr.String())
}

// Has reports whether addr is a known neighbour.
func (t *Table) Has(addr address.Address) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[addr]
	return ok
}

// Get returns the entry for addr, if known.
func (t *Table) Get(addr address.Address) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[addr]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Neighbours returns every known neighbour address, in insertion order. The
// returned slice is a copy; mutating it does not affect the table.
func (t *Table) Neighbours() []address.Address {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]address.Address, len(t.order))
	copy(out, t.order)
	return out
}

// Len reports the number of known neighbours.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

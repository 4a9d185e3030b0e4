// Package fsrelay implements radio.Driver as a shared directory on disk,
// standing in for radio/loopback's in-process Medium when the nodes being
// simulated are separate OS processes on the same machine rather than
// goroutines in the same process (§4.16's "local multi-process
// simulation"). Adapted from radio/loopback.Driver: the same
// peer-table/send-complete/receive-callback shape, with the in-memory
// Medium.deliver replaced by writing a file into a shared directory and a
// poller replacing the direct callback invocation.
package fsrelay

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kabili207/espmesh-go/core/address"
	"github.com/kabili207/espmesh-go/core/peer"
)

// DefaultPollInterval is how often a Driver scans the shared directory for
// datagrams addressed to it.
const DefaultPollInterval = 10 * time.Millisecond

// Driver is a radio.Driver backed by a directory shared between processes.
// Every Send writes one file into Dir; every poll tick lists Dir for files
// addressed to Self, delivers their payload, and removes them.
type Driver struct {
	self         address.Address
	dir          string
	pollInterval time.Duration

	mu             sync.Mutex
	peers          map[address.Address]peer.Entry
	onSendComplete func(addr address.Address, err error)
	onReceive      func(linkSrc address.Address, payload []byte)

	stop chan struct{}
	done chan struct{}

	seq uint64
}

// New creates a Driver for self that reads and writes datagram files under
// dir. The caller must call Init before use and Close when finished.
func New(self address.Address, dir string, pollInterval time.Duration) *Driver {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Driver{
		self:         self,
		dir:          dir,
		pollInterval: pollInterval,
		peers:        make(map[address.Address]peer.Entry),
	}
}

// Init creates the shared directory if necessary and starts the poller.
func (d *Driver) Init() error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("fsrelay: creating shared dir %s: %w", d.dir, err)
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.pollLoop()
	return nil
}

// Close stops the poller. It does not remove any files left in the shared
// directory.
func (d *Driver) Close() error {
	if d.stop == nil {
		return nil
	}
	close(d.stop)
	<-d.done
	return nil
}

func (d *Driver) SetPMK(key [16]byte) error {
	return nil
}

func (d *Driver) AddPeer(addr address.Address, linkKey [16]byte, encrypt bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peers[addr] = peer.Entry{Address: addr, LinkKey: linkKey, Encrypted: encrypt}
	return nil
}

func (d *Driver) DeletePeer(addr address.Address) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.peers, addr)
	return nil
}

func (d *Driver) HasPeer(addr address.Address) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.peers[addr]
	return ok
}

func (d *Driver) GetPeer(addr address.Address) (peer.Entry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.peers[addr]
	return e, ok
}

// Send writes payload as a file in the shared directory, named so that
// every other Driver's poller recognises it as addressed to dst. The
// write targets a temp file first and renames into place, so a
// concurrent poller never observes a partially-written datagram.
func (d *Driver) Send(dst address.Address, payload []byte) error {
	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	name := fmt.Sprintf("%s-%020d-%s.pkt", dst.String(), seq, d.self.String())
	final := filepath.Join(d.dir, strings.ReplaceAll(name, ":", ""))
	tmp := final + ".tmp"

	err := os.WriteFile(tmp, payload, 0o644)
	if err == nil {
		err = os.Rename(tmp, final)
	}

	d.mu.Lock()
	cb := d.onSendComplete
	d.mu.Unlock()
	if cb != nil {
		cb(dst, err)
	}
	return nil
}

func (d *Driver) OnSendComplete(fn func(addr address.Address, err error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSendComplete = fn
}

func (d *Driver) OnReceive(fn func(linkSrc address.Address, payload []byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onReceive = fn
}

func (d *Driver) pollLoop() {
	defer close(d.done)
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.scanOnce()
		}
	}
}

// scanOnce lists the shared directory, delivers every file addressed to
// self, and removes it. Entries are sorted by filename, which embeds a
// zero-padded sequence number, so delivery order matches send order for
// datagrams from the same peer.
func (d *Driver) scanOnce() {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return
	}

	selfTag := strings.ReplaceAll(d.self.String(), ":", "")
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		if strings.HasPrefix(e.Name(), selfTag+"-") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(d.dir, name)
		payload, err := os.ReadFile(path)
		os.Remove(path)
		if err != nil {
			continue
		}

		linkSrc, ok := parseSender(name)
		if !ok {
			continue
		}

		d.mu.Lock()
		cb := d.onReceive
		d.mu.Unlock()
		if cb != nil {
			cb(linkSrc, payload)
		}
	}
}

// parseSender recovers the sender address from a filename of the form
// "<dst>-<seq>-<src>.pkt".
func parseSender(name string) (address.Address, bool) {
	base := strings.TrimSuffix(name, ".pkt")
	parts := strings.Split(base, "-")
	if len(parts) != 3 {
		return address.Address{}, false
	}
	if _, err := address.Parse(parts[0]); err != nil {
		return address.Address{}, false
	}
	if _, err := strconv.ParseUint(parts[1], 10, 64); err != nil {
		return address.Address{}, false
	}
	addr, err := address.Parse(parts[2])
	if err != nil {
		return address.Address{}, false
	}
	return addr, true
}

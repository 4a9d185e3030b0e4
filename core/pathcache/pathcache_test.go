package pathcache

import (
	"testing"

	"github.com/kabili207/espmesh-go/core/address"
	"github.com/kabili207/espmesh-go/store"
	"github.com/kabili207/espmesh-go/store/memstore"
)

func addr(b byte) address.Address {
	var a address.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func TestLookupMissOnEmptyCache(t *testing.T) {
	c := New(memstore.New(store.Size))
	if _, ok := c.Lookup(addr(1)); ok {
		t.Error("Lookup on empty cache: want miss")
	}
}

func TestSaveThenLookup(t *testing.T) {
	c := New(memstore.New(store.Size))
	path := []address.Address{addr(0xA), addr(1), addr(0xB)}
	if err := c.Save(path); err != nil {
		t.Fatal(err)
	}

	got, ok := c.Lookup(addr(0xB))
	if !ok {
		t.Fatal("Lookup after Save: want hit")
	}
	if len(got) != len(path) {
		t.Fatalf("got %v, want %v", got, path)
	}
	for i := range path {
		if got[i] != path[i] {
			t.Errorf("hop %d = %v, want %v", i, got[i], path[i])
		}
	}
}

func TestSaveIdempotent(t *testing.T) {
	c := New(memstore.New(store.Size))
	path := []address.Address{addr(0xA), addr(0xB)}
	if err := c.Save(path); err != nil {
		t.Fatal(err)
	}
	if err := c.Save([]address.Address{addr(0xA), addr(1), addr(0xB)}); err != nil {
		t.Fatal(err)
	}

	got, _ := c.Lookup(addr(0xB))
	if len(got) != 2 {
		t.Errorf("second Save to an already-cached destination should have been a no-op, got path %v", got)
	}
}

func TestSaveMultipleDestinations(t *testing.T) {
	c := New(memstore.New(store.Size))
	if err := c.Save([]address.Address{addr(0xA), addr(0xB)}); err != nil {
		t.Fatal(err)
	}
	if err := c.Save([]address.Address{addr(0xA), addr(0xC)}); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Lookup(addr(0xB)); !ok {
		t.Error("expected path to B")
	}
	if _, ok := c.Lookup(addr(0xC)); !ok {
		t.Error("expected path to C")
	}
}

func TestResetClearsCache(t *testing.T) {
	c := New(memstore.New(store.Size))
	if err := c.Save([]address.Address{addr(0xA), addr(0xB)}); err != nil {
		t.Fatal(err)
	}
	if err := c.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Lookup(addr(0xB)); ok {
		t.Error("Lookup after Reset: want miss")
	}
}

func TestLazyLoadFromExistingStore(t *testing.T) {
	st := memstore.New(store.Size)
	c1 := New(st)
	if err := c1.Save([]address.Address{addr(0xA), addr(0xB)}); err != nil {
		t.Fatal(err)
	}

	c2 := New(st)
	got, ok := c2.Lookup(addr(0xB))
	if !ok {
		t.Fatal("new Cache over a populated store: want hit")
	}
	if len(got) != 2 {
		t.Errorf("got %v, want 2 hops", got)
	}
}

func TestSaveReturnsErrFullWhenStoreExhausted(t *testing.T) {
	// A single 1-hop record is 1+6+4=11 bytes; reserve exactly one byte
	// beyond that for the header, leaving no room for a second record.
	c := New(memstore.New(12))
	if err := c.Save([]address.Address{addr(0xB)}); err != nil {
		t.Fatal(err)
	}
	if err := c.Save([]address.Address{addr(0xC)}); err != store.ErrFull {
		t.Errorf("got err = %v, want store.ErrFull", err)
	}
}

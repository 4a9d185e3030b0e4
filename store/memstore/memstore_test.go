package memstore

import "testing"

func TestNewInitializesToFF(t *testing.T) {
	s := New(16)
	for i := 0; i < s.Size(); i++ {
		b, err := s.ReadAt(i)
		if err != nil {
			t.Fatalf("ReadAt(%d): %v", i, err)
		}
		if b != 0xFF {
			t.Errorf("byte %d = 0x%02X, want 0xFF", i, b)
		}
	}
}

func TestWriteAtThenReadAt(t *testing.T) {
	s := New(16)
	if err := s.WriteAt(4, 0x42); err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadAt(4)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x42 {
		t.Errorf("got 0x%02X, want 0x42", got)
	}
}

func TestOutOfRange(t *testing.T) {
	s := New(4)
	if _, err := s.ReadAt(4); err == nil {
		t.Error("ReadAt(4) on size-4 store: want error")
	}
	if err := s.WriteAt(-1, 0); err == nil {
		t.Error("WriteAt(-1, ...): want error")
	}
}

package filestore

import (
	"path/filepath"
	"testing"
)

func TestOpenInitializesToFF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.bin")
	s, err := Open(path, 32)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	b, err := s.ReadAt(0)
	if err != nil {
		t.Fatal(err)
	}
	if b != 0xFF {
		t.Errorf("byte 0 = 0x%02X, want 0xFF", b)
	}
}

func TestWriteCommitSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.bin")

	s1, err := Open(path, 32)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.WriteAt(5, 0x99); err != nil {
		t.Fatal(err)
	}
	if err := s1.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := s1.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(path, 32)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, err := s2.ReadAt(5)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0x99 {
		t.Errorf("after reopen, byte 5 = 0x%02X, want 0x99", got)
	}
}

func TestOpenRejectsSizeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.bin")
	s, err := Open(path, 32)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	if _, err := Open(path, 64); err == nil {
		t.Error("Open with mismatched size: want error")
	}
}

package store

import (
	"errors"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Put("slot", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	data, ok, err := s.Get("slot")
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("unexpected value: %s", data)
	}
}

func TestFileStoreMissingSlot(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	_, ok, err := s.Get("nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected missing slot")
	}

	// Deleting a missing slot is idempotent
	if err := s.Delete("nope"); err != nil {
		t.Errorf("delete of missing slot failed: %v", err)
	}
}

func TestFileStoreQuota(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s.SetQuota(4)

	if err := s.Put("big", []byte("12345")); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if err := s.Put("small", []byte("123")); err != nil {
		t.Fatalf("small write should fit: %v", err)
	}
}

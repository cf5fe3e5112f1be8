package kvstore

import (
	"context"
	"path/filepath"
	"testing"
)

func TestInMemoryRoundTrip(t *testing.T) {
	testRoundTrip(t, NewInMemoryStore())
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(ctx, filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()
	testRoundTrip(t, s)
}

func testRoundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want absent", ok, err)
	}

	if err := s.Set(ctx, "theme-preference", "dark"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	v, ok, err := s.Get(ctx, "theme-preference")
	if err != nil || !ok || v != "dark" {
		t.Fatalf("Get() = %q ok=%v err=%v, want dark", v, ok, err)
	}

	// Overwrite is last-write-wins.
	if err := s.Set(ctx, "theme-preference", "light"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	v, _, _ = s.Get(ctx, "theme-preference")
	if v != "light" {
		t.Fatalf("Get() after overwrite = %q, want light", v)
	}

	if err := s.Remove(ctx, "theme-preference"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok, _ := s.Get(ctx, "theme-preference"); ok {
		t.Fatalf("Get() after remove should be absent")
	}

	// Removing an absent key is a no-op.
	if err := s.Remove(ctx, "theme-preference"); err != nil {
		t.Fatalf("Remove() of absent key error = %v", err)
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	s, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := s.Set(ctx, "device-id", "dev-123"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s2, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s2.Close()
	v, ok, err := s2.Get(ctx, "device-id")
	if err != nil || !ok || v != "dev-123" {
		t.Fatalf("Get() after reopen = %q ok=%v err=%v", v, ok, err)
	}
}

func TestFactorySelectsBackend(t *testing.T) {
	ctx := context.Background()

	s, err := NewStore(ctx, "memory", "", "")
	if err != nil {
		t.Fatalf("NewStore(memory) error = %v", err)
	}
	if _, ok := s.(*InMemoryStore); !ok {
		t.Fatalf("NewStore(memory) = %T, want *InMemoryStore", s)
	}

	s, err = NewStore(ctx, "auto", filepath.Join(t.TempDir(), "kv.db"), "")
	if err != nil {
		t.Fatalf("NewStore(auto) error = %v", err)
	}
	defer s.Close()
	if _, ok := s.(*SQLiteStore); !ok {
		t.Fatalf("NewStore(auto, no DATABASE_URL) = %T, want *SQLiteStore", s)
	}

	if _, err := NewStore(ctx, "bolt", "", ""); err == nil {
		t.Fatalf("NewStore(bolt) should fail")
	}
}

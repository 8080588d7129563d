package session

import (
	"testing"
	"time"
)

func TestCreateAndGet(t *testing.T) {
	m := NewManager(0, nil)
	s := m.Create()
	if s.ID == "" {
		t.Fatal("empty id")
	}
	got, ok := m.Get(s.ID)
	if !ok || got.ID != s.ID {
		t.Fatalf("Get = %v, %v", got, ok)
	}
	if _, ok := m.Get("missing"); ok {
		t.Fatal("found missing session")
	}
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	m := NewManager(time.Minute, nil)
	stale := m.Create()
	stale.LastUsed = time.Now().Add(-2 * time.Minute)
	fresh := m.Create()

	if n := m.Sweep(); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if _, ok := m.Get(stale.ID); ok {
		t.Fatal("stale session survived")
	}
	if _, ok := m.Get(fresh.ID); !ok {
		t.Fatal("fresh session evicted")
	}
}

func TestGetRefreshesIdleTimer(t *testing.T) {
	m := NewManager(time.Minute, nil)
	s := m.Create()
	s.LastUsed = time.Now().Add(-2 * time.Minute)
	m.Get(s.ID)
	if n := m.Sweep(); n != 0 {
		t.Fatalf("evicted %d after touch, want 0", n)
	}
}

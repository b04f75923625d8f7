package ratelimit

import "testing"

func TestAllow_BurstThenDeny(t *testing.T) {
	l := New(0.001, 3) // effectively no refill during the test

	for i := 0; i < 3; i++ {
		if !l.Allow("u1") {
			t.Fatalf("burst token %d should be available", i)
		}
	}
	if l.Allow("u1") {
		t.Fatalf("bucket should be exhausted")
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l := New(0.001, 1)

	if !l.Allow("u1") {
		t.Fatalf("u1 first token")
	}
	if l.Allow("u1") {
		t.Fatalf("u1 should be exhausted")
	}
	if !l.Allow("u2") {
		t.Fatalf("u2 has its own bucket")
	}
}

func TestNew_CoercesBurst(t *testing.T) {
	l := New(1, 0)
	if l.burst != 1 {
		t.Fatalf("expected burst coerced to 1, got %d", l.burst)
	}
	l = New(1, -5)
	if l.burst != 1 {
		t.Fatalf("expected burst coerced to 1, got %d", l.burst)
	}
}

func TestGetVisitor_EvictsIdleEntries(t *testing.T) {
	l := New(1, 1)
	l.ttl = 0 // everything is instantly idle

	l.Allow("old")
	if _, ok := l.visitors["old"]; !ok {
		t.Fatalf("visitor should exist right after use")
	}

	// Force the opportunistic GC to run on the next lookup.
	l.mu.Lock()
	l.cleanupN = 4999
	l.mu.Unlock()
	l.Allow("new")

	l.mu.Lock()
	_, ok := l.visitors["old"]
	l.mu.Unlock()
	if ok {
		t.Fatalf("idle visitor should have been evicted")
	}
}

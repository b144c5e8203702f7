package ratelimit

import (
	"testing"
	"time"
)

func TestLimiterBurstThenRefill(t *testing.T) {
	l := New(1, 2, time.Minute)
	now := time.Unix(1000, 0)

	if !l.Allow(1, now) || !l.Allow(1, now) {
		t.Fatalf("expected burst to be allowed")
	}
	if l.Allow(1, now) {
		t.Fatalf("expected third event to be limited")
	}
	if !l.Allow(2, now) {
		t.Fatalf("users must not share buckets")
	}
	if !l.Allow(1, now.Add(time.Second)) {
		t.Fatalf("expected refill after one second")
	}
}

func TestLimiterNilAllows(t *testing.T) {
	var l *Limiter
	if !l.Allow(1, time.Now()) {
		t.Fatalf("nil limiter must allow")
	}
	if New(0, 1, 0) != nil || New(1, 0, 0) != nil {
		t.Fatalf("invalid args must yield nil limiter")
	}
}

func TestLimiterEvictsIdle(t *testing.T) {
	l := New(100, 100, time.Minute)
	start := time.Unix(1000, 0)
	l.Allow(99, start)

	later := start.Add(2 * time.Minute)
	for i := 0; i < sweepEvery; i++ {
		l.Allow(1, later)
	}
	if l.Len() != 1 {
		t.Fatalf("expected idle user evicted, tracked %d", l.Len())
	}
}

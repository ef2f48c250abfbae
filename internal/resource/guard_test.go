package resource

import "testing"

func TestAdmitRejectsPastMaxConnections(t *testing.T) {
	g := New(Config{MaxConnections: 1, CPURejectThreshold: 100, CPUPauseThreshold: 100, MaxRequestsPerSec: 10})
	defer g.Stop()

	if ok, _ := g.Admit(); !ok {
		t.Fatalf("first connection should be admitted")
	}
	g.ConnectionOpened()

	if ok, reason := g.Admit(); ok {
		t.Fatalf("second connection should be rejected, got ok with reason %q", reason)
	}

	g.ConnectionClosed()
	if ok, _ := g.Admit(); !ok {
		t.Fatalf("connection should be admitted again after the first closes")
	}
}

func TestNewRequestLimiterAllowsAtLeastOneBurst(t *testing.T) {
	g := New(Config{MaxConnections: 10, CPURejectThreshold: 100, CPUPauseThreshold: 100, MaxRequestsPerSec: 5})
	defer g.Stop()

	limiter := g.NewRequestLimiter()
	if !limiter.Allow() {
		t.Fatalf("a fresh limiter should allow its first request")
	}
}

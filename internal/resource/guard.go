// Package resource provides the broker's connection admission guard: a
// static CPU/connection-count ceiling plus a per-connection token-bucket
// rate limiter, sampled periodically rather than per-request for cheapness.
package resource

import (
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/time/rate"
)

// Guard gates new connection admission on current CPU load and an absolute
// connection ceiling, and hands out a fresh rate.Limiter for each admitted
// connection's inbound RPC call rate.
type Guard struct {
	maxConnections     int
	cpuRejectThreshold float64
	cpuPauseThreshold  float64
	maxRequestsPerSec  float64

	currentConns  atomic.Int64
	currentCPU    atomic.Value // float64
	samplePeriod  time.Duration
	stopSampling  chan struct{}
}

// Config configures a Guard. Zero SamplePeriod defaults to 5 seconds.
type Config struct {
	MaxConnections     int
	CPURejectThreshold float64
	CPUPauseThreshold  float64
	MaxRequestsPerSec  float64
	SamplePeriod       time.Duration
}

// New builds a Guard and starts its background CPU sampler.
func New(cfg Config) *Guard {
	period := cfg.SamplePeriod
	if period <= 0 {
		period = 5 * time.Second
	}
	g := &Guard{
		maxConnections:     cfg.MaxConnections,
		cpuRejectThreshold: cfg.CPURejectThreshold,
		cpuPauseThreshold:  cfg.CPUPauseThreshold,
		maxRequestsPerSec:  cfg.MaxRequestsPerSec,
		samplePeriod:       period,
		stopSampling:       make(chan struct{}),
	}
	g.currentCPU.Store(float64(0))
	go g.sampleLoop()
	return g
}

func (g *Guard) sampleLoop() {
	ticker := time.NewTicker(g.samplePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-g.stopSampling:
			return
		case <-ticker.C:
			percents, err := cpu.Percent(0, false)
			if err == nil && len(percents) > 0 {
				g.currentCPU.Store(percents[0])
			}
		}
	}
}

// Stop halts the background CPU sampler.
func (g *Guard) Stop() { close(g.stopSampling) }

// CurrentCPU returns the most recently sampled system CPU percentage.
func (g *Guard) CurrentCPU() float64 {
	return g.currentCPU.Load().(float64)
}

// Admit reports whether a new connection should be accepted, and if not,
// why (for logging/metrics).
func (g *Guard) Admit() (ok bool, reason string) {
	if int(g.currentConns.Load()) >= g.maxConnections {
		return false, "max_connections"
	}
	if cpuPct := g.CurrentCPU(); cpuPct >= g.cpuRejectThreshold {
		return false, "cpu_reject_threshold"
	}
	return true, ""
}

// ShouldPause reports whether CPU load has crossed the (higher) pause
// threshold. Unlike Admit, this never rejects a connection outright — it is
// consulted by already-admitted, ongoing work (the live-delivery loop) to
// apply backpressure on its own pace without tearing anything down, the way
// the teacher's ShouldPauseNATS throttles message consumption rather than
// rejecting connections.
func (g *Guard) ShouldPause() bool {
	return g.CurrentCPU() >= g.cpuPauseThreshold
}

// ConnectionOpened records a newly admitted connection.
func (g *Guard) ConnectionOpened() { g.currentConns.Add(1) }

// ConnectionClosed records a connection's departure.
func (g *Guard) ConnectionClosed() { g.currentConns.Add(-1) }

// NewRequestLimiter returns a fresh token-bucket limiter for one
// connection's inbound RPC call rate.
func (g *Guard) NewRequestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Limit(g.maxRequestsPerSec), int(g.maxRequestsPerSec))
}

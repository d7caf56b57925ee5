// Package netmon observes connectivity changes, classifies them into
// network conditions and samples interface throughput.
package netmon

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/sadewadee/dynamic-search/internal/domain"
)

// ThroughputSink receives observed throughput samples (bytes/sec).
type ThroughputSink interface {
	RecordThroughputSample(bytesPerSec float64)
}

// Listener is notified when the network condition materially changes.
type Listener func(domain.NetworkCondition)

const defaultSampleInterval = 10 * time.Second

// Monitor tracks the current network condition. Connectivity-change events
// are pushed via Observe; only changes in kind, connectedness, generation or
// expensiveness fan out to listeners, so duplicate events cause no strategy
// churn.
type Monitor struct {
	mu        sync.Mutex
	clock     clock.Clock
	current   domain.NetworkCondition
	listeners []Listener

	sink           ThroughputSink
	sampleInterval time.Duration
	lastRxBytes    uint64
	lastSampleAt   time.Time
}

// New creates a Monitor starting from the detected host condition.
func New(clk clock.Clock, sink ThroughputSink) *Monitor {
	m := &Monitor{
		clock:          clk,
		sink:           sink,
		sampleInterval: defaultSampleInterval,
	}
	m.current = detectHostCondition(clk.Now())
	return m
}

// SetSampleInterval overrides the throughput sampling interval. Call
// before Run; intervals under one second are ignored.
func (m *Monitor) SetSampleInterval(d time.Duration) {
	if d >= time.Second {
		m.sampleInterval = d
	}
}

// Subscribe registers a listener for condition changes. The listener is
// invoked immediately with the current condition.
func (m *Monitor) Subscribe(l Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	cond := m.current
	m.mu.Unlock()

	l(cond)
}

// Current returns the last observed condition.
func (m *Monitor) Current() domain.NetworkCondition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Observe ingests a connectivity-change event. The new condition is compared
// field-by-field against the previous one; listeners fire only on material
// change.
func (m *Monitor) Observe(cond domain.NetworkCondition) {
	if cond.ObservedAt.IsZero() {
		cond.ObservedAt = m.clock.Now()
	}

	m.mu.Lock()
	changed := cond.ChangedFrom(m.current)
	m.current = cond
	listeners := m.listeners
	m.mu.Unlock()

	if !changed {
		return
	}

	log.Printf("netmon: condition changed: %s", cond.Label())
	for _, l := range listeners {
		l(cond)
	}
}

// Run samples host interface counters on a ticker and feeds bytes/sec
// deltas into the throughput sink until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := m.clock.Ticker(m.sampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.sampleThroughput(ctx)
		}
	}
}

func (m *Monitor) sampleThroughput(ctx context.Context) {
	counters, err := psnet.IOCountersWithContext(ctx, false)
	if err != nil || len(counters) == 0 {
		return
	}

	now := m.clock.Now()
	rx := counters[0].BytesRecv

	m.mu.Lock()
	prevRx, prevAt := m.lastRxBytes, m.lastSampleAt
	m.lastRxBytes, m.lastSampleAt = rx, now
	m.mu.Unlock()

	if prevAt.IsZero() || rx < prevRx {
		return // first sample or counter reset
	}

	elapsed := now.Sub(prevAt).Seconds()
	if elapsed <= 0 {
		return
	}

	if m.sink != nil {
		m.sink.RecordThroughputSample(float64(rx-prevRx) / elapsed)
	}
}

// detectHostCondition infers a coarse initial condition from host
// interfaces. Anything beyond up/down and wifi-vs-wired naming comes from
// pushed Observe events; hosts cannot report cellular generation here.
func detectHostCondition(now time.Time) domain.NetworkCondition {
	cond := domain.NetworkCondition{
		Kind:       domain.NetworkNone,
		ObservedAt: now,
	}

	ifaces, err := psnet.Interfaces()
	if err != nil {
		return cond
	}

	for _, iface := range ifaces {
		up, loopback := false, false
		for _, f := range iface.Flags {
			switch f {
			case "up":
				up = true
			case "loopback":
				loopback = true
			}
		}
		if !up || loopback || len(iface.Addrs) == 0 {
			continue
		}

		cond.IsConnected = true
		cond.IsReachable = true
		name := strings.ToLower(iface.Name)
		if strings.HasPrefix(name, "wl") || strings.Contains(name, "wifi") {
			cond.Kind = domain.NetworkWiFi
			return cond
		}
		cond.Kind = domain.NetworkWired
	}

	return cond
}

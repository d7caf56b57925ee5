// Package bandwidth implements the bandwidth governor: network-aware
// strategy selection, request admission control, a priority request queue
// with retry, and data usage accounting.
package bandwidth

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/sadewadee/dynamic-search/internal/domain"
)

// Common governor errors
var (
	ErrUnknownRequest   = errors.New("unknown request id")
	ErrRetriesExhausted = errors.New("request retries exhausted")
)

// Refusal reasons reported alongside a denied admission.
const (
	RefusalOffline          = "offline"
	RefusalDailyLimit       = "daily_byte_limit_reached"
	RefusalRequestTooLarge  = "request_exceeds_size_cap"
	RefusalResponseTooLarge = "response_exceeds_size_cap"
	RefusalConcurrency      = "concurrency_cap_reached"
	RefusalRateLimited      = "per_minute_rate_exceeded"
)

const (
	rateWindow       = time.Minute
	retryBackoffStep = 2 * time.Second
	defaultMaxRetry  = 3
)

type windowSample struct {
	at    time.Time
	bytes int64
}

// Governor owns the request queue and active-request set. All state is
// private and serialized behind one mutex; other components interact only
// through method calls.
type Governor struct {
	mu sync.Mutex

	clock     clock.Clock
	condition domain.NetworkCondition
	strategy  domain.BandwidthStrategy
	mode      domain.DataUsageMode

	queue  requestQueue
	active map[string]*QueueEntry
	recent []windowSample // admission timestamps for the trailing rate window

	usage      *domain.DataUsageMetrics
	throughput throughputEstimator
}

// New creates a Governor. Until the first network condition arrives it
// assumes an offline, data_saver state.
func New(clk clock.Clock) *Governor {
	now := clk.Now()
	return &Governor{
		clock: clk,
		condition: domain.NetworkCondition{
			Kind:       domain.NetworkNone,
			ObservedAt: now,
		},
		strategy: StrategyByName(StrategyDataSaver),
		active:   make(map[string]*QueueEntry),
		usage:    domain.NewDataUsageMetrics(now),
	}
}

// OnConditionChange re-derives the active strategy from a new network
// condition. Returns true if the strategy switched.
func (g *Governor) OnConditionChange(cond domain.NetworkCondition) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.condition = cond

	name := g.selectLocked()
	if name == g.strategy.Name {
		return false
	}

	prev := g.strategy.Name
	g.strategy = StrategyByName(name)
	log.Printf("governor: strategy %s -> %s (network: %s)", prev, name, cond.Label())

	return true
}

// SetDataUsageMode applies the user's data budget preference. The minimal
// mode pins data_saver regardless of network quality; leaving it re-derives
// the strategy from the current condition.
func (g *Governor) SetDataUsageMode(mode domain.DataUsageMode) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.mode = mode

	name := g.selectLocked()
	if name == g.strategy.Name {
		return
	}

	prev := g.strategy.Name
	g.strategy = StrategyByName(name)
	log.Printf("governor: strategy %s -> %s (data usage mode: %s)", prev, name, mode)
}

func (g *Governor) selectLocked() string {
	if g.mode == domain.DataUsageMinimal {
		return StrategyDataSaver
	}
	return SelectStrategy(g.condition)
}

// CurrentStrategy returns a copy of the active strategy.
func (g *Governor) CurrentStrategy() domain.BandwidthStrategy {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.strategy
}

// CurrentCondition returns the last observed network condition.
func (g *Governor) CurrentCondition() domain.NetworkCondition {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.condition
}

// CanMakeRequest decides whether a request may proceed right now, given its
// estimated upload (request) and download (response) sizes. The upload is
// gated by the per-request cap, the download by the per-response cap, and
// their sum by the per-minute byte budget. Every check is an independent
// short-circuit; the first failing one is returned as the refusal reason.
// The priority argument is accepted for interface symmetry with
// QueueRequest; admission is priority-blind.
func (g *Governor) CanMakeRequest(requestBytes, responseBytes int64, _ domain.RequestPriority) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.rollover(now)

	if !g.condition.IsConnected {
		return false, RefusalOffline
	}

	if g.strategy.DailyByteLimit > 0 && g.usage.BytesUsed >= g.strategy.DailyByteLimit {
		return false, RefusalDailyLimit
	}

	if requestBytes > g.strategy.MaxRequestBytes {
		return false, RefusalRequestTooLarge
	}

	if responseBytes > g.strategy.MaxResponseBytes {
		return false, RefusalResponseTooLarge
	}

	if len(g.active) >= g.strategy.MaxConcurrentRequests {
		return false, RefusalConcurrency
	}

	g.pruneWindow(now)
	var windowBytes int64
	for _, s := range g.recent {
		windowBytes += s.bytes
	}
	if len(g.recent) >= g.strategy.MaxRequestsPerMinute ||
		windowBytes+requestBytes+responseBytes > g.strategy.MaxBytesPerMinute {
		return false, RefusalRateLimited
	}

	return true, ""
}

// QueueRequest inserts a request into the priority queue.
func (g *Governor) QueueRequest(id string, priority domain.RequestPriority, estimatedBytes int64) *QueueEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry := &QueueEntry{
		ID:             id,
		Priority:       priority,
		EnqueuedAt:     g.clock.Now(),
		EstimatedBytes: estimatedBytes,
		MaxRetries:     defaultMaxRetry,
	}
	g.queue.push(entry)

	return entry
}

// NextRequest pops the highest-priority eligible queued request and marks it
// active, or returns nil when none is eligible.
func (g *Governor) NextRequest() *QueueEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry := g.queue.pop(g.clock.Now())
	if entry == nil {
		return nil
	}
	g.startLocked(entry)

	return entry
}

// StartRequest marks a queued request active. Requests admitted directly by
// CanMakeRequest (without queueing) may also be registered here.
func (g *Governor) StartRequest(id string, estimatedBytes int64) *QueueEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry := g.queue.remove(id)
	if entry == nil {
		entry = &QueueEntry{
			ID:             id,
			Priority:       g.strategy.RequestPriority,
			EnqueuedAt:     g.clock.Now(),
			EstimatedBytes: estimatedBytes,
			MaxRetries:     defaultMaxRetry,
		}
	}
	g.startLocked(entry)

	return entry
}

func (g *Governor) startLocked(entry *QueueEntry) {
	now := g.clock.Now()
	entry.StartedAt = now
	g.active[entry.ID] = entry
	g.recent = append(g.recent, windowSample{at: now, bytes: entry.EstimatedBytes})
	g.pruneWindow(now)
}

// CompleteRequest removes an active request, records usage and feeds the
// throughput estimator with the observed bytes/sec.
func (g *Governor) CompleteRequest(id string, actualBytes int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.active[id]
	if !ok {
		return ErrUnknownRequest
	}
	delete(g.active, id)

	now := g.clock.Now()
	g.rollover(now)
	g.usage.Record(now, actualBytes, g.condition.Kind)

	if elapsed := now.Sub(entry.StartedAt); elapsed > 0 && actualBytes > 0 {
		g.throughput.add(float64(actualBytes) / elapsed.Seconds())
	}

	return nil
}

// FailRequest handles a failed active request. While retries remain the
// request is requeued with a linear backoff of retryCount x 2s and the
// requeued entry is returned so the caller can schedule the retry; once
// exhausted the failure is terminal and ErrRetriesExhausted is returned.
func (g *Governor) FailRequest(id string) (*QueueEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.active[id]
	if !ok {
		return nil, ErrUnknownRequest
	}
	delete(g.active, id)

	entry.RetryCount++
	if entry.RetryCount >= entry.MaxRetries {
		log.Printf("governor: request %s failed terminally after %d attempts", id, entry.RetryCount)
		return nil, ErrRetriesExhausted
	}

	entry.NotBefore = g.clock.Now().Add(time.Duration(entry.RetryCount) * retryBackoffStep)
	g.queue.push(entry)
	log.Printf("governor: request %s requeued (retry %d/%d)", id, entry.RetryCount, entry.MaxRetries)

	return entry, nil
}

// DropRequest removes a queued request that will not be run, for callers
// that resolve a pending retry some other way (cache serve, refusal). A
// no-op when the id is not queued.
func (g *Governor) DropRequest(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queue.remove(id)
}

// RecordThroughputSample feeds an externally observed throughput sample
// (bytes/sec) into the estimator. The network monitor uses this to fold in
// interface-level counters.
func (g *Governor) RecordThroughputSample(bytesPerSec float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.throughput.add(bytesPerSec)
}

// OptimalUpdateFrequency buckets the rolling throughput window into a
// bandwidth tier and returns the matching update interval from the current
// strategy. With no samples yet, a network-type default tier is used.
func (g *Governor) OptimalUpdateFrequency() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	tier, ok := g.throughput.tier()
	if !ok {
		tier = defaultTierFor(g.condition)
	}

	return g.strategy.UpdateFrequency(tier)
}

// ActiveRequests returns the number of in-flight requests.
func (g *Governor) ActiveRequests() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}

// QueuedRequests returns the number of queued requests.
func (g *Governor) QueuedRequests() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queue.len()
}

// UsageSnapshot returns a copy of today's data usage metrics.
func (g *Governor) UsageSnapshot() domain.DataUsageMetrics {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollover(g.clock.Now())

	cp := *g.usage
	cp.ByNetworkKind = make(map[domain.NetworkKind]int64, len(g.usage.ByNetworkKind))
	for k, v := range g.usage.ByNetworkKind {
		cp.ByNetworkKind[k] = v
	}

	return cp
}

// rollover resets the usage counters when the day changed.
func (g *Governor) rollover(now time.Time) {
	if g.usage.Stale(now) {
		g.usage = domain.NewDataUsageMetrics(now)
	}
}

// pruneWindow drops admission samples older than the rate window.
func (g *Governor) pruneWindow(now time.Time) {
	cutoff := now.Add(-rateWindow)
	i := 0
	for ; i < len(g.recent); i++ {
		if g.recent[i].at.After(cutoff) {
			break
		}
	}
	g.recent = g.recent[i:]
}

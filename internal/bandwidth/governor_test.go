package bandwidth

import (
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadewadee/dynamic-search/internal/domain"
)

func wifiCondition() domain.NetworkCondition {
	return domain.NetworkCondition{Kind: domain.NetworkWiFi, IsConnected: true, IsReachable: true}
}

func cellularCondition(gen domain.CellularGeneration) domain.NetworkCondition {
	return domain.NetworkCondition{Kind: domain.NetworkCellular, IsConnected: true, IsReachable: true, Generation: gen}
}

func newTestGovernor() (*Governor, *clock.Mock) {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC))
	return New(mock), mock
}

func TestGovernorStartsOffline(t *testing.T) {
	g, _ := newTestGovernor()

	assert.Equal(t, StrategyDataSaver, g.CurrentStrategy().Name)

	ok, reason := g.CanMakeRequest(1024, 16<<10, domain.PriorityNormal)
	assert.False(t, ok)
	assert.Equal(t, RefusalOffline, reason)
}

func TestGovernorOnConditionChange(t *testing.T) {
	g, _ := newTestGovernor()

	assert.True(t, g.OnConditionChange(wifiCondition()))
	assert.Equal(t, StrategyWifiOptimal, g.CurrentStrategy().Name)

	// same derived strategy, no switch
	assert.False(t, g.OnConditionChange(wifiCondition()))

	assert.True(t, g.OnConditionChange(cellularCondition(domain.Gen3G)))
	assert.Equal(t, StrategyCellular3G, g.CurrentStrategy().Name)
}

func TestGovernorAdmission(t *testing.T) {
	t.Run("Admits a small request on wifi", func(t *testing.T) {
		g, _ := newTestGovernor()
		g.OnConditionChange(wifiCondition())

		ok, reason := g.CanMakeRequest(2<<10, 64<<10, domain.PriorityNormal)
		assert.True(t, ok)
		assert.Empty(t, reason)
	})

	t.Run("Admits a search under data_saver", func(t *testing.T) {
		g, _ := newTestGovernor()
		g.OnConditionChange(domain.NetworkCondition{Kind: domain.NetworkWiFi, IsConnected: true, IsExpensive: true})
		require.Equal(t, StrategyDataSaver, g.CurrentStrategy().Name)

		// a typical search upload is well under the 32 KB request cap even
		// though its expected download is not
		ok, reason := g.CanMakeRequest(2<<10, 64<<10, domain.PriorityNormal)
		assert.True(t, ok)
		assert.Empty(t, reason)
	})

	t.Run("Refuses oversized requests", func(t *testing.T) {
		g, _ := newTestGovernor()
		g.OnConditionChange(wifiCondition())

		ok, reason := g.CanMakeRequest(2<<20, 64<<10, domain.PriorityNormal)
		assert.False(t, ok)
		assert.Equal(t, RefusalRequestTooLarge, reason)
	})

	t.Run("Refuses oversized responses", func(t *testing.T) {
		g, _ := newTestGovernor()
		g.OnConditionChange(wifiCondition())

		ok, reason := g.CanMakeRequest(2<<10, 6<<20, domain.PriorityNormal)
		assert.False(t, ok)
		assert.Equal(t, RefusalResponseTooLarge, reason)
	})

	t.Run("Refuses at the concurrency cap", func(t *testing.T) {
		g, _ := newTestGovernor()
		g.OnConditionChange(cellularCondition(domain.Gen2G)) // cap: 1

		g.StartRequest("in-flight", 16<<10)

		ok, reason := g.CanMakeRequest(16<<10, 16<<10, domain.PriorityNormal)
		assert.False(t, ok)
		assert.Equal(t, RefusalConcurrency, reason)
	})

	t.Run("Refuses past the per-minute byte budget", func(t *testing.T) {
		g, mock := newTestGovernor()
		g.OnConditionChange(wifiCondition())

		// burn the 10 MB/min budget with completed requests
		for i := 0; i < 10; i++ {
			id := fmt.Sprintf("req-%d", i)
			g.StartRequest(id, 1<<20)
			require.NoError(t, g.CompleteRequest(id, 1<<20))
		}

		ok, reason := g.CanMakeRequest(64<<10, 512<<10, domain.PriorityNormal)
		assert.False(t, ok)
		assert.Equal(t, RefusalRateLimited, reason)

		// window slides
		mock.Add(61 * time.Second)

		ok, _ = g.CanMakeRequest(64<<10, 512<<10, domain.PriorityNormal)
		assert.True(t, ok)
	})

	t.Run("Refuses past the daily byte limit", func(t *testing.T) {
		g, _ := newTestGovernor()
		g.OnConditionChange(domain.NetworkCondition{Kind: domain.NetworkWiFi, IsConnected: true, IsExpensive: true})
		require.Equal(t, StrategyDataSaver, g.CurrentStrategy().Name)

		g.StartRequest("big", 16<<10)
		require.NoError(t, g.CompleteRequest("big", 6<<20)) // past the 5 MB daily cap

		ok, reason := g.CanMakeRequest(1024, 1024, domain.PriorityNormal)
		assert.False(t, ok)
		assert.Equal(t, RefusalDailyLimit, reason)
	})
}

func TestGovernorDataUsageModePinsDataSaver(t *testing.T) {
	g, _ := newTestGovernor()
	g.OnConditionChange(wifiCondition())
	require.Equal(t, StrategyWifiOptimal, g.CurrentStrategy().Name)

	g.SetDataUsageMode(domain.DataUsageMinimal)
	assert.Equal(t, StrategyDataSaver, g.CurrentStrategy().Name)

	// network changes cannot override the pin
	assert.False(t, g.OnConditionChange(cellularCondition(domain.Gen5G)))
	assert.Equal(t, StrategyDataSaver, g.CurrentStrategy().Name)

	// lifting the pin re-derives from the current condition
	g.SetDataUsageMode(domain.DataUsageOptimized)
	assert.Equal(t, StrategyCellular5G, g.CurrentStrategy().Name)
}

func TestGovernorQueueOrdering(t *testing.T) {
	g, _ := newTestGovernor()
	g.OnConditionChange(wifiCondition())

	g.QueueRequest("low", domain.PriorityLow, 1024)
	g.QueueRequest("high", domain.PriorityHigh, 1024)
	g.QueueRequest("normal-1", domain.PriorityNormal, 1024)
	g.QueueRequest("normal-2", domain.PriorityNormal, 1024)

	assert.Equal(t, 4, g.QueuedRequests())

	var order []string
	for e := g.NextRequest(); e != nil; e = g.NextRequest() {
		order = append(order, e.ID)
	}

	assert.Equal(t, []string{"high", "normal-1", "normal-2", "low"}, order)
	assert.Equal(t, 4, g.ActiveRequests())
}

func TestGovernorRetryBackoff(t *testing.T) {
	g, mock := newTestGovernor()
	g.OnConditionChange(wifiCondition())

	g.StartRequest("flaky", 1024)

	// first failure: requeued, gated for 1 x 2s
	requeued, err := g.FailRequest("flaky")
	require.NoError(t, err)
	require.NotNil(t, requeued)
	assert.Equal(t, mock.Now().Add(2*time.Second), requeued.NotBefore)
	assert.Equal(t, 1, g.QueuedRequests())
	assert.Nil(t, g.NextRequest())

	mock.Add(2 * time.Second)
	entry := g.NextRequest()
	require.NotNil(t, entry)
	assert.Equal(t, "flaky", entry.ID)
	assert.Equal(t, 1, entry.RetryCount)

	// second failure: gated for 2 x 2s
	_, err = g.FailRequest("flaky")
	require.NoError(t, err)
	mock.Add(2 * time.Second)
	assert.Nil(t, g.NextRequest())
	mock.Add(2 * time.Second)
	require.NotNil(t, g.NextRequest())

	// third failure exhausts the retry budget
	_, err = g.FailRequest("flaky")
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 0, g.QueuedRequests())

	_, err = g.FailRequest("unknown")
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestGovernorStartRequestReclaimsQueuedEntry(t *testing.T) {
	g, mock := newTestGovernor()
	g.OnConditionChange(wifiCondition())

	g.StartRequest("flaky", 1024)
	_, err := g.FailRequest("flaky")
	require.NoError(t, err)
	require.Equal(t, 1, g.QueuedRequests())

	mock.Add(2 * time.Second)
	entry := g.StartRequest("flaky", 1024)
	assert.Equal(t, 1, entry.RetryCount, "a re-started request keeps its retry history")
	assert.Equal(t, 0, g.QueuedRequests())
}

func TestGovernorDropRequest(t *testing.T) {
	g, _ := newTestGovernor()
	g.OnConditionChange(wifiCondition())

	g.StartRequest("abandoned", 1024)
	_, err := g.FailRequest("abandoned")
	require.NoError(t, err)
	require.Equal(t, 1, g.QueuedRequests())

	g.DropRequest("abandoned")
	assert.Equal(t, 0, g.QueuedRequests())

	// unknown ids are a no-op
	g.DropRequest("never-seen")
	assert.Equal(t, 0, g.QueuedRequests())
}

func TestGovernorOptimalUpdateFrequency(t *testing.T) {
	t.Run("Defaults by network kind before samples", func(t *testing.T) {
		g, _ := newTestGovernor()
		g.OnConditionChange(wifiCondition())

		// wifi defaults to the high tier
		assert.Equal(t, 2*time.Second, g.OptimalUpdateFrequency())
	})

	t.Run("Observed throughput drives the tier", func(t *testing.T) {
		g, _ := newTestGovernor()
		g.OnConditionChange(wifiCondition())

		for i := 0; i < 10; i++ {
			g.RecordThroughputSample(10 << 10) // 10 KB/s, low tier
		}

		assert.Equal(t, 15*time.Second, g.OptimalUpdateFrequency())

		for i := 0; i < 50; i++ {
			g.RecordThroughputSample(1 << 20) // 1 MB/s fills the window, high tier
		}

		assert.Equal(t, 2*time.Second, g.OptimalUpdateFrequency())
	})
}

func TestGovernorUsageAccounting(t *testing.T) {
	g, mock := newTestGovernor()
	g.OnConditionChange(wifiCondition())

	g.StartRequest("a", 1024)
	mock.Add(time.Second)
	require.NoError(t, g.CompleteRequest("a", 100<<10))

	g.StartRequest("b", 1024)
	require.NoError(t, g.CompleteRequest("b", 50<<10))

	usage := g.UsageSnapshot()
	assert.Equal(t, 2, usage.RequestCount)
	assert.Equal(t, int64(150<<10), usage.BytesUsed)
	assert.Equal(t, int64(150<<10), usage.ByNetworkKind[domain.NetworkWiFi])
	assert.Equal(t, int64(50<<10), usage.MinBytes)
	assert.Equal(t, int64(100<<10), usage.MaxBytes)
	assert.Equal(t, int64(75<<10), usage.AvgBytes())
	assert.Equal(t, 12, usage.PeakHour())

	// counters reset on day rollover
	mock.Add(24 * time.Hour)
	usage = g.UsageSnapshot()
	assert.Equal(t, 0, usage.RequestCount)
	assert.Equal(t, int64(0), usage.BytesUsed)
}

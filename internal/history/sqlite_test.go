package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadewadee/dynamic-search/internal/domain"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	return repo
}

func sampleRecord(query string, source domain.ResultSource, createdAt time.Time) *domain.SearchRecord {
	return &domain.SearchRecord{
		ID:           uuid.New(),
		SearchID:     "37.775:-122.419:5.0:" + query + ":",
		Query:        query,
		CenterLat:    37.7749,
		CenterLon:    -122.4194,
		RadiusKm:     5,
		RegionCode:   "849VQHCJ+",
		ResultCount:  3,
		Source:       source,
		Confidence:   90,
		NetworkLabel: "wifi",
		DurationMs:   450,
		CreatedAt:    createdAt,
	}
}

func TestSQLiteRecordAndList(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.Record(ctx, sampleRecord("pizza", domain.SourceFresh, now.Add(-2*time.Hour))))
	require.NoError(t, repo.Record(ctx, sampleRecord("coffee", domain.SourceCached, now.Add(-time.Hour))))
	require.NoError(t, repo.Record(ctx, sampleRecord("pizza oven", domain.SourceFresh, now)))

	t.Run("Newest first", func(t *testing.T) {
		records, total, err := repo.List(ctx, domain.HistoryListParams{})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, records, 3)
		assert.Equal(t, "pizza oven", records[0].Query)
		assert.Equal(t, "pizza", records[2].Query)
	})

	t.Run("Filter by query substring", func(t *testing.T) {
		records, total, err := repo.List(ctx, domain.HistoryListParams{Query: "pizza"})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, records, 2)
	})

	t.Run("Filter by source", func(t *testing.T) {
		records, total, err := repo.List(ctx, domain.HistoryListParams{Source: domain.SourceCached})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, records, 1)
		assert.Equal(t, "coffee", records[0].Query)
	})

	t.Run("Filter by since", func(t *testing.T) {
		_, total, err := repo.List(ctx, domain.HistoryListParams{Since: now.Add(-90 * time.Minute)})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
	})

	t.Run("Pagination", func(t *testing.T) {
		records, total, err := repo.List(ctx, domain.HistoryListParams{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, records, 1)
		assert.Equal(t, "pizza", records[0].Query)
	})

	t.Run("Round trip preserves fields", func(t *testing.T) {
		records, _, err := repo.List(ctx, domain.HistoryListParams{Source: domain.SourceCached})
		require.NoError(t, err)
		require.Len(t, records, 1)

		got := records[0]
		assert.Equal(t, 37.7749, got.CenterLat)
		assert.Equal(t, "849VQHCJ+", got.RegionCode)
		assert.Equal(t, 90, got.Confidence)
		assert.Equal(t, "wifi", got.NetworkLabel)
		assert.Equal(t, int64(450), got.DurationMs)
	})
}

func TestSQLiteStats(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, repo.Record(ctx, sampleRecord("pizza", domain.SourceFresh, now.Add(-48*time.Hour))))
	require.NoError(t, repo.Record(ctx, sampleRecord("coffee", domain.SourceCached, now)))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Today)
	assert.Equal(t, 1, stats.CacheHits)
	assert.Equal(t, 450.0, stats.AvgLatency)
}

func TestSQLiteDeleteOlderThan(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for i := 0; i < 5; i++ {
		rec := sampleRecord(fmt.Sprintf("query-%d", i), domain.SourceFresh, now.Add(-time.Duration(i)*24*time.Hour))
		require.NoError(t, repo.Record(ctx, rec))
	}

	deleted, err := repo.DeleteOlderThan(ctx, now.Add(-36*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	_, total, err := repo.List(ctx, domain.HistoryListParams{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestSQLitePreferences(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	t.Run("Defaults when nothing stored", func(t *testing.T) {
		prefs, err := repo.GetPreferences(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultPreferences(), *prefs)
	})

	t.Run("Set and get round trip", func(t *testing.T) {
		want := &domain.Preferences{AutoSearchEnabled: false, DataUsageMode: domain.DataUsageMinimal}
		require.NoError(t, repo.SetPreferences(ctx, want))

		got, err := repo.GetPreferences(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("Upsert overwrites", func(t *testing.T) {
		first := &domain.Preferences{AutoSearchEnabled: true, DataUsageMode: domain.DataUsageUnrestricted}
		require.NoError(t, repo.SetPreferences(ctx, first))

		second := &domain.Preferences{AutoSearchEnabled: true, DataUsageMode: domain.DataUsageOptimized}
		require.NoError(t, repo.SetPreferences(ctx, second))

		got, err := repo.GetPreferences(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.DataUsageOptimized, got.DataUsageMode)
	})
}

func TestSQLiteContextBlob(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	got, err := repo.GetContext(ctx, domain.NamespaceLastContext)
	require.NoError(t, err)
	assert.Nil(t, got)

	blob := []byte(`{"query":"coffee","lat":37.7749}`)
	require.NoError(t, repo.SetContext(ctx, domain.NamespaceLastContext, blob))

	got, err = repo.GetContext(ctx, domain.NamespaceLastContext)
	require.NoError(t, err)
	assert.Equal(t, blob, got)
}

// Package history persists the durable search log, usage statistics and
// user preferences.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sadewadee/dynamic-search/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS search_history (
	id            TEXT PRIMARY KEY,
	search_id     TEXT NOT NULL,
	query         TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	center_lat    REAL NOT NULL,
	center_lon    REAL NOT NULL,
	radius_km     REAL NOT NULL,
	region_code   TEXT NOT NULL DEFAULT '',
	result_count  INTEGER NOT NULL,
	source        TEXT NOT NULL,
	confidence    INTEGER NOT NULL,
	network_label TEXT NOT NULL DEFAULT '',
	duration_ms   INTEGER NOT NULL,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_history_created ON search_history (created_at);

CREATE TABLE IF NOT EXISTS preferences (
	namespace TEXT PRIMARY KEY,
	blob      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// SQLiteRepository implements domain.HistoryRepository and
// domain.PreferenceRepository on a local SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (and initializes) a SQLite-backed repository.
func OpenSQLite(dsn string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Record appends one search record.
func (r *SQLiteRepository) Record(ctx context.Context, rec *domain.SearchRecord) error {
	query := `
		INSERT INTO search_history (
			id, search_id, query, category,
			center_lat, center_lon, radius_km, region_code,
			result_count, source, confidence, network_label,
			duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID.String(), rec.SearchID, rec.Query, rec.Category,
		rec.CenterLat, rec.CenterLon, rec.RadiusKm, rec.RegionCode,
		rec.ResultCount, string(rec.Source), rec.Confidence, rec.NetworkLabel,
		rec.DurationMs, rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert search record: %w", err)
	}

	return nil
}

// List returns records matching the params, newest first, plus the total
// matching count.
func (r *SQLiteRepository) List(ctx context.Context, params domain.HistoryListParams) ([]*domain.SearchRecord, int, error) {
	where := " WHERE 1=1"
	args := []any{}

	if params.Query != "" {
		where += " AND query LIKE ?"
		args = append(args, "%"+params.Query+"%")
	}
	if params.Source != "" {
		where += " AND source = ?"
		args = append(args, string(params.Source))
	}
	if !params.Since.IsZero() {
		where += " AND created_at >= ?"
		args = append(args, params.Since.UTC().Format(time.RFC3339Nano))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM search_history"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count history: %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, search_id, query, category,
			center_lat, center_lon, radius_km, region_code,
			result_count, source, confidence, network_label,
			duration_ms, created_at
		FROM search_history` + where + `
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, limit, params.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var records []*domain.SearchRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate history: %w", err)
	}

	return records, total, nil
}

func scanRecord(rows *sql.Rows) (*domain.SearchRecord, error) {
	var (
		rec       domain.SearchRecord
		id        string
		source    string
		createdAt string
	)

	err := rows.Scan(
		&id, &rec.SearchID, &rec.Query, &rec.Category,
		&rec.CenterLat, &rec.CenterLon, &rec.RadiusKm, &rec.RegionCode,
		&rec.ResultCount, &source, &rec.Confidence, &rec.NetworkLabel,
		&rec.DurationMs, &createdAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	rec.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("failed to parse record id: %w", err)
	}
	rec.Source = domain.ResultSource(source)
	rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return &rec, nil
}

// Stats summarizes the recorded searches.
func (r *SQLiteRepository) Stats(ctx context.Context) (*domain.HistoryStats, error) {
	stats := &domain.HistoryStats{}

	todayStart := time.Now().UTC().Truncate(24 * time.Hour).Format(time.RFC3339Nano)

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN source = 'cached' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_ms), 0)
		FROM search_history
	`

	err := r.db.QueryRowContext(ctx, query, todayStart).Scan(
		&stats.Total, &stats.Today, &stats.CacheHits, &stats.AvgLatency,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get history stats: %w", err)
	}

	return stats, nil
}

// DeleteOlderThan prunes records created before the cutoff.
func (r *SQLiteRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM search_history WHERE created_at < ?",
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

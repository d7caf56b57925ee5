package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sadewadee/dynamic-search/internal/domain"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS search_history (
	id            UUID PRIMARY KEY,
	search_id     TEXT NOT NULL,
	query         TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	center_lat    DOUBLE PRECISION NOT NULL,
	center_lon    DOUBLE PRECISION NOT NULL,
	radius_km     DOUBLE PRECISION NOT NULL,
	region_code   TEXT NOT NULL DEFAULT '',
	result_count  INTEGER NOT NULL,
	source        TEXT NOT NULL,
	confidence    INTEGER NOT NULL,
	network_label TEXT NOT NULL DEFAULT '',
	duration_ms   BIGINT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_search_history_created ON search_history (created_at);
`

// PostgresRepository implements domain.HistoryRepository on PostgreSQL, for
// deployments where several instances share one history log. Preferences
// remain device-local and stay in SQLite.
type PostgresRepository struct {
	db *sql.DB
}

// OpenPostgres opens (and initializes) a PostgreSQL-backed repository.
func OpenPostgres(dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	if _, err := db.Exec(postgresSchema); err != nil {
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// Record appends one search record.
func (r *PostgresRepository) Record(ctx context.Context, rec *domain.SearchRecord) error {
	query := `
		INSERT INTO search_history (
			id, search_id, query, category,
			center_lat, center_lon, radius_km, region_code,
			result_count, source, confidence, network_label,
			duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.SearchID, rec.Query, rec.Category,
		rec.CenterLat, rec.CenterLon, rec.RadiusKm, rec.RegionCode,
		rec.ResultCount, string(rec.Source), rec.Confidence, rec.NetworkLabel,
		rec.DurationMs, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert search record: %w", err)
	}

	return nil
}

// List returns records matching the params, newest first, plus the total
// matching count.
func (r *PostgresRepository) List(ctx context.Context, params domain.HistoryListParams) ([]*domain.SearchRecord, int, error) {
	where := " WHERE 1=1"
	args := []any{}
	idx := 1

	if params.Query != "" {
		where += fmt.Sprintf(" AND query ILIKE $%d", idx)
		args = append(args, "%"+params.Query+"%")
		idx++
	}
	if params.Source != "" {
		where += fmt.Sprintf(" AND source = $%d", idx)
		args = append(args, string(params.Source))
		idx++
	}
	if !params.Since.IsZero() {
		where += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, params.Since.UTC())
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM search_history"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count history: %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT id, search_id, query, category,
			center_lat, center_lon, radius_km, region_code,
			result_count, source, confidence, network_label,
			duration_ms, created_at
		FROM search_history%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, idx, idx+1)
	args = append(args, limit, params.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var records []*domain.SearchRecord
	for rows.Next() {
		var (
			rec    domain.SearchRecord
			id     uuid.UUID
			source string
		)
		err := rows.Scan(
			&id, &rec.SearchID, &rec.Query, &rec.Category,
			&rec.CenterLat, &rec.CenterLon, &rec.RadiusKm, &rec.RegionCode,
			&rec.ResultCount, &source, &rec.Confidence, &rec.NetworkLabel,
			&rec.DurationMs, &rec.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan record: %w", err)
		}
		rec.ID = id
		rec.Source = domain.ResultSource(source)
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate history: %w", err)
	}

	return records, total, nil
}

// Stats summarizes the recorded searches.
func (r *PostgresRepository) Stats(ctx context.Context) (*domain.HistoryStats, error) {
	stats := &domain.HistoryStats{}

	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN created_at >= date_trunc('day', now()) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN source = 'cached' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(duration_ms), 0)
		FROM search_history
	`

	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Total, &stats.Today, &stats.CacheHits, &stats.AvgLatency,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get history stats: %w", err)
	}

	return stats, nil
}

// DeleteOlderThan prunes records created before the cutoff.
func (r *PostgresRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM search_history WHERE created_at < $1", cutoff.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

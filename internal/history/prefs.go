package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sadewadee/dynamic-search/internal/domain"
)

// GetPreferences loads the preference blob, returning defaults when none is
// stored yet.
func (r *SQLiteRepository) GetPreferences(ctx context.Context) (*domain.Preferences, error) {
	blob, err := r.GetContext(ctx, domain.NamespacePreferences)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		prefs := domain.DefaultPreferences()
		return &prefs, nil
	}

	var prefs domain.Preferences
	if err := json.Unmarshal(blob, &prefs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal preferences: %w", err)
	}

	return &prefs, nil
}

// SetPreferences stores the preference blob.
func (r *SQLiteRepository) SetPreferences(ctx context.Context, prefs *domain.Preferences) error {
	blob, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	return r.SetContext(ctx, domain.NamespacePreferences, blob)
}

// GetContext returns the raw blob stored under a namespace, nil when absent.
func (r *SQLiteRepository) GetContext(ctx context.Context, namespace string) ([]byte, error) {
	var blob []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT blob FROM preferences WHERE namespace = ?", namespace,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s blob: %w", namespace, err)
	}
	return blob, nil
}

// SetContext upserts the blob stored under a namespace.
func (r *SQLiteRepository) SetContext(ctx context.Context, namespace string, blob []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO preferences (namespace, blob, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(namespace) DO UPDATE SET blob = excluded.blob, updated_at = excluded.updated_at
	`, namespace, blob, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to set %s blob: %w", namespace, err)
	}
	return nil
}

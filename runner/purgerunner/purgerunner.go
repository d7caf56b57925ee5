package purgerunner

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sadewadee/dynamic-search/internal/domain"
	"github.com/sadewadee/dynamic-search/internal/history"
	"github.com/sadewadee/dynamic-search/runner"
)

// PurgeRunner deletes expired history records and exits.
type PurgeRunner struct {
	cfg  *runner.Config
	repo domain.HistoryRepository
}

// New creates a new PurgeRunner.
func New(cfg *runner.Config) (runner.Runner, error) {
	var (
		repo domain.HistoryRepository
		err  error
	)

	if strings.HasPrefix(cfg.Dsn, "postgres://") || strings.HasPrefix(cfg.Dsn, "postgresql://") {
		repo, err = history.OpenPostgres(cfg.Dsn)
	} else {
		repo, err = history.OpenSQLite(cfg.DataFile)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}

	return &PurgeRunner{cfg: cfg, repo: repo}, nil
}

// Run deletes all records older than the configured retention.
func (p *PurgeRunner) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-p.cfg.HistoryRetention)

	deleted, err := p.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge history: %w", err)
	}

	log.Printf("[purge] deleted %d history records older than %s", deleted, cutoff.Format(time.RFC3339))

	return nil
}

// Close cleans up resources
func (p *PurgeRunner) Close(_ context.Context) error {
	return p.repo.Close()
}

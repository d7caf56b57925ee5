package serverrunner

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"github.com/sadewadee/dynamic-search/internal/api"
	"github.com/sadewadee/dynamic-search/internal/api/handlers"
	"github.com/sadewadee/dynamic-search/internal/bandwidth"
	"github.com/sadewadee/dynamic-search/internal/cache"
	"github.com/sadewadee/dynamic-search/internal/domain"
	"github.com/sadewadee/dynamic-search/internal/history"
	"github.com/sadewadee/dynamic-search/internal/mq"
	"github.com/sadewadee/dynamic-search/internal/netmon"
	"github.com/sadewadee/dynamic-search/internal/search"
	"github.com/sadewadee/dynamic-search/runner"
)

// ServerRunner runs the search API server with the network monitor loop.
type ServerRunner struct {
	cfg          *runner.Config
	srv          *http.Server
	monitor      *netmon.Monitor
	governor     *bandwidth.Governor
	orchestrator *search.Orchestrator
	results      cache.ResultCache
	historyRepo  domain.HistoryRepository
	prefsRepo    *history.SQLiteRepository
	publisher    mq.Publisher
}

// New creates a new ServerRunner and wires its dependencies.
func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	// Preferences and the last search context always live in the local
	// sqlite file; history moves to postgres when a dsn is provided.
	prefsRepo, err := history.OpenSQLite(cfg.DataFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}

	var historyRepo domain.HistoryRepository = prefsRepo

	isPostgres := strings.HasPrefix(cfg.Dsn, "postgres://") || strings.HasPrefix(cfg.Dsn, "postgresql://")
	if isPostgres {
		pg, err := history.OpenPostgres(cfg.Dsn)
		if err != nil {
			prefsRepo.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		historyRepo = pg
	}

	var results cache.ResultCache
	if cfg.RedisAddr != "" {
		results, err = cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		log.Printf("[server] result cache: redis at %s", cfg.RedisAddr)
	} else {
		results = cache.NewMemoryCache()

		log.Printf("[server] result cache: in-memory")
	}

	var publisher mq.Publisher = mq.NewNoOpPublisher()
	if cfg.RabbitMQURL != "" {
		publisher, err = mq.NewPublisher(mq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
		}

		log.Printf("[server] notification mirror: rabbitmq exchange %s", mq.ExchangeName)
	}

	clk := clock.New()

	governor := bandwidth.New(clk)

	monitor := netmon.New(clk, governor)
	monitor.SetSampleInterval(cfg.NetSampleInterval)
	monitor.Subscribe(func(cond domain.NetworkCondition) {
		if governor.OnConditionChange(cond) {
			log.Printf("[server] bandwidth strategy now %s (%s)",
				governor.CurrentStrategy().Name, cond.Label())
		}
	})

	if cfg.SearchURL == "" {
		log.Printf("[server] warning: no -search-url configured, fetches will fail")
	}

	fetcher := search.NewHTTPFetcher(cfg.SearchURL, cfg.SearchKey, cfg.SearchMaxBytes)
	fetcher.UseStrategy(governor.CurrentStrategy)

	orchestrator := search.New(search.Config{
		Clock:     clk,
		Governor:  governor,
		Cache:     results,
		Fetcher:   fetcher,
		History:   historyRepo,
		Prefs:     prefsRepo,
		Notifier:  search.NewNotifier(publisher),
		Telemetry: runner.Telemetry(),
	})

	if cfg.Query != "" {
		orchestrator.SetQuery(cfg.Query, cfg.Category)
	}

	if cfg.Debug {
		events, _ := orchestrator.Notifier().Subscribe()
		go func() {
			for n := range events {
				log.Printf("[debug] %s search=%s region=%.5f,%.5f", n.Type, n.SearchID, n.Region.CenterLat, n.Region.CenterLon)
			}
		}()
	}

	router := api.NewRouter(
		handlers.NewSearchHandler(orchestrator),
		handlers.NewStatsHandler(orchestrator, monitor),
		handlers.NewHistoryHandler(historyRepo),
		handlers.NewPreferencesHandler(orchestrator),
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router.Setup(cfg.APIKey),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	return &ServerRunner{
		cfg:          cfg,
		srv:          srv,
		monitor:      monitor,
		governor:     governor,
		orchestrator: orchestrator,
		results:      results,
		historyRepo:  historyRepo,
		prefsRepo:    prefsRepo,
		publisher:    publisher,
	}, nil
}

// Run starts the API server, the network monitor and the retention loop.
func (s *ServerRunner) Run(ctx context.Context) error {
	egroup, ctx := errgroup.WithContext(ctx)

	egroup.Go(func() error {
		return s.monitor.Run(ctx)
	})

	egroup.Go(func() error {
		return s.retentionLoop(ctx)
	})

	egroup.Go(func() error {
		return s.startServer(ctx)
	})

	return egroup.Wait()
}

// Close cleans up resources
func (s *ServerRunner) Close(_ context.Context) error {
	_ = s.publisher.Close()
	_ = s.results.Close()

	if _, sameStore := s.historyRepo.(*history.SQLiteRepository); !sameStore {
		_ = s.historyRepo.Close()
	}

	return s.prefsRepo.Close()
}

func (s *ServerRunner) startServer(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("error shutting down server: %v", err)
		}
	}()

	log.Printf("search API server starting on http://localhost%s", s.cfg.Addr)
	if strings.HasPrefix(s.cfg.Dsn, "postgres") {
		log.Printf("using PostgreSQL history database")
	} else {
		log.Printf("using SQLite database: %s", s.cfg.DataFile)
	}
	log.Printf("API endpoints available at /api/v1/")

	err := s.srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// retentionLoop deletes history older than the configured retention,
// once at startup and then daily.
func (s *ServerRunner) retentionLoop(ctx context.Context) error {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		cutoff := time.Now().Add(-s.cfg.HistoryRetention)

		deleted, err := s.historyRepo.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			log.Printf("[server] history retention failed: %v", err)
		} else if deleted > 0 {
			log.Printf("[server] deleted %d history records older than %s", deleted, cutoff.Format(time.RFC3339))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

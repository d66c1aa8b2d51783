package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/coachmatch/internal/adapters/http/api"
	"github.com/okian/coachmatch/internal/adapters/http/swagger"
	"github.com/okian/coachmatch/internal/adapters/redisledger"
	repository "github.com/okian/coachmatch/internal/adapters/repository"
	service "github.com/okian/coachmatch/internal/app"
	"github.com/okian/coachmatch/internal/config"
	"github.com/okian/coachmatch/internal/domain/dedupe"
	"github.com/okian/coachmatch/pkg/logger"
	"github.com/okian/coachmatch/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	connectTimeout            = 10 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Our own system gauges replace the default Go collectors.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWithFormat(logger.Format(cfg.LogFormat), os.Stdout); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "coachmatch stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

// run wires the backends, the lifecycle service and the HTTP server, and
// blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	svc, err := newService(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store_backend", cfg.StoreBackend),
			logger.String("dedupe_backend", cfg.DedupeBackend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			return api.WrapKind("listen", api.ErrServe, err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// newService builds the lifecycle service over the configured backends.
func newService(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, error) {
	opts := []service.Option{
		service.WithLogger(log),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithShardCount(cfg.ShardCount),
		service.WithShortlistCap(cfg.ShortlistCap),
		service.WithProjectorRetry(cfg.ProjectorMaxRetries, cfg.ProjectorInitialBackoff()),
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, service.WithStore(store))
	}

	ledger, err := openLedger(ctx, cfg, log)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	if ledger != nil {
		opts = append(opts, service.WithDeduper(ledger))
	}
	return service.New(opts...), nil
}

// openStore returns nil for the memory backend; the service creates its own.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	var driver string
	switch strings.ToLower(cfg.StoreBackend) {
	case config.StorePostgres:
		driver = repository.DriverPostgres
	case config.StoreSQLite:
		driver = repository.DriverSQLite
	default:
		return nil, nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	store, err := repository.OpenSQL(connectCtx, driver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// openLedger returns nil for the memory backend.
func openLedger(ctx context.Context, cfg *config.Config, log logger.Logger) (dedupe.Deduper, error) {
	if strings.ToLower(cfg.DedupeBackend) != config.DedupeRedis {
		return nil, nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	ledger, err := redisledger.Dial(connectCtx, cfg.RedisURL,
		redisledger.WithTTL(cfg.DedupeTTL()),
		redisledger.WithLogger(log.Named("redis_ledger")),
	)
	if err != nil {
		return nil, err
	}
	return ledger, nil
}

func newRouter(ctx context.Context, svc *service.Service) chi.Router {
	r := api.NewServer(svc, svc).NewRouter(ctx)
	swagger.Register(ctx, r)
	return r
}

func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	if total, ok := stats["engagements"].(int); ok {
		metrics.UpdateEngagementsTotal(total)
	}
	if workerCount, ok := stats["workerCount"].(int); ok {
		metrics.UpdateWorkerCount(workerCount)
	}
}

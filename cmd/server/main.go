package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	attendancehandler "presence/internal/attendance/handler"
	attendancemetrics "presence/internal/attendance/metrics"
	attendanceservice "presence/internal/attendance/service"
	attendancestore "presence/internal/attendance/store"
	centerhandler "presence/internal/center/handler"
	centermetrics "presence/internal/center/metrics"
	centerservice "presence/internal/center/service"
	centerstore "presence/internal/center/store"
	"presence/internal/platform/config"
	"presence/internal/platform/httpserver"
	"presence/internal/platform/kafka"
	"presence/internal/platform/logger"
	"presence/internal/platform/metrics"
	"presence/internal/platform/postgres"
	"presence/internal/platform/redis"
	"presence/internal/platform/tracing"
	revalidationhandler "presence/internal/revalidation/handler"
	revalidationmetrics "presence/internal/revalidation/metrics"
	revalidationservice "presence/internal/revalidation/service"
	statscache "presence/internal/stats/cache"
	statshandler "presence/internal/stats/handler"
	statsservice "presence/internal/stats/service"
	"presence/pkg/platform/audit"
	auditmemory "presence/pkg/platform/audit/store/memory"
	auditpg "presence/pkg/platform/audit/store/postgres"
	txcontext "presence/pkg/platform/tx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run wires dependencies and blocks until SIGINT or SIGTERM. Business logic
// lives in the internal service packages.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	readiness := map[string]httpserver.ReadinessCheck{}
	infra, err := buildStores(ctx, cfg, log, readiness)
	if err != nil {
		return err
	}
	defer infra.close()

	auditPublisher := audit.NewPublisher(infra.audit)
	centers := centerservice.New(infra.centers,
		centerservice.WithLogger(log),
		centerservice.WithAuditPublisher(auditPublisher),
		centerservice.WithMetrics(centermetrics.New()),
	)

	attendanceOpts := []attendanceservice.Option{
		attendanceservice.WithLogger(log),
		attendanceservice.WithAuditPublisher(auditPublisher),
		attendanceservice.WithMetrics(attendancemetrics.New()),
	}
	if infra.db != nil {
		attendanceOpts = append(attendanceOpts, attendanceservice.WithTx(newLedgerPostgresTx(infra.db)))
	}
	attendance := attendanceservice.New(infra.sessions, centers, attendanceOpts...)

	statsOpts := []statsservice.Option{
		statsservice.WithLogger(log),
		statsservice.WithLocation(cfg.StatsLocation()),
		statsservice.WithDefaultWorkingDays(cfg.Stats.DefaultWorkingDays),
	}
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		readiness["redis"] = redisClient.Ready
		if cfg.Redis.StatsTTL > 0 {
			statsOpts = append(statsOpts, statsservice.WithCache(statscache.NewRedis(redisClient.Client, cfg.Redis.StatsTTL)))
		}
	}
	stats := statsservice.New(centers, attendance, statsOpts...)

	revalidation := revalidationservice.New(attendance, centers,
		revalidationservice.WithLogger(log),
		revalidationservice.WithMetrics(revalidationmetrics.New()),
		revalidationservice.WithConcurrency(cfg.Revalidation.Concurrency),
		revalidationservice.WithMaxBatch(cfg.Revalidation.MaxBatch),
		revalidationservice.WithInvalidateLifecycle(cfg.Revalidation.InvalidateLifecycle),
	)

	centerH := centerhandler.New(centers, log)
	attendanceH := attendancehandler.New(attendance, log, cfg.Server.ClockRateLimit)
	statsH := statshandler.New(stats, log)
	revalidationH := revalidationhandler.New(revalidation, log)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Config:    cfg.Server,
		Logger:    log,
		Metrics:   metrics.New(),
		Public:    []httpserver.Mount{centerH.Register, attendanceH.Register, statsH.Register},
		Admin:     []httpserver.Mount{centerH.RegisterAdmin, revalidationH.RegisterAdmin},
		Readiness: readiness,
	})
	if cfg.Server.AdminToken == "" {
		log.Warn("server.admin_token is empty; admin routes will reject every request")
	}

	var relay *kafka.Relay
	if infra.db != nil && len(cfg.Kafka.Brokers) > 0 {
		var closeRelay func()
		relay, closeRelay, err = buildRelay(ctx, cfg, log, infra.db)
		if err != nil {
			return err
		}
		defer closeRelay()
	}

	srv := httpserver.New(cfg.Server, router, log)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting presence", "addr", cfg.Server.Addr, "postgres", infra.db != nil, "redis", redisClient != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if relay != nil {
		g.Go(func() error { return relay.Run(gctx) })
	}
	return g.Wait()
}

type stores struct {
	db       *sql.DB
	centers  centerservice.Store
	sessions attendanceservice.Store
	audit    audit.Store
	close    func()
}

// buildStores selects Postgres when a database URL is configured and the
// in-memory stores otherwise.
func buildStores(ctx context.Context, cfg *config.Config, log *slog.Logger, readiness map[string]httpserver.ReadinessCheck) (*stores, error) {
	if cfg.Database.URL == "" {
		log.Warn("database.url is empty; using in-memory stores")
		return &stores{
			centers:  centerstore.NewInMemory(),
			sessions: attendancestore.NewInMemory(),
			audit:    auditmemory.NewInMemoryStore(),
			close:    func() {},
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	readiness["postgres"] = db.PingContext
	return &stores{
		db:       db,
		centers:  centerstore.NewPostgres(db),
		sessions: attendancestore.NewPostgres(db),
		audit:    auditpg.New(db),
		close:    func() { _ = db.Close() },
	}, nil
}

func buildRelay(ctx context.Context, cfg *config.Config, log *slog.Logger, db *sql.DB) (*kafka.Relay, func(), error) {
	client, err := kafka.NewClient(cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic, 3, 1); err != nil {
		log.Warn("kafka topic bootstrap failed; relying on broker auto-creation", "topic", cfg.Kafka.Topic, "error", err)
	}
	relay := kafka.NewRelay(auditpg.New(db), client, cfg.Kafka,
		kafka.WithLogger(log),
		kafka.WithTxRunner(func(ctx context.Context, fn func(ctx context.Context) error) error {
			return txcontext.Run(ctx, db, fn)
		}),
	)
	return relay, client.Close, nil
}

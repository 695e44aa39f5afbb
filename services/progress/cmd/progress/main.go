package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/example/journey-platform/internal/journey/remotestore"
	"github.com/example/journey-platform/internal/platform/analytics"
	"github.com/example/journey-platform/internal/platform/auth"
	"github.com/example/journey-platform/internal/platform/config"
	"github.com/example/journey-platform/internal/platform/db"
	"github.com/example/journey-platform/internal/platform/httpserver"
	"github.com/example/journey-platform/internal/platform/logging"
	"github.com/example/journey-platform/internal/platform/natsconn"
	"github.com/example/journey-platform/internal/platform/run"
	progressconfig "github.com/example/journey-platform/services/progress/internal/config"
	"github.com/example/journey-platform/services/progress/internal/handlers"
	"github.com/example/journey-platform/services/progress/internal/health"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, zap.String("service", cfg.ServiceName))
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	progressCfg, err := progressconfig.Load()
	if err != nil {
		log.Error("progress config", zap.Error(err))
		run.Exit(1)
	}

	rows, pool := initRows(log, cfg, progressCfg)
	if pool != nil {
		defer pool.Close()
	}
	pub, closeNATS := initPublisher(log, progressCfg)
	defer closeNATS()

	ready := func(ctx context.Context) error {
		if pool == nil {
			return nil
		}
		return pool.Ping(ctx)
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return ready(ctx)
	}})
	handlers.NewProgressHandler(rows, pub, log).Mount(r, auth.JWTVerifier{Secret: []byte(progressCfg.JWTSecret)})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})
	grpcSrv := health.New(log)

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go grpcSrv.Watch(ctx, 10*time.Second, ready)
		go func() {
			if err := grpcSrv.Serve(ctx, progressCfg.GRPCAddr); err != nil {
				log.Error("grpc serve", zap.Error(err))
			}
		}()
		err := srv.Serve(ctx)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initRows picks the row store. In production (APP_ENV=production) Postgres
// is mandatory and the process terminates without it.
func initRows(log *zap.Logger, cfg config.AppConfig, progressCfg progressconfig.Config) (remotestore.RowStore, *pgxpool.Pool) {
	if progressCfg.DatabaseURL == "" {
		if cfg.Production() {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("DATABASE_URL not set, progress is kept in memory (development only)")
		return remotestore.NewMemoryRows(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	pool, err := db.Open(ctx, progressCfg.DatabaseURL)
	if err != nil {
		log.Error("db open", zap.Error(err))
		_ = log.Sync()
		run.Exit(1)
	}
	pg := remotestore.NewPostgresRows(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		pool.Close()
		log.Error("db schema", zap.Error(err))
		_ = log.Sync()
		run.Exit(1)
	}
	log.Info("postgres connected for progress")
	return pg, pool
}

// initPublisher connects to NATS when configured. Events are best effort, so
// an unreachable broker degrades to the stub publisher.
func initPublisher(log *zap.Logger, progressCfg progressconfig.Config) (*analytics.Publisher, func()) {
	if progressCfg.NATSURL == "" {
		log.Warn("NATS_URL not set, progress events will not be published (stub mode)")
		return analytics.New(nil, log), func() {}
	}
	nc, err := natsconn.Connect(natsconn.Options{URL: progressCfg.NATSURL, Name: "progress"})
	if err != nil {
		log.Warn("NATS unavailable, progress events will not be published", zap.Error(err))
		return analytics.New(nil, log), func() {}
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		log.Warn("JetStream unavailable, progress events will not be published", zap.Error(err))
		return analytics.New(nil, log), func() {}
	}
	analytics.EnsureStream(js, log)
	log.Info("NATS publisher initialised", zap.String("stream", analytics.StreamName))
	return analytics.New(js, log), func() { _ = nc.Drain() }
}

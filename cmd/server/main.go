package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/citywalk/internal/config"
	"github.com/playperu/citywalk/internal/database"
	"github.com/playperu/citywalk/internal/events"
	"github.com/playperu/citywalk/internal/handler/health"
	"github.com/playperu/citywalk/internal/migrations"
	"github.com/playperu/citywalk/internal/progress"
	"github.com/playperu/citywalk/internal/routing"
	"github.com/playperu/citywalk/internal/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(ctx, db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	checks := map[string]health.Checker{"sqlite": health.SQL(db)}
	broker := events.NewBroker()
	var (
		publisher  events.Publisher = broker
		routeCache routing.Cache
		bus        *events.RedisBus
	)

	// --- Redis (optional) ---
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis")

		bus = events.NewRedisBus(rdb, cfg.EventsChannel, broker, logger)
		publisher = bus
		routeCache = routing.NewRedisCache(rdb)
		checks["redis"] = health.Redis(rdb)
	}

	// --- Progress ---
	svc := progress.New(db, publisher, logger)
	if cfg.SeedDemo {
		if err := server.SeedDemo(ctx, logger, svc); err != nil {
			return fmt.Errorf("seeding demo path: %w", err)
		}
	}

	routes := routing.NewClient(cfg.RoutingURL, cfg.RoutingTimeout, routeCache, cfg.RouteCacheTTL, logger)
	if cfg.RoutingURL == "" {
		logger.Info("routing disabled; set ROUTING_URL to enable /api/route")
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Progress: svc,
		Broker:   broker,
		Routes:   routes,
		Auth: server.AuthConfig{
			JWTSecret:         cfg.JWTSecret,
			AllowUserIDHeader: cfg.AllowUserIDHeader,
		},
		Checks: checks,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	if bus != nil {
		g.Go(func() error {
			logger.Info("forwarding progress events", "channel", cfg.EventsChannel)
			return bus.Forward(gctx)
		})
	}

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}

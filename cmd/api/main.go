package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/safar/go-pos-register/internal/cart"
	"github.com/safar/go-pos-register/internal/catalog"
	"github.com/safar/go-pos-register/internal/checkout"
	"github.com/safar/go-pos-register/internal/config"
	"github.com/safar/go-pos-register/internal/customer"
	"github.com/safar/go-pos-register/internal/database"
	"github.com/safar/go-pos-register/internal/logger"
	"github.com/safar/go-pos-register/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("pos-register", cfg.Log.Level)
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	log.Info("connected to database")

	if cfg.Database.MigrateOnStart {
		applied, err := database.Migrate(ctx, db, "up")
		if err != nil {
			log.Error("failed to apply migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}
		log.Info("migrations applied", slog.Any("files", applied))
	}

	rdb := newRedisClient(ctx, cfg.Redis, log)
	if rdb != nil {
		defer rdb.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	products := catalog.New(store.NewProductSource(db), rdb, cfg.Redis.CacheTTL, log)
	directory := store.NewCustomerDirectory(db)
	orders := store.NewOrderStore(db, database.DefaultTxOptions())
	basket := cart.NewManager()

	reg := &register{
		cart: basket,
		checkout: checkout.New(basket, orders, products, directory, checkout.NewMetrics(registry), log, checkout.Config{
			CreatorID:       cfg.Register.OperatorID,
			StepTimeout:     cfg.Register.CommitStepTimeout,
			OrderIDAttempts: cfg.Register.OrderIDAttempts,
		}),
		products:    products,
		customers:   customer.NewResolver(directory, log),
		payments:    directory,
		orders:      orders,
		searchLimit: cfg.Register.SearchLimit,
		logger:      log,
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      routes(reg, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown", slog.String("error", err.Error()))
		}
	}()

	log.Info("server starting",
		slog.String("port", cfg.Server.Port),
		slog.String("operator_id", cfg.Register.OperatorID),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("server stopped")
}

// newRedisClient returns nil when Redis is unreachable; the catalog then
// reads straight from the database.
func newRedisClient(ctx context.Context, cfg config.RedisConfig, log *slog.Logger) *redis.Client {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		log.Warn("invalid REDIS_URL, catalog cache disabled", slog.String("error", err.Error()))
		return nil
	}

	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, catalog cache disabled", slog.String("error", err.Error()))
		client.Close()
		return nil
	}
	return client
}

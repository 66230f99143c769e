package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smukkama/farm-carbon/internal/api"
	"github.com/smukkama/farm-carbon/internal/cache"
	"github.com/smukkama/farm-carbon/internal/database"
	"github.com/smukkama/farm-carbon/internal/ledger"
	"github.com/smukkama/farm-carbon/internal/logging"
	"github.com/smukkama/farm-carbon/internal/metrics"
	"github.com/smukkama/farm-carbon/internal/queue"
	"github.com/smukkama/farm-carbon/internal/reference"
	"github.com/smukkama/farm-carbon/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Farm API stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Farm API stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting Farm API")

	db, err := database.Connect(ctx, cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("Connected to database")

	if err := db.RunMigrations(ctx, cfg.Database.MigrationsDir, logger); err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// prices are read from postgres while redis is away
		logger.Warn("Redis unavailable, pricing cache degraded", zap.Error(err))
	} else {
		logger.Info("Connected to Redis")
	}
	pricing := cache.NewPricingCache(redisClient, db, cfg.Redis.PricingTTL, logger)

	m := metrics.New()

	opts := reference.Options{Policy: cfg.Carbon.Policy, HybridMarkers: cfg.Carbon.HybridMarkers}
	load := func() (*reference.Snapshot, error) {
		return reference.Load(cfg.Reference.Dir, opts)
	}
	snap, err := load()
	if err != nil {
		return err
	}
	store := reference.NewStore(snap)
	logger.Info("Reference data loaded",
		zap.String("dir", cfg.Reference.Dir),
		zap.Int("species", snap.Species.Len()))

	refresher := reference.NewRefresher(store, load, cfg.Reference.RefreshInterval, logger,
		reference.WithReloadHook(func(err error) {
			metrics.ObserveOutcome(m.ReferenceReloads, err)
		}))
	if err := refresher.Start(); err != nil {
		return err
	}
	defer refresher.Stop()
	if cfg.Reference.Watch {
		if err := refresher.Watch(cfg.Reference.Dir); err != nil {
			logger.Warn("Reference files not watched, relying on periodic reload", zap.Error(err))
		}
	}

	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicLedger)
	defer producer.Close()
	notifier := ledger.NewNotifier(producer, cfg.Ledger.NotifyTimeout, logger, func(err error) {
		metrics.ObserveOutcome(m.LedgerNotified, err)
	})
	defer notifier.Wait()

	svc := api.NewService(api.Deps{
		Farms:     db,
		Prices:    pricing,
		NFTs:      db,
		Ledger:    notifier,
		Reference: store,
		Metrics:   m,
	})
	e := api.NewServer(svc, m, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := e.Start(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/smukkama/farm-carbon/internal/ledger"
	"github.com/smukkama/farm-carbon/internal/logging"
	"github.com/smukkama/farm-carbon/internal/metrics"
	"github.com/smukkama/farm-carbon/internal/queue"
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
		logger.Error("Ledger relay stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("Ledger relay stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting Ledger Relay",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.TopicLedger))

	if err := queue.EnsureTopic(ctx, cfg.Kafka.Brokers, cfg.Kafka.TopicLedger, 3, 1); err != nil {
		logger.Warn("Could not ensure ledger topic", zap.Error(err))
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicLedger, cfg.Kafka.ConsumerGroup)
	defer consumer.Close()

	if cfg.Ledger.URL == "" {
		logger.Warn("LEDGER_URL not set, updates are only logged")
	}
	sender := ledger.NewSender(cfg.Ledger.URL, cfg.Ledger.Timeout, logger)

	m := metrics.New()
	relay := ledger.NewRelay(consumer, sender, ledger.DefaultRelayConfig(), logger, func(err error) {
		metrics.ObserveOutcome(m.LedgerRelayed, err)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return relay.Run(gctx)
	})
	metricsServer := &http.Server{
		Addr:              cfg.HTTP.MetricsAddr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Info("Metrics listening", zap.String("addr", cfg.HTTP.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				stats := consumer.Stats()
				logger.Info("Consumer stats",
					zap.Int64("messages", stats.Messages),
					zap.Int64("bytes", stats.Bytes),
					zap.Int64("errors", stats.Errors),
					zap.Int64("lag", stats.Lag))
			}
		}
	})

	return g.Wait()
}

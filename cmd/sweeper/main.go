package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pixelatlas/conquest-engine/internal/adapter"
	"github.com/pixelatlas/conquest-engine/internal/auction"
	"github.com/pixelatlas/conquest-engine/internal/config"
	"github.com/pixelatlas/conquest-engine/internal/integrity"
	"github.com/pixelatlas/conquest-engine/internal/lifecycle"
	"github.com/pixelatlas/conquest-engine/internal/logger"
	"github.com/pixelatlas/conquest-engine/internal/messaging"
	"github.com/pixelatlas/conquest-engine/internal/providers/jetstream"
	"github.com/pixelatlas/conquest-engine/internal/store"
	"github.com/pixelatlas/conquest-engine/internal/sweeper"
	"github.com/pixelatlas/conquest-engine/internal/transfer"
)

func main() {
	var configFile string
	var envFile string
	flag.StringVar(&configFile, "config", "", "path to the config file")
	flag.StringVar(&envFile, "env", "", "path to the env file")
	flag.Parse()

	config.ChdirRepoRoot()

	cfg, err := config.LoadSweeperConfig(configFile, envFile)
	if err != nil {
		panic(err)
	}

	if err := logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "sweeper",
		},
	}); err != nil {
		panic(err)
	}
	defer logger.Flush(2 * time.Second)

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := store.ConfigureConnectionPool(db,
		cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.Fatal("failed to configure connection pool", zap.Error(err))
	}

	st := store.NewPGStore(db)
	clock := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()

	var publisher messaging.Publisher
	if cfg.NATS.URL != "" {
		publisher, err = jetstream.NewPublisher(jetstream.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
		}, adapter.NewNatsJetStream(), jsonAdapter)
		if err != nil {
			logger.Fatal("failed to connect to nats", zap.Error(err))
		}
		defer publisher.Close()
	}

	auctionPolicy := auction.Policy{
		ReauctionDuration: cfg.Policy.ReauctionDuration,
		DefaultFloorPrice: cfg.Policy.DefaultFloorPrice,
		SweepBatchSize:    cfg.Policy.SweepBatchSize,
	}

	transfers := transfer.NewService(st, publisher, clock, cfg.Policy.ProtectionWindow)
	settler := auction.NewSettler(st, transfers, clock, auctionPolicy, cfg.Worker.WorkerPoolSize)
	sweep := lifecycle.NewSweep(st, clock, lifecycle.Policy{
		AbandonmentThreshold:    cfg.Policy.AbandonmentThreshold,
		AbandonmentWarningGrace: cfg.Policy.AbandonmentWarningGrace,
		ReauctionDuration:       cfg.Policy.ReauctionDuration,
		DefaultFloorPrice:       cfg.Policy.DefaultFloorPrice,
		SweepBatchSize:          cfg.Policy.SweepBatchSize,
	})
	rankings := integrity.NewRankings(st, clock, integrity.RankingPolicy{
		ValueJumpFactor:    cfg.Policy.ValueJumpFactor,
		TerritoryJumpLimit: cfg.Policy.TerritoryJumpLimit,
	})

	sweepers := []sweeper.Sweeper{
		sweeper.NewRunner("lifecycle-sweeper", cfg.Intervals.Lifecycle, clock, func(ctx context.Context) error {
			stats, err := sweep.RunOnce(ctx)
			if err != nil {
				return err
			}
			logger.DebugCtx(ctx, "lifecycle sweep completed",
				zap.Int("autoPermanent", stats.AutoPermanentCount),
				zap.Int("warned", stats.WarnedCount),
				zap.Int("abandoned", stats.AbandonedCount),
				zap.Int("expiredLeases", stats.ExpiredLeaseCount))
			return nil
		}),
		sweeper.NewRunner("settlement-sweeper", cfg.Intervals.Settlement, clock, func(ctx context.Context) error {
			result, err := settler.RunOnce(ctx)
			if err != nil {
				return err
			}
			if result.Processed > 0 {
				logger.InfoCtx(ctx, "settlement sweep completed",
					zap.Int("processed", result.Processed),
					zap.Int("errors", result.Errors))
			}
			return nil
		}),
		sweeper.NewRunner("ranking-sweeper", cfg.Intervals.Rankings, clock, func(ctx context.Context) error {
			result, err := rankings.RunOnce(ctx)
			if err != nil {
				return err
			}
			logger.DebugCtx(ctx, "ranking sweep completed",
				zap.Int("committed", result.Committed),
				zap.Int("quarantined", result.Quarantined))
			return nil
		}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for _, s := range sweepers {
		wg.Add(1)
		go func(s sweeper.Sweeper) {
			defer wg.Done()
			logger.Info("starting sweeper", zap.String("name", s.Name()))
			if err := s.Start(ctx); err != nil {
				logger.Error(err, zap.String("name", s.Name()))
			}
		}(s)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	for _, s := range sweepers {
		if err := s.Stop(shutdownCtx); err != nil {
			logger.Error(err, zap.String("name", s.Name()))
		}
	}
	cancel()
	wg.Wait()
	logger.Info("sweeper stopped")
}

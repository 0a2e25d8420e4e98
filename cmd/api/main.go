package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pixelatlas/conquest-engine/internal/adapter"
	"github.com/pixelatlas/conquest-engine/internal/api/middleware"
	"github.com/pixelatlas/conquest-engine/internal/api/rest"
	"github.com/pixelatlas/conquest-engine/internal/api/server"
	"github.com/pixelatlas/conquest-engine/internal/auction"
	"github.com/pixelatlas/conquest-engine/internal/config"
	"github.com/pixelatlas/conquest-engine/internal/integrity"
	"github.com/pixelatlas/conquest-engine/internal/lifecycle"
	"github.com/pixelatlas/conquest-engine/internal/logger"
	"github.com/pixelatlas/conquest-engine/internal/messaging"
	"github.com/pixelatlas/conquest-engine/internal/providers/jetstream"
	"github.com/pixelatlas/conquest-engine/internal/store"
	"github.com/pixelatlas/conquest-engine/internal/transfer"
)

func main() {
	var configFile string
	var envFile string
	flag.StringVar(&configFile, "config", "", "path to the config file")
	flag.StringVar(&envFile, "env", "", "path to the env file")
	flag.Parse()

	config.ChdirRepoRoot()

	cfg, err := config.LoadAPIConfig(configFile, envFile)
	if err != nil {
		panic(err)
	}

	if err := logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "api-server",
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
	auctions := auction.NewManager(st, clock, auctionPolicy)
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

	handler := rest.NewHandler(transfers, auctions, sweep, settler, rankings)

	srv := server.New(server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		Auth: middleware.AuthConfig{
			JWTPublicKey: cfg.Auth.JWTPublicKey,
			APIKeys:      cfg.Auth.APIKeys,
			SweepSecret:  cfg.Auth.SweepSecret,
		},
	}, handler)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting api server",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port))
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal("api server stopped unexpectedly", zap.Error(err))
		}
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err)
	}
	logger.Info("api server stopped")
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/dpr-plan-engine/internal/api"
	"github.com/dpr-plan-engine/internal/config"
	"github.com/dpr-plan-engine/internal/database"
	"github.com/dpr-plan-engine/internal/domain"
	"github.com/dpr-plan-engine/internal/logging"
	"github.com/dpr-plan-engine/internal/repository"
	"github.com/dpr-plan-engine/internal/storage"
	"github.com/dpr-plan-engine/pkg/external"
)

func main() {
	configManager, err := config.NewManager(os.Getenv("DPR_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := logging.New(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host":         cfg.Server.Host,
		"port":         cfg.Server.Port,
		"display_mode": cfg.Widget.DisplayMode,
		"variant":      cfg.Widget.Variant,
	}).Info("Starting plan engine server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	dbConfig := database.ConfigFrom(cfg.Database)
	var (
		history  domain.QuoteHistory
		dbHealth api.HealthChecker
	)
	if cfg.Database.Enabled {
		if err := database.Migrate(dbConfig.URL(), cfg.Database.MigrationsPath, logger); err != nil {
			logger.WithError(err).Fatal("Database migration failed")
		}
		db, err := database.NewConnection(ctx, dbConfig, logger)
		if err != nil {
			logger.WithError(err).Fatal("Database connection failed")
		}
		defer db.Close()
		history = repository.NewQuoteHistoryRepository(db.Pool, logger)
		dbHealth = db
	}

	stores, err := storage.Open(cfg, dbConfig.URL(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open key-value stores")
	}
	defer stores.Close()

	var cache *external.QuoteCache
	if cfg.Cache.Enabled {
		cache, err = external.NewQuoteCache(cfg.Cache)
		if err != nil {
			// Quotes still work uncached.
			logger.WithError(err).Warn("Quote cache unavailable")
			cache = nil
		} else {
			defer cache.Close()
		}
	}
	quotes := external.NewResilientQuoteClient(external.NewQuoteClient(cfg.QuoteAPI), cache, logger)

	sessions, err := api.NewSessionRegistry(api.RegistryConfig{
		Stores:      stores,
		Options:     configManager.GetWidgetOptions(),
		PagePath:    cfg.Server.PagePath,
		TTL:         cfg.Server.SessionTTL,
		MaxSessions: cfg.Storage.MemoryMaxItems,
		Logger:      logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to load results page")
	}

	server := api.NewServer(configManager, api.Dependencies{
		Sessions: sessions,
		Quotes:   quotes,
		History:  history,
		Database: dbHealth,
		Logger:   logger,
	})
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"marketflow/config"
	"marketflow/internal/api"
	"marketflow/internal/engine"
	"marketflow/internal/events"
	"marketflow/internal/logging"
	"marketflow/internal/marketdata"
	"marketflow/internal/params"
	"marketflow/internal/snapshot"
	"marketflow/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(&logging.Config{
		Level:       cfg.LoggingConfig.Level,
		Output:      cfg.LoggingConfig.Output,
		JSONFormat:  cfg.LoggingConfig.JSONFormat,
		IncludeFile: cfg.LoggingConfig.IncludeFile,
		Component:   "main",
	})
	logging.SetDefault(logger)
	logger.Info("structured logging initialized")

	infraLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	analysisParams, err := loadParameters(cfg)
	if err != nil {
		logger.Fatal("invalid analysis parameters", "error", err)
	}

	apiKey, err := resolveProviderKey(cfg, logger)
	if err != nil {
		logger.Fatal("failed to resolve provider API key", "error", err)
	}

	var provider marketdata.Provider = marketdata.NewPolygonProvider(apiKey, logger)
	if cfg.RedisConfig.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
		})
		provider = marketdata.NewCachedProvider(provider, redisClient, infraLogger)
		logger.Info("kline cache enabled", "addr", cfg.RedisConfig.Addr)
	} else {
		provider = marketdata.NewCachedProvider(provider, nil, infraLogger)
	}

	bus := events.NewEventBus()
	facade := engine.NewFacade(analysisParams, provider, bus, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.ProviderConfig.StreamURL != "" && apiKey != "" {
		stream := marketdata.NewQuoteStream(cfg.ProviderConfig.StreamURL, apiKey, func(update marketdata.QuoteUpdate) {
			bus.Publish(events.Event{
				Type: events.EventPriceUpdate,
				Data: map[string]interface{}{
					"ticker": update.Ticker,
					"price":  update.Price,
					"volume": update.Volume,
				},
			})
		}, infraLogger)
		go stream.Run(ctx)
		logger.Info("live quote stream started", "url", cfg.ProviderConfig.StreamURL)
	}

	var store *snapshot.Store
	if cfg.SnapshotConfig.Enabled {
		store, err = snapshot.NewStore(ctx, snapshot.Config{
			Host:     cfg.SnapshotConfig.Host,
			Port:     cfg.SnapshotConfig.Port,
			User:     cfg.SnapshotConfig.User,
			Password: cfg.SnapshotConfig.Password,
			Database: cfg.SnapshotConfig.Database,
			SSLMode:  cfg.SnapshotConfig.SSLMode,
		}, infraLogger)
		if err != nil {
			logger.Fatal("failed to initialize snapshot store", "error", err)
		}
		defer store.Close()
		logger.Info("snapshot store initialized")
	}

	server := api.NewServer(api.Config{
		Host:           cfg.ServerConfig.Host,
		Port:           cfg.ServerConfig.Port,
		JWTSecret:      cfg.AuthConfig.JWTSecret,
		TokenDuration:  time.Duration(cfg.AuthConfig.TokenDurationHrs) * time.Hour,
		AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
	}, facade, api.Credentials{
		Username:     cfg.AuthConfig.Username,
		PasswordHash: cfg.AuthConfig.PasswordHash,
	}, store, infraLogger)

	logger.Info("starting api server", "host", cfg.ServerConfig.Host, "port", cfg.ServerConfig.Port)
	if err := server.Start(ctx); err != nil {
		logger.Fatal("api server failed", "error", err)
	}
	logger.Info("shutdown complete")
}

// loadParameters reads the analysis parameter file when configured,
// otherwise validates the defaults
func loadParameters(cfg *config.Config) (*params.Parameters, error) {
	if cfg.ParametersFile != "" {
		return params.LoadFile(cfg.ParametersFile)
	}
	return params.New(nil)
}

// resolveProviderKey reads the provider API key from Vault when enabled,
// otherwise from the configuration
func resolveProviderKey(cfg *config.Config, logger *logging.Logger) (string, error) {
	if !cfg.ProviderConfig.UseVault {
		return cfg.ProviderConfig.APIKey, nil
	}

	client, err := vault.NewClient(vault.Config{
		Enabled:    cfg.VaultConfig.Enabled,
		Address:    cfg.VaultConfig.Address,
		Token:      cfg.VaultConfig.Token,
		MountPath:  cfg.VaultConfig.MountPath,
		TLSEnabled: cfg.VaultConfig.TLSEnabled,
		CACert:     cfg.VaultConfig.CACert,
	})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	key, err := client.GetProviderKey(ctx, cfg.ProviderConfig.Name)
	if err != nil {
		return "", err
	}
	logger.Info("provider API key loaded from vault", "provider", cfg.ProviderConfig.Name)
	return key.APIKey, nil
}

// Package main provides the API server entry point for the AvaxSlap backend.
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

	"github.com/Arrogantx/slapper/internal/access"
	"github.com/Arrogantx/slapper/internal/admin"
	"github.com/Arrogantx/slapper/internal/api"
	"github.com/Arrogantx/slapper/internal/backend"
	"github.com/Arrogantx/slapper/internal/chain"
	"github.com/Arrogantx/slapper/internal/chat"
	"github.com/Arrogantx/slapper/internal/config"
	"github.com/Arrogantx/slapper/internal/logging"
	"github.com/Arrogantx/slapper/internal/models"
	"github.com/Arrogantx/slapper/internal/oauth"
	"github.com/Arrogantx/slapper/internal/presale"
	"github.com/Arrogantx/slapper/internal/realtime"
	"github.com/Arrogantx/slapper/internal/storage"
	"github.com/Arrogantx/slapper/internal/wallet"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Configuration rejected")
	}

	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	logger.Info("Database connections established")

	// Backend client: repositories plus the realtime broker
	broker := realtime.NewBroker(redis.Client(), logger)
	client := backend.NewClient(backend.Deps{
		Requests: storage.NewAccessRequestRepository(postgres),
		Profiles: storage.NewProfileRepository(postgres),
		Messages: storage.NewChatRepository(postgres),
		Admins:   storage.NewAdminRosterRepository(postgres),
		Bus:      broker,
		Logger:   logger,
	})

	// Balance lookups are optional; the deposit gate reports "balance unavailable" without them
	var balances presale.BalanceReader
	if cfg.Chain.RPCURL != "" {
		dialCtx, cancel := context.WithTimeout(context.Background(), cfg.Chain.Timeout)
		provider, err := chain.Dial(dialCtx, cfg.Chain, logger)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Avalanche RPC unavailable, balances disabled")
		} else {
			defer provider.Close()
			balances = provider
		}
	}

	sessions := storage.NewSessionStore(redis)
	tokens := wallet.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	gate := access.NewGate(client, logger)

	flow := presale.NewFlow(client, balances, logger)
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	if feed, err := client.Subscribe(watchCtx, models.TableAccessRequests); err != nil {
		logger.WithError(err).Warn("Presale cache will rely on expiry: access request feed unavailable")
	} else {
		go flow.Watch(watchCtx, feed)
	}

	services := api.Services{
		Wallet:  wallet.NewProvider(cfg.Wallet, sessions, tokens, client, logger),
		Access:  gate,
		Presale: flow,
		Review:  admin.NewReview(client, gate, logger),
		Chat:    chat.NewService(client, chat.NewRedisLimiter(redis.Client(), cfg.Chat.SendPerMinute), cfg.Chat.MaxBodyLength, logger),
		Data:    client,
		Health: map[string]api.HealthCheck{
			"postgres": postgres.Ping,
			"redis":    redis.Ping,
		},
	}
	if cfg.Twitter.Enabled() {
		services.Twitter = oauth.NewTwitter(cfg.Twitter, sessions, client, logger)
	} else {
		logger.Info("Twitter sign-in disabled: TWITTER_CLIENT_ID not set")
	}

	serverConfig := &api.ServerConfig{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Burst:             cfg.RateLimit.Burst,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		FrontendOrigin:    cfg.Server.FrontendOrigin,
		HistoryLimit:      cfg.Chat.HistoryLimit,
	}

	server := api.NewServer(serverConfig, services, logger)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server exited")
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pkglog "github.com/Hajira-org/hajira-chat/pkg/log"
	"github.com/Hajira-org/hajira-chat/pkg/pubsub"
	"github.com/Hajira-org/hajira-chat/relay-service/internal/config"
	"github.com/Hajira-org/hajira-chat/relay-service/internal/handler"
	"github.com/Hajira-org/hajira-chat/relay-service/internal/history"
	"github.com/Hajira-org/hajira-chat/relay-service/internal/hub"
	"github.com/Hajira-org/hajira-chat/relay-service/internal/service"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "relay-service"})
	logger := pkglog.L().With().Str(pkglog.FieldInstanceID, cfg.Server.InstanceID).Logger()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting relay service")

	// Initialize history store
	store, err := history.New(history.Config{
		Driver:    cfg.History.Driver,
		Limit:     cfg.History.Limit,
		TTL:       cfg.History.TTL,
		KeyPrefix: cfg.History.KeyPrefix,
		Redis: history.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
	})
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.History.Driver).Msg("failed to initialize history store")
	}
	defer store.Close()
	logger.Info().Str("driver", cfg.History.Driver).Msg("history store ready")

	// Initialize pub/sub
	bus, err := pubsub.NewPubSub(cfg.PubSub, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.PubSub.Driver).Msg("failed to initialize pubsub")
	}
	defer bus.Close()
	logger.Info().Str("driver", cfg.PubSub.Driver).Msg("pubsub ready")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wsHub := hub.NewHub()
	relaySvc := service.NewRelayService(wsHub, store, bus, service.NewULIDGenerator(), cfg.Server.InstanceID)

	wsHandler := handler.NewWSHandler(wsHub, relaySvc, cfg.WebSocket, logger)
	httpHandler := handler.NewHTTPHandler(wsHub, cfg.Server.InstanceID)

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     handler.NewRouter(wsHandler, httpHandler, logger),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsHub.Run(gCtx)
		return nil
	})

	g.Go(func() error {
		return relaySvc.Start(gCtx)
	})

	g.Go(func() error {
		logger.Info().Str("addr", server.Addr).Msg("relay service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info().Msg("shutting down relay service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("relay service exited with error")
	}
	logger.Info().Msg("relay service stopped")
}

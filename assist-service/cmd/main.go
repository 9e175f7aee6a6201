package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hajira-org/hajira-chat/assist-service/internal/cache"
	"github.com/Hajira-org/hajira-chat/assist-service/internal/config"
	"github.com/Hajira-org/hajira-chat/assist-service/internal/handler"
	"github.com/Hajira-org/hajira-chat/assist-service/internal/jobs"
	"github.com/Hajira-org/hajira-chat/assist-service/internal/llm"
	"github.com/Hajira-org/hajira-chat/assist-service/internal/service"
	pkglog "github.com/Hajira-org/hajira-chat/pkg/log"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "", "directory or yaml file with the service config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "assist-service"})
	logger := pkglog.L()

	if cfg.LLM.APIKey == "" {
		logger.Warn().Msg("llm api key is empty, completions will fail")
	}

	// Initialize job summary cache
	var summaryCache cache.SummaryCache = cache.NoopSummaryCache{}
	if cfg.Redis.Address != "" {
		rc, err := cache.NewRedisSummaryCache(cache.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Cache.Prefix)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create redis cache")
		}
		summaryCache = rc
		logger.Info().Str("address", cfg.Redis.Address).Msg("job summary cache enabled")
	}
	defer summaryCache.Close()

	assistService := service.NewAssistService(
		llm.NewClient(llm.Config{BaseURL: cfg.LLM.BaseURL, APIKey: cfg.LLM.APIKey, Timeout: cfg.LLM.Timeout}),
		jobs.NewClient(jobs.Config{BaseURL: cfg.Jobs.BaseURL, Timeout: cfg.Jobs.Timeout}),
		summaryCache,
		cfg.Cache.TTL,
		service.Models{Suggest: cfg.LLM.SuggestModel, Assist: cfg.LLM.AssistModel},
	)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(handler.NewHTTPHandler(assistService), logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("starting assist-service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited")
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"manifest/internal/http/handlers"
	httpapi "manifest/internal/http/httpapi"
	"manifest/internal/infra"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := buildService(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build generation service")
	}

	app := handlers.NewApp(svc, cfg.MaxUploadBytes, &logger)
	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          &logger,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("in-flight generations were cut short")
	}
	logger.Info().Msg("server stopped")
	os.Exit(0)
}

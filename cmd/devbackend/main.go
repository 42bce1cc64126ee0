package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/nocturn-hq/concierge-widget/internal/backendstub"
	"github.com/nocturn-hq/concierge-widget/internal/config"
	"github.com/nocturn-hq/concierge-widget/internal/logging"
	"github.com/nocturn-hq/concierge-widget/internal/model/property"
	"github.com/nocturn-hq/concierge-widget/internal/service/chat"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewConsole(os.Stderr, os.Getenv("LOG_LEVEL"))

	if err := godotenv.Load(); err != nil {
		logger.Warn().Err(err).Msg("failed to load .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	properties := property.NewMemoryStore(property.Seed())
	ledger := chat.NewService()
	stub := backendstub.New(properties, ledger, backendstub.WithLogger(logger))
	defer stub.Close()

	for _, p := range properties.List() {
		logger.Info().Str("property_id", p.ID).Str("name", p.Name).Msg("serving property")
	}

	startServer(ctx, logger, cfg.Server, backendstub.NewRouter(stub))
}

func startServer(ctx context.Context, logger zerolog.Logger, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("concierge backend stub listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

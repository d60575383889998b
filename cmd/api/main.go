package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/palona/shopchat/backend/internal/config"
	"github.com/palona/shopchat/backend/internal/handler"
	"github.com/palona/shopchat/backend/internal/logging"
	"github.com/palona/shopchat/backend/internal/metrics"
	"github.com/palona/shopchat/backend/internal/service/ai"
	"github.com/palona/shopchat/backend/internal/service/backend"
	"github.com/palona/shopchat/backend/internal/service/conversation"
	"github.com/palona/shopchat/backend/internal/service/dispatch"
	"github.com/palona/shopchat/backend/internal/view"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(cfg.Log.Level, cfg.IsDevelopment())
	zlog.Logger = logger

	remote := backend.NewHTTPClient(cfg.Backend, logger)
	var recommender backend.Backend = remote
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialize language model, using remote intent and chat endpoints")
		} else {
			recommender = backend.WithLanguageModel(remote, aiService, aiService)
			logger.Info().Str("provider", cfg.AI.Provider).Msg("language model initialized for intent and chat")
		}
	} else if cfg.AI.Provider != config.ProviderNone {
		logger.Warn().Str("provider", cfg.AI.Provider).Msg("language model credentials missing, using remote intent and chat endpoints")
	}

	renderer, err := view.New("Palona AI Chatbot")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load templates")
	}

	widgets := conversation.NewRegistry()
	go widgets.RunReaper(ctx, cfg.Server.ReapInterval, cfg.Server.WidgetIdleTTL, func(w *conversation.Widget) {
		metrics.WidgetsMounted.Dec()
		logger.Info().Str("widget_id", w.ID).Time("last_active", w.LastActive()).Msg("idle widget unmounted")
	})
	dispatcher := dispatch.New(recommender, logger)
	router := handler.NewRouter(logger, cfg.Server, widgets, dispatcher, renderer)

	startServer(ctx, logger, cfg, router)
}

func startServer(ctx context.Context, logger zerolog.Logger, cfg *config.Config, router http.Handler) {
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Str("env", cfg.Env).
		Str("backend", cfg.Backend.BaseURL).
		Msg("Palona widget server listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
	logger.Info().Msg("server shutdown complete")
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

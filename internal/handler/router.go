package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/palona/shopchat/backend/internal/config"
	"github.com/palona/shopchat/backend/internal/handler/widget"
	middlewarePkg "github.com/palona/shopchat/backend/internal/middleware"
	"github.com/palona/shopchat/backend/internal/service/conversation"
	"github.com/palona/shopchat/backend/internal/service/dispatch"
	"github.com/palona/shopchat/backend/internal/view"
	"github.com/palona/shopchat/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(logger zerolog.Logger, serverCfg config.ServerConfig, widgets *conversation.Registry, dispatcher *dispatch.Dispatcher, renderer *view.Renderer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger(logger))
	r.Use(middlewarePkg.Metrics)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(serverCfg.AllowedOrigins))

	widgetHandler := widget.New(widgets, dispatcher, renderer, serverCfg, logger)

	r.Get("/", widgetHandler.HandlePage)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"widgets": widgets.Len(),
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		widgetHandler.RegisterRoutes(api)
	})

	return r
}

package widget

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/palona/shopchat/backend/internal/config"
	"github.com/palona/shopchat/backend/internal/metrics"
	"github.com/palona/shopchat/backend/internal/service/backend"
	"github.com/palona/shopchat/backend/internal/service/conversation"
	"github.com/palona/shopchat/backend/internal/service/dispatch"
	"github.com/palona/shopchat/backend/internal/view"
	"github.com/palona/shopchat/backend/pkg/utils"
)

// Handler exposes mounted widgets over HTTP.
type Handler struct {
	widgets        *conversation.Registry
	dispatcher     *dispatch.Dispatcher
	renderer       *view.Renderer
	maxUploadBytes int64
	keepAlive      time.Duration
	logger         zerolog.Logger
	upgrader       websocket.Upgrader
}

// New creates the widget handler.
func New(widgets *conversation.Registry, dispatcher *dispatch.Dispatcher, renderer *view.Renderer, cfg config.ServerConfig, logger zerolog.Logger) *Handler {
	return &Handler{
		widgets:        widgets,
		dispatcher:     dispatcher,
		renderer:       renderer,
		maxUploadBytes: cfg.MaxUploadBytes,
		keepAlive:      15 * time.Second,
		logger:         logger.With().Str("component", "widget").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// originChecker accepts same-host pages, requests without an Origin header
// and the configured origins. "*" accepts every origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	allowAll := false
	origins := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			allowAll = true
		}
		origins[strings.ToLower(strings.TrimRight(origin, "/"))] = struct{}{}
	}

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || allowAll {
			return true
		}
		if _, ok := origins[strings.ToLower(origin)]; ok {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}

// RegisterRoutes registers the widget API.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/widgets", func(r chi.Router) {
		r.Post("/", h.handleMount)
		r.Route("/{widgetID}", func(r chi.Router) {
			r.Get("/", h.handleSnapshot)
			r.Delete("/", h.handleUnmount)
			r.Put("/draft", h.handleDraft)
			r.Post("/messages", h.handleSendText)
			r.Post("/images", h.handleSendImage)
			r.Get("/images/{ref}", h.handleImage)
			r.Get("/transcript", h.handleTranscript)
			r.Get("/events", h.handleEvents)
			r.Get("/ws", h.handleWebSocket)
		})
	})
}

// HandlePage mounts a fresh widget and serves the page hosting it.
func (h *Handler) HandlePage(w http.ResponseWriter, r *http.Request) {
	widget, err := h.mount(r.Context())
	if err != nil {
		http.Error(w, "failed to mount widget", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Page(w, widget.Store.Snapshot()); err != nil {
		h.logger.Error().Err(err).Str("widget_id", widget.ID).Msg("failed to render page")
	}
}

func (h *Handler) mount(ctx context.Context) (*conversation.Widget, error) {
	widget, err := h.widgets.Mount(ctx)
	if err != nil {
		return nil, err
	}
	metrics.WidgetsMounted.Inc()
	h.logger.Info().Str("widget_id", widget.ID).Msg("widget mounted")
	return widget, nil
}

// handleMount creates a widget
func (h *Handler) handleMount(w http.ResponseWriter, r *http.Request) {
	widget, err := h.mount(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusCreated, widget.Store.Snapshot())
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.lookup(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, widget.Store.Snapshot())
}

// handleUnmount discards a widget and everything it holds
func (h *Handler) handleUnmount(w http.ResponseWriter, r *http.Request) {
	widgetID := chi.URLParam(r, "widgetID")
	if err := h.widgets.Unmount(r.Context(), widgetID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	metrics.WidgetsMounted.Dec()
	h.logger.Info().Str("widget_id", widgetID).Msg("widget unmounted")
	w.WriteHeader(http.StatusNoContent)
}

type textPayload struct {
	Text    string `json:"text"`
	Message string `json:"message"`
}

func (h *Handler) handleDraft(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload textPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	widget.Store.SetDraft(payload.Text)
	utils.RespondJSON(w, http.StatusOK, widget.Store.Snapshot())
}

// handleSendText runs a text dispatch to completion and returns the resulting snapshot
func (h *Handler) handleSendText(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var payload textPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	input := payload.Message
	if input == "" {
		input = payload.Text
	}

	// A closed tab must not abort the sequence half way.
	ctx := context.WithoutCancel(r.Context())
	if err := h.dispatcher.DispatchText(ctx, widget, input); err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, widget.Store.Snapshot())
}

// handleSendImage runs an image dispatch from a multipart "file" field
func (h *Handler) handleSendImage(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.lookup(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.RespondError(w, http.StatusRequestEntityTooLarge, "image too large")
			return
		}
		utils.RespondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	// Uploads are served back on this origin: trust sniffed images only.
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		utils.RespondError(w, http.StatusUnsupportedMediaType, "file must be an image")
		return
	}

	upload := &backend.File{Name: header.Filename, ContentType: contentType, Data: data}
	if err := h.dispatcher.DispatchImage(context.WithoutCancel(r.Context()), widget, upload); err != nil {
		h.respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, widget.Store.Snapshot())
}

func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.lookup(w, r)
	if !ok {
		return
	}

	img, err := widget.Image(chi.URLParam(r, "ref"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	contentType := http.DetectContentType(img.Data)
	if !strings.HasPrefix(contentType, "image/") {
		utils.RespondError(w, http.StatusUnsupportedMediaType, "stored file is not an image")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.lookup(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Transcript(w, widget.Store.Snapshot()); err != nil {
		h.logger.Error().Err(err).Str("widget_id", widget.ID).Msg("failed to render transcript")
	}
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*conversation.Widget, bool) {
	widget, err := h.widgets.Get(r.Context(), chi.URLParam(r, "widgetID"))
	if err != nil {
		h.respondServiceError(w, err)
		return nil, false
	}
	return widget, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrWidgetNotFound), errors.Is(err, conversation.ErrImageNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, conversation.ErrBusy):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error().Err(err).Msg("widget request failed")
		utils.RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

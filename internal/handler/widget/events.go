package widget

import (
	"net/http"
	"time"

	"github.com/palona/shopchat/backend/pkg/utils"
)

// handleEvents streams a rendered snapshot on every transcript change
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.lookup(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	updates, cancel := widget.Store.Subscribe()
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !utils.SendSSEComment(w, flusher, "ping") {
				return
			}
		case snap, open := <-updates:
			if !open {
				utils.SendSSEEvent(w, flusher, "closed", map[string]string{"widgetId": widget.ID})
				return
			}
			update, err := h.renderer.NewUpdate(snap)
			if err != nil {
				h.logger.Error().Err(err).Str("widget_id", widget.ID).Msg("failed to render update")
				continue
			}
			if !utils.SendSSEEvent(w, flusher, "snapshot", update) {
				return
			}
		}
	}
}

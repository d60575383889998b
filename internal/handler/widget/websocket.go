package widget

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	model "github.com/palona/shopchat/backend/internal/model/conversation"
	"github.com/palona/shopchat/backend/internal/service/conversation"
	"github.com/palona/shopchat/backend/internal/view"
)

const writeTimeout = 10 * time.Second

// Inbound command types.
const (
	commandSend  = "send"
	commandDraft = "draft"
)

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type string `json:"type"`
	view.Update
	Error string `json:"error,omitempty"`
}

type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) write(msg outgoingMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) close(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = c.conn.Close()
}

// handleWebSocket binds a page to a widget: snapshots go out, commands come in
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	widget, ok := h.lookup(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("widget_id", widget.ID).Msg("websocket upgrade failed")
		return
	}
	c := &wsConn{conn: conn}

	updates, cancel := widget.Store.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.pushSnapshots(c, widget.ID, updates)
	}()

	h.readCommands(c, widget)

	cancel()
	wg.Wait()
	_ = conn.Close()
}

func (h *Handler) pushSnapshots(c *wsConn, widgetID string, updates <-chan model.Snapshot) {
	for snap := range updates {
		update, err := h.renderer.NewUpdate(snap)
		if err != nil {
			h.logger.Error().Err(err).Str("widget_id", widgetID).Msg("failed to render update")
			continue
		}
		if err := c.write(outgoingMessage{Type: "snapshot", Update: update}); err != nil {
			h.logger.Debug().Err(err).Str("widget_id", widgetID).Msg("websocket write failed")
			return
		}
	}
	// Subscription ended: either the reader quit or the widget was unmounted.
	c.close(websocket.CloseNormalClosure, "widget closed")
}

func (h *Handler) readCommands(c *wsConn, widget *conversation.Widget) {
	for {
		var msg inboundMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug().Err(err).Str("widget_id", widget.ID).Msg("websocket read failed")
			}
			return
		}

		switch msg.Type {
		case commandDraft:
			widget.Store.SetDraft(msg.Text)
		case commandSend:
			text := msg.Text
			go func() {
				err := h.dispatcher.DispatchText(context.Background(), widget, text)
				if errors.Is(err, conversation.ErrBusy) {
					_ = c.write(outgoingMessage{Type: "error", Error: err.Error()})
				} else if err != nil {
					h.logger.Error().Err(err).Str("widget_id", widget.ID).Msg("dispatch failed")
				}
			}()
		default:
			_ = c.write(outgoingMessage{Type: "error", Error: "unknown command " + msg.Type})
		}
	}
}

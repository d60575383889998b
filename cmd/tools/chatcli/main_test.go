package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/palona/shopchat/backend/internal/config"
	model "github.com/palona/shopchat/backend/internal/model/conversation"
	"github.com/palona/shopchat/backend/internal/service/backend"
	"github.com/palona/shopchat/backend/internal/service/conversation"
	"github.com/palona/shopchat/backend/internal/service/dispatch"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

func newTestSession(t *testing.T, out *bytes.Buffer) *session {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(backend.EndpointClassifyIntent, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"is_product": true}`))
	})
	mux.HandleFunc(backend.EndpointSearchProducts, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [{"title": "Shoe", "price": "$10", "link": "http://x"}]}`))
	})
	mux.HandleFunc(backend.EndpointImageSearch, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"caption": "a shoe"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := backend.NewHTTPClient(config.BackendConfig{BaseURL: srv.URL}, zerolog.Nop())
	return newSession(dispatch.New(client, zerolog.Nop()), conversation.NewWidget(), out)
}

func TestSessionPrintsGreetingAndProducts(t *testing.T) {
	var out bytes.Buffer
	s := newTestSession(t, &out)

	err := s.run(context.Background(), strings.NewReader("running shoes\n/quit\n"))
	require.NoError(t, err)

	text := out.String()
	require.Contains(t, text, "Palona: Hi! My name is Palona")
	require.Contains(t, text, "Here are the products I recommend:")
	require.Contains(t, text, "Shoe — $10")
	require.Contains(t, text, "http://x")
	require.Len(t, s.widget.Store.Snapshot().Messages, 3)
}

func TestSessionUploadsImage(t *testing.T) {
	var out bytes.Buffer
	s := newTestSession(t, &out)

	path := filepath.Join(t.TempDir(), "shoe.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n"), 0o600))

	err := s.run(context.Background(), strings.NewReader("/image "+path+"\n"))
	require.NoError(t, err)
	require.Contains(t, out.String(), "You: [image]")
	require.Contains(t, out.String(), dispatch.CaptionReply("a shoe"))
}

func TestSessionReportsMissingImage(t *testing.T) {
	var out bytes.Buffer
	s := newTestSession(t, &out)

	require.NoError(t, s.run(context.Background(), strings.NewReader("/image\n/image /does/not/exist.png\n")))
	require.Contains(t, out.String(), "usage: /image <path>")
	require.Contains(t, out.String(), "read image")
	require.Len(t, s.widget.Store.Snapshot().Messages, 1)
}

func TestFormatMessageWithoutProducts(t *testing.T) {
	msg := model.BotProducts(dispatch.NoProductsReply)
	require.Equal(t, dispatch.NoProductsReply, formatMessage(msg))
}

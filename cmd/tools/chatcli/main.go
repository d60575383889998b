package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/palona/shopchat/backend/internal/config"
	"github.com/palona/shopchat/backend/internal/logging"
	"github.com/palona/shopchat/backend/internal/service/backend"
	"github.com/palona/shopchat/backend/internal/service/conversation"
	"github.com/palona/shopchat/backend/internal/service/dispatch"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		backendURL string
		timeout    time.Duration
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "chatcli",
		Short: "Chat with the Palona shopping assistant from the terminal",
		Long: "chatcli mounts a local chat widget against the recommendation backend.\n" +
			"Type a message and press enter, or use /image <path> to search by image and /quit to leave.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			if backendURL != "" {
				cfg.Backend.BaseURL = strings.TrimRight(backendURL, "/")
			}
			if cmd.Flags().Changed("timeout") {
				cfg.Backend.Timeout = timeout
			}

			logger := logging.NewWithWriter(cmd.ErrOrStderr(), logLevel, true)
			client := backend.NewHTTPClient(cfg.Backend, logger)
			session := newSession(dispatch.New(client, logger), conversation.NewWidget(), cmd.OutOrStdout())
			return session.run(cmd.Context(), cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&backendURL, "backend", "", "recommendation backend base URL (default from BACKEND_BASE_URL)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-request backend timeout, 0 for none")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level written to stderr")
	return cmd
}

type session struct {
	dispatcher *dispatch.Dispatcher
	widget     *conversation.Widget
	printer    *printer
}

func newSession(dispatcher *dispatch.Dispatcher, widget *conversation.Widget, out io.Writer) *session {
	return &session{dispatcher: dispatcher, widget: widget, printer: newPrinter(out)}
}

func (s *session) run(ctx context.Context, in io.Reader) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.printer.flush(s.widget.Store.Snapshot())

	scanner := bufio.NewScanner(in)
	for {
		s.printer.prompt()
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()

		switch {
		case strings.TrimSpace(line) == "/quit":
			return nil
		case strings.HasPrefix(strings.TrimSpace(line), "/image"):
			path := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "/image"))
			if err := s.sendImage(ctx, path); err != nil {
				s.printer.notice(err.Error())
			}
		default:
			s.widget.Store.SetDraft(line)
			if err := s.dispatcher.DispatchText(ctx, s.widget, line); err != nil {
				s.printer.notice(err.Error())
			}
		}
		s.printer.flush(s.widget.Store.Snapshot())
	}
}

func (s *session) sendImage(ctx context.Context, path string) error {
	if path == "" {
		return fmt.Errorf("usage: /image <path>")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}

	file := &backend.File{
		Name:        filepath.Base(path),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}
	return s.dispatcher.DispatchImage(ctx, s.widget, file)
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/palona/shopchat/backend/internal/model/conversation"
)

var (
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#2e7d32")).Bold(true)
	botStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#1565c0")).Bold(true)
	productStyle = lipgloss.NewStyle().PaddingLeft(2)
	linkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6a1b9a")).Underline(true)
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999")).Italic(true)
)

// printer writes transcript entries that have not been shown yet.
type printer struct {
	out   io.Writer
	shown int
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out}
}

func (p *printer) prompt() {
	fmt.Fprint(p.out, "> ")
}

func (p *printer) notice(text string) {
	fmt.Fprintln(p.out, noticeStyle.Render(text))
}

func (p *printer) flush(snap conversation.Snapshot) {
	for _, msg := range snap.Messages[p.shown:] {
		if msg.Sender == conversation.SenderUser {
			// The terminal already echoes what the user typed.
			if msg.Kind == conversation.KindImage {
				fmt.Fprintln(p.out, userStyle.Render("You")+": [image]")
			}
			continue
		}
		fmt.Fprintln(p.out, botStyle.Render("Palona")+": "+formatMessage(msg))
	}
	p.shown = len(snap.Messages)
}

// formatMessage renders an entry as plain text with products as structured
// fields.
func formatMessage(msg conversation.Message) string {
	if msg.Kind != conversation.KindProduct || len(msg.Products) == 0 {
		return msg.Text
	}

	var b strings.Builder
	if msg.Text != "" {
		b.WriteString(strings.TrimSpace(msg.Text))
		b.WriteString("\n")
	}
	for i, product := range msg.Products {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(productStyle.Render(formatProduct(product)))
	}
	return b.String()
}

func formatProduct(product conversation.Product) string {
	line := product.Title + " — " + product.Price
	if product.Link != "" {
		line += "\n" + linkStyle.Render(product.Link)
	}
	return line
}

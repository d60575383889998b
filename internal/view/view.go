package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/url"

	"github.com/palona/shopchat/backend/internal/model/conversation"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer turns conversation snapshots into HTML. Product titles, prices
// and links are passed as separate fields and escaped by html/template.
type Renderer struct {
	tmpl  *template.Template
	title string
}

// New parses the embedded templates.
func New(title string) (*Renderer, error) {
	tmpl, err := template.New("view").
		Funcs(template.FuncMap{"imageURL": ImageURL}).
		ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl, title: title}, nil
}

type pageData struct {
	Title    string
	Snapshot conversation.Snapshot
}

// Page renders the full widget page for a mounted widget.
func (r *Renderer) Page(w io.Writer, snap conversation.Snapshot) error {
	return r.tmpl.ExecuteTemplate(w, "page", pageData{Title: r.title, Snapshot: snap})
}

// Transcript renders the message list fragment.
func (r *Renderer) Transcript(w io.Writer, snap conversation.Snapshot) error {
	return r.tmpl.ExecuteTemplate(w, "transcript", pageData{Title: r.title, Snapshot: snap})
}

// TranscriptString is Transcript into a string.
func (r *Renderer) TranscriptString(snap conversation.Snapshot) (string, error) {
	var buf bytes.Buffer
	if err := r.Transcript(&buf, snap); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Products renders the body of a product entry.
func (r *Renderer) Products(msg conversation.Message) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, "products", msg); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ImageURL is where the page fetches an uploaded image from.
func ImageURL(widgetID, ref string) string {
	return "/api/widgets/" + url.PathEscape(widgetID) + "/images/" + url.PathEscape(ref)
}

// Update is what live bindings push to the page on every snapshot.
type Update struct {
	Version  uint64 `json:"version"`
	Awaiting bool   `json:"awaiting"`
	HTML     string `json:"html"`
}

// NewUpdate renders the snapshot for a live binding.
func (r *Renderer) NewUpdate(snap conversation.Snapshot) (Update, error) {
	html, err := r.TranscriptString(snap)
	if err != nil {
		return Update{}, err
	}
	return Update{Version: snap.Version, Awaiting: snap.IsAwaitingResponse, HTML: html}, nil
}

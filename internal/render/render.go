// ABOUTME: Markdown to HTML rendering for chat message bodies
// ABOUTME: Raw HTML in input is never passed through; failures fall back to escaped text

package render

import (
	"bytes"
	"html"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Renderer converts message bodies to HTML.
type Renderer struct {
	md     goldmark.Markdown
	logger *slog.Logger
}

// New creates a Renderer. Pass nil logger for default.
func New(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
		logger: logger.With("component", "render"),
	}
}

// Render returns body as HTML.
func (r *Renderer) Render(body string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(body), &buf); err != nil {
		r.logger.Error("failed to convert markdown", "error", err)
		return "<p>" + html.EscapeString(body) + "</p>"
	}
	return strings.TrimSpace(buf.String())
}

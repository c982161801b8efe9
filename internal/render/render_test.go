// ABOUTME: Tests for markdown rendering of message bodies
// ABOUTME: Verifies formatting, links and that raw HTML is not passed through

package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	r := New(nil)

	tests := []struct {
		name     string
		body     string
		contains string
	}{
		{"emphasis", "**bold**", "<strong>bold</strong>"},
		{"strikethrough", "~~gone~~", "<del>gone</del>"},
		{"linkify", "see https://example.com", `<a href="https://example.com">`},
		{"hard wraps", "one\ntwo", "<br"},
		{"code", "`x := 1`", "<code>x := 1</code>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, r.Render(tt.body), tt.contains)
		})
	}
}

func TestRender_RawHTMLOmitted(t *testing.T) {
	out := New(nil).Render(`<script>alert(1)</script>`)
	assert.NotContains(t, out, "<script>")
}

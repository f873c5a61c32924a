package web

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Paul Collings", truncate("Paul Collings", 24))
	assert.Equal(t, "Paul C...", truncate("Paul Collings", 9))
	assert.Equal(t, "Pa", truncate("Paul", 2))
	assert.Equal(t, "", truncate("Paul", 0))
	assert.Equal(t, "héllo", truncate("héllo", 5))
}

func TestRenderMarkdown_Sanitizes(t *testing.T) {
	out := string(renderMarkdown("### Admin\n\n<script>alert(1)</script>\n\n**bold**"))
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.Contains(t, out, "Admin</h3>")
	assert.NotContains(t, out, "<script>")
}

func TestEscapeMarkdown_RendersLiterally(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringMatching(`[A-Za-z*_#\[\]()` + "`" + `]{1,20}`).Draw(t, "s")
		out := string(renderMarkdown(escapeMarkdown(s)))
		if strings.Contains(out, "<em>") || strings.Contains(out, "<strong>") || strings.Contains(out, "<code>") || strings.Contains(out, "<h") {
			t.Fatalf("%q rendered as markup: %s", s, out)
		}
	})
}

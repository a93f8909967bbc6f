// ABOUTME: Tests for markdown to Slack mrkdwn conversion.
// ABOUTME: Covers emphasis, headings, links, lists, quotes, and code blocks.

package mrkdwn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender_Plain(t *testing.T) {
	assert.Equal(t, "just plain text", Render("just plain text"))
}

func TestRender_Bold(t *testing.T) {
	assert.Equal(t, "this is *important*", Render("this is **important**"))
}

func TestRender_Italic(t *testing.T) {
	assert.Equal(t, "this is _subtle_", Render("this is *subtle*"))
	assert.Equal(t, "this is _subtle_", Render("this is _subtle_"))
}

func TestRender_Heading(t *testing.T) {
	assert.Equal(t, "*Summary*", Render("# Summary"))
	assert.Equal(t, "*Details*", Render("## Details"))
}

func TestRender_Link(t *testing.T) {
	assert.Equal(t, "see <https://example.com|the docs>", Render("see [the docs](https://example.com)"))
}

func TestRender_AutoLink(t *testing.T) {
	assert.Equal(t, "visit <https://example.com>", Render("visit https://example.com"))
}

func TestRender_CodeSpan(t *testing.T) {
	assert.Equal(t, "run `go test` now", Render("run `go test` now"))
}

func TestRender_FencedCode(t *testing.T) {
	in := "```\nfunc main() {}\n```"
	assert.Equal(t, "```\nfunc main() {}\n```", Render(in))
}

func TestRender_UnorderedList(t *testing.T) {
	out := Render("- first\n- second")
	assert.Equal(t, "• first\n• second", out)
}

func TestRender_OrderedList(t *testing.T) {
	out := Render("1. first\n2. second")
	assert.Equal(t, "1. first\n2. second", out)
}

func TestRender_NestedList(t *testing.T) {
	out := Render("- outer\n  - inner")
	assert.Contains(t, out, "• outer")
	assert.Contains(t, out, "  • inner")
}

func TestRender_Blockquote(t *testing.T) {
	assert.Equal(t, "> quoted text", Render("> quoted text"))
}

func TestRender_MixedDocument(t *testing.T) {
	in := "# Result\n\nThe translation is **done**.\n\n- item one\n- item two"
	out := Render(in)
	assert.Equal(t, "*Result*\n\nThe translation is *done*.\n\n• item one\n• item two", out)
}

func TestRender_BoldInsideHeading(t *testing.T) {
	// Nested markers collapse rather than doubling asterisks
	assert.Equal(t, "*The *key* point*", Render("# The **key** point"))
}

func TestRender_Empty(t *testing.T) {
	assert.Equal(t, "", Render(""))
}

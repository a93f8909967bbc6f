// ABOUTME: Renders responder markdown output as Slack mrkdwn.
// ABOUTME: Walks the goldmark AST; unsupported constructs fall back to plain text.

package mrkdwn

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Render converts standard markdown into Slack's mrkdwn dialect:
// **bold** becomes *bold*, headings become bold lines, links become
// <url|label>, and list markers become bullets. Code spans and fenced
// blocks pass through unchanged.
func Render(source string) string {
	src := []byte(source)
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	var blocks []string
	for child := root.FirstChild(); child != nil; child = child.NextSibling() {
		if b := renderBlock(child, src, 0); b != "" {
			blocks = append(blocks, b)
		}
	}
	return strings.Join(blocks, "\n\n")
}

// renderBlock renders one block-level node. depth tracks list nesting.
func renderBlock(node ast.Node, src []byte, depth int) string {
	switch n := node.(type) {
	case *ast.Heading:
		return "*" + renderInlines(n, src) + "*"

	case *ast.Paragraph, *ast.TextBlock:
		return renderInlines(node, src)

	case *ast.FencedCodeBlock:
		return "```\n" + rawLines(n, src) + "```"

	case *ast.CodeBlock:
		return "```\n" + rawLines(n, src) + "```"

	case *ast.Blockquote:
		var inner []string
		for child := n.FirstChild(); child != nil; child = child.NextSibling() {
			inner = append(inner, renderBlock(child, src, depth))
		}
		return "> " + strings.ReplaceAll(strings.Join(inner, "\n"), "\n", "\n> ")

	case *ast.List:
		return renderList(n, src, depth)

	case *ast.ThematicBreak:
		return "---"

	case *ast.HTMLBlock:
		return strings.TrimRight(rawLines(n, src), "\n")

	default:
		return renderInlines(node, src)
	}
}

// renderList renders a bullet or numbered list, indenting nested lists.
func renderList(list *ast.List, src []byte, depth int) string {
	indent := strings.Repeat("  ", depth)
	number := list.Start
	if number == 0 {
		number = 1
	}

	var lines []string
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "• "
		if list.IsOrdered() {
			marker = fmt.Sprintf("%d. ", number)
			number++
		}

		var parts []string
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			if nested, ok := child.(*ast.List); ok {
				parts = append(parts, renderList(nested, src, depth+1))
				continue
			}
			parts = append(parts, indent+marker+renderBlock(child, src, depth))
		}
		lines = append(lines, strings.Join(parts, "\n"))
	}
	return strings.Join(lines, "\n")
}

// renderInlines renders the inline children of a node.
func renderInlines(node ast.Node, src []byte) string {
	var out strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		renderInline(&out, child, src)
	}
	return out.String()
}

func renderInline(out *strings.Builder, node ast.Node, src []byte) {
	switch n := node.(type) {
	case *ast.Text:
		out.Write(n.Segment.Value(src))
		if n.HardLineBreak() || n.SoftLineBreak() {
			out.WriteByte('\n')
		}

	case *ast.Emphasis:
		marker := "_"
		if n.Level == 2 {
			marker = "*"
		}
		out.WriteString(marker)
		out.WriteString(renderInlines(n, src))
		out.WriteString(marker)

	case *ast.CodeSpan:
		out.WriteByte('`')
		out.WriteString(renderInlines(n, src))
		out.WriteByte('`')

	case *ast.Link:
		label := renderInlines(n, src)
		url := string(n.Destination)
		if label == "" || label == url {
			out.WriteString("<" + url + ">")
		} else {
			out.WriteString("<" + url + "|" + label + ">")
		}

	case *ast.AutoLink:
		out.WriteString("<" + string(n.URL(src)) + ">")

	case *ast.Image:
		// Slack has no inline image syntax; link to it instead
		out.WriteString("<" + string(n.Destination) + ">")

	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			out.Write(seg.Value(src))
		}

	default:
		out.WriteString(renderInlines(node, src))
	}
}

// rawLines returns the verbatim source lines of a block node.
func rawLines(node ast.Node, src []byte) string {
	var out strings.Builder
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		out.Write(seg.Value(src))
	}
	return out.String()
}

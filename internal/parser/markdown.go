package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// ParseMarkdown lays out a Markdown document as a raw block stream using
// goldmark. Headings become title blocks, $$ lines become equations.
func ParseMarkdown(r io.Reader) (*RawDocument, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	f := newFlow()
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			f.add("title", extractText(node, src))
		case *ast.List:
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				f.add("list", extractText(item, src))
			}
		case *east.Table:
			f.addTable("", markdownTableHTML(node, src), node.ChildCount())
		default:
			t := extractText(n, src)
			if strings.HasPrefix(t, "$$") && strings.HasSuffix(t, "$$") && len(t) > 4 {
				f.add("interline_equation", strings.TrimSpace(t[2:len(t)-2]))
				continue
			}
			f.add("text", t)
		}
	}
	return f.document(), nil
}

// extractText gets the text content of a goldmark AST node. Code blocks
// keep their raw lines; everything else is read from inline children.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	switch n.(type) {
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
		return strings.TrimSpace(buf.String())
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			if buf.Len() > 0 && c.Type() == ast.TypeBlock {
				buf.WriteByte('\n')
			}
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}

func markdownTableHTML(t *east.Table, src []byte) string {
	var b strings.Builder
	b.WriteString("<table>")
	for row := t.FirstChild(); row != nil; row = row.NextSibling() {
		cell := "td"
		if _, ok := row.(*east.TableHeader); ok {
			cell = "th"
		}
		b.WriteString("<tr>")
		for c := row.FirstChild(); c != nil; c = c.NextSibling() {
			fmt.Fprintf(&b, "<%s>%s</%s>", cell, extractText(c, src), cell)
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</table>")
	return b.String()
}

package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/docgraph/internal/doctree"
)

var tableNumberRe = regexp.MustCompile(`(?i)\btable\s+(\d+(?:\.\d+)*)`)

// HTMLTableAnalyzer reads the cell grid from the table HTML the layout
// parser already produced. It ignores the crop image.
type HTMLTableAnalyzer struct{}

func (HTMLTableAnalyzer) AnalyzeTable(_ context.Context, req TableRequest) (*TableData, error) {
	if strings.TrimSpace(req.HTML) == "" {
		return nil, nil
	}
	root, err := html.Parse(strings.NewReader(req.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse table html: %w", err)
	}

	var rows [][]string
	headerRow := false
	for _, tr := range findAll(root, "tr") {
		var row []string
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || (c.Data != "td" && c.Data != "th") {
				continue
			}
			if c.Data == "th" && len(rows) == 0 {
				headerRow = true
			}
			row = append(row, collapse(textContent(c)))
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, nil
	}

	caption := strings.TrimSpace(req.Caption)
	if caption == "" {
		if cs := findAll(root, "caption"); len(cs) > 0 {
			caption = collapse(textContent(cs[0]))
		}
	}

	t := &TableData{
		SegmentID: fmt.Sprintf("table_%s_p%d", doctree.ContentHashHex([]byte(req.HTML))[:12], req.Anchor.PageStart),
		Caption:   caption,
		Cells:     rows,
	}
	if headerRow {
		t.ColHeaders = rows[0]
	}
	if m := tableNumberRe.FindStringSubmatch(caption); m != nil {
		t.TableNumber = m[1]
	}
	t.SchemaHint = schemaHint(rows)
	return t, nil
}

// schemaHint labels a grid "numeric" when at least half its body cells
// parse as numbers.
func schemaHint(rows [][]string) string {
	if len(rows) < 2 {
		return "text"
	}
	var numeric, total int
	for _, row := range rows[1:] {
		for _, c := range row {
			if c == "" {
				continue
			}
			total++
			if numericCell.MatchString(c) {
				numeric++
			}
		}
	}
	if total > 0 && numeric*2 >= total {
		return "numeric"
	}
	return "text"
}

var (
	numericCell = regexp.MustCompile(`^[-+$€£(]?\s*\d[\d,]*(?:\.\d+)?\s*[%)]?$`)
	spaceRun    = regexp.MustCompile(`\s+`)
)

func collapse(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

func findAll(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

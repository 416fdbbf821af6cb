package parser

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// RawDocument mirrors the upstream layout parser's per-page block JSON.
type RawDocument struct {
	Pages []RawPage `json:"pdf_info"`
}

type RawPage struct {
	PageIdx    int        `json:"page_idx"`
	PageSize   []float64  `json:"page_size"`
	ParaBlocks []RawBlock `json:"para_blocks"`
}

type RawBlock struct {
	Type   string     `json:"type"`
	BBox   []float64  `json:"bbox"`
	Index  *int       `json:"index"`
	Lines  []RawLine  `json:"lines"`
	Blocks []RawBlock `json:"blocks"`
}

type RawLine struct {
	Spans []RawSpan `json:"spans"`
}

type RawSpan struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	ImagePath string `json:"image_path"`
	HTML      string `json:"html"`
}

// ParseBlockJSON decodes the raw block stream.
func ParseBlockJSON(r io.Reader) (*RawDocument, error) {
	var raw RawDocument
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode block json: %w", err)
	}
	return &raw, nil
}

// MapBlockType maps a raw parser type onto a BlockType.
func MapBlockType(rawType string) doctree.BlockType {
	switch strings.ToLower(rawType) {
	case "title", "header":
		return doctree.BlockHeading
	case "text", "paragraph":
		return doctree.BlockText
	case "list", "list_item":
		return doctree.BlockListItem
	case "table":
		return doctree.BlockTable
	case "image", "picture":
		return doctree.BlockImage
	case "interline_equation", "equation":
		return doctree.BlockFormula
	default:
		return doctree.BlockText
	}
}

// Normalize converts raw pages into cleaned content blocks and a page size map.
// No filtering happens here.
func Normalize(raw *RawDocument) ([]doctree.ContentBlock, doctree.PageSizes) {
	var blocks []doctree.ContentBlock
	sizes := doctree.PageSizes{}
	if raw == nil {
		return blocks, sizes
	}

	for _, page := range raw.Pages {
		if len(page.PageSize) >= 2 {
			sizes[page.PageIdx] = doctree.PageSize{Width: page.PageSize[0], Height: page.PageSize[1]}
		}

		for _, b := range page.ParaBlocks {
			typ := MapBlockType(b.Type)
			text := blockText(b, typ)
			if typ == doctree.BlockHeading {
				text = CleanHeading(text)
			} else {
				text = CleanText(text)
			}

			index := len(blocks)
			meta := doctree.BlockMeta{RawType: b.Type}
			if b.Index != nil {
				index = *b.Index
				meta.Index = *b.Index
				meta.HasIndex = true
			}

			var bbox *doctree.BBox
			if len(b.BBox) >= 4 {
				bbox = &doctree.BBox{X0: b.BBox[0], Y0: b.BBox[1], X1: b.BBox[2], Y1: b.BBox[3]}
			}

			switch typ {
			case doctree.BlockImage:
				meta.ImagePaths = spanImagePaths(b, "image")
			case doctree.BlockTable:
				meta.ImagePaths = spanImagePaths(b, "table")
				meta.TableHTML = tableHTML(b)
			}

			blocks = append(blocks, doctree.ContentBlock{
				ID:      fmt.Sprintf("p%d_b%d", page.PageIdx, index),
				Type:    typ,
				Text:    text,
				PageIdx: page.PageIdx,
				BBox:    bbox,
				Meta:    meta,
			})
		}
	}
	return blocks, sizes
}

// JoinSpans wraps equations in $ delimiters and joins span contents with single spaces.
func JoinSpans(spans []RawSpan) string {
	parts := make([]string, 0, len(spans))
	for _, sp := range spans {
		if sp.Content == "" {
			continue
		}
		switch sp.Type {
		case "inline_equation":
			parts = append(parts, "$"+sp.Content+"$")
		case "interline_equation":
			parts = append(parts, "$$"+sp.Content+"$$")
		default:
			parts = append(parts, sp.Content)
		}
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func linesText(lines []RawLine) []string {
	var out []string
	for _, l := range lines {
		if t := JoinSpans(l.Spans); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// blockText reads a block's own lines, or the caption-bearing sub-blocks of
// image and table blocks.
func blockText(b RawBlock, typ doctree.BlockType) string {
	if len(b.Lines) > 0 {
		return strings.Join(linesText(b.Lines), "\n")
	}
	if (typ == doctree.BlockImage || typ == doctree.BlockTable) && len(b.Blocks) > 0 {
		var parts []string
		for _, sub := range b.Blocks {
			parts = append(parts, linesText(sub.Lines)...)
		}
		return strings.Join(parts, "\n")
	}
	return ""
}

func spanImagePaths(b RawBlock, spanType string) []string {
	var paths []string
	seen := map[string]bool{}
	for _, sub := range b.Blocks {
		for _, l := range sub.Lines {
			for _, sp := range l.Spans {
				if sp.Type == spanType && sp.ImagePath != "" && !seen[sp.ImagePath] {
					seen[sp.ImagePath] = true
					paths = append(paths, sp.ImagePath)
				}
			}
		}
	}
	return paths
}

func tableHTML(b RawBlock) string {
	for _, sub := range b.Blocks {
		for _, l := range sub.Lines {
			for _, sp := range l.Spans {
				if sp.HTML != "" {
					return sp.HTML
				}
			}
		}
	}
	return ""
}

package chunker

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docgraph/internal/classify"
	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/refs"
)

// Config controls chunking behavior.
type Config struct {
	CharLimit int // Plain text chunks longer than this are split on sentences.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{CharLimit: 1500}
}

// ChunkTree walks the section tree depth-first and produces structure-aware
// chunks. A section's own blocks are emitted before its children.
func ChunkTree(doc *doctree.DocumentTree, cfg Config) []doctree.Unit {
	if cfg.CharLimit <= 0 {
		cfg.CharLimit = 1500
	}
	c := &chunker{cfg: cfg}
	doc.Walk(func(_ int, n *doctree.SectionNode) {
		c.section(n)
	})
	return c.units
}

type chunker struct {
	cfg     Config
	units   []doctree.Unit
	counter int
}

func (c *chunker) nextID() string {
	id := fmt.Sprintf("chunk_%05d", c.counter)
	c.counter++
	return id
}

func (c *chunker) emit(u doctree.Unit) {
	u.ID = c.nextID()
	u.TaxonomyPath = doctree.TaxonomyPath(u.HeadingPath)
	u.Confidence = 1.0
	c.units = append(c.units, u)
}

func (c *chunker) section(n *doctree.SectionNode) {
	hp := n.Path
	if hp == "" {
		hp = n.Title
	}
	blocks := n.Blocks

	for i := 0; i < len(blocks); {
		b := blocks[i]

		switch {
		case b.Type == doctree.BlockHeading:
			i = c.heading(blocks, i, hp)

		case b.Type.IsVisual():
			c.visual(b, hp)
			i++

		case b.Text == "":
			i++

		case classify.ListKind(b.Text) != "":
			i = c.list(blocks, i, hp)

		default:
			c.text(b, hp)
			i++
		}
	}
}

// heading emits either a structured title object absorbing the text that
// follows it, or a lone heading chunk. It returns the next block index.
func (c *chunker) heading(blocks []doctree.ContentBlock, i int, hp string) int {
	b := blocks[i]
	obj := ""
	if b.Meta.RawType == "title" {
		obj = classify.DetectTitleObject(b.Text)
	}
	if obj != "" {
		acc := newAccumulator(b)
		j := i + 1
		for ; j < len(blocks); j++ {
			nb := blocks[j]
			if nb.Type == doctree.BlockHeading || nb.Meta.RawType == "title" || nb.Type.IsVisual() {
				break
			}
			if nb.Text != "" {
				acc.add(nb, strings.TrimSpace(nb.Text))
			}
		}
		content := acc.joined()
		c.emit(doctree.Unit{
			HeadingPath: hp,
			Content:     content,
			Type:        obj,
			SegmentType: obj,
			PageRange:   acc.pageRange(),
			PageSpan:    acc.pageSpan(),
			BBox:        acc.bbox(),
			References:  refs.Extract(content),
			RawType:     b.Meta.RawType,
		})
		return j
	}

	segType := doctree.UnitHeading
	if obj := classify.DetectTextObject(b.Text, hp, false); obj != classify.Text {
		segType = "heading_" + obj
	}
	c.emit(doctree.Unit{
		HeadingPath: hp,
		Content:     strings.TrimSpace(b.Text),
		Type:        doctree.UnitHeading,
		SegmentType: segType,
		PageRange:   []int{b.PageIdx},
		PageSpan:    []int{b.PageIdx, b.PageIdx},
		BBox:        b.BBox.Slice(),
		References:  []doctree.Reference{},
		RawType:     b.Meta.RawType,
	})
	return i + 1
}

func (c *chunker) visual(b doctree.ContentBlock, hp string) {
	content := strings.TrimSpace(b.Text)
	u := doctree.Unit{
		HeadingPath: hp,
		Type:        string(b.Type),
		SegmentType: string(b.Type),
		PageRange:   []int{b.PageIdx},
		PageSpan:    []int{b.PageIdx, b.PageIdx},
		BBox:        b.BBox.Slice(),
		ImagePaths:  imagePaths(b),
		TableHTML:   b.Meta.TableHTML,
		RawType:     b.Meta.RawType,
	}
	if b.Type == doctree.BlockImage {
		caption := content
		u.Caption = &caption
		content = "[image]"
		if caption != "" {
			content += " " + caption
		}
	}
	u.Content = content
	u.References = refs.Extract(content)
	c.emit(u)
}

func imagePaths(b doctree.ContentBlock) []string {
	var out []string
	for _, p := range append(slices.Clone(b.Meta.LocalImagePaths), b.Meta.ImagePaths...) {
		if p != "" && !slices.Contains(out, p) {
			out = append(out, p)
		}
	}
	return out
}

// list merges consecutive list or procedure items, folding continuation
// lines into the previous item. It returns the next block index.
func (c *chunker) list(blocks []doctree.ContentBlock, i int, hp string) int {
	b := blocks[i]
	kind := classify.ListKind(b.Text)
	acc := newAccumulator(b)

	j := i + 1
	for ; j < len(blocks); j++ {
		nb := blocks[j]
		if nb.Type == doctree.BlockHeading || nb.Meta.RawType == "title" || !isTextual(nb) {
			break
		}
		if nb.Text == "" {
			continue
		}
		if k := classify.ListKind(nb.Text); k != "" {
			if k == classify.Procedure {
				kind = classify.Procedure
			}
			acc.add(nb, strings.TrimSpace(nb.Text))
			continue
		}
		if classify.IsListContinuation(nb.Text) {
			acc.extendLast(nb, strings.TrimSpace(nb.Text))
			continue
		}
		break
	}

	content := acc.joined()
	c.emit(doctree.Unit{
		HeadingPath: hp,
		Content:     content,
		Type:        doctree.UnitText,
		SegmentType: kind,
		PageRange:   acc.pageRange(),
		PageSpan:    acc.pageSpan(),
		BBox:        acc.bbox(),
		References:  refs.Extract(content),
		RawType:     b.Meta.RawType,
	})
	return j
}

func (c *chunker) text(b doctree.ContentBlock, hp string) {
	listCtx := classify.IsListContext(hp)
	content := strings.TrimSpace(b.Text)
	parts := []string{content}
	if utf8.RuneCountInString(content) > c.cfg.CharLimit {
		parts = splitBySentences(content, c.cfg.CharLimit)
	}
	for _, part := range parts {
		c.emit(doctree.Unit{
			HeadingPath: hp,
			Content:     part,
			Type:        doctree.UnitText,
			SegmentType: classify.DetectTextObject(part, hp, listCtx),
			PageRange:   []int{b.PageIdx},
			PageSpan:    []int{b.PageIdx, b.PageIdx},
			BBox:        b.BBox.Slice(),
			References:  refs.Extract(part),
			RawType:     b.Meta.RawType,
		})
	}
}

func isTextual(b doctree.ContentBlock) bool {
	return b.Type == doctree.BlockText || b.Type == doctree.BlockListItem
}

// accumulator gathers the text, pages and boxes of merged blocks.
type accumulator struct {
	parts []string
	pages []int
	boxes []doctree.BBox
}

func newAccumulator(first doctree.ContentBlock) *accumulator {
	a := &accumulator{}
	a.add(first, strings.TrimSpace(first.Text))
	return a
}

func (a *accumulator) add(b doctree.ContentBlock, text string) {
	a.parts = append(a.parts, text)
	a.track(b)
}

func (a *accumulator) extendLast(b doctree.ContentBlock, text string) {
	last := len(a.parts) - 1
	a.parts[last] = strings.TrimRight(a.parts[last], " \t\n") + " " + text
	a.track(b)
}

func (a *accumulator) track(b doctree.ContentBlock) {
	if !slices.Contains(a.pages, b.PageIdx) {
		a.pages = append(a.pages, b.PageIdx)
	}
	if b.BBox != nil {
		a.boxes = append(a.boxes, *b.BBox)
	}
}

func (a *accumulator) joined() string {
	var nonEmpty []string
	for _, p := range a.parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n")
}

func (a *accumulator) pageRange() []int {
	out := slices.Clone(a.pages)
	slices.Sort(out)
	return out
}

func (a *accumulator) pageSpan() []int {
	if len(a.pages) == 0 {
		return []int{}
	}
	return []int{slices.Min(a.pages), slices.Max(a.pages)}
}

func (a *accumulator) bbox() []float64 {
	return doctree.UnionAll(a.boxes).Slice()
}

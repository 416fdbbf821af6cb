// Package layout restores reading order and stitches paragraphs that the
// upstream parser split across blocks or pages.
package layout

import (
	"math"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// Config controls stitching thresholds.
type Config struct {
	IndentTolerance float64 // Max left-edge drift for same-page merges.
	BottomBand      float64 // Fraction of page height counted as the bottom band.
	TopBand         float64 // Fraction of page height counted as the top band.
}

// DefaultConfig returns the thresholds used by the pipeline.
func DefaultConfig() Config {
	return Config{
		IndentTolerance: 20,
		BottomBand:      0.9,
		TopBand:         0.1,
	}
}

// Corrector sorts blocks into reading order and merges continuations.
type Corrector struct {
	cfg Config
}

func NewCorrector(cfg Config) *Corrector {
	if cfg.IndentTolerance <= 0 {
		cfg.IndentTolerance = 20
	}
	if cfg.BottomBand <= 0 {
		cfg.BottomBand = 0.9
	}
	if cfg.TopBand <= 0 {
		cfg.TopBand = 0.1
	}
	return &Corrector{cfg: cfg}
}

// Process returns blocks in reading order with split paragraphs stitched.
// The input slice is not modified.
func (c *Corrector) Process(blocks []doctree.ContentBlock, sizes doctree.PageSizes) []doctree.ContentBlock {
	if len(blocks) == 0 {
		return nil
	}
	ordered := SortReadingOrder(blocks)
	return c.stitch(ordered, sizes)
}

// SortReadingOrder orders by (page, source index) when the parser supplied an
// index, otherwise by (page, top, left).
func SortReadingOrder(blocks []doctree.ContentBlock) []doctree.ContentBlock {
	out := make([]doctree.ContentBlock, len(blocks))
	copy(out, blocks)
	slices.SortStableFunc(out, func(a, b doctree.ContentBlock) int {
		ka, kb := sortKey(a), sortKey(b)
		for i := range ka {
			if ka[i] < kb[i] {
				return -1
			}
			if ka[i] > kb[i] {
				return 1
			}
		}
		return 0
	})
	return out
}

func sortKey(b doctree.ContentBlock) [3]float64 {
	if b.Meta.HasIndex {
		return [3]float64{float64(b.PageIdx), float64(b.Meta.Index), 0}
	}
	if b.BBox != nil {
		return [3]float64{float64(b.PageIdx), b.BBox.Y0, b.BBox.X0}
	}
	return [3]float64{float64(b.PageIdx), 0, 0}
}

func (c *Corrector) stitch(blocks []doctree.ContentBlock, sizes doctree.PageSizes) []doctree.ContentBlock {
	out := make([]doctree.ContentBlock, 0, len(blocks))
	buf := blocks[0]

	for _, next := range blocks[1:] {
		if c.shouldMerge(buf, next, sizes) {
			if strings.HasSuffix(buf.Text, "-") {
				buf.Text = strings.TrimSuffix(buf.Text, "-") + next.Text
			} else {
				buf.Text = strings.TrimSpace(buf.Text + " " + next.Text)
			}
			buf.Meta.MergedIDs = append(slices.Clone(buf.Meta.MergedIDs), next.ID)
			continue
		}
		out = append(out, buf)
		buf = next
	}
	return append(out, buf)
}

func (c *Corrector) shouldMerge(prev, next doctree.ContentBlock, sizes doctree.PageSizes) bool {
	if prev.Type != doctree.BlockText || next.Type != doctree.BlockText {
		return false
	}
	end := strings.TrimSpace(prev.Text)
	start := strings.TrimSpace(next.Text)
	endsOpen := end != "" && !EndsWithTerminal(end)
	startsLower := StartsLower(start)

	switch next.PageIdx {
	case prev.PageIdx + 1:
		nearBottom, nearTop := false, false
		if size, ok := sizes[prev.PageIdx]; ok && prev.BBox != nil {
			nearBottom = prev.BBox.Y1 >= pageHeight(size)*c.cfg.BottomBand
		}
		if size, ok := sizes[next.PageIdx]; ok && next.BBox != nil {
			nearTop = next.BBox.Y0 <= pageHeight(size)*c.cfg.TopBand
		}
		return (endsOpen || startsLower) && (nearBottom || nearTop)
	case prev.PageIdx:
		if !startsLower || prev.BBox == nil || next.BBox == nil {
			return false
		}
		return math.Abs(next.BBox.X0-prev.BBox.X0) <= c.cfg.IndentTolerance
	}
	return false
}

func pageHeight(s doctree.PageSize) float64 {
	if s.Height == 0 {
		return 1
	}
	return s.Height
}

// EndsWithTerminal reports whether text ends in sentence-closing punctuation.
func EndsWithTerminal(text string) bool {
	r, _ := utf8.DecodeLastRuneInString(text)
	return strings.ContainsRune(".!?:;\"”", r)
}

// StartsLower reports whether the first rune is a lowercase letter.
func StartsLower(text string) bool {
	r, _ := utf8.DecodeRuneInString(text)
	return r != utf8.RuneError && unicode.IsLower(r)
}

// Correct runs a Corrector with the default thresholds.
func Correct(blocks []doctree.ContentBlock, sizes doctree.PageSizes) []doctree.ContentBlock {
	return NewCorrector(DefaultConfig()).Process(blocks, sizes)
}

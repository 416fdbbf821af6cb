package parser

import (
	"strings"
	"unicode/utf8"
)

// Letter-size geometry used when laying out sources that have no pages.
const (
	flowPageWidth  = 612.0
	flowPageHeight = 792.0
	flowMargin     = 72.0
	flowLineHeight = 14.0
	flowCharsLine  = 90
	flowGap        = 6.0
)

// flow lays out reflowable content (Markdown, HTML, DOCX) top to bottom
// onto synthetic pages so it can enter the same normalizer as block JSON.
type flow struct {
	doc   RawDocument
	y     float64
	index int
}

func newFlow() *flow {
	f := &flow{}
	f.newPage()
	return f
}

func (f *flow) newPage() {
	f.doc.Pages = append(f.doc.Pages, RawPage{
		PageIdx:  len(f.doc.Pages),
		PageSize: []float64{flowPageWidth, flowPageHeight},
	})
	f.y = flowMargin
}

func (f *flow) height(text string) float64 {
	lines := 0
	for _, l := range strings.Split(text, "\n") {
		lines += max(1, (utf8.RuneCountInString(l)+flowCharsLine-1)/flowCharsLine)
	}
	return float64(lines) * flowLineHeight
}

// place reserves vertical space for a block and returns its bbox.
func (f *flow) place(h float64) []float64 {
	page := &f.doc.Pages[len(f.doc.Pages)-1]
	if f.y+h > flowPageHeight-flowMargin && len(page.ParaBlocks) > 0 {
		f.newPage()
	}
	box := []float64{flowMargin, f.y, flowPageWidth - flowMargin, f.y + h}
	f.y += h + flowGap
	return box
}

func (f *flow) append(b RawBlock) {
	idx := f.index
	f.index++
	b.Index = &idx
	page := &f.doc.Pages[len(f.doc.Pages)-1]
	page.ParaBlocks = append(page.ParaBlocks, b)
}

// add appends a text-like block of the given raw type.
func (f *flow) add(rawType, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	spanType := "text"
	if rawType == "interline_equation" {
		spanType = "interline_equation"
	}
	var lines []RawLine
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, RawLine{Spans: []RawSpan{{Type: spanType, Content: l}}})
		}
	}
	f.append(RawBlock{Type: rawType, BBox: f.place(f.height(text)), Lines: lines})
}

// addTable appends a table block carrying its HTML and optional caption.
func (f *flow) addTable(caption, html string, rows int) {
	var subs []RawBlock
	if caption = strings.TrimSpace(caption); caption != "" {
		subs = append(subs, RawBlock{Type: "table_caption",
			Lines: []RawLine{{Spans: []RawSpan{{Type: "text", Content: caption}}}}})
	}
	subs = append(subs, RawBlock{Type: "table_body",
		Lines: []RawLine{{Spans: []RawSpan{{Type: "table", HTML: html}}}}})
	f.append(RawBlock{Type: "table", BBox: f.place(float64(max(rows, 1)) * flowLineHeight), Blocks: subs})
}

func (f *flow) document() *RawDocument {
	return &f.doc
}

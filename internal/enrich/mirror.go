package enrich

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Sink receives mirror files. storage.Adapter satisfies it.
type Sink interface {
	Put(ctx context.Context, key string, data []byte) error
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// WriteTableMirrors writes table_N.json, table_N.md and table_N.html for
// each table plus an extraction_summary.json, all under prefix.
func WriteTableMirrors(ctx context.Context, sink Sink, prefix, docID string, tables []*TableData) error {
	type summaryRow struct {
		SegmentID   string `json:"segment_id"`
		TableNumber string `json:"table_number"`
		Caption     string `json:"caption"`
		Page        int    `json:"page"`
		Dimensions  string `json:"dimensions"`
		SchemaHint  string `json:"schema_hint"`
	}
	summary := struct {
		PDFPath     string       `json:"pdf_path"`
		PageRange   string       `json:"page_range"`
		TotalPages  int          `json:"total_pages"`
		TotalTables int          `json:"total_tables"`
		Tables      []summaryRow `json:"tables"`
	}{
		PDFPath:     docID + ".pdf",
		PageRange:   "all",
		TotalTables: len(tables),
		Tables:      []summaryRow{},
	}

	for i, t := range tables {
		base := path.Join(prefix, fmt.Sprintf("table_%d", i+1))

		js, err := json.MarshalIndent(t, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal table %d: %w", i+1, err)
		}
		if err := sink.Put(ctx, base+".json", js); err != nil {
			return fmt.Errorf("write table %d json: %w", i+1, err)
		}

		md := TableMarkdown(t)
		if err := sink.Put(ctx, base+".md", []byte(md)); err != nil {
			return fmt.Errorf("write table %d markdown: %w", i+1, err)
		}
		var html bytes.Buffer
		if err := markdown.Convert([]byte(md), &html); err != nil {
			return fmt.Errorf("render table %d html: %w", i+1, err)
		}
		if err := sink.Put(ctx, base+".html", html.Bytes()); err != nil {
			return fmt.Errorf("write table %d html: %w", i+1, err)
		}

		rows, cols := len(t.Cells), len(t.ColHeaders)
		if rows > 0 {
			cols = len(t.Cells[0])
		}
		summary.TotalPages = max(summary.TotalPages, t.PageEnd, t.PageStart)
		summary.Tables = append(summary.Tables, summaryRow{
			SegmentID:   t.SegmentID,
			TableNumber: t.TableNumber,
			Caption:     truncateRunes(t.Caption, 100),
			Page:        t.PageStart,
			Dimensions:  fmt.Sprintf("%d×%d", rows, cols),
			SchemaHint:  t.SchemaHint,
		})
	}

	js, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal table summary: %w", err)
	}
	return sink.Put(ctx, path.Join(prefix, "extraction_summary.json"), js)
}

// TableMarkdown renders a table as a GFM pipe table with its caption,
// footnotes and description.
func TableMarkdown(t *TableData) string {
	var lines []string
	if t.Caption != "" {
		lines = append(lines, "**"+t.Caption+"**", "")
	}
	if len(t.Cells) == 0 {
		if len(lines) == 0 {
			return ""
		}
		return strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
	}

	header := t.ColHeaders
	if len(header) == 0 {
		header = t.Cells[0]
	}
	lines = append(lines, pipeRow(header))
	sep := make([]string, len(header))
	for i := range sep {
		sep[i] = "---"
	}
	lines = append(lines, pipeRow(sep))

	body := t.Cells
	if len(t.ColHeaders) == 0 || equalRows(t.Cells[0], header) {
		body = t.Cells[1:]
	}
	for _, row := range body {
		vals := make([]string, len(header))
		copy(vals, row)
		lines = append(lines, pipeRow(vals))
	}

	if len(t.Footnotes) > 0 {
		lines = append(lines, "")
		for i, fn := range t.Footnotes {
			lines = append(lines, fmt.Sprintf("^%d: %s", i+1, fn))
		}
	}
	if t.Description != "" {
		lines = append(lines, "", "*"+t.Description+"*")
	}
	return strings.Join(lines, "\n") + "\n"
}

func pipeRow(cells []string) string {
	escaped := make([]string, len(cells))
	for i, c := range cells {
		escaped[i] = strings.ReplaceAll(c, "|", `\|`)
	}
	return "| " + strings.Join(escaped, " | ") + " |"
}

func equalRows(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// WriteVisualMirrors writes <doc>_visual_segments.json and
// <doc>_visual_summary.csv under prefix.
func WriteVisualMirrors(ctx context.Context, sink Sink, prefix, docID string, images []*ImageData) error {
	if images == nil {
		images = []*ImageData{}
	}
	payload := struct {
		BookID        string       `json:"book_id"`
		PDFPath       string       `json:"pdf_path"`
		TotalSegments int          `json:"total_segments"`
		Segments      []*ImageData `json:"segments"`
	}{docID, docID + ".pdf", len(images), images}

	js, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal visual segments: %w", err)
	}
	if err := sink.Put(ctx, path.Join(prefix, docID+"_visual_segments.json"), js); err != nil {
		return fmt.Errorf("write visual segments: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"segment_id", "page", "type", "confidence", "figure_number", "caption", "linked_concepts", "summary"})
	for _, seg := range images {
		_ = w.Write([]string{
			seg.SegmentID,
			strconv.Itoa(seg.PageNo),
			seg.SegmentType,
			strconv.FormatFloat(seg.ClassificationConfidence, 'f', -1, 64),
			seg.FigureNumber,
			truncateRunes(seg.CaptionText, 100),
			strconv.Itoa(len(seg.LinkedConceptIDs)),
			truncateRunes(seg.Summary, 100),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode visual summary: %w", err)
	}
	return sink.Put(ctx, path.Join(prefix, docID+"_visual_summary.csv"), buf.Bytes())
}

// Package enrich calls the optional table, image and formula analyzers for
// each matching chunk and records their payloads in side tables keyed by
// chunk id.
package enrich

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// Module names used as enrichment status keys.
const (
	ModuleTable   = "table"
	ModuleImage   = "image"
	ModuleFormula = "formula"
)

// Status values.
const (
	StatusOK      = "ok"
	StatusEmpty   = "empty"
	StatusSkipped = "skipped"
	StatusError   = "error"
)

// Status is the outcome of one analyzer for one chunk.
type Status struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// TableRequest is what a TableAnalyzer sees of a table chunk.
type TableRequest struct {
	ImagePath string
	HTML      string
	Caption   string
	Anchor    Anchor
}

// ImageRequest is what an ImageAnalyzer sees of an image chunk.
type ImageRequest struct {
	ImagePath string
	Caption   string
	Anchor    Anchor
}

// FormulaRequest is what a FormulaAnalyzer sees of a formula chunk.
type FormulaRequest struct {
	Text   string
	Anchor Anchor
}

// TableAnalyzer extracts a cell grid. A nil result with a nil error means
// no table was found.
type TableAnalyzer interface {
	AnalyzeTable(ctx context.Context, req TableRequest) (*TableData, error)
}

// ImageAnalyzer classifies or describes a visual.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, req ImageRequest) (*ImageData, error)
}

// FormulaAnalyzer canonicalizes formula text.
type FormulaAnalyzer interface {
	AnalyzeFormula(ctx context.Context, req FormulaRequest) (*FormulaData, error)
}

// Enricher runs whichever analyzers are configured. A nil analyzer is
// treated as unavailable for the whole run.
type Enricher struct {
	Tables   TableAnalyzer
	Images   ImageAnalyzer
	Formulas FormulaAnalyzer

	// VisualDir holds rendered crops as VisualDir/<doc_id>/<type>_p<page>_<id>.png.
	VisualDir string
	Stats     *Stats
}

// Run annotates every table, image and formula unit of one document. It
// never fails; per-unit problems become statuses. Cancellation stops
// further analyzer calls and marks the remaining units skipped.
func (e *Enricher) Run(ctx context.Context, docID string, units []doctree.Unit) *Annotations {
	ann := NewAnnotations()
	var (
		hasTables   = e.Tables != nil
		hasImages   = e.Images != nil
		hasFormulas = e.Formulas != nil
	)

	for i := range units {
		u := &units[i]
		module := moduleFor(u.Type)
		if module == "" {
			continue
		}
		id := u.SegmentID

		if err := ctx.Err(); err != nil {
			ann.setStatus(id, module, StatusSkipped, "cancelled")
			continue
		}

		switch module {
		case ModuleTable:
			if !hasTables {
				ann.setStatus(id, module, StatusSkipped, "table_analyzer_unavailable")
				continue
			}
			e.table(ctx, docID, u, ann)
		case ModuleImage:
			if !hasImages {
				ann.setStatus(id, module, StatusSkipped, "image_analyzer_unavailable")
				continue
			}
			e.image(ctx, docID, u, ann)
		case ModuleFormula:
			if !hasFormulas {
				ann.setStatus(id, module, StatusSkipped, "formula_analyzer_unavailable")
				continue
			}
			e.formula(ctx, docID, u, ann)
		}
	}
	return ann
}

func moduleFor(unitType string) string {
	switch unitType {
	case doctree.UnitTable:
		return ModuleTable
	case doctree.UnitImage:
		return ModuleImage
	case doctree.UnitFormula:
		return ModuleFormula
	}
	return ""
}

func (e *Enricher) table(ctx context.Context, docID string, u *doctree.Unit, ann *Annotations) {
	anchor := AnchorFor(u, docID)
	path := ResolveVisualPath(u, docID, e.VisualDir)
	if path == "" && u.TableHTML == "" {
		ann.setStatus(u.SegmentID, ModuleTable, StatusSkipped, "local_image_not_found")
		return
	}
	req := TableRequest{ImagePath: path, HTML: u.TableHTML, Caption: captionOf(u), Anchor: anchor}

	var data *TableData
	err := e.call(ModuleTable, func() (err error) {
		data, err = e.Tables.AnalyzeTable(ctx, req)
		return err
	})
	if err != nil {
		ann.setStatus(u.SegmentID, ModuleTable, StatusError, "extract_failed:"+errorTypeName(err))
		return
	}
	if data == nil {
		ann.setStatus(u.SegmentID, ModuleTable, StatusEmpty, "no_table_payload")
		return
	}
	data.SourceChunkID = anchor.SourceChunkID
	data.PageStart, data.PageEnd = anchor.PageStart, anchor.PageEnd
	data.HeadingPath = anchor.HeadingPath
	ann.Tables[u.SegmentID] = data
	ann.tableOrder = append(ann.tableOrder, u.SegmentID)
	ann.setStatus(u.SegmentID, ModuleTable, StatusOK, "")
}

func (e *Enricher) image(ctx context.Context, docID string, u *doctree.Unit, ann *Annotations) {
	anchor := AnchorFor(u, docID)
	path := ResolveVisualPath(u, docID, e.VisualDir)
	if path == "" {
		ann.setStatus(u.SegmentID, ModuleImage, StatusSkipped, "local_image_not_found")
		return
	}
	req := ImageRequest{ImagePath: path, Caption: captionOf(u), Anchor: anchor}

	var data *ImageData
	err := e.call(ModuleImage, func() (err error) {
		data, err = e.Images.AnalyzeImage(ctx, req)
		return err
	})
	if err != nil {
		ann.setStatus(u.SegmentID, ModuleImage, StatusError, "analyze_failed:"+errorTypeName(err))
		return
	}
	if data == nil {
		ann.setStatus(u.SegmentID, ModuleImage, StatusEmpty, "no_image_payload")
		return
	}
	data.SourceChunkID = anchor.SourceChunkID
	data.PageNo = anchor.PageStart
	data.PageStart, data.PageEnd = anchor.PageStart, anchor.PageEnd
	data.HeadingPath = anchor.HeadingPath
	ann.Images[u.SegmentID] = data
	ann.imageOrder = append(ann.imageOrder, u.SegmentID)
	ann.setStatus(u.SegmentID, ModuleImage, StatusOK, "")
}

func (e *Enricher) formula(ctx context.Context, docID string, u *doctree.Unit, ann *Annotations) {
	text := strings.TrimSpace(u.Content)
	if text == "" {
		ann.setStatus(u.SegmentID, ModuleFormula, StatusSkipped, "empty_formula_text")
		return
	}
	anchor := AnchorFor(u, docID)
	req := FormulaRequest{Text: u.Content, Anchor: anchor}

	var data *FormulaData
	err := e.call(ModuleFormula, func() (err error) {
		data, err = e.Formulas.AnalyzeFormula(ctx, req)
		return err
	})
	if err != nil {
		ann.setStatus(u.SegmentID, ModuleFormula, StatusError, "extract_failed:"+errorTypeName(err))
		return
	}
	if data == nil {
		ann.setStatus(u.SegmentID, ModuleFormula, StatusEmpty, "no_formula_payload")
		return
	}
	data.SourceChunkID = anchor.SourceChunkID
	data.PageStart, data.PageEnd = anchor.PageStart, anchor.PageEnd
	data.HeadingPath = anchor.HeadingPath
	if anchor.ChapterNumber != "" && (data.ChapterNumber == "" || data.ChapterNumber == doctree.UnknownChapter) {
		data.ChapterNumber = anchor.ChapterNumber
	}
	if anchor.ChapterTitle != "" && data.ChapterTitle == "" {
		data.ChapterTitle = anchor.ChapterTitle
	}
	ann.Formulas[u.SegmentID] = data
	ann.formulaOrder = append(ann.formulaOrder, u.SegmentID)
	ann.setStatus(u.SegmentID, ModuleFormula, StatusOK, "")
}

// call times fn, records it in Stats and converts a panic into an error so
// one misbehaving analyzer cannot take down the document.
func (e *Enricher) call(module string, fn func() error) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
		if e.Stats != nil {
			e.Stats.Record(module, time.Since(start).Milliseconds(), err != nil)
		}
	}()
	return fn()
}

// PanicError wraps a recovered analyzer panic.
type PanicError struct {
	Value any
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("analyzer panic: %v", p.Value)
}

// errorTypeName returns the bare type name of err ("PathError", "PanicError").
func errorTypeName(err error) string {
	name := fmt.Sprintf("%T", err)
	name = strings.TrimLeft(name, "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func captionOf(u *doctree.Unit) string {
	if u.Caption != nil {
		return *u.Caption
	}
	if u.Type == doctree.UnitTable {
		return strings.TrimSpace(u.Content)
	}
	return ""
}

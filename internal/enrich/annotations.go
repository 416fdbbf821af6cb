package enrich

import "github.com/dgallion1/docgraph/internal/doctree"

// TableData is a structured table payload.
type TableData struct {
	SegmentID   string     `json:"segment_id"`
	TableNumber string     `json:"table_number,omitempty"`
	Caption     string     `json:"caption,omitempty"`
	ColHeaders  []string   `json:"col_headers,omitempty"`
	Cells       [][]string `json:"cells"`
	Footnotes   []string   `json:"footnotes,omitempty"`
	Description string     `json:"description,omitempty"`
	SchemaHint  string     `json:"table_schema_hint,omitempty"`

	SourceChunkID string `json:"source_chunk_id"`
	PageStart     int    `json:"page_start"`
	PageEnd       int    `json:"page_end"`
	HeadingPath   string `json:"heading_path"`
}

// ImageData is a visual segment payload.
type ImageData struct {
	SegmentID                string   `json:"segment_id"`
	SegmentType              string   `json:"segment_type"`
	ImagePath                string   `json:"image_path"`
	Width                    int      `json:"width,omitempty"`
	Height                   int      `json:"height,omitempty"`
	CaptionText              string   `json:"caption_text,omitempty"`
	FigureNumber             string   `json:"figure_number,omitempty"`
	OCRText                  string   `json:"ocr_text,omitempty"`
	Summary                  string   `json:"summary,omitempty"`
	ClassificationConfidence float64  `json:"classification_confidence"`
	LinkedConceptIDs         []string `json:"linked_concept_ids,omitempty"`

	SourceChunkID string `json:"source_chunk_id"`
	PageNo        int    `json:"page_no"`
	PageStart     int    `json:"page_start"`
	PageEnd       int    `json:"page_end"`
	HeadingPath   string `json:"heading_path"`
}

// Variable is a symbol appearing in a formula.
type Variable struct {
	Symbol   string `json:"symbol"`
	Meaning  string `json:"meaning"`
	Inferred bool   `json:"inferred"`
	Source   string `json:"source"`
}

// FormulaData is canonicalized formula metadata.
type FormulaData struct {
	SegmentID      string        `json:"segment_id"`
	BookID         string        `json:"book_id"`
	ChapterNumber  string        `json:"chapter_number"`
	ChapterTitle   string        `json:"chapter_title,omitempty"`
	TextContent    string        `json:"text_content"`
	FormulaTextRaw string        `json:"formula_text_raw"`
	EquationNumber string        `json:"equation_number,omitempty"`
	CanonicalKey   string        `json:"canonical_formula_key"`
	Variables      []Variable    `json:"variables"`
	UsageType      string        `json:"usage_type"`
	Confidence     float64       `json:"confidence"`
	BBox           *doctree.BBox `json:"bbox,omitempty"`

	SourceChunkID string `json:"source_chunk_id"`
	PageStart     int    `json:"page_start"`
	PageEnd       int    `json:"page_end"`
	HeadingPath   string `json:"heading_path"`
}

// Annotations holds every enrichment result of one document, keyed by
// chunk (segment) id. Order slices keep emission order for mirrors.
type Annotations struct {
	Status   map[string]map[string]Status
	Tables   map[string]*TableData
	Images   map[string]*ImageData
	Formulas map[string]*FormulaData

	tableOrder   []string
	imageOrder   []string
	formulaOrder []string
}

func NewAnnotations() *Annotations {
	return &Annotations{
		Status:   make(map[string]map[string]Status),
		Tables:   make(map[string]*TableData),
		Images:   make(map[string]*ImageData),
		Formulas: make(map[string]*FormulaData),
	}
}

func (a *Annotations) setStatus(chunkID, module, status, reason string) {
	m := a.Status[chunkID]
	if m == nil {
		m = make(map[string]Status)
		a.Status[chunkID] = m
	}
	m[module] = Status{Status: status, Reason: reason}
}

// StatusOf returns the status one module recorded for a chunk.
func (a *Annotations) StatusOf(chunkID, module string) (Status, bool) {
	s, ok := a.Status[chunkID][module]
	return s, ok
}

// TableList returns table payloads in emission order.
func (a *Annotations) TableList() []*TableData {
	out := make([]*TableData, 0, len(a.tableOrder))
	for _, id := range a.tableOrder {
		out = append(out, a.Tables[id])
	}
	return out
}

// ImageList returns image payloads in emission order.
func (a *Annotations) ImageList() []*ImageData {
	out := make([]*ImageData, 0, len(a.imageOrder))
	for _, id := range a.imageOrder {
		out = append(out, a.Images[id])
	}
	return out
}

// FormulaList returns formula payloads in emission order.
func (a *Annotations) FormulaList() []*FormulaData {
	out := make([]*FormulaData, 0, len(a.formulaOrder))
	for _, id := range a.formulaOrder {
		out = append(out, a.Formulas[id])
	}
	return out
}

// EquationNumbers maps formula chunk ids to their enriched equation number.
func (a *Annotations) EquationNumbers() map[string]string {
	out := make(map[string]string, len(a.Formulas))
	for id, f := range a.Formulas {
		if f != nil && f.EquationNumber != "" {
			out[id] = f.EquationNumber
		}
	}
	return out
}

// Unit is a chunk with its enrichment payloads attached, as emitted.
type Unit struct {
	doctree.Unit
	TableData        *TableData        `json:"table_data,omitempty"`
	ImageData        *ImageData        `json:"image_data,omitempty"`
	Formula          *FormulaData      `json:"synapta_formula,omitempty"`
	EnrichmentStatus map[string]Status `json:"enrichment_status,omitempty"`
}

// Attach joins units with their side-table entries for output.
func (a *Annotations) Attach(units []doctree.Unit) []Unit {
	out := make([]Unit, len(units))
	for i, u := range units {
		out[i] = Unit{Unit: u}
		if a == nil {
			continue
		}
		id := u.SegmentID
		out[i].TableData = a.Tables[id]
		out[i].ImageData = a.Images[id]
		out[i].Formula = a.Formulas[id]
		out[i].EnrichmentStatus = a.Status[id]
	}
	return out
}

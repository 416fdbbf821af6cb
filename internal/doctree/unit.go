package doctree

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// Unit types beyond the block types.
const (
	UnitHeading = "heading"
	UnitText    = "text"
	UnitTable   = "table"
	UnitImage   = "image"
	UnitFormula = "formula"
)

// Numbering is a question number found at the start of a text.
type Numbering struct {
	Raw        string `json:"raw"`
	Normalized string `json:"normalized"`
	Parent     string `json:"parent"`
	Subpart    string `json:"subpart,omitempty"`
}

// Reference is an inline mention of a numbered object ("Figure 3.2").
type Reference struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Raw      string `json:"raw"`
	TargetID string `json:"ref_target_id,omitempty"`
}

// Unit is an emitted element or chunk.
type Unit struct {
	ID            string      `json:"id,omitempty"`
	SegmentID     string      `json:"segment_id"`
	HeadingPath   string      `json:"heading_path"`
	Content       string      `json:"content"`
	Type          string      `json:"type"`
	SegmentType   string      `json:"segment_type"`
	PageRange     []int       `json:"page_range"`
	PageSpan      []int       `json:"page_span"`
	BBox          []float64   `json:"bbox"`
	TaxonomyPath  []string    `json:"taxonomy_path"`
	Confidence    float64     `json:"confidence"`
	Caption       *string     `json:"caption,omitempty"`
	ImagePaths    []string    `json:"image_paths,omitempty"`
	TableHTML     string      `json:"table_html,omitempty"`
	References    []Reference `json:"references"`
	PrevSegmentID *string     `json:"prev_segment_id"`
	NextSegmentID *string     `json:"next_segment_id"`

	BookID        string  `json:"book_id,omitempty"`
	DocURI        *string `json:"doc_uri"`
	ChapterNumber string  `json:"chapter_number,omitempty"`
	ChapterMain   string  `json:"chapter_main,omitempty"`
	ChapterTitle  string  `json:"chapter_title,omitempty"`

	QAZoneType    string     `json:"qa_zone_type,omitempty"`
	CandidateRole string     `json:"candidate_role,omitempty"`
	Numbering     *Numbering `json:"numbering,omitempty"`

	// RawType carries the source block's raw type for title detection; not emitted.
	RawType string `json:"-"`
}

// EffectiveType is the segment type, falling back to the coarse type.
func (u *Unit) EffectiveType() string {
	if u.SegmentType != "" {
		return u.SegmentType
	}
	return u.Type
}

// Box returns the unit's bounding box, if any.
func (u *Unit) Box() *BBox {
	if len(u.BBox) < 4 {
		return nil
	}
	return &BBox{X0: u.BBox[0], Y0: u.BBox[1], X1: u.BBox[2], Y1: u.BBox[3]}
}

// PageBounds returns the 1-based first and last page of the unit.
func (u *Unit) PageBounds() (int, int) {
	if len(u.PageSpan) >= 2 {
		return max(1, u.PageSpan[0]+1), max(1, u.PageSpan[1]+1)
	}
	if len(u.PageSpan) == 1 {
		p := max(1, u.PageSpan[0]+1)
		return p, p
	}
	if len(u.PageRange) > 0 {
		lo, hi := u.PageRange[0], u.PageRange[0]
		for _, p := range u.PageRange[1:] {
			lo = min(lo, p)
			hi = max(hi, p)
		}
		return max(1, lo+1), max(1, hi+1)
	}
	return 1, 1
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// StableID derives the segment id from (type, heading path, page span, content).
// Two units agreeing on all four always share an id.
func StableID(segType, headingPath string, pageSpan []int, content string) string {
	if pageSpan == nil {
		pageSpan = []int{}
	}
	key, _ := json.Marshal(struct {
		Type        string `json:"type"`
		HeadingPath string `json:"heading_path"`
		PageSpan    []int  `json:"page_span"`
		Content     string `json:"content"`
	}{segType, headingPath, pageSpan, content})
	return "seg_" + ContentHashHex(key)[:12]
}

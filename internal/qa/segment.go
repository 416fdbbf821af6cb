// Package qa builds the question/answer and derivation graph of a book
// from its chunks, and packages it as the QA and KG sidecars.
package qa

import (
	"github.com/dgallion1/docgraph/internal/concepts"
	"github.com/dgallion1/docgraph/internal/enrich"
)

// Segment types.
const (
	TypeQuestion      = "question"
	TypeSolution      = "solution"
	TypeDerivation    = "derivation"
	TypeWorkedExample = "worked_example"
	TypeCalculation   = "calculation"
	TypeReferenceStub = "reference_stub"
	TypeFormula       = "formula"
	TypeConcept       = "concept"
)

// Edge types.
const (
	EdgeAnswerOf        = "ANSWER_OF"
	EdgeReferences      = "REFERENCES"
	EdgeUsesFormula     = "USES_FORMULA"
	EdgeExplains        = "EXPLAINS"
	EdgeDefines         = "DEFINES"
	EdgeWorkedExampleOf = "WORKED_EXAMPLE_OF"
)

// Source match methods.
const (
	MatchBBoxOverlap    = "bbox_overlap"
	MatchNearestY       = "nearest_y_fallback"
	MatchPrevPage       = "prev_page_fallback"
	MatchFirstCandidate = "first_page_candidate"
	MatchSeeded         = "source_chunk_seeded"
)

// Question solution status.
const (
	StatusLinked   = "linked"
	StatusNotFound = "not_found_in_book"
)

var (
	targetTypes = map[string]bool{
		TypeQuestion: true, TypeSolution: true, TypeDerivation: true,
		TypeWorkedExample: true, TypeCalculation: true, TypeReferenceStub: true,
	}
	sourceMatchTypes = map[string]bool{
		TypeQuestion: true, TypeSolution: true, TypeDerivation: true,
		TypeWorkedExample: true, TypeCalculation: true,
	}
)

// PageBox is a segment bounding box on a 1-based page.
type PageBox struct {
	Page int     `json:"page"`
	X0   float64 `json:"x0"`
	Y0   float64 `json:"y0"`
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
}

// Segment is a typed graph node. The anchor fields are shared by every
// type; the rest are set only for the types named in their group.
type Segment struct {
	SegmentID     string          `json:"segment_id"`
	SegmentType   string          `json:"segment_type"`
	BookID        string          `json:"book_id"`
	ChapterNumber string          `json:"chapter_number"`
	ChapterTitle  *string         `json:"chapter_title"`
	PageStart     int             `json:"page_start"`
	PageEnd       int             `json:"page_end"`
	BBox          *PageBox        `json:"bbox"`
	TextContent   string          `json:"text_content"`
	ContextBefore *string         `json:"context_before"`
	ContextAfter  *string         `json:"context_after"`
	HeadingPath   string          `json:"heading_path"`
	PrevSegmentID *string         `json:"prev_segment_id"`
	NextSegmentID *string         `json:"next_segment_id"`
	DocURI        *string         `json:"doc_uri"`
	ConceptLinks  []concepts.Link `json:"concept_links"`
	NeedsReview   bool            `json:"needs_human_review"`

	// question
	QuestionNumber string `json:"question_number,omitempty"`
	QuestionKey    string `json:"question_key,omitempty"`
	SolutionStatus string `json:"solution_status,omitempty"`

	// solution
	SolutionSteps         []string `json:"solution_steps,omitempty"`
	SolutionKey           string   `json:"solution_key,omitempty"`
	SolutionForQuestionID string   `json:"solution_for_question_id,omitempty"`

	// derivation, calculation, worked_example; solutions reuse the formula refs
	Steps                 []string `json:"steps,omitempty"`
	ReferencedFormulaIDs  []string `json:"referenced_formula_ids,omitempty"`
	DerivedFromFormulaIDs []string `json:"derived_from_formula_ids,omitempty"`
	DerivedToFormulaID    string   `json:"derived_to_formula_id,omitempty"`
	LinkType              string   `json:"link_type,omitempty"`

	// formula
	FormulaLatex   string            `json:"formula_latex,omitempty"`
	EquationNumber string            `json:"equation_number,omitempty"`
	ShortMeaning   string            `json:"short_meaning,omitempty"`
	UsageType      string            `json:"usage_type,omitempty"`
	CanonicalKey   string            `json:"canonical_formula_key,omitempty"`
	Variables      []enrich.Variable `json:"variables,omitempty"`

	// reference_stub
	RefType         string `json:"ref_type,omitempty"`
	RefIDText       string `json:"ref_id_text,omitempty"`
	TargetUnknown   bool   `json:"target_unknown,omitempty"`
	SourceSegmentID string `json:"source_segment_id,omitempty"`
	Snippet         string `json:"snippet,omitempty"`

	QualityWarnings []string `json:"quality_warnings,omitempty"`

	SourceChunkID            string `json:"source_chunk_id,omitempty"`
	SourceChunkHeadingPath   string `json:"source_chunk_heading_path,omitempty"`
	SourceMatchMethod        string `json:"source_match_method,omitempty"`
	SourceChunkCandidateRole string `json:"source_chunk_candidate_role,omitempty"`
	SourceChunkQAZoneType    string `json:"source_chunk_qa_zone_type,omitempty"`
}

func (s *Segment) NodeID() string   { return s.SegmentID }
func (s *Segment) NodeType() string { return s.SegmentType }

// Concept is a concept node referenced by a segment or formula.
type Concept struct {
	SegmentID   string   `json:"segment_id"`
	SegmentType string   `json:"segment_type"`
	ConceptID   string   `json:"concept_id"`
	ConceptName *string  `json:"concept_name"`
	Level       *int     `json:"level"`
	Tags        []string `json:"tags"`
	Rationale   *string  `json:"rationale"`
}

func (c *Concept) NodeID() string   { return c.SegmentID }
func (c *Concept) NodeType() string { return c.SegmentType }

func newConcept(id string, l *concepts.Link) *Concept {
	c := &Concept{SegmentID: id, SegmentType: TypeConcept, ConceptID: id, Tags: []string{}}
	if l != nil {
		c.ConceptName = l.ConceptName
		c.Level = l.Level
		c.Rationale = l.Rationale
		if l.Tags != nil {
			c.Tags = l.Tags
		}
	}
	return c
}

// Node is anything that appears in the KG node list.
type Node interface {
	NodeID() string
	NodeType() string
}

// AnchorMeta records how an edge was found.
type AnchorMeta struct {
	Method  string `json:"method,omitempty"`
	Page    int    `json:"page,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Edge is a typed, directed graph edge.
type Edge struct {
	EdgeID         string     `json:"edge_id"`
	SourceID       string     `json:"source_id"`
	TargetID       string     `json:"target_id"`
	EdgeType       string     `json:"edge_type"`
	Strength       float64    `json:"strength"`
	LinkMethod     string     `json:"link_method"`
	AnchorMetadata AnchorMeta `json:"anchor_metadata"`
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

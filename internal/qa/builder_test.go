package qa

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dgallion1/docgraph/internal/classify"
	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/enrich"
)

// fakeExtractor returns canned segments per page.
type fakeExtractor struct {
	pages map[int][]Segment
	fail  map[int]bool
	seen  []PageInput
}

func (f *fakeExtractor) ExtractPage(_ context.Context, p PageInput) ([]Segment, error) {
	f.seen = append(f.seen, p)
	if f.fail[p.PageNum] {
		return nil, errors.New("page failed")
	}
	return f.pages[p.PageNum], nil
}

func textUnit(id, content, role, zone string, box []float64) doctree.Unit {
	return doctree.Unit{
		SegmentID:     id,
		Type:          doctree.UnitText,
		SegmentType:   "text",
		Content:       content,
		HeadingPath:   "Chapter 2 Markets > Problem Set",
		PageRange:     []int{0},
		PageSpan:      []int{0, 0},
		BBox:          box,
		CandidateRole: role,
		QAZoneType:    zone,
		ChapterMain:   "2",
		Numbering:     &doctree.Numbering{Raw: "1", Normalized: "1"},
	}
}

func textBlock(id string, box doctree.BBox, text string) doctree.ContentBlock {
	return doctree.ContentBlock{ID: id, Type: doctree.BlockText, PageIdx: 0, Text: text, BBox: &box}
}

func builderFixture() (Input, *fakeExtractor) {
	qText := "Question 1 Calculate the equilibrium price when demand equals supply in this market."
	sText := "Solution 1 Setting demand equal to supply we find P = 10 and therefore Q = 20."
	cText := "Using Equation 2.1 we compute the price level P = 10 for the market."

	in := Input{
		DocID:  "econ",
		DocURI: "s3://books/econ.pdf",
		Units: []doctree.Unit{
			textUnit("seg_q", qText, classify.RoleQuestion, classify.ZoneProblemSet, []float64{50, 100, 500, 160}),
			textUnit("seg_s", sText, classify.RoleSolution, classify.ZoneProblemSet, []float64{50, 300, 500, 380}),
			textUnit("seg_c", cText, classify.RoleCalculation, classify.ZoneProblemSet, []float64{50, 500, 500, 560}),
		},
		Blocks: []doctree.ContentBlock{
			textBlock("b0", doctree.BBox{X0: 50, Y0: 100, X1: 500, Y1: 160}, qText),
			textBlock("b1", doctree.BBox{X0: 50, Y0: 300, X1: 500, Y1: 380}, sText),
			textBlock("b2", doctree.BBox{X0: 50, Y0: 500, X1: 500, Y1: 560}, cText),
		},
		PageSizes: doctree.PageSizes{0: {Width: 612, Height: 792}},
		Formulas: []*enrich.FormulaData{
			{SegmentID: "seg_f", EquationNumber: "(2.1)", FormulaTextRaw: "P = a - bQ", TextContent: "P = a - bQ", PageStart: 1, PageEnd: 1},
			{SegmentID: "seg_unused", EquationNumber: "(9.9)", PageStart: 1, PageEnd: 1},
		},
	}

	ext := &fakeExtractor{pages: map[int][]Segment{
		1: {
			{SegmentID: "question_p1_a", SegmentType: TypeQuestion, ChapterNumber: "unknown", PageStart: 1, PageEnd: 1,
				BBox: &PageBox{Page: 1, X0: 60, Y0: 105, X1: 480, Y1: 150}, TextContent: qText},
			{SegmentID: "solution_p1_b", SegmentType: TypeSolution, ChapterNumber: "unknown", PageStart: 1, PageEnd: 1,
				BBox: &PageBox{Page: 1, X0: 60, Y0: 310, X1: 480, Y1: 370}, TextContent: sText},
			{SegmentID: "calculation_p1_c", SegmentType: TypeCalculation, ChapterNumber: "unknown", PageStart: 1, PageEnd: 1,
				BBox: &PageBox{Page: 1, X0: 60, Y0: 505, X1: 480, Y1: 550}, TextContent: cText},
		},
	}}
	return in, ext
}

func TestBuild_PairsLinksAndMatchesSources(t *testing.T) {
	in, ext := builderFixture()
	b := &Builder{Extractor: ext, Linker: &FormulaLinker{}}
	p := b.Build(context.Background(), in)

	if p.Version != QAVersion || p.DocID != "econ" {
		t.Fatalf("unexpected header %q %q", p.Version, p.DocID)
	}
	if p.Stats.Error != "" {
		t.Fatalf("unexpected error %q", p.Stats.Error)
	}
	if len(ext.seen) != 1 || ext.seen[0].Width != 612 || ext.seen[0].Section != SectionProblemSet {
		t.Fatalf("unexpected page inputs %+v", ext.seen)
	}
	if len(p.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(p.Segments))
	}

	byID := make(map[string]*Segment)
	for _, s := range p.Segments {
		byID[s.SegmentID] = s
	}
	q, sol, calc := byID["question_p1_a"], byID["solution_p1_b"], byID["calculation_p1_c"]
	if q == nil || sol == nil || calc == nil {
		t.Fatalf("missing segments: %v", byID)
	}

	if q.SourceChunkID != "seg_q" || q.SourceMatchMethod != MatchBBoxOverlap {
		t.Errorf("expected seg_q via bbox overlap, got %q via %q", q.SourceChunkID, q.SourceMatchMethod)
	}
	if q.ChapterNumber != "2" {
		t.Errorf("expected chapter inherited from chunk, got %q", q.ChapterNumber)
	}
	if q.HeadingPath != "Chapter 2 Markets > Problem Set" {
		t.Errorf("expected heading path from chunk, got %q", q.HeadingPath)
	}
	if q.QuestionKey != "2|problem_set|1" || sol.SolutionKey != "2|problem_set|1" {
		t.Errorf("unexpected keys %q / %q", q.QuestionKey, sol.SolutionKey)
	}
	if sol.SolutionForQuestionID != q.SegmentID {
		t.Errorf("expected solution paired to %q, got %q", q.SegmentID, sol.SolutionForQuestionID)
	}
	if q.SolutionStatus != StatusLinked {
		t.Errorf("expected linked status, got %q", q.SolutionStatus)
	}
	if q.DocURI == nil || *q.DocURI != "s3://books/econ.pdf" {
		t.Errorf("expected doc uri on segment, got %v", q.DocURI)
	}
	if q.NextSegmentID == nil || *q.NextSegmentID != "solution_p1_b" {
		t.Errorf("expected next segment solution_p1_b, got %v", q.NextSegmentID)
	}
	if calc.ConceptLinks == nil {
		t.Error("expected concept_links normalized to empty slice")
	}

	var answer, uses *Edge
	for i := range p.Edges {
		switch p.Edges[i].EdgeType {
		case EdgeAnswerOf:
			answer = &p.Edges[i]
		case EdgeUsesFormula:
			uses = &p.Edges[i]
		}
	}
	if answer == nil || answer.Strength != 1.0 || answer.AnchorMetadata.Method != "source_key_exact" {
		t.Errorf("expected exact ANSWER_OF edge, got %+v", answer)
	}
	if uses == nil || uses.SourceID != "calculation_p1_c" || uses.TargetID != "seg_f" {
		t.Errorf("expected USES_FORMULA calc->seg_f, got %+v", uses)
	}

	if len(p.FormulaRefs) != 1 || p.FormulaRefs[0].SegmentID != "seg_f" {
		t.Fatalf("expected only the referenced formula, got %d refs", len(p.FormulaRefs))
	}
	if p.FormulaRefs[0].FormulaLatex != "P = a - bQ" {
		t.Errorf("expected formula latex backfilled, got %q", p.FormulaRefs[0].FormulaLatex)
	}

	if p.Stats.SourceMatchRate != 1.0 || p.Stats.SourceMatched != 3 {
		t.Errorf("expected full source match, got %d at %v", p.Stats.SourceMatched, p.Stats.SourceMatchRate)
	}
	if p.Stats.CalculationCount != 1 || p.Stats.SegmentsOut != 3 || p.Stats.EdgesOut != len(p.Edges) {
		t.Errorf("unexpected stats %+v", p.Stats)
	}
	if p.Stats.CandidateChunks != 3 || p.Stats.TotalChunks != 3 {
		t.Errorf("unexpected chunk counts %+v", p.Stats)
	}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := Validate(data, DefaultMinMatchRate); err != nil {
		t.Errorf("expected payload to validate, got %v", err)
	}
}

func TestBuild_NoExtractor(t *testing.T) {
	in, _ := builderFixture()
	p := (&Builder{}).Build(context.Background(), in)
	if p.Stats.Error != "extractor_unavailable" {
		t.Errorf("expected extractor_unavailable, got %q", p.Stats.Error)
	}
	if p.Segments == nil || p.Edges == nil || p.FormulaRefs == nil || p.ConceptRefs == nil {
		t.Error("expected empty, non-nil lists")
	}
	if p.Stats.TotalChunks != 3 {
		t.Errorf("expected total_chunks 3, got %d", p.Stats.TotalChunks)
	}
}

func TestBuild_NoCandidates(t *testing.T) {
	p := NewBuilder(nil).Build(context.Background(), Input{
		DocID: "empty",
		Units: []doctree.Unit{{SegmentID: "seg_h", Type: doctree.UnitHeading, Content: "Chapter 1"}},
	})
	if p.Stats.CandidateChunks != 0 || len(p.Segments) != 0 {
		t.Errorf("expected empty payload, got %+v", p.Stats)
	}
	if p.Config.TriggerMode != "candidate" || p.Config.LLMMode != "off" {
		t.Errorf("unexpected config %+v", p.Config)
	}
}

func TestBuild_CountsPageErrors(t *testing.T) {
	in, ext := builderFixture()
	ext.fail = map[int]bool{1: true}
	p := (&Builder{Extractor: ext}).Build(context.Background(), in)
	if p.Stats.PageErrors != 1 {
		t.Errorf("expected 1 page error, got %d", p.Stats.PageErrors)
	}
	if len(p.Segments) != 0 {
		t.Errorf("expected no segments, got %d", len(p.Segments))
	}
}

func TestBuild_CancelledContext(t *testing.T) {
	in, ext := builderFixture()
	ext.fail = map[int]bool{1: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := (&Builder{Extractor: ext}).Build(ctx, in)
	if p.Stats.Error != "cancelled" {
		t.Errorf("expected cancelled, got %q", p.Stats.Error)
	}
}

func TestBuildKG_DedupesNodes(t *testing.T) {
	in, ext := builderFixture()
	p := (&Builder{Extractor: ext, Linker: &FormulaLinker{}}).Build(context.Background(), in)
	p.FormulaRefs = append(p.FormulaRefs, p.FormulaRefs[0])

	kg := BuildKG(p)
	if kg.Version != KGVersion {
		t.Errorf("expected %q, got %q", KGVersion, kg.Version)
	}
	if kg.Stats.NodeCount != 4 {
		t.Errorf("expected 4 nodes, got %d", kg.Stats.NodeCount)
	}
	if kg.Stats.NodeTypeCounts[TypeFormula] != 1 {
		t.Errorf("expected 1 formula node, got %d", kg.Stats.NodeTypeCounts[TypeFormula])
	}
	data, err := json.Marshal(kg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := ValidateKG(data); err != nil {
		t.Errorf("expected kg to validate, got %v", err)
	}
}

func TestBuild_HeadingLikeSolutionNeverPaired(t *testing.T) {
	in, ext := builderFixture()
	ext.pages[1][1].TextContent = "2.1 The Money Market"
	p := (&Builder{Extractor: ext, Linker: &FormulaLinker{}}).Build(context.Background(), in)

	for _, e := range p.Edges {
		if e.EdgeType == EdgeAnswerOf {
			t.Errorf("expected no ANSWER_OF edge, got %+v", e)
		}
	}
	var q *Segment
	for _, s := range p.Segments {
		switch s.SegmentID {
		case "solution_p1_b":
			t.Errorf("expected heading-like solution pruned, got %+v", s)
		case "question_p1_a":
			q = s
		}
	}
	if q == nil || q.SolutionStatus != StatusNotFound {
		t.Errorf("expected unanswered question, got %+v", q)
	}
	if n := p.Stats.SolutionPrune.QuestionLike + p.Stats.SolutionPrune.HeadingLike; n != 1 {
		t.Errorf("expected 1 pruned solution, got %+v", p.Stats.SolutionPrune)
	}
}

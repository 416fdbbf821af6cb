package qa

import (
	"context"
	"sort"

	"github.com/dgallion1/docgraph/internal/concepts"
	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/enrich"
)

// Sidecar versions.
const (
	QAVersion = "qa-derivation-v1"
	KGVersion = "kg-v1"
)

// Stats summarizes one build.
type Stats struct {
	TotalChunks     int    `json:"total_chunks"`
	CandidateChunks int    `json:"candidate_chunks"`
	SegmentsOut     int    `json:"segments_out"`
	EdgesOut        int    `json:"edges_out"`
	SkippedNoBBox   int    `json:"skipped_no_bbox"`
	PageErrors      int    `json:"page_errors,omitempty"`
	Error           string `json:"error,omitempty"`
	LinkError       string `json:"link_error,omitempty"`

	DerivationRefine *RefineStats        `json:"derivation_refine,omitempty"`
	SolutionPrune    *SolutionPruneStats `json:"solution_prune,omitempty"`
	QuestionPrune    *QuestionPruneStats `json:"question_prune,omitempty"`

	SourceMatched          int     `json:"source_matched"`
	SourceMatchedPrevPage  int     `json:"source_matched_prev_page"`
	SourceMatchRate        float64 `json:"source_match_rate"`
	DerivationCount        int     `json:"derivation_count"`
	DerivationLinked       int     `json:"derivation_linked"`
	DerivationLinkCoverage float64 `json:"derivation_link_coverage"`
	WorkedExampleCount     int     `json:"worked_example_count"`
	CalculationCount       int     `json:"calculation_count"`
	ConceptRefCount        int     `json:"concept_ref_count"`
	SegmentsWithConcepts   int     `json:"segments_with_concept_links"`
}

// Payload is the QA sidecar.
type Payload struct {
	DocID       string     `json:"doc_id"`
	Version     string     `json:"version"`
	Config      RunConfig  `json:"config"`
	Stats       Stats      `json:"stats"`
	Segments    []*Segment `json:"segments"`
	Edges       []Edge     `json:"edges"`
	FormulaRefs []*Segment `json:"formula_refs"`
	ConceptRefs []*Concept `json:"concept_refs"`
}

func newPayload(docID string) *Payload {
	return &Payload{
		DocID:   docID,
		Version: QAVersion,
		Config: RunConfig{
			TriggerMode:   "candidate",
			LanguageRules: "en",
			LLMMode:       "off",
		},
		Segments:    []*Segment{},
		Edges:       []Edge{},
		FormulaRefs: []*Segment{},
		ConceptRefs: []*Concept{},
	}
}

// Input is everything the builder reads for one document.
type Input struct {
	DocID     string
	DocURI    string
	Units     []doctree.Unit // finalized chunks
	Blocks    []doctree.ContentBlock
	PageSizes doctree.PageSizes
	Formulas  []*enrich.FormulaData
}

// Builder runs extraction, linking, pairing and pruning over one document.
// A nil Extractor yields an empty sidecar with stats.error set; a nil
// Linker skips formula and concept linking.
type Builder struct {
	Extractor SegmentExtractor
	Linker    Linker
	Config    Config
}

// NewBuilder returns a builder with the heuristic extractor and the
// formula linker. glossary may be nil.
func NewBuilder(glossary *concepts.Glossary) *Builder {
	l := &FormulaLinker{}
	if glossary != nil {
		l.Concepts = glossary
	}
	return &Builder{Extractor: HeuristicExtractor{}, Linker: l, Config: DefaultConfig()}
}

// Build produces the QA sidecar. It never fails: collaborator errors are
// recorded in the stats.
func (b *Builder) Build(ctx context.Context, in Input) *Payload {
	cfg := b.Config
	if cfg.MinCandidateChars == 0 {
		cfg = DefaultConfig()
	}
	p := newPayload(in.DocID)
	p.Stats.TotalChunks = len(in.Units)
	if m, ok := b.Extractor.(interface{ LLMMode() string }); ok {
		p.Config.LLMMode = m.LLMMode()
	}

	if b.Extractor == nil {
		p.Stats.Error = "extractor_unavailable"
		return p
	}

	cands, noBox := selectCandidates(in.Units, cfg)
	p.Stats.CandidateChunks = len(cands)
	p.Stats.SkippedNoBBox = noBox
	if len(cands) == 0 {
		return p
	}

	pages := expandPages(cands, in.Blocks, in.PageSizes)
	tuples := pageBlocks(in.Blocks, pages, cands, cfg.RegionMargin)
	if len(tuples) == 0 {
		return p
	}

	extracted, err := b.extract(ctx, in, tuples, cfg, &p.Stats)
	if err != nil {
		p.Stats.Error = "cancelled"
		return p
	}
	if len(extracted) == 0 {
		return p
	}
	sequence(extracted)

	docURI := strPtr(in.DocURI)
	var targets []*Segment
	for i := range extracted {
		if !targetTypes[extracted[i].SegmentType] {
			continue
		}
		s := extracted[i]
		if s.BookID == "" {
			s.BookID = in.DocID
		}
		if s.DocURI == nil {
			s.DocURI = docURI
		}
		targets = append(targets, &s)
	}
	if len(targets) == 0 {
		return p
	}

	formulas, formulaSrc := formulaSegments(in.Formulas, in.DocID)
	formulaIDs := make(map[string]bool, len(formulas))
	for _, f := range formulas {
		formulaIDs[f.SegmentID] = true
	}

	var edges []Edge
	if b.Linker != nil {
		edges, err = b.Linker.Link(ctx, targets, formulas)
		if err != nil {
			p.Stats.LinkError = err.Error()
		}
	}

	idx := indexCandidates(cands, pages)
	for _, s := range targets {
		for _, w := range derivationWarnings(s) {
			s.QualityWarnings = appendUnique(s.QualityWarnings, w)
		}
		applySource(s, idx)
	}

	segs, refine := refineDerivations(targets)
	p.Stats.DerivationRefine = &refine

	kept := idSet(segs)
	conceptRefs := newConceptSet()
	var linked []Edge
	for _, e := range edges {
		switch {
		case kept[e.SourceID] && kept[e.TargetID]:
		case kept[e.SourceID] && formulaIDs[e.TargetID] &&
			(e.EdgeType == EdgeReferences || e.EdgeType == EdgeUsesFormula || e.EdgeType == EdgeExplains):
		case kept[e.SourceID] && e.EdgeType == EdgeWorkedExampleOf && e.TargetID != "":
			conceptRefs.ensure(e.TargetID)
		case formulaIDs[e.SourceID] && e.EdgeType == EdgeDefines && e.TargetID != "":
			conceptRefs.ensure(e.TargetID)
		default:
			continue
		}
		linked = append(linked, e)
	}

	p.FormulaRefs = usedFormulas(segs, linked, formulas)
	backfillFormulas(p.FormulaRefs, formulaSrc)
	for _, s := range append(append([]*Segment{}, segs...), p.FormulaRefs...) {
		for i := range s.ConceptLinks {
			if s.ConceptLinks[i].ConceptID != "" {
				conceptRefs.set(&s.ConceptLinks[i])
			}
		}
	}
	p.ConceptRefs = conceptRefs.list()

	segs = seedSolutions(segs, in.Units, in.DocID)
	annotateKeys(segs, chunkIndex(in.Units), cfg.ChapterHintWindow)
	linked = pairAnswers(segs, linked, cfg)

	var solPrune, solPrune2 SolutionPruneStats
	var qPrune QuestionPruneStats
	segs, linked, solPrune = pruneSolutions(segs, linked)
	segs, linked, qPrune = pruneQuestions(segs, linked)
	segs, linked, solPrune2 = pruneSolutions(segs, linked)
	solPrune.add(solPrune2)
	p.Stats.SolutionPrune = &solPrune
	p.Stats.QuestionPrune = &qPrune
	annotateSolutionStatus(segs, linked)

	stubs, stubEdges := referenceStubs(segs, in.DocID, cfg.StubStrength)
	segs = append(segs, stubs...)
	linked = append(linked, stubEdges...)

	known := idSet(segs)
	for _, f := range p.FormulaRefs {
		known[f.SegmentID] = true
	}
	for _, c := range p.ConceptRefs {
		known[c.SegmentID] = true
	}
	linked = pruneDangling(linked, known)

	for _, s := range segs {
		if s.ConceptLinks == nil {
			s.ConceptLinks = []concepts.Link{}
		}
	}
	for _, f := range p.FormulaRefs {
		if f.ConceptLinks == nil {
			f.ConceptLinks = []concepts.Link{}
		}
	}
	p.Segments = segs
	p.Edges = linked
	fillStats(p)
	return p
}

func (b *Builder) extract(ctx context.Context, in Input, tuples map[int][]BlockTuple, cfg Config, stats *Stats) ([]Segment, error) {
	hints := pageSectionHints(in.Units)
	pageNums := make([]int, 0, len(tuples))
	for pn := range tuples {
		pageNums = append(pageNums, pn)
	}
	sort.Ints(pageNums)

	var out []Segment
	for _, pn := range pageNums {
		w, h := cfg.DefaultPageWidth, cfg.DefaultPageHeight
		if size, ok := in.PageSizes[pn-1]; ok {
			if size.Width > 0 {
				w = size.Width
			}
			if size.Height > 0 {
				h = size.Height
			}
		}
		segs, err := b.Extractor.ExtractPage(ctx, PageInput{
			BookID:  in.DocID,
			PageNum: pn,
			Width:   w,
			Height:  h,
			Section: hints[pn],
			Blocks:  tuples[pn],
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			stats.PageErrors++
			continue
		}
		out = append(out, segs...)
	}
	return out, nil
}

// applySource records the chunk a segment was matched to and inherits its
// heading path and chapter when the extractor left them blank.
func applySource(s *Segment, idx sourceIndex) {
	c, method := idx.match(s)
	if c == nil {
		return
	}
	s.SourceChunkID = c.ChunkID
	s.SourceChunkHeadingPath = c.HeadingPath
	s.SourceMatchMethod = method
	s.SourceChunkCandidateRole = c.Role
	s.SourceChunkQAZoneType = c.QAZone
	if s.HeadingPath == "" {
		s.HeadingPath = c.HeadingPath
	}
	if (s.ChapterNumber == "" || s.ChapterNumber == "unknown") && c.ChapterMain != "" && c.ChapterMain != "unknown" {
		s.ChapterNumber = c.ChapterMain
	}
}

// chunkIndex indexes every chunk by segment id for key annotation.
func chunkIndex(units []doctree.Unit) map[string]*candidate {
	out := make(map[string]*candidate)
	for i := range units {
		u := &units[i]
		if u.SegmentID == "" {
			continue
		}
		out[u.SegmentID] = &candidate{
			ChunkID:     u.SegmentID,
			HeadingPath: u.HeadingPath,
			QAZone:      u.QAZoneType,
			Role:        u.CandidateRole,
			Numbering:   u.Numbering,
			ChapterMain: u.ChapterMain,
		}
	}
	return out
}

// formulaSegments converts enriched formula payloads into formula nodes,
// first payload per segment id.
func formulaSegments(fs []*enrich.FormulaData, docID string) ([]*Segment, map[string]*enrich.FormulaData) {
	var out []*Segment
	src := make(map[string]*enrich.FormulaData)
	for _, f := range fs {
		if f == nil || f.SegmentID == "" {
			continue
		}
		if _, dup := src[f.SegmentID]; dup {
			continue
		}
		src[f.SegmentID] = f
		book := f.BookID
		if book == "" {
			book = docID
		}
		chapter := f.ChapterNumber
		if chapter == "" {
			chapter = "unknown"
		}
		seg := &Segment{
			SegmentID:      f.SegmentID,
			SegmentType:    TypeFormula,
			BookID:         book,
			ChapterNumber:  chapter,
			ChapterTitle:   strPtr(f.ChapterTitle),
			PageStart:      f.PageStart,
			PageEnd:        f.PageEnd,
			TextContent:    f.TextContent,
			HeadingPath:    f.HeadingPath,
			FormulaLatex:   f.FormulaTextRaw,
			EquationNumber: f.EquationNumber,
			UsageType:      f.UsageType,
			CanonicalKey:   f.CanonicalKey,
			Variables:      f.Variables,
			SourceChunkID:  f.SourceChunkID,
		}
		if f.BBox != nil {
			seg.BBox = &PageBox{Page: f.PageStart, X0: f.BBox.X0, Y0: f.BBox.Y0, X1: f.BBox.X1, Y1: f.BBox.Y1}
		}
		out = append(out, seg)
	}
	return out, src
}

// usedFormulas returns the formulas any kept edge or segment field points
// at, sorted by id.
func usedFormulas(segs []*Segment, edges []Edge, formulas []*Segment) []*Segment {
	byID := make(map[string]*Segment, len(formulas))
	for _, f := range formulas {
		byID[f.SegmentID] = f
	}
	used := make(map[string]bool)
	mark := func(id string) {
		if _, ok := byID[id]; ok {
			used[id] = true
		}
	}
	for _, e := range edges {
		mark(e.TargetID)
	}
	for _, s := range segs {
		for _, id := range s.ReferencedFormulaIDs {
			mark(id)
		}
		for _, id := range s.DerivedFromFormulaIDs {
			mark(id)
		}
		mark(s.DerivedToFormulaID)
	}

	ids := make([]string, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*Segment, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}

// backfillFormulas restores fields a linker left blank from the enriched
// formula payloads.
func backfillFormulas(refs []*Segment, src map[string]*enrich.FormulaData) {
	for _, r := range refs {
		f := src[r.SegmentID]
		if f == nil {
			continue
		}
		if r.FormulaLatex == "" {
			r.FormulaLatex = f.FormulaTextRaw
		}
		if r.EquationNumber == "" {
			r.EquationNumber = f.EquationNumber
		}
		if r.UsageType == "" {
			r.UsageType = f.UsageType
		}
		if r.ChapterNumber == "" || r.ChapterNumber == "unknown" {
			if f.ChapterNumber != "" {
				r.ChapterNumber = f.ChapterNumber
			}
		}
		if r.ChapterTitle == nil {
			r.ChapterTitle = strPtr(f.ChapterTitle)
		}
	}
}

// conceptSet keeps concept nodes in first-seen order.
type conceptSet struct {
	byID  map[string]*Concept
	order []string
}

func newConceptSet() *conceptSet {
	return &conceptSet{byID: make(map[string]*Concept)}
}

func (c *conceptSet) ensure(id string) {
	if _, ok := c.byID[id]; ok {
		return
	}
	c.byID[id] = newConcept(id, nil)
	c.order = append(c.order, id)
}

func (c *conceptSet) set(l *concepts.Link) {
	if _, ok := c.byID[l.ConceptID]; !ok {
		c.order = append(c.order, l.ConceptID)
	}
	c.byID[l.ConceptID] = newConcept(l.ConceptID, l)
}

func (c *conceptSet) list() []*Concept {
	out := make([]*Concept, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func idSet(segs []*Segment) map[string]bool {
	out := make(map[string]bool, len(segs))
	for _, s := range segs {
		if s.SegmentID != "" {
			out[s.SegmentID] = true
		}
	}
	return out
}

func fillStats(p *Payload) {
	st := &p.Stats
	st.SegmentsOut = len(p.Segments)
	st.EdgesOut = len(p.Edges)

	matchable := 0
	for _, s := range p.Segments {
		if sourceMatchTypes[s.SegmentType] {
			matchable++
			if s.SourceChunkID != "" {
				st.SourceMatched++
			}
			if s.SourceMatchMethod == MatchPrevPage {
				st.SourceMatchedPrevPage++
			}
		}
		switch s.SegmentType {
		case TypeDerivation:
			st.DerivationCount++
			if s.DerivedToFormulaID != "" || len(s.DerivedFromFormulaIDs) > 0 || len(s.ReferencedFormulaIDs) > 0 {
				st.DerivationLinked++
			}
		case TypeWorkedExample:
			st.WorkedExampleCount++
		case TypeCalculation:
			st.CalculationCount++
		}
		if len(s.ConceptLinks) > 0 {
			st.SegmentsWithConcepts++
		}
	}
	if matchable > 0 {
		st.SourceMatchRate = float64(st.SourceMatched) / float64(matchable)
	}
	if st.DerivationCount > 0 {
		st.DerivationLinkCoverage = float64(st.DerivationLinked) / float64(st.DerivationCount)
	}
	st.ConceptRefCount = len(p.ConceptRefs)
}

// Matchable counts segments expected to trace back to a chunk.
func (p *Payload) Matchable() int {
	n := 0
	for _, s := range p.Segments {
		if sourceMatchTypes[s.SegmentType] {
			n++
		}
	}
	return n
}

package qa

import (
	"testing"

	"github.com/dgallion1/docgraph/internal/classify"
	"github.com/dgallion1/docgraph/internal/doctree"
)

func TestSelectCandidates_TextOnly(t *testing.T) {
	text := "Question 2 Calculate the equilibrium quantity when the tax is imposed on sellers."
	units := []doctree.Unit{
		{SegmentID: "seg_text", Type: doctree.UnitText, SegmentType: classify.Text, CandidateRole: classify.RoleQuestion, Content: text,
			PageRange: []int{0}, BBox: []float64{10, 10, 200, 40}},
		{SegmentID: "seg_obj", Type: classify.ProblemSets, SegmentType: classify.ProblemSets, Content: "Problem Sets " + text,
			PageRange: []int{0}, BBox: []float64{10, 50, 200, 90}},
		{SegmentID: "seg_head", Type: doctree.UnitHeading, SegmentType: doctree.UnitHeading, Content: text,
			PageRange: []int{0}},
	}

	cands, noBBox := selectCandidates(units, DefaultConfig())
	if len(cands) != 1 || cands[0].ChunkID != "seg_text" {
		ids := make([]string, 0, len(cands))
		for _, c := range cands {
			ids = append(ids, c.ChunkID)
		}
		t.Fatalf("expected only seg_text, got %v", ids)
	}
	if noBBox != 0 {
		t.Errorf("expected 0 chunks without bbox, got %d", noBBox)
	}
}

func TestChunkIndex_AllChunks(t *testing.T) {
	units := []doctree.Unit{
		{SegmentID: "seg_obj", Type: classify.ConceptCheck, HeadingPath: "Chapter 4 > Concept Check"},
		{Type: doctree.UnitText},
	}
	idx := chunkIndex(units)
	if len(idx) != 1 || idx["seg_obj"] == nil || idx["seg_obj"].HeadingPath != "Chapter 4 > Concept Check" {
		t.Errorf("expected title object indexed by id, got %v", idx)
	}
}

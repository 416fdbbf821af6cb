package refs

import (
	"testing"

	"github.com/dgallion1/docgraph/internal/doctree"
)

func TestExtract(t *testing.T) {
	got := Extract("See Figure 3.2 and Fig. 3.2, Table 1, Eq. (4.1), Equation 4.1 and Appendix B.")
	want := []doctree.Reference{
		{Type: Figure, ID: "3.2", Raw: "Figure 3.2"},
		{Type: Table, ID: "1", Raw: "Table 1"},
		{Type: Equation, ID: "4.1", Raw: "Eq. (4.1)"},
		{Type: Appendix, ID: "B", Raw: "Appendix B"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d refs, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ref %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
	if refs := Extract(""); refs == nil || len(refs) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", refs)
	}
}

func strp(s string) *string { return &s }

func TestLink_ResolvesAcrossPages(t *testing.T) {
	units := []doctree.Unit{
		{SegmentID: "seg_text", Type: doctree.UnitText, Content: "As shown in Figure 3.2, and by Eq. 7 and Table 2.4."},
		{SegmentID: "seg_fig", Type: doctree.UnitImage, Content: "[image] Figure 3.2: Money demand", Caption: strp("Figure 3.2: Money demand")},
		{SegmentID: "seg_eq", Type: doctree.UnitFormula, Content: "$$M = kPY$$"},
		{SegmentID: "seg_tbl", Type: doctree.UnitTable, Content: "", HeadingPath: "Chapter 2 > Table 2.4 Rates"},
	}
	units[0].References = Extract(units[0].Content)

	Link(units, map[string]string{"seg_eq": "(7)"})

	targets := map[string]string{}
	for _, r := range units[0].References {
		targets[r.Type+" "+r.ID] = r.TargetID
	}
	if targets["figure 3.2"] != "seg_fig" {
		t.Errorf("expected figure resolved to seg_fig, got %q", targets["figure 3.2"])
	}
	if targets["equation 7"] != "seg_eq" {
		t.Errorf("expected equation resolved to seg_eq, got %q", targets["equation 7"])
	}
	if targets["table 2.4"] != "seg_tbl" {
		t.Errorf("expected heading path fallback to seg_tbl, got %q", targets["table 2.4"])
	}
}

func TestLink_Idempotent(t *testing.T) {
	units := []doctree.Unit{
		{SegmentID: "seg_text", Type: doctree.UnitText, References: []doctree.Reference{
			{Type: Figure, ID: "1.1", Raw: "Figure 1.1", TargetID: "seg_earlier"},
			{Type: Equation, ID: "2", Raw: "Eq. 2"},
		}},
		{SegmentID: "seg_fig", Type: doctree.UnitImage, Content: "[image] Figure 1.1"},
		{SegmentID: "seg_eq", Type: doctree.UnitFormula, Content: "x = y"},
	}

	Link(units, nil)
	if units[0].References[1].TargetID != "" {
		t.Fatalf("expected equation unresolved before enrichment, got %q", units[0].References[1].TargetID)
	}
	Link(units, map[string]string{"seg_eq": "2"})

	if units[0].References[0].TargetID != "seg_earlier" {
		t.Errorf("expected existing resolution kept, got %q", units[0].References[0].TargetID)
	}
	if units[0].References[1].TargetID != "seg_eq" {
		t.Errorf("expected new resolution added, got %q", units[0].References[1].TargetID)
	}
}

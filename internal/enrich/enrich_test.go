package enrich

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/docgraph/internal/doctree"
)

func unit(id, typ, content string, page int) doctree.Unit {
	return doctree.Unit{
		SegmentID:   id,
		Type:        typ,
		SegmentType: typ,
		Content:     content,
		HeadingPath: "Chapter 4: Growth > 4.1 Capital",
		PageSpan:    []int{page, page},
		PageRange:   []int{page},
		BBox:        []float64{10, 20, 110, 80},
	}
}

type failingFormulas struct{ err error }

func (f failingFormulas) AnalyzeFormula(context.Context, FormulaRequest) (*FormulaData, error) {
	return nil, f.err
}

type panickingTables struct{}

func (panickingTables) AnalyzeTable(context.Context, TableRequest) (*TableData, error) {
	panic("boom")
}

type emptyImages struct{}

func (emptyImages) AnalyzeImage(context.Context, ImageRequest) (*ImageData, error) {
	return nil, nil
}

func TestRun_UnavailableAnalyzersSkip(t *testing.T) {
	units := []doctree.Unit{
		unit("seg_t", doctree.UnitTable, "Table 4.1 Output", 3),
		unit("seg_i", doctree.UnitImage, "[image]", 3),
		unit("seg_f", doctree.UnitFormula, "Y = AK", 3),
		unit("seg_x", doctree.UnitText, "Plain text.", 3),
	}
	ann := (&Enricher{}).Run(context.Background(), "econ", units)

	for id, module := range map[string]string{"seg_t": ModuleTable, "seg_i": ModuleImage, "seg_f": ModuleFormula} {
		st, ok := ann.StatusOf(id, module)
		if !ok || st.Status != StatusSkipped || st.Reason != module+"_analyzer_unavailable" {
			t.Errorf("%s: unexpected status %+v", id, st)
		}
	}
	if _, ok := ann.Status["seg_x"]; ok {
		t.Error("expected no status for text units")
	}
}

func TestRun_FormulaItemAnalyzer(t *testing.T) {
	units := []doctree.Unit{
		unit("seg_f", doctree.UnitFormula, "Y = A K^alpha L (4.2)", 6),
		unit("seg_e", doctree.UnitFormula, "   ", 6),
	}
	stats := NewStats(0)
	e := &Enricher{Formulas: FormulaItemAnalyzer{}, Stats: stats}
	ann := e.Run(context.Background(), "econ", units)

	f := ann.Formulas["seg_f"]
	if f == nil {
		t.Fatal("expected formula payload")
	}
	if f.EquationNumber != "4.2" {
		t.Errorf("expected equation 4.2, got %q", f.EquationNumber)
	}
	if f.ChapterNumber != "4" || f.ChapterTitle != "Growth" {
		t.Errorf("expected chapter from anchor, got %q %q", f.ChapterNumber, f.ChapterTitle)
	}
	if f.PageStart != 7 || f.SourceChunkID != "seg_f" {
		t.Errorf("unexpected anchor fields page=%d source=%q", f.PageStart, f.SourceChunkID)
	}
	var symbols []string
	for _, v := range f.Variables {
		symbols = append(symbols, v.Symbol)
	}
	if got := strings.Join(symbols, ","); got != "A,K,L,Y,alpha" {
		t.Errorf("expected symbols A,K,L,Y,alpha, got %q", got)
	}
	if !strings.HasPrefix(f.SegmentID, "formula_") || !strings.HasSuffix(f.SegmentID, "_p7") {
		t.Errorf("unexpected formula id %q", f.SegmentID)
	}
	if st, _ := ann.StatusOf("seg_e", ModuleFormula); st.Reason != "empty_formula_text" {
		t.Errorf("expected empty_formula_text, got %+v", st)
	}
	if eq := ann.EquationNumbers(); eq["seg_f"] != "4.2" {
		t.Errorf("expected equation number map, got %v", eq)
	}
	if snap := stats.Snapshot()[ModuleFormula]; snap.Count != 1 {
		t.Errorf("expected 1 recorded call, got %d", snap.Count)
	}
}

func TestCanonicalFormulaKey_IgnoresWhitespace(t *testing.T) {
	if CanonicalFormulaKey("a = b + c") != CanonicalFormulaKey("a=b+c") {
		t.Error("expected whitespace-insensitive key")
	}
	if got := EquationNumber("PV = FV / (1+r)^n, Eq. 3.1"); got != "3.1" {
		t.Errorf("expected 3.1, got %q", got)
	}
}

func TestRun_ErrorsBecomeStatuses(t *testing.T) {
	units := []doctree.Unit{
		unit("seg_f", doctree.UnitFormula, "x = 1", 0),
		unit("seg_t", doctree.UnitTable, "Table 1", 0),
	}
	units[1].TableHTML = "<table><tr><td>1</td></tr></table>"

	stats := NewStats(0)
	e := &Enricher{
		Formulas: failingFormulas{err: &fs.PathError{Op: "open", Path: "x", Err: errors.New("missing")}},
		Tables:   panickingTables{},
		Stats:    stats,
	}
	ann := e.Run(context.Background(), "econ", units)

	if st, _ := ann.StatusOf("seg_f", ModuleFormula); st.Status != StatusError || st.Reason != "extract_failed:PathError" {
		t.Errorf("unexpected formula status %+v", st)
	}
	if st, _ := ann.StatusOf("seg_t", ModuleTable); st.Status != StatusError || st.Reason != "extract_failed:PanicError" {
		t.Errorf("unexpected table status %+v", st)
	}
	if snap := stats.Snapshot()[ModuleTable]; snap.Errors != 1 {
		t.Errorf("expected 1 table error recorded, got %d", snap.Errors)
	}
}

func TestRun_HTMLTables(t *testing.T) {
	units := []doctree.Unit{
		unit("seg_t", doctree.UnitTable, "Table 4.1 Output by sector", 2),
		unit("seg_n", doctree.UnitTable, "Table 4.2", 2),
	}
	units[0].TableHTML = `<table><tr><th>Sector</th><th>Output</th></tr><tr><td>Farm</td><td>1,200</td></tr><tr><td>Mine</td><td>300</td></tr></table>`

	ann := (&Enricher{Tables: HTMLTableAnalyzer{}}).Run(context.Background(), "econ", units)

	tbl := ann.Tables["seg_t"]
	if tbl == nil {
		t.Fatal("expected table payload")
	}
	if tbl.TableNumber != "4.1" {
		t.Errorf("expected table number 4.1, got %q", tbl.TableNumber)
	}
	if len(tbl.ColHeaders) != 2 || tbl.ColHeaders[1] != "Output" {
		t.Errorf("unexpected headers %v", tbl.ColHeaders)
	}
	if len(tbl.Cells) != 3 || tbl.Cells[1][1] != "1,200" {
		t.Errorf("unexpected cells %v", tbl.Cells)
	}
	if tbl.SchemaHint != "numeric" {
		t.Errorf("expected numeric hint, got %q", tbl.SchemaHint)
	}
	if st, _ := ann.StatusOf("seg_n", ModuleTable); st.Status != StatusSkipped || st.Reason != "local_image_not_found" {
		t.Errorf("expected missing visual to skip, got %+v", st)
	}
	if got := ann.TableList(); len(got) != 1 || got[0] != tbl {
		t.Errorf("expected table list in emission order, got %v", got)
	}
}

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.Black)
	if err := writePNG(path, img); err != nil {
		t.Fatalf("write png: %v", err)
	}
}

func TestRun_CaptionImages(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "fig.png")
	writeTestPNG(t, png, 40, 30)

	caption := "Figure 4.3 Growth curve of output"
	u := unit("seg_i", doctree.UnitImage, "[image] "+caption, 8)
	u.Caption = &caption
	u.ImagePaths = []string{"http://cdn/fig.png", filepath.Join(dir, "missing.png"), png}
	v := unit("seg_v", doctree.UnitImage, "[image]", 8)

	ann := (&Enricher{Images: CaptionImageAnalyzer{}}).Run(context.Background(), "econ", []doctree.Unit{u, v})

	img := ann.Images["seg_i"]
	if img == nil {
		t.Fatal("expected image payload")
	}
	if img.ImagePath != png || img.Width != 40 || img.Height != 30 {
		t.Errorf("unexpected image %q %dx%d", img.ImagePath, img.Width, img.Height)
	}
	if img.SegmentType != "chart" || img.FigureNumber != "4.3" {
		t.Errorf("expected chart 4.3, got %q %q", img.SegmentType, img.FigureNumber)
	}
	if img.PageNo != 9 {
		t.Errorf("expected 1-based page 9, got %d", img.PageNo)
	}
	if st, _ := ann.StatusOf("seg_v", ModuleImage); st.Reason != "local_image_not_found" {
		t.Errorf("expected local_image_not_found, got %+v", st)
	}

	ann = (&Enricher{Images: emptyImages{}}).Run(context.Background(), "econ", []doctree.Unit{u})
	if st, _ := ann.StatusOf("seg_i", ModuleImage); st.Status != StatusEmpty || st.Reason != "no_image_payload" {
		t.Errorf("expected empty status, got %+v", st)
	}
}

func TestResolveVisualPath_FallsBackToVisualDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "econ"), 0o755); err != nil {
		t.Fatal(err)
	}
	u := unit("seg_abc", doctree.UnitTable, "Table 1", 4)
	want := filepath.Join(dir, "econ", "table_p5_seg_abc.jpg")
	if err := os.WriteFile(want, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := ResolveVisualPath(&u, "econ", dir); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got := ResolveVisualPath(&u, "econ", ""); got != "" {
		t.Errorf("expected no path without a visual dir, got %q", got)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	units := []doctree.Unit{unit("seg_f", doctree.UnitFormula, "x = 1", 0)}
	ann := (&Enricher{Formulas: FormulaItemAnalyzer{}}).Run(ctx, "econ", units)
	if st, _ := ann.StatusOf("seg_f", ModuleFormula); st.Status != StatusSkipped || st.Reason != "cancelled" {
		t.Errorf("expected cancelled skip, got %+v", st)
	}
}

func TestAttach(t *testing.T) {
	units := []doctree.Unit{unit("seg_f", doctree.UnitFormula, "x = y (2)", 0), unit("seg_x", doctree.UnitText, "t", 0)}
	ann := (&Enricher{Formulas: FormulaItemAnalyzer{}}).Run(context.Background(), "econ", units)
	out := ann.Attach(units)
	if out[0].Formula == nil || out[0].EnrichmentStatus[ModuleFormula].Status != StatusOK {
		t.Errorf("expected formula attached, got %+v", out[0])
	}
	if out[1].Formula != nil || out[1].EnrichmentStatus != nil {
		t.Errorf("expected bare text unit, got %+v", out[1])
	}
}

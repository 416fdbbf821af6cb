package enrich

import (
	"context"
	"encoding/json"
	"image"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docgraph/internal/doctree"
)

type memSink map[string][]byte

func (m memSink) Put(_ context.Context, key string, data []byte) error {
	m[key] = data
	return nil
}

func TestTableMarkdown(t *testing.T) {
	tbl := &TableData{
		Caption:     "Table 2.1 Prices",
		ColHeaders:  []string{"Good", "Price"},
		Cells:       [][]string{{"Good", "Price"}, {"Tea", "2|3"}, {"Rice"}},
		Footnotes:   []string{"2019 dollars"},
		Description: "Retail prices",
	}
	want := strings.Join([]string{
		"**Table 2.1 Prices**",
		"",
		"| Good | Price |",
		"| --- | --- |",
		`| Tea | 2\|3 |`,
		"| Rice |  |",
		"",
		"^1: 2019 dollars",
		"",
		"*Retail prices*",
	}, "\n") + "\n"
	if got := TableMarkdown(tbl); got != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, got)
	}
	if got := TableMarkdown(&TableData{}); got != "" {
		t.Errorf("expected empty markdown, got %q", got)
	}
}

func TestWriteTableMirrors(t *testing.T) {
	sink := memSink{}
	tables := []*TableData{{
		SegmentID:   "table_x",
		TableNumber: "1",
		Caption:     "Table 1 Costs",
		Cells:       [][]string{{"a", "b"}, {"1", "2"}},
		PageStart:   3,
		PageEnd:     4,
	}}
	if err := WriteTableMirrors(context.Background(), sink, "econ/tables", "econ", tables); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, key := range []string{"econ/tables/table_1.json", "econ/tables/table_1.md", "econ/tables/table_1.html", "econ/tables/extraction_summary.json"} {
		if _, ok := sink[key]; !ok {
			t.Errorf("expected %s to be written", key)
		}
	}
	if html := string(sink["econ/tables/table_1.html"]); !strings.Contains(html, "<table>") {
		t.Errorf("expected rendered html table, got %q", html)
	}

	var summary struct {
		TotalPages  int `json:"total_pages"`
		TotalTables int `json:"total_tables"`
		Tables      []struct {
			Dimensions string `json:"dimensions"`
		} `json:"tables"`
	}
	if err := json.Unmarshal(sink["econ/tables/extraction_summary.json"], &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalTables != 1 || summary.TotalPages != 4 || summary.Tables[0].Dimensions != "2×2" {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestWriteVisualMirrors(t *testing.T) {
	sink := memSink{}
	images := []*ImageData{{SegmentID: "visual_1", SegmentType: "chart", PageNo: 2, CaptionText: "Figure 1, demand", ClassificationConfidence: 0.8}}
	if err := WriteVisualMirrors(context.Background(), sink, "econ", "econ", images); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	csv := string(sink["econ/econ_visual_summary.csv"])
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus 1 row, got %q", csv)
	}
	if lines[1] != `visual_1,2,chart,0.8,,"Figure 1, demand",0,` {
		t.Errorf("unexpected csv row %q", lines[1])
	}
	if !strings.Contains(string(sink["econ/econ_visual_segments.json"]), `"total_segments": 1`) {
		t.Error("expected segment count in json mirror")
	}
}

func TestStatsSnapshotPercentiles(t *testing.T) {
	stats := NewStats(time.Hour)
	for _, ms := range []int64{100, 200, 300, 400, 500} {
		stats.Record(ModuleTable, ms, ms == 500)
	}

	snap := stats.Snapshot()[ModuleTable]
	if snap.Count != 5 || snap.Errors != 1 {
		t.Fatalf("expected count=5 errors=1, got %d %d", snap.Count, snap.Errors)
	}
	if snap.MinMs != 100 || snap.MaxMs != 500 {
		t.Fatalf("expected min=100 max=500, got %d %d", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 300 || snap.P50Ms != 300 {
		t.Fatalf("expected avg=p50=300, got %f %f", snap.AvgMs, snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
}

func TestStatsPrunesExpiredSamples(t *testing.T) {
	stats := NewStats(10 * time.Millisecond)
	stats.Record(ModuleImage, 100, false)
	time.Sleep(25 * time.Millisecond)

	if _, ok := stats.Snapshot()[ModuleImage]; ok {
		t.Fatal("expected expired module to be absent")
	}
	stats.Record(ModuleImage, 200, false)
	if snap := stats.Snapshot()[ModuleImage]; snap.Count != 1 || snap.MinMs != 200 {
		t.Fatalf("expected single fresh sample, got %+v", snap)
	}
}

type fakeRenderer struct {
	page     doctree.PageSize
	rendered []doctree.BBox
}

func (f *fakeRenderer) NumPage() int { return 2 }

func (f *fakeRenderer) PageBounds(int) (doctree.PageSize, error) { return f.page, nil }

func (f *fakeRenderer) RenderCrop(_ int, box doctree.BBox, _ float64) (image.Image, error) {
	f.rendered = append(f.rendered, box)
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

func TestExtractVisualCrops(t *testing.T) {
	r := &fakeRenderer{page: doctree.PageSize{Width: 600, Height: 800}}
	blocks := []doctree.ContentBlock{
		{ID: "p0_b1", Type: doctree.BlockImage, PageIdx: 0, BBox: &doctree.BBox{X0: 100, Y0: 100, X1: 700, Y1: 500}},
		{ID: "p0_b2", Type: doctree.BlockImage, PageIdx: 0, BBox: &doctree.BBox{X0: 0, Y0: 0, X1: 1200, Y1: 10}},
		{ID: "p0_b3", Type: doctree.BlockText, PageIdx: 0, BBox: &doctree.BBox{X0: 0, Y0: 0, X1: 300, Y1: 300}},
		{ID: "p5_b0", Type: doctree.BlockTable, PageIdx: 5, BBox: &doctree.BBox{X0: 0, Y0: 0, X1: 300, Y1: 300}},
	}
	sizes := doctree.PageSizes{0: {Width: 1200, Height: 1600}}
	dir := t.TempDir()

	n, err := ExtractVisualCrops(context.Background(), r, blocks, sizes, dir, DefaultCropConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 || len(r.rendered) != 1 {
		t.Fatalf("expected 1 crop, got %d", n)
	}
	want := doctree.BBox{X0: 50, Y0: 50, X1: 350, Y1: 250}
	if r.rendered[0] != want {
		t.Errorf("expected scaled box %+v, got %+v", want, r.rendered[0])
	}
	if len(blocks[0].Meta.LocalImagePaths) != 1 || !strings.HasSuffix(blocks[0].Meta.LocalImagePaths[0], "image_p1_p0_b1.png") {
		t.Errorf("unexpected local paths %v", blocks[0].Meta.LocalImagePaths)
	}
}

func TestIsDecorative(t *testing.T) {
	page := doctree.PageSize{Width: 600, Height: 800}
	cfg := DefaultCropConfig()
	cases := []struct {
		box  doctree.BBox
		want bool
	}{
		{doctree.BBox{X0: 0, Y0: 0, X1: 10, Y1: 10}, true},
		{doctree.BBox{X0: 0, Y0: 0, X1: 590, Y1: 30}, true},
		{doctree.BBox{X0: 0, Y0: 0, X1: 300, Y1: 200}, false},
	}
	for _, c := range cases {
		if got := IsDecorative(c.box, page, cfg); got != c.want {
			t.Errorf("IsDecorative(%+v): expected %v, got %v", c.box, c.want, got)
		}
	}
}

package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/docgraph/internal/doctree"
)

const sampleJSON = `{
  "pdf_info": [
    {
      "page_idx": 0,
      "page_size": [612, 792],
      "para_blocks": [
        {"type": "title", "bbox": [50, 40, 300, 60], "index": 0,
         "lines": [{"spans": [{"type": "text", "content": "C H A P T E R  1"}]}]},
        {"type": "text", "bbox": [50, 80, 500, 120], "index": 1,
         "lines": [
           {"spans": [{"type": "text", "content": "The rate is"}, {"type": "inline_equation", "content": "r = 5\\%"}]},
           {"spans": [{"type": "interline_equation", "content": "PV = FV/(1+r)"}]}
         ]},
        {"type": "image", "bbox": [50, 200, 400, 500], "index": 2,
         "blocks": [
           {"type": "image_body", "lines": [{"spans": [{"type": "image", "image_path": "images/a.jpg"}]}]},
           {"type": "image_caption", "lines": [{"spans": [{"type": "text", "content": "Figure 1.1 Supply"}]}]}
         ]},
        {"type": "table", "bbox": [50, 520, 400, 700], "index": 3,
         "blocks": [
           {"type": "table_caption", "lines": [{"spans": [{"type": "text", "content": "Table 1.2 Prices"}]}]},
           {"type": "table_body", "lines": [{"spans": [{"type": "table", "image_path": "images/t.jpg", "html": "<table><tr><td>a</td></tr></table>"}]}]}
         ]}
      ]
    },
    {
      "page_idx": 1,
      "page_size": [612, 792],
      "para_blocks": [
        {"type": "interline_equation", "bbox": [100, 100, 300, 130],
         "lines": [{"spans": [{"type": "interline_equation", "content": "E = mc^2"}]}]}
      ]
    }
  ]
}`

func TestNormalize_Sample(t *testing.T) {
	raw, err := ParseBlockJSON(strings.NewReader(sampleJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	blocks, sizes := Normalize(raw)
	if len(blocks) != 5 {
		t.Fatalf("expected 5 blocks, got %d", len(blocks))
	}
	if sizes[0].Width != 612 || sizes[1].Height != 792 {
		t.Errorf("unexpected page sizes %+v", sizes)
	}

	h := blocks[0]
	if h.Type != doctree.BlockHeading {
		t.Errorf("expected heading, got %q", h.Type)
	}
	if h.Text != "CHAPTER 1" {
		t.Errorf("expected %q, got %q", "CHAPTER 1", h.Text)
	}
	if h.ID != "p0_b0" {
		t.Errorf("expected id p0_b0, got %q", h.ID)
	}

	body := blocks[1]
	want := "The rate is $r = 5\\%$ $$PV = FV/(1+r)$$"
	if body.Text != want {
		t.Errorf("expected %q, got %q", want, body.Text)
	}

	img := blocks[2]
	if img.Type != doctree.BlockImage || img.Text != "Figure 1.1 Supply" {
		t.Errorf("unexpected image block %+v", img)
	}
	if len(img.Meta.ImagePaths) != 1 || img.Meta.ImagePaths[0] != "images/a.jpg" {
		t.Errorf("unexpected image paths %v", img.Meta.ImagePaths)
	}

	tbl := blocks[3]
	if tbl.Type != doctree.BlockTable || tbl.Text != "Table 1.2 Prices" {
		t.Errorf("unexpected table block %+v", tbl)
	}
	if !strings.Contains(tbl.Meta.TableHTML, "<table>") {
		t.Errorf("expected table html, got %q", tbl.Meta.TableHTML)
	}

	f := blocks[4]
	if f.Type != doctree.BlockFormula {
		t.Errorf("expected formula, got %q", f.Type)
	}
	if f.ID != "p1_b4" {
		t.Errorf("expected positional id p1_b4 when index missing, got %q", f.ID)
	}
	if f.Meta.HasIndex {
		t.Error("expected HasIndex false for block without index")
	}
}

func TestMapBlockType(t *testing.T) {
	cases := map[string]doctree.BlockType{
		"title":              doctree.BlockHeading,
		"Header":             doctree.BlockHeading,
		"paragraph":          doctree.BlockText,
		"list":               doctree.BlockListItem,
		"table":              doctree.BlockTable,
		"picture":            doctree.BlockImage,
		"interline_equation": doctree.BlockFormula,
		"discarded":          doctree.BlockText,
	}
	for in, want := range cases {
		if got := MapBlockType(in); got != want {
			t.Errorf("MapBlockType(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestParse_FiltersAndKeepsRaw(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleJSON), "econ101.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.DocID != "econ101" {
		t.Errorf("expected doc id econ101, got %q", doc.DocID)
	}
	if len(doc.RawBlocks) != 5 {
		t.Errorf("expected 5 raw blocks, got %d", len(doc.RawBlocks))
	}
	if len(doc.Blocks) != 5 {
		t.Errorf("expected 5 kept blocks, got %d", len(doc.Blocks))
	}
}

func TestParseBlockJSON_Invalid(t *testing.T) {
	if _, err := ParseBlockJSON(strings.NewReader("{not json")); err == nil {
		t.Fatal("expected decode error")
	}
}

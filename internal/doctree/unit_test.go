package doctree

import "testing"

func TestContentHashHex_Consistency(t *testing.T) {
	data := []byte("hello world")
	h1 := ContentHashHex(data)
	h2 := ContentHashHex(data)
	if h1 != h2 {
		t.Errorf("expected identical hashes, got %q and %q", h1, h2)
	}
	want := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if h1 != want {
		t.Errorf("expected hash %q, got %q", want, h1)
	}
}

func TestStableID_Deterministic(t *testing.T) {
	a := StableID("text", "1 Intro > 1.1 Money", []int{3, 3}, "Money is a medium of exchange.")
	b := StableID("text", "1 Intro > 1.1 Money", []int{3, 3}, "Money is a medium of exchange.")
	if a != b {
		t.Fatalf("expected identical ids, got %q and %q", a, b)
	}
	if len(a) != len("seg_")+12 {
		t.Errorf("expected 16-char id, got %q", a)
	}
}

func TestStableID_EachFieldMatters(t *testing.T) {
	base := StableID("text", "A > B", []int{1, 1}, "body")
	variants := map[string]string{
		"type":    StableID("definition", "A > B", []int{1, 1}, "body"),
		"heading": StableID("text", "A > C", []int{1, 1}, "body"),
		"span":    StableID("text", "A > B", []int{1, 2}, "body"),
		"content": StableID("text", "A > B", []int{1, 1}, "body."),
	}
	for name, id := range variants {
		if id == base {
			t.Errorf("changing %s should change the id", name)
		}
	}
}

func TestStableID_NilSpanEqualsEmpty(t *testing.T) {
	if StableID("heading", "A", nil, "A") != StableID("heading", "A", []int{}, "A") {
		t.Error("expected nil and empty page span to hash identically")
	}
}

func TestBBox_IntersectAndUnion(t *testing.T) {
	a := BBox{X0: 0, Y0: 0, X1: 10, Y1: 10}
	b := BBox{X0: 5, Y0: 5, X1: 15, Y1: 15}
	if got := a.Intersect(b); got != 25 {
		t.Errorf("expected intersect 25, got %v", got)
	}
	u := a.Union(b)
	if u != (BBox{X0: 0, Y0: 0, X1: 15, Y1: 15}) {
		t.Errorf("unexpected union %+v", u)
	}
	c := BBox{X0: 20, Y0: 20, X1: 30, Y1: 30}
	if got := a.Intersect(c); got != 0 {
		t.Errorf("expected no overlap, got %v", got)
	}
	if UnionAll(nil) != nil {
		t.Error("expected nil union for no boxes")
	}
}

func TestUnit_PageBounds(t *testing.T) {
	u := Unit{PageSpan: []int{4, 6}}
	s, e := u.PageBounds()
	if s != 5 || e != 7 {
		t.Errorf("expected 5-7, got %d-%d", s, e)
	}
	u = Unit{PageRange: []int{9, 2}}
	s, e = u.PageBounds()
	if s != 3 || e != 10 {
		t.Errorf("expected 3-10, got %d-%d", s, e)
	}
	u = Unit{}
	s, e = u.PageBounds()
	if s != 1 || e != 1 {
		t.Errorf("expected 1-1, got %d-%d", s, e)
	}
}

func TestDocumentTree_WalkAndPostOrder(t *testing.T) {
	d := &DocumentTree{}
	root := d.AddNode(SectionNode{Title: "1", Parent: -1})
	c1 := d.AddNode(SectionNode{Title: "1.1", Parent: root})
	c2 := d.AddNode(SectionNode{Title: "1.2", Parent: root})
	d.Node(root).Children = []int{c1, c2}
	d.Roots = []int{root}

	var pre []string
	d.Walk(func(_ int, n *SectionNode) { pre = append(pre, n.Title) })
	if len(pre) != 3 || pre[0] != "1" || pre[1] != "1.1" || pre[2] != "1.2" {
		t.Errorf("unexpected pre-order %v", pre)
	}
	post := d.PostOrder()
	if len(post) != 3 || post[2] != root || post[0] != c1 {
		t.Errorf("unexpected post-order %v", post)
	}
}

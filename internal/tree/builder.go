// Package tree builds the section hierarchy from outline entries and filters
// it down to main body and back matter.
package tree

import (
	"cmp"
	"slices"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/toc"
)

// RootTitle names the single section used when no outline exists.
const RootTitle = "Document"

type seqEntry struct {
	title string
	level int
	start int
}

// Build assembles the section tree. Entries from a PDF outline are merged
// with heading blocks they did not match; header-sourced entries are placed
// at the heading block carrying the same (title, page). Every block lands in
// at most one section: a section runs from its start block to the block
// before the next section in document order.
func Build(entries []doctree.TOCEntry, blocks []doctree.ContentBlock, source string) *doctree.DocumentTree {
	doc := &doctree.DocumentTree{Blocks: blocks}
	if len(entries) == 0 {
		return singleRoot(doc)
	}

	var seq []seqEntry
	if source == toc.SourceHeaders {
		seq = headerSequence(entries, blocks)
	} else {
		seq = outlineSequence(entries, blocks)
	}
	if len(seq) == 0 {
		return singleRoot(doc)
	}
	slices.SortStableFunc(seq, func(a, b seqEntry) int {
		if c := cmp.Compare(a.start, b.start); c != 0 {
			return c
		}
		return cmp.Compare(a.level, b.level)
	})

	order := buildHierarchy(doc, seq)
	assignRanges(doc, order)
	return doc
}

func singleRoot(doc *doctree.DocumentTree) *doctree.DocumentTree {
	root := doctree.SectionNode{
		Title:    RootTitle,
		Level:    1,
		StartIdx: 0,
		EndIdx:   len(doc.Blocks) - 1,
		Path:     RootTitle,
		Parent:   -1,
		Blocks:   slices.Clone(doc.Blocks),
	}
	for _, b := range doc.Blocks {
		root.EndPage = max(root.EndPage, b.PageIdx)
	}
	doc.Roots = []int{doc.AddNode(root)}
	return doc
}

func headerSequence(entries []doctree.TOCEntry, blocks []doctree.ContentBlock) []seqEntry {
	type key struct {
		title string
		page  int
	}
	at := make(map[key]int)
	for i, b := range blocks {
		if b.Type != doctree.BlockHeading {
			continue
		}
		k := key{strings.TrimSpace(b.Text), b.PageIdx}
		if _, ok := at[k]; !ok {
			at[k] = i
		}
	}
	var seq []seqEntry
	for _, e := range entries {
		idx, ok := at[key{strings.TrimSpace(e.Title), e.Page}]
		if !ok {
			continue
		}
		seq = append(seq, seqEntry{title: e.Title, level: e.Level, start: idx})
	}
	return seq
}

func outlineSequence(entries []doctree.TOCEntry, blocks []doctree.ContentBlock) []seqEntry {
	idIndex := make(map[string]int, len(blocks))
	for i, b := range blocks {
		idIndex[b.ID] = i
	}

	matched := make(map[string]bool)
	var seq []seqEntry
	for _, e := range entries {
		start := -1
		if idx, ok := idIndex[e.MatchedBlockID]; ok && e.MatchedBlockID != "" {
			start = idx
			matched[e.MatchedBlockID] = true
		} else if e.Page >= 0 {
			start = firstIndexOnPage(blocks, e.Page)
		}
		if start < 0 {
			continue
		}
		seq = append(seq, seqEntry{title: e.Title, level: max(e.Level, 1), start: start})
	}

	for i, b := range blocks {
		if b.Type != doctree.BlockHeading || matched[b.ID] {
			continue
		}
		title := strings.TrimSpace(b.Text)
		if title == "" {
			continue
		}
		seq = append(seq, seqEntry{title: title, level: toc.InferHeadingLevel(title), start: i})
	}
	return seq
}

func firstIndexOnPage(blocks []doctree.ContentBlock, page int) int {
	for i, b := range blocks {
		if b.PageIdx >= page {
			return i
		}
	}
	return -1
}

// buildHierarchy runs the level stack over seq and returns node indices in
// sequence order.
func buildHierarchy(doc *doctree.DocumentTree, seq []seqEntry) []int {
	var stack []int
	order := make([]int, 0, len(seq))
	for _, e := range seq {
		for len(stack) > 0 && doc.Nodes[stack[len(stack)-1]].Level >= e.level {
			stack = stack[:len(stack)-1]
		}
		node := doctree.SectionNode{
			Title:    e.title,
			Level:    e.level,
			StartIdx: e.start,
			EndIdx:   e.start,
			Parent:   -1,
		}
		if len(stack) > 0 {
			parent := stack[len(stack)-1]
			node.Parent = parent
			node.Path = strings.TrimSpace(doc.Nodes[parent].Path + " > " + e.title)
		} else {
			node.Path = strings.TrimSpace(e.title)
		}

		idx := doc.AddNode(node)
		if node.Parent >= 0 {
			p := doc.Node(node.Parent)
			p.Children = append(p.Children, idx)
		} else {
			doc.Roots = append(doc.Roots, idx)
		}
		stack = append(stack, idx)
		order = append(order, idx)
	}
	return order
}

func assignRanges(doc *doctree.DocumentTree, order []int) {
	for i, idx := range order {
		n := doc.Node(idx)
		if i < len(order)-1 {
			n.EndIdx = doc.Nodes[order[i+1]].StartIdx - 1
		} else {
			n.EndIdx = len(doc.Blocks) - 1
		}
		if n.StartIdx < len(doc.Blocks) {
			n.StartPage = doc.Blocks[n.StartIdx].PageIdx
			n.EndPage = n.StartPage
		}
		if n.EndIdx < n.StartIdx {
			continue
		}
		n.Blocks = slices.Clone(doc.Blocks[n.StartIdx : n.EndIdx+1])
		n.StartPage, n.EndPage = pageSpan(n.Blocks)
	}
}

func pageSpan(blocks []doctree.ContentBlock) (int, int) {
	lo, hi := blocks[0].PageIdx, blocks[0].PageIdx
	for _, b := range blocks[1:] {
		lo = min(lo, b.PageIdx)
		hi = max(hi, b.PageIdx)
	}
	return lo, hi
}

package tree

import (
	"slices"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/parser"
)

// MainBodyPage returns the smallest page among outline entries whose title
// looks like main body (chapter, part, numbered).
func MainBodyPage(entries []doctree.TOCEntry) (int, bool) {
	page, found := 0, false
	for _, e := range entries {
		if e.Page < 0 || !parser.IsMainBodyTitle(e.Title) {
			continue
		}
		if !found || e.Page < page {
			page, found = e.Page, true
		}
	}
	return page, found
}

// FilterSections keeps root sections from the first main-body title onward.
// Body sections lose blocks before the main body page; sections from the
// first back-matter title onward keep only formulas and special-term blocks.
// mainBodyPage < 0 falls back to the first kept section's start page.
func FilterSections(doc *doctree.DocumentTree, mainBodyPage int) {
	roots := doc.Roots
	if len(roots) == 0 {
		return
	}

	mainStart, backStart := -1, -1
	for i, idx := range roots {
		title := doc.Nodes[idx].Title
		if mainStart < 0 && parser.IsMainBodyTitle(title) {
			mainStart = i
		}
		if backStart < 0 && parser.IsBackMatterTitle(title) {
			backStart = i
		}
	}
	if mainStart < 0 {
		mainStart = 0
	}
	if backStart < 0 {
		backStart = len(roots)
	}

	var body []int
	if mainStart < backStart {
		body = roots[mainStart:backStart]
	}
	back := roots[backStart:]

	if len(body) > 0 {
		minPage := mainBodyPage
		if minPage < 0 {
			minPage = doc.Nodes[body[0]].StartPage
		}
		for _, r := range body {
			eachInSubtree(doc, r, func(n *doctree.SectionNode) {
				n.Blocks = slices.DeleteFunc(n.Blocks, func(b doctree.ContentBlock) bool {
					return b.PageIdx < minPage
				})
			})
		}
	}

	for _, r := range back {
		eachInSubtree(doc, r, func(n *doctree.SectionNode) {
			n.Blocks = slices.DeleteFunc(n.Blocks, func(b doctree.ContentBlock) bool {
				return !keepInBackMatter(b)
			})
		})
	}

	doc.Roots = append(slices.Clone(body), back...)
}

func keepInBackMatter(b doctree.ContentBlock) bool {
	switch b.Type {
	case doctree.BlockFormula:
		return true
	case doctree.BlockText, doctree.BlockTable, doctree.BlockImage:
		return parser.IsSpecialTermText(b.Text)
	}
	return false
}

func eachInSubtree(doc *doctree.DocumentTree, root int, fn func(n *doctree.SectionNode)) {
	stack := []int{root}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := doc.Node(idx)
		fn(n)
		stack = append(stack, n.Children...)
	}
}

// Prune removes sections left with no blocks and no surviving children,
// children first, and recomputes each survivor's page range from its own
// blocks and its children's ranges.
func Prune(doc *doctree.DocumentTree) {
	alive := make(map[int]bool, len(doc.Nodes))
	for _, idx := range doc.PostOrder() {
		n := doc.Node(idx)
		n.Children = slices.DeleteFunc(n.Children, func(c int) bool { return !alive[c] })
		if len(n.Blocks) == 0 && len(n.Children) == 0 {
			continue
		}
		alive[idx] = true

		lo, hi, seen := 0, 0, false
		add := func(p int) {
			if p < 0 {
				return
			}
			if !seen {
				lo, hi, seen = p, p, true
				return
			}
			lo, hi = min(lo, p), max(hi, p)
		}
		for _, b := range n.Blocks {
			add(b.PageIdx)
		}
		for _, c := range n.Children {
			add(doc.Nodes[c].StartPage)
			add(doc.Nodes[c].EndPage)
		}
		if seen {
			n.StartPage, n.EndPage = lo, hi
		}
	}
	doc.Roots = slices.DeleteFunc(doc.Roots, func(r int) bool { return !alive[r] })
}

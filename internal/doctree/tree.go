package doctree

// TOCEntry is one outline entry before tree building.
type TOCEntry struct {
	Level          int    `json:"level"`
	Title          string `json:"title"`
	Page           int    `json:"page"` // 0-based, -1 when unknown
	Source         string `json:"source,omitempty"`
	MatchedBlockID string `json:"matched_block_id,omitempty"`
}

// SectionNode is one outline entry in the built hierarchy. Parent and Children
// are indices into DocumentTree.Nodes; Parent is -1 for roots.
type SectionNode struct {
	Title     string
	Level     int
	StartIdx  int
	EndIdx    int
	StartPage int
	EndPage   int
	Path      string
	Blocks    []ContentBlock
	Parent    int
	Children  []int
}

// DocumentTree is the arena holding every section plus the flat block list.
type DocumentTree struct {
	Nodes  []SectionNode
	Roots  []int
	Blocks []ContentBlock
}

// AddNode appends a node to the arena and returns its index.
func (d *DocumentTree) AddNode(n SectionNode) int {
	d.Nodes = append(d.Nodes, n)
	return len(d.Nodes) - 1
}

// Node returns a pointer into the arena.
func (d *DocumentTree) Node(i int) *SectionNode {
	return &d.Nodes[i]
}

// Walk visits reachable sections depth-first, parents before children.
func (d *DocumentTree) Walk(fn func(idx int, n *SectionNode)) {
	// Explicit stack keeps deep outlines off the goroutine stack.
	stack := make([]int, 0, len(d.Roots))
	for i := len(d.Roots) - 1; i >= 0; i-- {
		stack = append(stack, d.Roots[i])
	}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &d.Nodes[idx]
		fn(idx, n)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// PostOrder returns reachable node indices with every child before its parent.
func (d *DocumentTree) PostOrder() []int {
	type frame struct {
		idx     int
		visited bool
	}
	var out []int
	stack := make([]frame, 0, len(d.Roots))
	for i := len(d.Roots) - 1; i >= 0; i-- {
		stack = append(stack, frame{idx: d.Roots[i]})
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.visited {
			out = append(out, f.idx)
			continue
		}
		stack = append(stack, frame{idx: f.idx, visited: true})
		children := d.Nodes[f.idx].Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, frame{idx: children[i]})
		}
	}
	return out
}

// BlockCount returns the number of blocks owned by reachable sections.
func (d *DocumentTree) BlockCount() int {
	n := 0
	d.Walk(func(_ int, s *SectionNode) { n += len(s.Blocks) })
	return n
}

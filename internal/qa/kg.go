package qa

// KGStats extends the QA stats with node and edge totals.
type KGStats struct {
	Stats
	NodeCount      int            `json:"node_count"`
	EdgeCount      int            `json:"edge_count"`
	NodeTypeCounts map[string]int `json:"node_type_counts"`
}

// KGPayload is the knowledge-graph sidecar: one node list covering
// segments, referenced formulas and concepts.
type KGPayload struct {
	DocID   string    `json:"doc_id"`
	Version string    `json:"version"`
	Config  RunConfig `json:"config"`
	Stats   KGStats   `json:"stats"`
	Nodes   []Node    `json:"nodes"`
	Edges   []Edge    `json:"edges"`
}

// BuildKG flattens a QA payload into the graph view. Nodes are deduplicated
// by id: the first occurrence keeps its position, the last one wins.
// Edges missing an endpoint are dropped.
func BuildKG(p *Payload) *KGPayload {
	kg := &KGPayload{
		DocID:   p.DocID,
		Version: KGVersion,
		Config:  p.Config,
		Stats:   KGStats{Stats: p.Stats, NodeTypeCounts: map[string]int{}},
		Nodes:   []Node{},
		Edges:   []Edge{},
	}

	pos := make(map[string]int)
	add := func(n Node) {
		id := n.NodeID()
		if id == "" {
			return
		}
		if i, ok := pos[id]; ok {
			kg.Nodes[i] = n
			return
		}
		pos[id] = len(kg.Nodes)
		kg.Nodes = append(kg.Nodes, n)
	}
	for _, s := range p.Segments {
		add(s)
	}
	for _, f := range p.FormulaRefs {
		add(f)
	}
	for _, c := range p.ConceptRefs {
		add(c)
	}

	for _, e := range p.Edges {
		if e.SourceID == "" || e.TargetID == "" {
			continue
		}
		kg.Edges = append(kg.Edges, e)
	}

	for _, n := range kg.Nodes {
		t := n.NodeType()
		if t == "" {
			t = "unknown"
		}
		kg.Stats.NodeTypeCounts[t]++
	}
	kg.Stats.NodeCount = len(kg.Nodes)
	kg.Stats.EdgeCount = len(kg.Edges)
	return kg
}

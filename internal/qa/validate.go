package qa

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DefaultMinMatchRate is the source_match_rate floor for a healthy sidecar.
const DefaultMinMatchRate = 0.98

// ValidationError names the first check a sidecar failed.
type ValidationError struct {
	Check  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Check, e.Detail)
}

func fail(check, format string, args ...any) error {
	return &ValidationError{Check: check, Detail: fmt.Sprintf(format, args...)}
}

func missingKeys(obj map[string]json.RawMessage, required ...string) []string {
	var missing []string
	for _, k := range required {
		if _, ok := obj[k]; !ok {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	return missing
}

type idRecord struct {
	SegmentID   string `json:"segment_id"`
	SegmentType string `json:"segment_type"`
}

type edgeRecord struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
}

// Validate checks a serialized QA sidecar and returns the passed checks.
// A sidecar with no source-matchable segments skips the match-rate check.
func Validate(data []byte, minMatchRate float64) ([]string, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fail("decode", "%v", err)
	}
	var passed []string
	if m := missingKeys(top, "doc_id", "version", "stats", "segments", "edges"); len(m) > 0 {
		return passed, fail("schema", "missing top-level keys: [%s]", strings.Join(m, ", "))
	}
	passed = append(passed, "top-level schema keys present")

	var doc struct {
		Stats struct {
			SourceMatchRate float64 `json:"source_match_rate"`
		} `json:"stats"`
		Segments    []idRecord   `json:"segments"`
		Edges       []edgeRecord `json:"edges"`
		FormulaRefs []idRecord   `json:"formula_refs"`
		ConceptRefs []idRecord   `json:"concept_refs"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return passed, fail("decode", "%v", err)
	}

	matchable := 0
	for _, s := range doc.Segments {
		if sourceMatchTypes[s.SegmentType] {
			matchable++
		}
	}
	if matchable > 0 {
		if rate := doc.Stats.SourceMatchRate; rate < minMatchRate {
			return passed, fail("source_match_rate", "%.4f < %.4f", rate, minMatchRate)
		}
		passed = append(passed, fmt.Sprintf("source_match_rate >= threshold (%.4f)", doc.Stats.SourceMatchRate))
	}

	empty := 0
	known := make(map[string]bool)
	for _, s := range doc.Segments {
		if s.SegmentID == "" {
			empty++
			continue
		}
		known[s.SegmentID] = true
	}
	if empty > 0 {
		return passed, fail("segment_id", "segments with empty segment_id: %d", empty)
	}
	passed = append(passed, "all segments have segment_id")

	for _, r := range append(doc.FormulaRefs, doc.ConceptRefs...) {
		if r.SegmentID != "" {
			known[r.SegmentID] = true
		}
	}
	dangling := 0
	for _, e := range doc.Edges {
		if !known[e.SourceID] || !known[e.TargetID] {
			dangling++
		}
	}
	if dangling > 0 {
		return passed, fail("edges", "dangling edges referencing missing segment IDs: %d", dangling)
	}
	passed = append(passed, "all edges reference existing segment IDs")
	return passed, nil
}

// ValidateKG checks a serialized KG sidecar and returns the passed checks.
func ValidateKG(data []byte) ([]string, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fail("decode", "%v", err)
	}
	var passed []string
	if m := missingKeys(top, "doc_id", "version", "stats", "nodes", "edges"); len(m) > 0 {
		return passed, fail("schema", "missing top-level keys: [%s]", strings.Join(m, ", "))
	}
	passed = append(passed, "top-level schema keys present")

	var doc struct {
		Stats struct {
			NodeCount *int `json:"node_count"`
			EdgeCount *int `json:"edge_count"`
		} `json:"stats"`
		Nodes []idRecord                   `json:"nodes"`
		Edges []map[string]json.RawMessage `json:"edges"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return passed, fail("decode", "%v", err)
	}

	if len(doc.Nodes) == 0 {
		return passed, fail("nodes", "nodes is empty")
	}
	passed = append(passed, "nodes is non-empty")

	ids := make(map[string]bool, len(doc.Nodes))
	dup := 0
	for _, n := range doc.Nodes {
		if n.SegmentID == "" {
			return passed, fail("nodes", "node missing segment_id")
		}
		if ids[n.SegmentID] {
			dup++
		}
		ids[n.SegmentID] = true
	}
	if dup > 0 {
		return passed, fail("nodes", "duplicate node IDs found: %d", dup)
	}
	passed = append(passed, "node IDs are unique")

	dangling := 0
	for _, e := range doc.Edges {
		if m := missingKeys(e, "source_id", "target_id", "edge_type", "strength", "anchor_metadata"); len(m) > 0 {
			return passed, fail("edges", "edge missing required keys: [%s]", strings.Join(m, ", "))
		}
		var src, tgt string
		_ = json.Unmarshal(e["source_id"], &src)
		_ = json.Unmarshal(e["target_id"], &tgt)
		if !ids[src] || !ids[tgt] {
			dangling++
		}
	}
	if dangling > 0 {
		return passed, fail("edges", "dangling edges: %d", dangling)
	}
	passed = append(passed, "all edges reference existing nodes")

	if doc.Stats.NodeCount == nil || *doc.Stats.NodeCount != len(doc.Nodes) {
		return passed, fail("stats", "stats.node_count mismatch")
	}
	if doc.Stats.EdgeCount == nil || *doc.Stats.EdgeCount != len(doc.Edges) {
		return passed, fail("stats", "stats.edge_count mismatch")
	}
	passed = append(passed, "stats counts match payload")
	return passed, nil
}

package qa

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dgallion1/docgraph/internal/concepts"
	"github.com/dgallion1/docgraph/internal/refs"
)

// Linker cross-references segments with formulas and concepts. It may set
// formula and concept fields on the segments it is given.
type Linker interface {
	Link(ctx context.Context, segments, formulas []*Segment) ([]Edge, error)
}

// ConceptMatcher finds concept mentions in text.
type ConceptMatcher interface {
	Match(text string) []concepts.Link
}

// FormulaLinker links segments to formulas by equation-number mention,
// falling back to shared variable symbols on the same page, and to
// concepts through an optional glossary.
type FormulaLinker struct {
	Concepts ConceptMatcher
}

const overlapStrength = 0.6

var eqNumberRe = regexp.MustCompile(`\d+(?:\.\d+)*`)

func (l *FormulaLinker) Link(ctx context.Context, segments, formulas []*Segment) ([]Edge, error) {
	var edges []Edge
	byEq := make(map[string]*Segment)
	for _, f := range formulas {
		if n := eqNumberRe.FindString(f.EquationNumber); n != "" {
			if _, dup := byEq[n]; !dup {
				byEq[n] = f
			}
		}
		if l.Concepts != nil {
			f.ConceptLinks = l.Concepts.Match(strings.TrimSpace(f.TextContent + " " + f.ShortMeaning))
			for _, cl := range f.ConceptLinks {
				edges = append(edges, newEdge(f, cl.ConceptID, EdgeDefines, cl.Confidence, "heuristic", "concept_glossary"))
			}
		}
	}

	for _, s := range segments {
		if err := ctx.Err(); err != nil {
			return edges, err
		}
		if s.SegmentType == TypeFormula {
			continue
		}
		mentioned := mentionedFormulas(s.TextContent, byEq)
		switch s.SegmentType {
		case TypeDerivation:
			edges = append(edges, linkDerivation(s, mentioned, formulas)...)
		case TypeCalculation, TypeWorkedExample, TypeSolution:
			for _, f := range mentioned {
				s.ReferencedFormulaIDs = appendUnique(s.ReferencedFormulaIDs, f.SegmentID)
				edges = append(edges, newEdge(s, f.SegmentID, EdgeUsesFormula, 1.0, "exact", "equation_number"))
			}
			if len(mentioned) == 0 && s.SegmentType != TypeSolution {
				for _, f := range overlappingFormulas(s, formulas) {
					s.ReferencedFormulaIDs = appendUnique(s.ReferencedFormulaIDs, f.SegmentID)
					edges = append(edges, newEdge(s, f.SegmentID, EdgeUsesFormula, overlapStrength, "heuristic", "variable_overlap"))
				}
			}
		case TypeQuestion:
			for _, f := range mentioned {
				s.ReferencedFormulaIDs = appendUnique(s.ReferencedFormulaIDs, f.SegmentID)
				edges = append(edges, newEdge(s, f.SegmentID, EdgeReferences, 1.0, "exact", "equation_number"))
			}
		}

		if l.Concepts != nil {
			s.ConceptLinks = l.Concepts.Match(s.TextContent)
			if s.SegmentType == TypeWorkedExample {
				for _, cl := range s.ConceptLinks {
					edges = append(edges, newEdge(s, cl.ConceptID, EdgeWorkedExampleOf, cl.Confidence, "heuristic", "concept_glossary"))
				}
			}
		}
	}
	return edges, nil
}

// linkDerivation sets a derivation's source and target formulas. With two
// or more mentions the last is the result; a single mention is the result
// when it sits on or just after the derivation's pages.
func linkDerivation(s *Segment, mentioned, formulas []*Segment) []Edge {
	var edges []Edge
	var to *Segment
	from := mentioned
	method, strength, how := "equation_number", 1.0, "exact"
	switch {
	case len(mentioned) >= 2:
		to = mentioned[len(mentioned)-1]
		from = mentioned[:len(mentioned)-1]
	case len(mentioned) == 1 && mentioned[0].PageStart >= s.PageStart && mentioned[0].PageStart <= s.PageEnd+1:
		to = mentioned[0]
		from = nil
	case len(mentioned) == 0:
		if cands := overlappingFormulas(s, formulas); len(cands) > 0 {
			to = cands[0]
			method, strength, how = "variable_overlap", overlapStrength, "heuristic"
		}
	}

	for _, f := range from {
		s.DerivedFromFormulaIDs = appendUnique(s.DerivedFromFormulaIDs, f.SegmentID)
		edges = append(edges, newEdge(s, f.SegmentID, EdgeUsesFormula, 1.0, "exact", "equation_number"))
	}
	if to != nil {
		s.DerivedToFormulaID = to.SegmentID
		edges = append(edges, newEdge(s, to.SegmentID, EdgeExplains, strength, how, method))
	}
	if to != nil || len(from) > 0 {
		s.LinkType = "derives"
	}
	return edges
}

// mentionedFormulas resolves "Eq. (3.2)" style mentions, in text order.
func mentionedFormulas(text string, byEq map[string]*Segment) []*Segment {
	var out []*Segment
	seen := make(map[string]bool)
	for _, r := range refs.Extract(text) {
		if r.Type != refs.Equation {
			continue
		}
		f, ok := byEq[r.ID]
		if !ok || seen[f.SegmentID] {
			continue
		}
		seen[f.SegmentID] = true
		out = append(out, f)
	}
	return out
}

// overlappingFormulas returns formulas on the segment's pages sharing at
// least two variable symbols with its text.
func overlappingFormulas(s *Segment, formulas []*Segment) []*Segment {
	var out []*Segment
	for _, f := range formulas {
		if f.PageStart < s.PageStart || f.PageStart > s.PageEnd || len(f.Variables) < 2 {
			continue
		}
		shared := 0
		for _, v := range f.Variables {
			if symbolIn(v.Symbol, s.TextContent) {
				shared++
			}
		}
		if shared >= 2 {
			out = append(out, f)
		}
	}
	return out
}

func symbolIn(sym, text string) bool {
	if sym == "" {
		return false
	}
	re, err := regexp.Compile(`(?:^|[^A-Za-z0-9_])` + regexp.QuoteMeta(sym) + `(?:$|[^A-Za-z0-9_])`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

func newEdge(src *Segment, target, edgeType string, strength float64, linkMethod, method string) Edge {
	return Edge{
		EdgeID:     fmt.Sprintf("%s_%s_%s", strings.ToLower(edgeType), src.SegmentID, target),
		SourceID:   src.SegmentID,
		TargetID:   target,
		EdgeType:   edgeType,
		Strength:   strength,
		LinkMethod: linkMethod,
		AnchorMetadata: AnchorMeta{
			Method:  method,
			Page:    src.PageStart,
			Snippet: truncateText(src.TextContent, 180),
		},
	}
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// Package refs extracts numbered-object mentions ("Figure 3.2", "Eq. (4)")
// and links them to the units that carry those objects.
package refs

import (
	"regexp"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// Reference types.
const (
	Figure   = "figure"
	Table    = "table"
	Equation = "equation"
	Appendix = "appendix"
)

var patterns = []struct {
	kind string
	re   *regexp.Regexp
}{
	{Figure, regexp.MustCompile(`\b(?:Figure|Fig\.?)\s+(\d+(?:\.\d+)*)`)},
	{Table, regexp.MustCompile(`\b(?:Table|Tbl\.?)\s+(\d+(?:\.\d+)*)`)},
	{Equation, regexp.MustCompile(`\b(?:Equation|Eq\.?)\s*\(?\s*(\d+(?:\.\d+)*)\s*\)?`)},
	{Appendix, regexp.MustCompile(`\bAppendix\s+([A-Z])`)},
}

var numberRe = regexp.MustCompile(`\d+(?:\.\d+)*`)

type key struct {
	kind string
	id   string
}

// Extract returns the mentions in text, first occurrence per (type, id),
// grouped by type in figure, table, equation, appendix order.
func Extract(text string) []doctree.Reference {
	out := []doctree.Reference{}
	if text == "" {
		return out
	}
	seen := make(map[key]bool)
	for _, p := range patterns {
		for _, m := range p.re.FindAllStringSubmatch(text, -1) {
			k := key{p.kind, m[1]}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, doctree.Reference{Type: p.kind, ID: m[1], Raw: strings.TrimSpace(m[0])})
		}
	}
	return out
}

// Link resolves each unit's references against the figures, tables and
// formulas in units. equationNumbers maps a formula unit's SegmentID to an
// equation number found by enrichment. Resolutions already present are
// never changed, so Link can be rerun after enrichment.
func Link(units []doctree.Unit, equationNumbers map[string]string) {
	index := make(map[key]string)
	for i := range units {
		u := &units[i]
		if !isTarget(u.Type) || u.SegmentID == "" {
			continue
		}
		if u.Type == doctree.UnitFormula {
			if eq := numberRe.FindString(equationNumbers[u.SegmentID]); eq != "" {
				index[key{Equation, eq}] = u.SegmentID
			}
		}
		texts := []string{u.Content}
		if u.Caption != nil {
			texts = append(texts, *u.Caption)
		}
		for _, text := range texts {
			for _, r := range Extract(text) {
				index[key{r.Type, r.ID}] = u.SegmentID
			}
		}
	}

	// Figures and tables rarely restate their own number; fall back to a
	// number in the heading path when nothing stronger claimed it.
	for i := range units {
		u := &units[i]
		if (u.Type != doctree.UnitImage && u.Type != doctree.UnitTable) || u.SegmentID == "" {
			continue
		}
		for _, r := range Extract(u.HeadingPath) {
			k := key{r.Type, r.ID}
			if _, ok := index[k]; !ok {
				index[k] = u.SegmentID
			}
		}
	}

	for i := range units {
		for j := range units[i].References {
			r := &units[i].References[j]
			if r.TargetID != "" {
				continue
			}
			if target, ok := index[key{r.Type, r.ID}]; ok {
				r.TargetID = target
			}
		}
	}
}

func isTarget(t string) bool {
	return t == doctree.UnitImage || t == doctree.UnitTable || t == doctree.UnitFormula
}

package enrich

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
)

var (
	trailingEqNumRe = regexp.MustCompile(`\((\d+(?:\.\d+)*)\)\s*$`)
	eqLabelRe       = regexp.MustCompile(`(?i)\bEq\.?\s*(\d+(?:\.\d+)*)\b`)
	singleLetterRe  = regexp.MustCompile(`\b[a-zA-Z]\b`)
	greekRe         = regexp.MustCompile(`(?i)\b(alpha|beta|gamma|delta|sigma|mu|rho|theta|lambda|pi)\b`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

// FormulaItemAnalyzer derives formula metadata from the formula text alone:
// equation number, a whitespace-insensitive canonical key and the variable
// symbols it mentions.
type FormulaItemAnalyzer struct{}

func (FormulaItemAnalyzer) AnalyzeFormula(_ context.Context, req FormulaRequest) (*FormulaData, error) {
	raw := strings.TrimSpace(req.Text)
	if raw == "" {
		return nil, nil
	}
	key := CanonicalFormulaKey(raw)
	a := req.Anchor
	return &FormulaData{
		SegmentID:      fmt.Sprintf("formula_%s_p%d", key[:12], a.PageStart),
		BookID:         a.DocID,
		ChapterNumber:  a.ChapterNumber,
		ChapterTitle:   a.ChapterTitle,
		TextContent:    raw,
		FormulaTextRaw: raw,
		EquationNumber: EquationNumber(raw),
		CanonicalKey:   key,
		Variables:      variableSymbols(raw),
		UsageType:      "application",
		Confidence:     1.0,
		BBox:           a.BBox,
	}, nil
}

// EquationNumber returns a trailing "(4.2)" or an "Eq. 4.2" label.
func EquationNumber(text string) string {
	if m := trailingEqNumRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := eqLabelRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// CanonicalFormulaKey hashes the formula with all whitespace removed.
func CanonicalFormulaKey(text string) string {
	return doctree.ContentHashHex([]byte(whitespaceRe.ReplaceAllString(text, "")))
}

func variableSymbols(text string) []Variable {
	seen := make(map[string]bool)
	for _, s := range singleLetterRe.FindAllString(text, -1) {
		seen[s] = true
	}
	for _, s := range greekRe.FindAllString(text, -1) {
		seen[s] = true
	}
	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	slices.Sort(symbols)

	out := make([]Variable, len(symbols))
	for i, s := range symbols {
		out[i] = Variable{Symbol: s, Inferred: true, Source: "formula_only"}
	}
	return out
}

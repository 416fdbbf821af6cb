package qa

import (
	"regexp"
	"strings"
)

var (
	eqRefRe         = regexp.MustCompile(`\b(?:eq\.?|equation)\s*\(?\d+(?:\.\d+)*\)?`)
	weakTransformRe = regexp.MustCompile(`\b(?:substitut|rearrang|derive|solve\s+for)`)
	transformRe     = regexp.MustCompile(`\b(?:derive(?:d|s|ing)?|derivation|proof|substitut(?:e|ed|ing|ion)|` +
		`rearrang(?:e|ed|ing)|solve\s+for|rewrite|differentiat(?:e|ed|ing|ion)|integrat(?:e|ed|ing|ion)|by\s+definition)\b`)
)

// derivationWarnings flags derivations with thin evidence.
func derivationWarnings(s *Segment) []string {
	if s.SegmentType != TypeDerivation {
		return nil
	}
	text := strings.TrimSpace(s.TextContent)
	low := strings.ToLower(text)

	var warnings []string
	if len(s.Steps) < 2 {
		warnings = append(warnings, "derivation_low_step_evidence")
	}
	if !strings.Contains(text, "=") && !eqRefRe.MatchString(low) {
		warnings = append(warnings, "derivation_missing_math_anchor")
	}
	if !weakTransformRe.MatchString(low) {
		warnings = append(warnings, "derivation_missing_transform_verb")
	}
	return warnings
}

// RefineStats counts derivation refinement outcomes.
type RefineStats struct {
	Kept       int `json:"kept"`
	Downgraded int `json:"downgraded_to_calculation"`
	Dropped    int `json:"dropped_weak"`
}

// refineDerivations keeps derivations with a transform cue and a math
// anchor, downgrades math-heavy ones without the cue to calculations, and
// drops the rest.
func refineDerivations(segs []*Segment) ([]*Segment, RefineStats) {
	var stats RefineStats
	out := segs[:0]
	for _, s := range segs {
		if s.SegmentType != TypeDerivation {
			out = append(out, s)
			continue
		}
		text := strings.TrimSpace(s.TextContent)
		eqCount := strings.Count(text, "=")
		anchor := eqCount > 0 || strings.Contains(text, "->") || strings.Contains(text, "=>") ||
			strings.Contains(text, "⇒") || eqRefRe.MatchString(strings.ToLower(text))
		steps := 0
		for _, st := range s.Steps {
			if strings.TrimSpace(st) != "" {
				steps++
			}
		}

		switch {
		case anchor && transformRe.MatchString(strings.ToLower(text)):
			stats.Kept++
			out = append(out, s)
		case anchor && (steps >= 2 || eqCount >= 2):
			s.SegmentType = TypeCalculation
			if len(s.Steps) == 0 {
				s.Steps = fallbackSteps(text)
			}
			if len(s.Steps) > 12 {
				s.Steps = s.Steps[:12]
			}
			s.DerivedToFormulaID = ""
			s.DerivedFromFormulaIDs = nil
			s.LinkType = ""
			s.QualityWarnings = appendUnique(s.QualityWarnings, "downgraded_from_derivation")
			stats.Downgraded++
			out = append(out, s)
		default:
			stats.Dropped++
		}
	}
	return out, stats
}

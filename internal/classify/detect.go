// Package classify assigns semantic segment types to text and titles using
// ordered cue tables.
package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Segment types produced by DetectTextObject and DetectTitleObject.
const (
	Text                 = "text"
	Note                 = "note"
	Definition           = "definition"
	List                 = "list"
	Procedure            = "procedure"
	SolutionCandidate    = "solution_candidate"
	WorkedExampleCand    = "worked_example_candidate"
	DerivationCandidate  = "derivation_candidate"
	CalculationCandidate = "calculation_candidate"
	ProblemSets          = "problem_sets"
	ConceptCheck         = "concept_check"
	ConceptCheckSolution = "concept_check_solution"
	KeyTerms             = "key_terms"
	LearningObjectives   = "learning_objectives"
	References           = "references"
)

func ci(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

var (
	learningObjectivePatterns = ci(
		`^\s*learning objectives?\b`,
		`^\s*in this chapter, you will\b`,
		`^\s*after studying this chapter\b`,
		`^\s*what you will learn\b`,
	)
	keyTermPatterns = ci(
		`^\s*key terms?\b`,
		`^\s*key concepts?\b`,
		`^\s*glossary\b`,
	)
	problemSetPatterns = ci(
		`\bproblem sets?\b`,
		`\bproblems?\b`,
		`\bexercises?\b`,
		`\breview questions?\b`,
		`\bend[-\s]of[-\s]chapter problems?\b`,
	)
	conceptCheckPatterns = ci(
		`\bconcept checks?\b`,
	)
	conceptCheckSolutionPatterns = ci(
		`\bconcept check solutions?\b`,
		`\bconcept check answers?\b`,
		`\banswers to concept checks?\b`,
		`\bsolutions to concept checks?\b`,
	)
	referencePatterns = ci(
		`^\s*references?\b`,
		`^\s*bibliography\b`,
	)
	procedurePatterns = ci(
		`^\s*step\s+\d+\b`,
		`^\s*\d+\.\s+[A-Z]`,
		`^\s*\(\d+\)\s+[A-Z]`,
	)
	bulletPatterns = ci(
		`^\s*[-•]\s+`,
		`^\s*\d+\)\s+`,
		`^\s*[A-Za-z]\)\s+`,
		`^\s*\(\d+\)\s+`,
	)
	derivationPatterns = ci(
		`^\s*(?:derivation|proof)\b`,
		`\bwe\s+can\s+show\b`,
		`\bderive(?:d|s|ing)?\b`,
		`\bsubstitut(?:e|ed|ing|ion)\b`,
		`\brearrang(?:e|ed|ing)\b`,
		`\bsolve\s+for\b`,
	)
	calculationPatterns = ci(
		`\bcalculate\b`,
		`\bcompute\b`,
		`\bestimate\b`,
		`\bdetermine\b`,
		`\bfind\b`,
		`\busing\s+equation\b`,
	)
	solutionPatterns = ci(
		`^\s*solution\b`,
		`^\s*answer\b`,
		`\bsolution\s+to\b`,
		`\banswer\s+to\b`,
	)
	workedExamplePatterns = ci(
		`^\s*worked\s+example\b`,
		`^\s*example\s+\d+(?:\.\d+)*\b`,
		`^\s*illustration\b`,
		`\bgiven:`,
		`\bstep\s*1\b`,
	)
)

// Title object types in match order; "concept_check_solution" precedes
// "concept_check" because the latter's pattern also matches it.
var titleObjects = []struct {
	kind     string
	patterns []*regexp.Regexp
}{
	{ProblemSets, problemSetPatterns},
	{ConceptCheckSolution, conceptCheckSolutionPatterns},
	{ConceptCheck, conceptCheckPatterns},
	{KeyTerms, keyTermPatterns},
	{LearningObjectives, learningObjectivePatterns},
	{References, referencePatterns},
}

// Heading path cues checked before text cues.
var headingPathCues = []struct {
	kind     string
	keywords []string
}{
	{ProblemSets, []string{"problem set"}},
	{ConceptCheck, []string{"concept check"}},
	{KeyTerms, []string{"key term", "glossary"}},
	{LearningObjectives, []string{"learning objective"}},
	{References, []string{"references", "bibliography"}},
}

var (
	eqRefRe       = regexp.MustCompile(`\b(?:eq\.?|equation)\s*\(?\d+(?:\.\d+)*\)?`)
	assignRe      = regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9_]*\s*=`)
	derivHeadRe   = regexp.MustCompile(`^\s*(?:\d+\s*[.)]\s*)?(?:derivation|proof)\b`)
	transformRe   = regexp.MustCompile(`\b(?:derive(?:d|s|ing)?|substitut(?:e|ed|ing|ion)|rearrang(?:e|ed|ing)|solve\s+for|rewrite|differentiat(?:e|ed|ing|ion)|integrat(?:e|ed|ing|ion)|by\s+definition)\b`)
	weCanShowRe   = regexp.MustCompile(`\bwe\s+can\s+show\b`)
	notePrefixes  = []string{"note:", "source:"}
	definitionMax = 200
)

// DetectTextObject classifies a text block. Precedence is fixed: note,
// solution, worked example, derivation, calculation, list context cues,
// heading path cues, text cues, short colon line, plain text.
func DetectTextObject(text, headingPath string, listContext bool) string {
	t := strings.TrimSpace(text)
	if t == "" {
		return Text
	}
	hp := strings.ToLower(headingPath)
	low := strings.ToLower(t)

	for _, p := range notePrefixes {
		if strings.HasPrefix(low, p) {
			return Note
		}
	}
	switch {
	case matchAny(solutionPatterns, t):
		return SolutionCandidate
	case matchAny(workedExamplePatterns, t):
		return WorkedExampleCand
	case matchAny(derivationPatterns, t) && IsDerivationLike(t):
		return DerivationCandidate
	case matchAny(calculationPatterns, t):
		return CalculationCandidate
	}

	if listContext {
		if matchAny(procedurePatterns, t) {
			return Procedure
		}
		if matchAny(bulletPatterns, t) {
			return List
		}
	}

	for _, cue := range headingPathCues {
		for _, kw := range cue.keywords {
			if strings.Contains(hp, kw) {
				return cue.kind
			}
		}
	}

	switch {
	case matchAny(learningObjectivePatterns, t):
		return LearningObjectives
	case matchAny(keyTermPatterns, t):
		return KeyTerms
	case matchAny(problemSetPatterns, t):
		return ProblemSets
	case matchAny(conceptCheckSolutionPatterns, t):
		return ConceptCheckSolution
	case matchAny(conceptCheckPatterns, t):
		return ConceptCheck
	case matchAny(procedurePatterns, t):
		return Procedure
	case matchAny(bulletPatterns, t):
		return List
	}

	if strings.Contains(t, ":") && utf8.RuneCountInString(t) <= definitionMax {
		return Definition
	}
	return Text
}

// DetectTitleObject returns the structured-object type a title introduces,
// or "" when it is an ordinary heading.
func DetectTitleObject(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	if t == "" {
		return ""
	}
	for _, obj := range titleObjects {
		if matchAny(obj.patterns, t) {
			return obj.kind
		}
	}
	return ""
}

// HasMathAnchor reports an "=" sign, an arrow, an equation-number reference
// or a symbolic assignment.
func HasMathAnchor(text string) bool {
	if strings.Contains(text, "=") || strings.Contains(text, "->") || strings.Contains(text, "⇒") {
		return true
	}
	if eqRefRe.MatchString(strings.ToLower(text)) {
		return true
	}
	return assignRe.MatchString(text)
}

// HasTransformCue reports a derivation verb (derive, substitute, rearrange,
// solve for, rewrite, differentiate, integrate, by definition).
func HasTransformCue(text string) bool {
	return transformRe.MatchString(strings.ToLower(text))
}

// IsDerivationLike accepts explicit derivation/proof headings, or text with
// both a transformation cue (or "we can show") and a math anchor.
func IsDerivationLike(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	low := strings.ToLower(t)
	if derivHeadRe.MatchString(low) {
		return true
	}
	if !HasMathAnchor(t) {
		return false
	}
	return transformRe.MatchString(low) || weCanShowRe.MatchString(low)
}

package classify

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/docgraph/internal/doctree"
)

// QA zones.
const (
	ZoneConceptCheck         = "concept_check"
	ZoneConceptCheckSolution = "concept_check_solution"
	ZoneProblemSet           = "problem_set"
	ZoneOther                = "other"
)

// Candidate roles hinted to the QA graph builder.
const (
	RoleSolution      = "solution_candidate"
	RoleWorkedExample = "worked_example_candidate"
	RoleDerivation    = "derivation_candidate"
	RoleCalculation   = "calculation_candidate"
	RoleQuestion      = "question_candidate"
	RoleNone          = "none"
)

var (
	solutionZoneCues = []string{
		"concept check solution",
		"solutions to concept checks",
		"solution to concept checks",
		"answers to concept checks",
	}
	problemZoneCues = []string{"problem set", "review question", "end-of-chapter problem", "exercise"}
)

// DetectQAZone derives the QA zone from the heading path, then the segment type.
func DetectQAZone(headingPath, segmentType string) string {
	hp := strings.ToLower(headingPath)
	for _, c := range solutionZoneCues {
		if strings.Contains(hp, c) {
			return ZoneConceptCheckSolution
		}
	}
	if strings.Contains(hp, "concept check") {
		return ZoneConceptCheck
	}
	for _, c := range problemZoneCues {
		if strings.Contains(hp, c) {
			return ZoneProblemSet
		}
	}
	switch strings.ToLower(segmentType) {
	case ConceptCheckSolution, SolutionCandidate:
		return ZoneConceptCheckSolution
	case ConceptCheck:
		return ZoneConceptCheck
	case ProblemSets:
		return ZoneProblemSet
	}
	return ZoneOther
}

// CandidateRole maps a segment type to the QA role it hints at.
func CandidateRole(segmentType string) string {
	switch strings.ToLower(segmentType) {
	case SolutionCandidate, ConceptCheckSolution:
		return RoleSolution
	case WorkedExampleCand:
		return RoleWorkedExample
	case DerivationCandidate:
		return RoleDerivation
	case CalculationCandidate:
		return RoleCalculation
	case ProblemSets, ConceptCheck:
		return RoleQuestion
	}
	return RoleNone
}

var (
	numberingRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(?:question\s+)?q?\s*(\d+(?:\.\d+)*)\s*(?:[):.]|\s)`),
		regexp.MustCompile(`(?i)^\(?(\d+(?:\.\d+)*)\)?\s*(?:[):.]|\s)`),
		regexp.MustCompile(`(?i)^concept\s+check\s+(\d+(?:\.\d+)*)\b`),
	}
	nonNumDot = regexp.MustCompile(`[^0-9.]`)
)

// NormalizeQNum keeps digits and dots and trims surrounding dots.
func NormalizeQNum(s string) string {
	return strings.Trim(nonNumDot.ReplaceAllString(s, ""), ".")
}

// ExtractNumbering parses a leading question number ("Q3", "2.1)", "Concept Check 4").
func ExtractNumbering(text string) *doctree.Numbering {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil
	}
	var raw string
	for _, re := range numberingRes {
		if m := re.FindStringSubmatch(t); m != nil {
			raw = m[1]
			break
		}
	}
	norm := NormalizeQNum(raw)
	if norm == "" {
		return nil
	}
	parts := strings.Split(norm, ".")
	n := &doctree.Numbering{Raw: raw, Normalized: norm, Parent: parts[0]}
	if len(parts) > 1 {
		n.Parent = strings.Join(parts[:len(parts)-1], ".")
		n.Subpart = parts[len(parts)-1]
	}
	return n
}

var (
	numberedTitleRe = regexp.MustCompile(`^\d+(?:\.\d+)+\s+[A-Z]`)
	wordRe          = regexp.MustCompile(`[A-Za-z]+`)
	reasoningCueRe  = regexp.MustCompile(`(?i)\b(?:solution|answer|therefore|thus|we find|we get)\b`)
)

// IsHeadingLike reports section-title shaped text ("2.1 The Money Market",
// or a short digit-led line without reasoning cues).
func IsHeadingLike(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	if numberedTitleRe.MatchString(t) {
		return true
	}
	if len(wordRe.FindAllString(t, -1)) > 8 {
		return false
	}
	if strings.ContainsAny(t, ":=") || reasoningCueRe.MatchString(t) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(t)
	return unicode.IsDigit(r)
}

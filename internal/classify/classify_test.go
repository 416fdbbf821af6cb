package classify

import "testing"

func TestDetectTextObject_Precedence(t *testing.T) {
	cases := []struct {
		text, hp string
		list     bool
		want     string
	}{
		{"", "", false, Text},
		{"Note: prices are nominal.", "", false, Note},
		{"Solution: the price rises.", "", false, SolutionCandidate},
		{"Example 3.1 A bond pricing problem", "", false, WorkedExampleCand},
		{"Substituting (2) gives r = rf + beta(rm - rf).", "", false, DerivationCandidate},
		{"We derive the demand curve from preferences.", "", false, Text},
		{"Calculate the present value of the annuity.", "", false, CalculationCandidate},
		{"Step 2 Add the interest", "", true, Procedure},
		{"- a bullet item", "", true, List},
		{"Elasticity measures responsiveness.", "Ch 1 > Problem Sets", false, ProblemSets},
		{"Plain sentence about markets.", "Chapter 2 > Concept Check 2.1", false, ConceptCheck},
		{"Learning objectives for this part", "", false, LearningObjectives},
		{"Review questions follow.", "", false, ProblemSets},
		{"Elasticity: responsiveness of quantity", "", false, Definition},
		{"Markets coordinate trade.", "", false, Text},
	}
	for _, c := range cases {
		if got := DetectTextObject(c.text, c.hp, c.list); got != c.want {
			t.Errorf("DetectTextObject(%q, %q, %v): expected %q, got %q", c.text, c.hp, c.list, c.want, got)
		}
	}
}

func TestDetectTitleObject(t *testing.T) {
	cases := map[string]string{
		"Problem Sets":              ProblemSets,
		"Concept Check Solutions":   ConceptCheckSolution,
		"Concept Check 3":           ConceptCheck,
		"Key Terms":                 KeyTerms,
		"LEARNING OBJECTIVES":       LearningObjectives,
		"References":                References,
		"2.1 The Money Market":      "",
		"Answers to Concept Checks": ConceptCheckSolution,
		"":                          "",
	}
	for in, want := range cases {
		if got := DetectTitleObject(in); got != want {
			t.Errorf("DetectTitleObject(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestHasMathAnchor(t *testing.T) {
	for _, s := range []string{"x = 2", "a -> b", "see Equation (3.2)", "follows from eq. 4"} {
		if !HasMathAnchor(s) {
			t.Errorf("expected math anchor in %q", s)
		}
	}
	if HasMathAnchor("We can show this is true.") {
		t.Error("expected no math anchor in plain text")
	}
}

func TestListPredicates(t *testing.T) {
	for _, s := range []string{"- item", "• item", "1. First", "2) second", "(3) third", "a) alpha"} {
		if !IsListItem(s) {
			t.Errorf("expected list item: %q", s)
		}
	}
	if IsListItem("1.5 percent growth") {
		t.Error("expected decimal number not to be a list marker")
	}
	for _, s := range []string{"Step 4 Repeat", "First, collect data", "finally: stop"} {
		if !IsProcedureItem(s) {
			t.Errorf("expected procedure item: %q", s)
		}
	}
	if !IsListContinuation("and then the rest") || !IsListContinuation("continued here") {
		t.Error("expected continuation lines")
	}
	if IsListContinuation("Then stop") || IsListContinuation("New sentence") {
		t.Error("expected non-continuation lines")
	}
	if !IsListContext("Chapter 1 > Checklist") || IsListContext("Chapter 1 > Markets") {
		t.Error("unexpected list context result")
	}
}

func TestDetectQAZone(t *testing.T) {
	cases := []struct {
		hp, st, want string
	}{
		{"Ch 2 > Solutions to Concept Checks", "", ZoneConceptCheckSolution},
		{"Ch 2 > Concept Check 2.1", "", ZoneConceptCheck},
		{"Ch 2 > End-of-Chapter Problems", "", ZoneProblemSet},
		{"Ch 2 > Markets", "solution_candidate", ZoneConceptCheckSolution},
		{"Ch 2 > Markets", "problem_sets", ZoneProblemSet},
		{"Ch 2 > Markets", "text", ZoneOther},
	}
	for _, c := range cases {
		if got := DetectQAZone(c.hp, c.st); got != c.want {
			t.Errorf("DetectQAZone(%q, %q): expected %q, got %q", c.hp, c.st, c.want, got)
		}
	}
}

func TestCandidateRole(t *testing.T) {
	if CandidateRole("concept_check_solution") != RoleSolution {
		t.Error("expected solution role")
	}
	if CandidateRole("concept_check") != RoleQuestion {
		t.Error("expected question role")
	}
	if CandidateRole("text") != RoleNone {
		t.Error("expected no role")
	}
}

func TestExtractNumbering(t *testing.T) {
	cases := []struct {
		in                  string
		norm, parent, subpt string
	}{
		{"Q3. What is money?", "3", "3", ""},
		{"2.1) Explain", "2.1", "2", "1"},
		{"(4) Compute", "4", "4", ""},
		{"Question 7 Why", "7", "7", ""},
	}
	for _, c := range cases {
		n := ExtractNumbering(c.in)
		if n == nil {
			t.Fatalf("ExtractNumbering(%q): expected numbering", c.in)
		}
		if n.Normalized != c.norm || n.Parent != c.parent || n.Subpart != c.subpt {
			t.Errorf("ExtractNumbering(%q): expected %s/%s/%s, got %+v", c.in, c.norm, c.parent, c.subpt, n)
		}
	}
	if ExtractNumbering("Why is money useful?") != nil {
		t.Error("expected no numbering")
	}
}

func TestIsHeadingLike(t *testing.T) {
	if !IsHeadingLike("2.1 The Money Market") {
		t.Error("expected numbered title to be heading-like")
	}
	if !IsHeadingLike("3 Inflation") {
		t.Error("expected short digit-led line to be heading-like")
	}
	if IsHeadingLike("2 Therefore the rate falls") {
		t.Error("expected reasoning cue to block heading-like")
	}
	if IsHeadingLike("Markets coordinate trade") {
		t.Error("expected plain text not heading-like")
	}
}

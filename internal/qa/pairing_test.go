package qa

import (
	"strings"
	"testing"
)

func seg(id, typ string, page int, text string) *Segment {
	return &Segment{SegmentID: id, SegmentType: typ, PageStart: page, PageEnd: page, TextContent: text}
}

func TestQNumSuffixMatches(t *testing.T) {
	tests := []struct {
		q, s string
		want bool
	}{
		{"3.4", "4", true},
		{"3.4", "3.4", true},
		{"3.4", "3.5", false},
		{"na", "na", false},
		{"", "1", false},
	}
	for _, tt := range tests {
		if got := qnumSuffixMatches(tt.q, tt.s); got != tt.want {
			t.Errorf("qnumSuffixMatches(%q, %q): expected %v, got %v", tt.q, tt.s, tt.want, got)
		}
	}
}

func TestChapterMain(t *testing.T) {
	tests := []struct {
		chapter, path, want string
	}{
		{"4", "", "4"},
		{"unknown", "Chapter 7 Money > Problems", "7"},
		{"", "Intro > 3.2 Elasticity", "3"},
		{"", "Preface", "na"},
	}
	for _, tt := range tests {
		s := &Segment{ChapterNumber: tt.chapter, HeadingPath: tt.path}
		if got := chapterMain(s); got != tt.want {
			t.Errorf("chapterMain(%q, %q): expected %q, got %q", tt.chapter, tt.path, tt.want, got)
		}
	}
}

func TestAnnotateKeys_TextFallbackAndHint(t *testing.T) {
	q := seg("q1", TypeQuestion, 10, "Q2 Explain why the supply curve slopes upward in the short run?")
	q.ChapterNumber = "5"
	q.HeadingPath = "Chapter 5 > Concept Check"
	sol := seg("s1", TypeSolution, 12, "2. Because higher prices make more production profitable, therefore supply rises.")
	sol.HeadingPath = "Answers to Concept Checks"

	annotateKeys([]*Segment{q, sol}, nil, 120)
	if q.QuestionKey != "5|concept_check|2" {
		t.Errorf("expected %q, got %q", "5|concept_check|2", q.QuestionKey)
	}
	if sol.SolutionKey != "5|concept_check_solution|2" {
		t.Errorf("expected chapter borrowed from nearby question, got %q", sol.SolutionKey)
	}
}

func TestPairAnswers_ZoneCompatibleNearest(t *testing.T) {
	q1 := seg("q1", TypeQuestion, 10, "Explain the effect of a tax on supply in detail?")
	q1.ChapterNumber = "5"
	q1.HeadingPath = "Chapter 5 > Concept Check"
	q1.QuestionKey = "5|concept_check|1"
	q2 := seg("q2", TypeQuestion, 40, "Explain the effect of a subsidy on supply in detail?")
	q2.ChapterNumber = "5"
	q2.HeadingPath = "Chapter 5 > Concept Check"
	q2.QuestionKey = "5|concept_check|2"

	sol := seg("s1", TypeSolution, 14, "The tax shifts supply left, therefore price rises.")
	sol.ChapterNumber = "5"
	sol.HeadingPath = "Chapter 5 > Answers to Concept Checks"
	sol.SolutionKey = "5|concept_check_solution|na"

	stale := Edge{EdgeID: "old", SourceID: "s1", TargetID: "q2", EdgeType: EdgeAnswerOf}
	keep := Edge{EdgeID: "ref", SourceID: "q1", TargetID: "f1", EdgeType: EdgeReferences}

	edges := pairAnswers([]*Segment{q1, q2, sol}, []Edge{stale, keep}, DefaultConfig())
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(edges))
	}
	if edges[0].EdgeID != "ref" {
		t.Errorf("expected non-answer edge kept first, got %q", edges[0].EdgeID)
	}
	ans := edges[1]
	if ans.TargetID != "q1" || ans.AnchorMetadata.Method != "chapter_zone_nearest" {
		t.Errorf("expected q1 via chapter_zone_nearest, got %q via %q", ans.TargetID, ans.AnchorMetadata.Method)
	}
	if ans.Strength != 0.85 || ans.LinkMethod != "heuristic" {
		t.Errorf("expected heuristic 0.85, got %s %v", ans.LinkMethod, ans.Strength)
	}
	if sol.SolutionForQuestionID != "q1" {
		t.Errorf("expected solution_for_question_id q1, got %q", sol.SolutionForQuestionID)
	}
}

func TestPairAnswers_QuestionTakesOneAnswer(t *testing.T) {
	q := seg("q1", TypeQuestion, 3, "Calculate the price elasticity of demand at the midpoint?")
	q.QuestionKey = "1|problem_set|1"
	s1 := seg("s1", TypeSolution, 4, "Using the midpoint formula we find elasticity = 1.5")
	s1.SolutionKey = "1|problem_set|1"
	s2 := seg("s2", TypeSolution, 5, "Using the midpoint formula we find elasticity = 1.5 again")
	s2.SolutionKey = "1|problem_set|1"

	edges := pairAnswers([]*Segment{q, s1, s2}, nil, DefaultConfig())
	if len(edges) != 1 {
		t.Fatalf("expected 1 ANSWER_OF edge, got %d", len(edges))
	}
	if edges[0].SourceID != "s1" || edges[0].Strength != 1.0 {
		t.Errorf("expected exact pairing from s1, got %+v", edges[0])
	}
	if s2.SolutionForQuestionID != "" {
		t.Errorf("expected s2 unpaired, got %q", s2.SolutionForQuestionID)
	}
}

func TestNearestPage_Window(t *testing.T) {
	s := seg("s", TypeSolution, 100, "")
	far := seg("q", TypeQuestion, 10, "")
	if got := nearestPage(s, []*Segment{far}, 25); got != nil {
		t.Errorf("expected nil outside window, got %q", got.SegmentID)
	}
	if got := nearestPage(s, []*Segment{far}, -1); got != far {
		t.Error("expected unbounded window to accept")
	}
}

func TestAnnotateSolutionStatus(t *testing.T) {
	q1 := seg("q1", TypeQuestion, 1, "")
	q2 := seg("q2", TypeQuestion, 2, "")
	annotateSolutionStatus([]*Segment{q1, q2}, []Edge{{SourceID: "s", TargetID: "q1", EdgeType: EdgeAnswerOf}})
	if q1.SolutionStatus != StatusLinked || q2.SolutionStatus != StatusNotFound {
		t.Errorf("expected linked/not_found, got %q/%q", q1.SolutionStatus, q2.SolutionStatus)
	}
}

func TestPruneSolutions(t *testing.T) {
	linked := seg("s_linked", TypeSolution, 1, "Short.")
	seeded := seg(seededPrefix+"seg_x", TypeSolution, 2, "1. Therefore the answer is 4 units of output.")
	questionLike := seg("s_q", TypeSolution, 3, "What happens to price when supply rises sharply?")
	heading := seg("s_h", TypeSolution, 4, "Chapter 3 Elasticity and its many uses in policy analysis")
	good := seg("s_ok", TypeSolution, 5, "Demand rises, so we find the price increases to 12 dollars.")
	q := seg("q", TypeQuestion, 1, "Calculate something useful about markets today?")

	edges := []Edge{
		{SourceID: "s_linked", TargetID: "q", EdgeType: EdgeAnswerOf},
		{SourceID: "s_q", TargetID: "f1", EdgeType: EdgeUsesFormula},
	}
	kept, outEdges, stats := pruneSolutions([]*Segment{linked, seeded, questionLike, heading, good, q}, edges)

	ids := make([]string, 0, len(kept))
	for _, s := range kept {
		ids = append(ids, s.SegmentID)
	}
	if strings.Join(ids, ",") != "s_linked,s_ok,q" {
		t.Errorf("unexpected survivors %v", ids)
	}
	if stats.Seeded != 1 || stats.QuestionLike != 1 || stats.HeadingLike != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if len(outEdges) != 1 || outEdges[0].SourceID != "s_linked" {
		t.Errorf("expected edges of dropped solutions removed, got %+v", outEdges)
	}
}

func TestPruneQuestions_Placeholders(t *testing.T) {
	ph := seg("q_ph", TypeQuestion, 1, "Concept Check 3")
	short := seg("q_short", TypeQuestion, 1, "4) Taxes")
	full := seg("q_real", TypeQuestion, 1, "Explain how a price ceiling creates a shortage?")
	sol := seg("s", TypeSolution, 2, "A ceiling below equilibrium, therefore shortage.")
	sol.SolutionForQuestionID = "q_ph"

	edges := []Edge{{SourceID: "s", TargetID: "q_ph", EdgeType: EdgeAnswerOf}}
	kept, outEdges, stats := pruneQuestions([]*Segment{ph, short, full, sol}, edges)
	if len(kept) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(kept))
	}
	if stats.Placeholder != 2 {
		t.Errorf("expected 2 placeholders, got %d", stats.Placeholder)
	}
	if len(outEdges) != 0 {
		t.Errorf("expected edge to dropped question removed, got %d", len(outEdges))
	}
	if sol.SolutionForQuestionID != "" {
		t.Errorf("expected dangling pairing cleared, got %q", sol.SolutionForQuestionID)
	}
}

func TestPruneDangling(t *testing.T) {
	edges := []Edge{
		{SourceID: "a", TargetID: "b"},
		{SourceID: "a", TargetID: "missing"},
	}
	out := pruneDangling(edges, map[string]bool{"a": true, "b": true})
	if len(out) != 1 || out[0].TargetID != "b" {
		t.Errorf("expected only a->b, got %+v", out)
	}
}

func TestPairAnswers_SkipsHeadingLikeSolution(t *testing.T) {
	q := seg("q1", TypeQuestion, 10, "Explain how the central bank changes the money supply?")
	q.ChapterNumber = "2"
	q.HeadingPath = "Chapter 2 Money > Problem Set"
	q.QuestionKey = "2|problem_set|1"
	heading := seg("s1", TypeSolution, 11, "2.1 The Money Market")
	heading.ChapterNumber = "2"
	heading.HeadingPath = "Chapter 2 Money > Problem Set"
	heading.SolutionForQuestionID = "q1"

	if isPairable(heading) {
		t.Fatal("expected heading-like solution to be unpairable")
	}
	edges := pairAnswers([]*Segment{q, heading}, nil, DefaultConfig())
	if len(edges) != 0 {
		t.Fatalf("expected no ANSWER_OF edge, got %+v", edges)
	}
	if heading.SolutionForQuestionID != "" {
		t.Errorf("expected stale pairing cleared, got %q", heading.SolutionForQuestionID)
	}

	kept, _, _ := pruneSolutions([]*Segment{q, heading}, edges)
	if len(kept) != 1 || kept[0].SegmentID != "q1" {
		t.Errorf("expected heading-like solution pruned, got %d survivors", len(kept))
	}
}

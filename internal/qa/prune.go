package qa

import (
	"regexp"
	"strings"

	"github.com/dgallion1/docgraph/internal/classify"
)

// SolutionPruneStats counts dropped unlinked solutions by cause.
type SolutionPruneStats struct {
	Seeded       int `json:"dropped_unlinked_seeded"`
	QuestionLike int `json:"dropped_unlinked_question_like"`
	HeadingLike  int `json:"dropped_unlinked_heading_like"`
}

func (s *SolutionPruneStats) add(o SolutionPruneStats) {
	s.Seeded += o.Seeded
	s.QuestionLike += o.QuestionLike
	s.HeadingLike += o.HeadingLike
}

// QuestionPruneStats counts dropped placeholder questions.
type QuestionPruneStats struct {
	Placeholder int `json:"dropped_placeholder_question"`
}

var (
	solutionCueRe      = regexp.MustCompile(`(?i)\b(?:solution|answer|therefore|thus|we\s+find|we\s+get)\b`)
	headingSolutionRe  = regexp.MustCompile(`^\s*\d+(?:\.\d+)+\s+[A-Z][A-Za-z].{0,120}$`)
	chapterHeadRe      = regexp.MustCompile(`^\s*(?:chapter|ch)\s+\d+\b`)
	placeholderCheckRe = regexp.MustCompile(`^\s*concept\s+check\s+\d+(?:\.\d+)*\s*$`)
	placeholderNumRe   = regexp.MustCompile(`^\s*\d+\s*[.)]\s*[A-Za-z]{1,12}\s*$`)
	questionVerbRe     = regexp.MustCompile(`\b(?:calculate|compute|determine|find|explain|discuss)\b`)
)

// isFalseSolution reports a solution too short or heading-shaped to be an
// answer, with no answer cue and no "=".
func isFalseSolution(s *Segment) bool {
	if s.SegmentType != TypeSolution {
		return false
	}
	text := strings.TrimSpace(s.TextContent)
	if text == "" {
		return true
	}
	short := len(wordRe.FindAllString(text, -1)) <= 8
	return (classify.IsHeadingLike(text) || short) && !solutionCueRe.MatchString(text) && !strings.Contains(text, "=")
}

func isHeadingLikeSolutionText(text string) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return false
	}
	low := strings.ToLower(t)
	if headingSolutionRe.MatchString(t) && !strings.ContainsAny(t, "?=") && !strings.Contains(low, "therefore") {
		return true
	}
	return chapterHeadRe.MatchString(low)
}

// pruneSolutions drops solutions without an ANSWER_OF edge that were
// seeded, read like questions, or read like headings, together with any
// edge touching them.
func pruneSolutions(segs []*Segment, edges []Edge) ([]*Segment, []Edge, SolutionPruneStats) {
	var stats SolutionPruneStats
	linked := make(map[string]bool)
	for _, e := range edges {
		if e.EdgeType == EdgeAnswerOf {
			linked[e.SourceID] = true
		}
	}

	dropped := make(map[string]bool)
	kept := make([]*Segment, 0, len(segs))
	for _, s := range segs {
		if s.SegmentType != TypeSolution || linked[s.SegmentID] {
			kept = append(kept, s)
			continue
		}
		text := strings.TrimSpace(s.TextContent)
		role := strings.ToLower(s.SourceChunkCandidateRole)
		switch {
		case strings.HasPrefix(s.SegmentID, seededPrefix):
			stats.Seeded++
		case strings.Contains(text, "?") || role == classify.RoleQuestion || isFalseSolution(s):
			stats.QuestionLike++
		case isHeadingLikeSolutionText(text):
			stats.HeadingLike++
		default:
			kept = append(kept, s)
			continue
		}
		dropped[s.SegmentID] = true
	}
	return kept, dropEdges(edges, dropped), stats
}

// pruneQuestions drops placeholder questions ("Concept Check 3", "4) Tax",
// two-word fragments without a question mark or verb) and their edges.
func pruneQuestions(segs []*Segment, edges []Edge) ([]*Segment, []Edge, QuestionPruneStats) {
	var stats QuestionPruneStats
	dropped := make(map[string]bool)
	kept := make([]*Segment, 0, len(segs))
	for _, s := range segs {
		if s.SegmentType != TypeQuestion || !isPlaceholderQuestion(s.TextContent) {
			kept = append(kept, s)
			continue
		}
		if s.SegmentID != "" {
			dropped[s.SegmentID] = true
			stats.Placeholder++
		}
	}
	if len(dropped) == 0 {
		return segs, edges, stats
	}
	for _, s := range kept {
		if dropped[s.SolutionForQuestionID] {
			s.SolutionForQuestionID = ""
		}
	}
	return kept, dropEdges(edges, dropped), stats
}

func isPlaceholderQuestion(text string) bool {
	t := strings.TrimSpace(text)
	low := strings.ToLower(t)
	if placeholderCheckRe.MatchString(low) || placeholderNumRe.MatchString(t) {
		return true
	}
	return len(wordRe.FindAllString(t, -1)) <= 2 && !strings.Contains(t, "?") && !questionVerbRe.MatchString(low)
}

func dropEdges(edges []Edge, ids map[string]bool) []Edge {
	if len(ids) == 0 {
		return edges
	}
	out := edges[:0:0]
	for _, e := range edges {
		if ids[e.SourceID] || ids[e.TargetID] {
			continue
		}
		out = append(out, e)
	}
	return out
}

// pruneDangling keeps edges whose endpoints are both known ids.
func pruneDangling(edges []Edge, known map[string]bool) []Edge {
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if known[e.SourceID] && known[e.TargetID] {
			out = append(out, e)
		}
	}
	return out
}

package qa

import (
	"regexp"
	"strings"

	"github.com/dgallion1/docgraph/internal/classify"
	"github.com/dgallion1/docgraph/internal/doctree"
)

const seededPrefix = "seeded_solution_"

var (
	numeralStartRe = regexp.MustCompile(`^\s*\d+\s*[.)]`)
	seedCueRe      = regexp.MustCompile(`(?i)\b(?:therefore|thus|hence|we\s+find|we\s+get|answer)\b`)
	unitNumberRe   = regexp.MustCompile(`\b\d+(?:\.\d+)?\s*[%$]`)
)

// isAnswerLike reports concept-check chunks that read as answers: hinted
// solution candidates, or numbered lines with an answer cue or long math.
// Problem-set chunks are never seeded.
func isAnswerLike(u *doctree.Unit) bool {
	text := strings.TrimSpace(u.Content)
	if text == "" || classify.IsHeadingLike(text) {
		return false
	}
	zone := strings.ToLower(u.QAZoneType)
	if zone != classify.ZoneConceptCheck && zone != classify.ZoneConceptCheckSolution {
		return false
	}
	if strings.Contains(text, "?") {
		return false
	}
	if strings.ToLower(u.CandidateRole) == classify.RoleSolution {
		return true
	}
	if !numeralStartRe.MatchString(text) {
		return false
	}
	math := strings.Contains(text, "=") || unitNumberRe.MatchString(text)
	return seedCueRe.MatchString(text) || (math && len(strings.Fields(text)) >= 14)
}

// seedSolutions adds review-flagged solutions for answer-like chunks that
// no extracted solution came from.
func seedSolutions(segs []*Segment, units []doctree.Unit, docID string) []*Segment {
	covered := make(map[string]bool)
	ids := make(map[string]bool)
	for _, s := range segs {
		if s.SegmentType == TypeSolution && s.SourceChunkID != "" {
			covered[s.SourceChunkID] = true
		}
		ids[s.SegmentID] = true
	}

	for i := range units {
		u := &units[i]
		if !isTextUnit(u) || u.SegmentID == "" || covered[u.SegmentID] || !isAnswerLike(u) {
			continue
		}
		id := seededPrefix + u.SegmentID
		if ids[id] {
			continue
		}
		pages := unitPages(u)
		text := strings.TrimSpace(u.Content)
		chapter := u.ChapterMain
		if chapter == "" {
			chapter = "unknown"
		}
		seg := &Segment{
			SegmentID:     id,
			SegmentType:   TypeSolution,
			BookID:        docID,
			ChapterNumber: chapter,
			PageStart:     pages[0],
			PageEnd:       pages[len(pages)-1],
			TextContent:   text,
			SolutionSteps: fallbackSteps(text),
			HeadingPath:   u.HeadingPath,
			NeedsReview:   true,

			SourceChunkID:            u.SegmentID,
			SourceChunkHeadingPath:   u.HeadingPath,
			SourceMatchMethod:        MatchSeeded,
			SourceChunkCandidateRole: u.CandidateRole,
			SourceChunkQAZoneType:    u.QAZoneType,
		}
		if b := u.Box(); b != nil {
			seg.BBox = &PageBox{Page: pages[0], X0: b.X0, Y0: b.Y0, X1: b.X1, Y1: b.Y1}
		}
		segs = append(segs, seg)
		ids[id] = true
	}
	return segs
}

package qa

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dgallion1/docgraph/internal/classify"
)

// qaKey joins chapter, zone and question number into a pairing key.
func qaKey(chapter, zone, qnum string) string {
	if chapter == "" {
		chapter = "na"
	}
	if zone == "" {
		zone = classify.ZoneOther
	}
	if qnum == "" {
		qnum = "na"
	}
	return chapter + "|" + zone + "|" + qnum
}

func qnumFromKey(key string) string {
	parts := strings.Split(key, "|")
	if len(parts) != 3 {
		return ""
	}
	return parts[2]
}

// qnumSuffixMatches compares question numbers by their last component.
func qnumSuffixMatches(q, s string) bool {
	q, s = strings.TrimSpace(q), strings.TrimSpace(s)
	if q == "" || s == "" || q == "na" || s == "na" {
		return false
	}
	if q == s {
		return true
	}
	qp := strings.Split(q, ".")
	sp := strings.Split(s, ".")
	return qp[len(qp)-1] == sp[len(sp)-1]
}

func zonesCompatible(q, s string) bool {
	q, s = strings.ToLower(strings.TrimSpace(q)), strings.ToLower(strings.TrimSpace(s))
	if q == s {
		return true
	}
	return (q == classify.ZoneConceptCheck && s == classify.ZoneConceptCheckSolution) ||
		(q == classify.ZoneConceptCheckSolution && s == classify.ZoneConceptCheck)
}

var (
	leadingDigitsRe = regexp.MustCompile(`^\s*(\d+)`)
	chapterWordRe   = regexp.MustCompile(`(?i)(?:chapter|ch)\s+(\d+)`)
	pathNumberRe    = regexp.MustCompile(`(?:^| > )(\d+)(?:\.\d+)*`)
)

// chapterMain is the main chapter number of a segment, or "na".
func chapterMain(s *Segment) string {
	if m := leadingDigitsRe.FindStringSubmatch(s.ChapterNumber); m != nil {
		return m[1]
	}
	if m := chapterWordRe.FindStringSubmatch(s.HeadingPath); m != nil {
		return m[1]
	}
	if m := pathNumberRe.FindStringSubmatch(s.HeadingPath); m != nil {
		return m[1]
	}
	return "na"
}

func zoneOf(s *Segment) string {
	return classify.DetectQAZone(s.HeadingPath, "")
}

var textNumberingRe = regexp.MustCompile(`(?i)^\s*(?:concept\s+check\s+)?(?:q\s*)?(\d+(?:\.\d+)*)\b`)

type pageHint struct {
	page    int
	chapter string
}

// annotateKeys sets question_key and solution_key from the source chunk's
// numbering, chapter and zone, falling back to the segment's own text and
// heading path. A segment with no chapter borrows the nearest question's.
func annotateKeys(segs []*Segment, chunks map[string]*candidate, hintWindow int) {
	var hints []pageHint
	for _, s := range segs {
		if s.SegmentType != TypeQuestion || s.PageStart <= 0 {
			continue
		}
		if ch := chapterMain(s); ch != "na" {
			hints = append(hints, pageHint{s.PageStart, ch})
		}
	}

	for _, s := range segs {
		if s.SegmentType != TypeQuestion && s.SegmentType != TypeSolution {
			continue
		}
		src := chunks[s.SourceChunkID]

		var qnum string
		if src != nil && src.Numbering != nil {
			qnum = src.Numbering.Normalized
			if qnum == "" {
				qnum = src.Numbering.Raw
			}
		} else if m := textNumberingRe.FindStringSubmatch(s.TextContent); m != nil {
			qnum = m[1]
		}
		qnum = classify.NormalizeQNum(qnum)

		chapter := ""
		if src != nil {
			chapter = src.ChapterMain
		}
		if chapter == "" {
			chapter = chapterMain(s)
		}
		switch strings.ToLower(strings.TrimSpace(chapter)) {
		case "", "na", "unknown", "none":
			if h := nearestHint(s.PageStart, hints, hintWindow); h != "" {
				chapter = h
			}
		}

		zone := ""
		if src != nil {
			zone = src.QAZone
		}
		if zone == "" {
			zone = zoneOf(s)
		}

		key := qaKey(chapter, zone, qnum)
		if s.SegmentType == TypeQuestion {
			s.QuestionKey = key
		} else {
			s.SolutionKey = key
		}
	}
}

func nearestHint(page int, hints []pageHint, window int) string {
	if page <= 0 || len(hints) == 0 {
		return ""
	}
	best, bestD := "", -1
	for _, h := range hints {
		d := abs(page - h.page)
		if bestD < 0 || d < bestD {
			best, bestD = h.chapter, d
		}
	}
	if bestD > window {
		return ""
	}
	return best
}

var (
	answerCueRe = regexp.MustCompile(`(?i)\b(?:solution|answer|therefore|thus|we\s+find|we\s+get|hence)\b`)
)

// isPairable rejects heading-like solutions that carry no answer cue.
func isPairable(s *Segment) bool {
	text := strings.TrimSpace(s.TextContent)
	if text == "" {
		return false
	}
	if !classify.IsHeadingLike(text) {
		return true
	}
	return answerCueRe.MatchString(text)
}

type pairRule struct {
	method string
	window func(Config) int
	accept func(q, sol *Segment) bool
}

// pairRules is the answer pairing cascade after the exact key match,
// loosest last.
var pairRules = []pairRule{
	{"chapter_zone_nearest", func(c Config) int { return c.ChapterZoneWindow }, func(q, s *Segment) bool {
		return zonesCompatible(zoneOf(q), zoneOf(s)) && chapterMain(q) == chapterMain(s)
	}},
	{"chapter_suffix_match", func(c Config) int { return c.ChapterSuffixWindow }, func(q, s *Segment) bool {
		return chapterMain(q) == chapterMain(s) && qnumSuffixMatches(qnumFromKey(q.QuestionKey), qnumFromKey(s.SolutionKey))
	}},
	{"chapter_qnum_exact", func(c Config) int { return c.ChapterQNumWindow }, func(q, s *Segment) bool {
		return chapterMain(q) == chapterMain(s) && qnumSuffixMatches(qnumFromKey(q.QuestionKey), qnumFromKey(s.SolutionKey))
	}},
	{"zone_suffix_nearest", func(c Config) int { return c.ZoneSuffixWindow }, func(q, s *Segment) bool {
		return zonesCompatible(zoneOf(q), zoneOf(s)) && qnumSuffixMatches(qnumFromKey(q.QuestionKey), qnumFromKey(s.SolutionKey))
	}},
	{"chapter_nearest", func(c Config) int { return c.ChapterNearestWindow }, func(q, s *Segment) bool {
		return chapterMain(q) == chapterMain(s)
	}},
}

// pairAnswers replaces every ANSWER_OF edge with fresh pairings. Pairable
// solutions are visited by ascending page; each question takes at most one
// answer.
func pairAnswers(segs []*Segment, edges []Edge, cfg Config) []Edge {
	out := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if e.EdgeType != EdgeAnswerOf {
			out = append(out, e)
		}
	}

	var questions, solutions []*Segment
	for _, s := range segs {
		switch s.SegmentType {
		case TypeQuestion:
			questions = append(questions, s)
		case TypeSolution:
			s.SolutionForQuestionID = ""
			solutions = append(solutions, s)
		}
	}
	if len(questions) == 0 || len(solutions) == 0 {
		return out
	}

	byKey := make(map[string][]*Segment)
	for _, q := range questions {
		if q.QuestionKey != "" {
			byKey[q.QuestionKey] = append(byKey[q.QuestionKey], q)
		}
	}

	// Heading-shaped solutions without an answer cue stay unlinked and are
	// left for pruneSolutions.
	ordered := make([]*Segment, 0, len(solutions))
	for _, s := range solutions {
		if isPairable(s) {
			ordered = append(ordered, s)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].PageStart < ordered[j].PageStart })

	assigned := make(map[string]bool)
	free := func(pred func(q *Segment) bool) []*Segment {
		var pool []*Segment
		for _, q := range questions {
			if !assigned[q.SegmentID] && pred(q) {
				pool = append(pool, q)
			}
		}
		return pool
	}

	for _, sol := range ordered {
		if sol.SegmentID == "" {
			continue
		}
		var best *Segment
		method := ""
		if sol.SolutionKey != "" {
			pool := free(func(q *Segment) bool { return q.QuestionKey == sol.SolutionKey })
			if best = nearestPage(sol, pool, -1); best != nil {
				method = "source_key_exact"
			}
		}
		for _, rule := range pairRules {
			if best != nil {
				break
			}
			pool := free(func(q *Segment) bool { return rule.accept(q, sol) })
			if best = nearestPage(sol, pool, rule.window(cfg)); best != nil {
				method = rule.method
			}
		}
		if best == nil || best.SegmentID == "" {
			continue
		}

		assigned[best.SegmentID] = true
		sol.SolutionForQuestionID = best.SegmentID
		strength, how := cfg.HeuristicStrength, "heuristic"
		if method == "source_key_exact" {
			strength, how = cfg.ExactStrength, "exact"
		}
		out = append(out, Edge{
			EdgeID:     fmt.Sprintf("answer_of_%s_%s", sol.SegmentID, best.SegmentID),
			SourceID:   sol.SegmentID,
			TargetID:   best.SegmentID,
			EdgeType:   EdgeAnswerOf,
			Strength:   strength,
			LinkMethod: how,
			AnchorMetadata: AnchorMeta{
				Method:  method,
				Page:    sol.PageStart,
				Snippet: truncateText(sol.TextContent, 180),
			},
		})
	}
	return out
}

// nearestPage returns the candidate closest in page to s; ties keep the
// earlier candidate. A non-negative window bounds the distance.
func nearestPage(s *Segment, cands []*Segment, window int) *Segment {
	var best *Segment
	bestD := -1
	for _, c := range cands {
		d := abs(s.PageStart - c.PageStart)
		if bestD < 0 || d < bestD {
			best, bestD = c, d
		}
	}
	if window >= 0 && best != nil && bestD > window {
		return nil
	}
	return best
}

// annotateSolutionStatus marks each question linked or not found.
func annotateSolutionStatus(segs []*Segment, edges []Edge) {
	linked := make(map[string]bool)
	for _, e := range edges {
		if e.EdgeType == EdgeAnswerOf && e.TargetID != "" {
			linked[e.TargetID] = true
		}
	}
	for _, s := range segs {
		if s.SegmentType != TypeQuestion {
			continue
		}
		if linked[s.SegmentID] {
			s.SolutionStatus = StatusLinked
		} else {
			s.SolutionStatus = StatusNotFound
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

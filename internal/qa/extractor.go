package qa

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/docgraph/internal/classify"
	"github.com/dgallion1/docgraph/internal/doctree"
)

// PageInput is one page of positioned blocks.
type PageInput struct {
	BookID  string
	PageNum int // 1-based
	Width   float64
	Height  float64
	Section string // SectionConceptCheck, SectionConceptCheckSolutions, SectionProblemSet or ""
	Blocks  []BlockTuple
}

// SegmentExtractor finds typed segments on a page.
type SegmentExtractor interface {
	ExtractPage(ctx context.Context, page PageInput) ([]Segment, error)
}

// HeuristicExtractor types text blocks by cue words and folds following
// step, math and formula blocks into solutions, derivations, calculations
// and worked examples.
type HeuristicExtractor struct {
	// MaxBlocks caps how many blocks one segment absorbs. Zero means 12.
	MaxBlocks int
}

var (
	solutionStartRe = regexp.MustCompile(`(?i)^\s*(?:solution|answer|ans\.)\b`)
	workedRe        = regexp.MustCompile(`(?i)^\s*(?:worked\s+example|example\s+\d+(?:\.\d+)*|illustration)\b|\bgiven:`)
	questionStartRe = regexp.MustCompile(`(?i)^\s*(?:question|problem|exercise|concept\s+check)\s*\d`)
	numberedStartRe = regexp.MustCompile(`(?i)^\s*(?:q\s*)?\(?\d+(?:\.\d+)*\s*[.):]\s*\S`)
	askRe           = regexp.MustCompile(`(?i)\b(?:calculate|compute|determine|find|explain|discuss|analy[sz]e|describe|what\s+is|why|how|show\s+that)\b`)
	calcVerbRe      = regexp.MustCompile(`(?i)\b(?:calculate|compute|estimate|determine|find|using\s+equation)\b`)
	stepStartRe     = regexp.MustCompile(`(?i)^\s*(?:(?:step\s+\d+|first|second|third|next|then|finally)\b|\(?[a-z]\)|\d+\s*[.)])`)
)

func (h HeuristicExtractor) ExtractPage(ctx context.Context, p PageInput) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := h.MaxBlocks
	if limit <= 0 {
		limit = 12
	}

	var segs []*segmentBuilder
	var cur *segmentBuilder
	for _, b := range p.Blocks {
		typ := ""
		if b.Kind == 0 {
			typ = classifyBlock(b.Text, p.Section)
		}
		if typ == "" {
			if cur != nil && cur.blocks < limit && continues(cur.seg.SegmentType, b) {
				cur.add(b)
			} else {
				cur = nil
			}
			continue
		}
		cur = newSegmentBuilder(typ, p, b)
		segs = append(segs, cur)
	}

	out := make([]Segment, 0, len(segs))
	for _, sb := range segs {
		out = append(out, sb.finish())
	}
	return out, nil
}

// classifyBlock types a text block, or returns "" for prose that starts no
// segment.
func classifyBlock(text, section string) string {
	t := strings.TrimSpace(text)
	if t == "" || classify.IsHeadingLike(t) {
		return ""
	}
	asks := strings.Contains(t, "?") || askRe.MatchString(t)
	numbered := numberedStartRe.MatchString(t)

	switch {
	case solutionStartRe.MatchString(t):
		return TypeSolution
	case section == SectionConceptCheckSolutions && numbered && !strings.Contains(t, "?"):
		return TypeSolution
	case workedRe.MatchString(t):
		return TypeWorkedExample
	case questionStartRe.MatchString(t):
		return TypeQuestion
	case numbered && (asks || section == SectionProblemSet || section == SectionConceptCheck):
		return TypeQuestion
	case classify.IsDerivationLike(t):
		return TypeDerivation
	case strings.HasSuffix(t, "?") && len(wordRe.FindAllString(t, -1)) >= 4:
		return TypeQuestion
	case calcVerbRe.MatchString(t) && classify.HasMathAnchor(t):
		return TypeCalculation
	case strings.Count(t, "=") >= 2:
		return TypeCalculation
	}
	return ""
}

// continues reports whether an untyped block extends a segment of typ.
func continues(typ string, b BlockTuple) bool {
	switch typ {
	case TypeSolution, TypeDerivation, TypeCalculation, TypeWorkedExample:
	default:
		return false
	}
	if b.Kind != 0 {
		return true
	}
	t := strings.TrimSpace(b.Text)
	if classify.HasMathAnchor(t) || stepStartRe.MatchString(t) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(t)
	return unicode.IsLower(r)
}

type segmentBuilder struct {
	seg    Segment
	lines  []string
	box    doctree.BBox
	blocks int
}

func newSegmentBuilder(typ string, p PageInput, b BlockTuple) *segmentBuilder {
	key := fmt.Sprintf("%s|%d|%d|%s", p.BookID, p.PageNum, b.BlockNo, b.Text)
	sb := &segmentBuilder{
		seg: Segment{
			SegmentID:     fmt.Sprintf("%s_p%d_%s", typ, p.PageNum, doctree.ContentHashHex([]byte(key))[:10]),
			SegmentType:   typ,
			BookID:        p.BookID,
			ChapterNumber: "unknown",
			PageStart:     p.PageNum,
			PageEnd:       p.PageNum,
		},
		box: b.Box(),
	}
	sb.add(b)
	if typ == TypeQuestion {
		if n := classify.ExtractNumbering(b.Text); n != nil {
			sb.seg.QuestionNumber = n.Normalized
		}
	}
	return sb
}

func (sb *segmentBuilder) add(b BlockTuple) {
	sb.lines = append(sb.lines, strings.TrimSpace(b.Text))
	sb.box = sb.box.Union(b.Box())
	sb.blocks++
}

func (sb *segmentBuilder) finish() Segment {
	s := sb.seg
	s.TextContent = strings.Join(sb.lines, "\n")
	s.BBox = &PageBox{Page: s.PageStart, X0: sb.box.X0, Y0: sb.box.Y0, X1: sb.box.X1, Y1: sb.box.Y1}
	switch s.SegmentType {
	case TypeSolution:
		s.SolutionSteps = fallbackSteps(s.TextContent)
	case TypeDerivation, TypeCalculation, TypeWorkedExample:
		s.Steps = fallbackSteps(s.TextContent)
	}
	return s
}

var sentenceEndRe = regexp.MustCompile(`[.!?]\s+`)

// fallbackSteps splits multi-line text into at most 12 lines, or a single
// line into at most 10 sentences.
func fallbackSteps(text string) []string {
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	if len(lines) == 0 {
		return nil
	}
	if len(lines) > 1 {
		return lines[:min(len(lines), 12)]
	}

	var out []string
	rest := lines[0]
	for len(out) < 10 {
		loc := sentenceEndRe.FindStringIndex(rest)
		if loc == nil {
			break
		}
		if s := strings.TrimSpace(rest[:loc[0]+1]); s != "" {
			out = append(out, s)
		}
		rest = rest[loc[1]:]
	}
	if s := strings.TrimSpace(rest); s != "" && len(out) < 10 {
		out = append(out, s)
	}
	return out
}

// sequence links extracted segments in order and records their neighbours'
// text as context.
func sequence(segs []Segment) {
	for i := range segs {
		if i > 0 {
			segs[i].PrevSegmentID = strPtr(segs[i-1].SegmentID)
			segs[i].ContextBefore = strPtr(truncateText(segs[i-1].TextContent, 200))
		}
		if i+1 < len(segs) {
			segs[i].NextSegmentID = strPtr(segs[i+1].SegmentID)
			segs[i].ContextAfter = strPtr(truncateText(segs[i+1].TextContent, 200))
		}
	}
}

var wordRe = regexp.MustCompile(`[A-Za-z]+`)

// truncateText collapses whitespace and cuts to n runes, marking the cut.
func truncateText(s string, n int) string {
	t := strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(t) <= n {
		return t
	}
	r := []rune(t)
	return string(r[:n]) + "..."
}

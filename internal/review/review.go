// Package review renders a Word report of QA segments that need a human
// look: flagged segments, quality warnings and question/answer pairs.
package review

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/docgraph/internal/qa"
)

const snippetLen = 280

// Report summarizes what was written.
type Report struct {
	Flagged int
	Pairs   int
}

// Write renders the review document for p to w.
func Write(w io.Writer, p *qa.Payload) (Report, error) {
	d := docx.New().WithDefaultTheme()
	var rep Report

	heading(d, fmt.Sprintf("QA review: %s", p.DocID), "36")
	line(d, fmt.Sprintf("Segments: %d   Edges: %d   Source match rate: %.3f",
		p.Stats.SegmentsOut, p.Stats.EdgesOut, p.Stats.SourceMatchRate))
	if p.Stats.Error != "" {
		line(d, "Build error: "+p.Stats.Error).Color("C00000")
	}

	flagged := Flagged(p.Segments)
	heading(d, fmt.Sprintf("Flagged segments (%d)", len(flagged)), "28")
	for _, s := range flagged {
		label(d, fmt.Sprintf("%s  [%s]  p.%d  ch.%s", s.SegmentID, s.SegmentType, s.PageStart, s.ChapterNumber))
		if len(s.QualityWarnings) > 0 {
			line(d, "Warnings: "+strings.Join(s.QualityWarnings, ", ")).Color("C00000")
		}
		line(d, snippet(s.TextContent))
	}
	rep.Flagged = len(flagged)

	pairs := Pairs(p)
	heading(d, fmt.Sprintf("Question and answer pairs (%d)", len(pairs)), "28")
	for _, pr := range pairs {
		label(d, fmt.Sprintf("Q %s  p.%d", pr.Question.SegmentID, pr.Question.PageStart))
		line(d, snippet(pr.Question.TextContent))
		label(d, fmt.Sprintf("A %s  p.%d  strength %.2f", pr.Answer.SegmentID, pr.Answer.PageStart, pr.Strength))
		line(d, snippet(pr.Answer.TextContent))
	}
	rep.Pairs = len(pairs)

	if _, err := d.WriteTo(w); err != nil {
		return rep, fmt.Errorf("write review docx: %w", err)
	}
	return rep, nil
}

// Flagged returns segments marked for review or carrying warnings, by page.
func Flagged(segs []*qa.Segment) []*qa.Segment {
	var out []*qa.Segment
	for _, s := range segs {
		if s.NeedsReview || len(s.QualityWarnings) > 0 {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PageStart < out[j].PageStart })
	return out
}

// Pair is an ANSWER_OF edge resolved to its segments.
type Pair struct {
	Question *qa.Segment
	Answer   *qa.Segment
	Strength float64
}

// Pairs resolves ANSWER_OF edges in edge order, skipping dangling ones.
func Pairs(p *qa.Payload) []Pair {
	byID := make(map[string]*qa.Segment, len(p.Segments))
	for _, s := range p.Segments {
		byID[s.SegmentID] = s
	}
	var out []Pair
	for _, e := range p.Edges {
		if e.EdgeType != qa.EdgeAnswerOf {
			continue
		}
		ans, q := byID[e.SourceID], byID[e.TargetID]
		if ans == nil || q == nil {
			continue
		}
		out = append(out, Pair{Question: q, Answer: ans, Strength: e.Strength})
	}
	return out
}

func heading(d *docx.Docx, text, size string) {
	d.AddParagraph().AddText(text).Bold().Size(size)
}

func label(d *docx.Docx, text string) {
	d.AddParagraph().AddText(text).Bold()
}

func line(d *docx.Docx, text string) *docx.Run {
	return d.AddParagraph().AddText(text)
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= snippetLen {
		return s
	}
	return string(r[:snippetLen]) + "..."
}

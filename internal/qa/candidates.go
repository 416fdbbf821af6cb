package qa

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dgallion1/docgraph/internal/classify"
	"github.com/dgallion1/docgraph/internal/doctree"
)

// candidate is a text chunk eligible for segment extraction.
type candidate struct {
	ChunkID     string
	HeadingPath string
	BBox        *doctree.BBox
	Pages       []int // 1-based, sorted
	Text        string
	QAZone      string
	Role        string
	Numbering   *doctree.Numbering
	ChapterMain string
}

var hintRoles = map[string]bool{
	classify.RoleQuestion:      true,
	classify.RoleSolution:      true,
	classify.RoleDerivation:    true,
	classify.RoleCalculation:   true,
	classify.RoleWorkedExample: true,
}

var candidateCues = regexp.MustCompile(`(?i)\b(?:question|problem|exercise|what\s+is|calculate|determine|find|` +
	`explain|discuss|analyze|solution|answer|therefore|thus|we\s+get|we\s+find|derivation|proof|` +
	`substitut(?:e|ing)|we\s+can\s+show|worked\s+example|illustration|step\s*1)\b|\bgiven:`)

// isTextUnit reports plain text chunks, lists and procedures included.
// Title objects, headings and visual units are not QA candidates.
func isTextUnit(u *doctree.Unit) bool {
	return u.Type == doctree.UnitText
}

// selectCandidates keeps text chunks that carry a QA role hint or a cue
// word. Chunks without a box are kept and counted.
func selectCandidates(units []doctree.Unit, cfg Config) ([]*candidate, int) {
	var out []*candidate
	noBBox := 0
	for i := range units {
		u := &units[i]
		if !isTextUnit(u) {
			continue
		}
		text := strings.TrimSpace(u.Content)
		if len(text) < cfg.MinCandidateChars || classify.IsHeadingLike(text) {
			continue
		}
		role := strings.ToLower(strings.TrimSpace(u.CandidateRole))
		segType := strings.ToLower(strings.TrimSpace(u.SegmentType))
		hinted := hintRoles[role] || hintRoles[classify.CandidateRole(segType)]
		if !hinted && !candidateCues.MatchString(text) {
			continue
		}
		box := u.Box()
		if box == nil {
			noBBox++
		}
		if role == "" || role == classify.RoleNone {
			role = segType
		}
		out = append(out, &candidate{
			ChunkID:     u.SegmentID,
			HeadingPath: u.HeadingPath,
			BBox:        box,
			Pages:       unitPages(u),
			Text:        text,
			QAZone:      u.QAZoneType,
			Role:        role,
			Numbering:   u.Numbering,
			ChapterMain: u.ChapterMain,
		})
	}
	return out, noBBox
}

// unitPages returns the unit's 1-based pages.
func unitPages(u *doctree.Unit) []int {
	if len(u.PageRange) > 0 {
		seen := make(map[int]bool)
		var pages []int
		for _, p := range u.PageRange {
			if !seen[p+1] {
				seen[p+1] = true
				pages = append(pages, p+1)
			}
		}
		sort.Ints(pages)
		return pages
	}
	if len(u.PageSpan) == 2 {
		lo, hi := u.PageSpan[0], u.PageSpan[1]
		if hi < lo {
			lo, hi = hi, lo
		}
		pages := make([]int, 0, hi-lo+1)
		for p := lo; p <= hi; p++ {
			pages = append(pages, p+1)
		}
		return pages
	}
	return []int{1}
}

// expandPages returns candidate pages plus each page's successor, bounded by
// the last page of the document.
func expandPages(cands []*candidate, blocks []doctree.ContentBlock, sizes doctree.PageSizes) map[int]bool {
	pages := make(map[int]bool)
	for _, c := range cands {
		for _, p := range c.Pages {
			pages[p] = true
		}
	}
	maxPage := 0
	for _, b := range blocks {
		maxPage = max(maxPage, b.PageIdx+1)
	}
	for p := range sizes {
		maxPage = max(maxPage, p+1)
	}
	if maxPage <= 0 {
		maxPage = 1
		for p := range pages {
			maxPage = max(maxPage, p)
		}
	}
	out := make(map[int]bool, len(pages)*2)
	for p := range pages {
		out[p] = true
		if p+1 <= maxPage {
			out[p+1] = true
		}
	}
	return out
}

// BlockTuple is a positioned text block handed to a SegmentExtractor.
// Kind is 0 for text-like blocks and 1 otherwise.
type BlockTuple struct {
	X0, Y0, X1, Y1 float64
	Text           string
	BlockNo        int
	Kind           int
}

func (t BlockTuple) Box() doctree.BBox {
	return doctree.BBox{X0: t.X0, Y0: t.Y0, X1: t.X1, Y1: t.Y1}
}

// pageBlocks converts blocks on the selected pages into tuples. On pages
// where every candidate has a box, blocks far from all candidates are
// skipped.
func pageBlocks(blocks []doctree.ContentBlock, pages map[int]bool, cands []*candidate, margin float64) map[int][]BlockTuple {
	regions := make(map[int][]*doctree.BBox)
	for _, c := range cands {
		for _, p := range c.Pages {
			regions[p] = append(regions[p], c.BBox)
		}
	}
	unbounded := make(map[int]bool)
	for p, regs := range regions {
		for _, r := range regs {
			if r == nil {
				unbounded[p] = true
				break
			}
		}
	}

	byPage := make(map[int][]BlockTuple)
	counter := make(map[int]int)
	for _, b := range blocks {
		page := b.PageIdx + 1
		if !pages[page] || b.BBox == nil {
			continue
		}
		text := strings.TrimSpace(b.Text)
		if text == "" {
			continue
		}
		if !unbounded[page] && len(regions[page]) > 0 {
			near := false
			for _, r := range regions[page] {
				if nearRect(*b.BBox, *r, margin) {
					near = true
					break
				}
			}
			if !near {
				continue
			}
		}

		kind := 1
		switch b.Type {
		case doctree.BlockText, doctree.BlockHeading, doctree.BlockListItem:
			kind = 0
		}
		no := b.Meta.Index
		if !b.Meta.HasIndex {
			no = counter[page]
			counter[page]++
		}
		byPage[page] = append(byPage[page], BlockTuple{
			X0: b.BBox.X0, Y0: b.BBox.Y0, X1: b.BBox.X1, Y1: b.BBox.Y1,
			Text: text, BlockNo: no, Kind: kind,
		})
	}
	for _, tuples := range byPage {
		sort.SliceStable(tuples, func(i, j int) bool {
			a, b := tuples[i], tuples[j]
			if a.BlockNo != b.BlockNo {
				return a.BlockNo < b.BlockNo
			}
			if a.Y0 != b.Y0 {
				return a.Y0 < b.Y0
			}
			return a.X0 < b.X0
		})
	}
	return byPage
}

// nearRect reports whether a overlaps b grown by margin on every side.
func nearRect(a, b doctree.BBox, margin float64) bool {
	g := doctree.BBox{X0: b.X0 - margin, Y0: b.Y0 - margin, X1: b.X1 + margin, Y1: b.Y1 + margin}
	return !(a.X1 < g.X0 || g.X1 < a.X0 || a.Y1 < g.Y0 || g.Y1 < a.Y0)
}

// Section hints passed to extractors.
const (
	SectionConceptCheck          = "concept_check"
	SectionConceptCheckSolutions = "concept_check_solutions"
	SectionProblemSet            = "problem_set"
)

var zoneWeights = map[string]int{
	classify.ZoneConceptCheckSolution: 5,
	classify.ZoneConceptCheck:         3,
	classify.ZoneProblemSet:           2,
	classify.ZoneOther:                1,
}

// pageSectionHints votes a QA zone per page from the text chunks on it.
// Solution candidates weigh more than question candidates.
func pageSectionHints(units []doctree.Unit) map[int]string {
	scores := make(map[int]map[string]int)
	for i := range units {
		u := &units[i]
		if !isTextUnit(u) {
			continue
		}
		zone := strings.ToLower(u.QAZoneType)
		if _, ok := zoneWeights[zone]; !ok {
			zone = classify.ZoneOther
		}
		w := zoneWeights[zone]
		switch strings.ToLower(u.CandidateRole) {
		case classify.RoleSolution:
			w += 3
		case classify.RoleQuestion:
			w++
		}
		for _, p := range unitPages(u) {
			if scores[p] == nil {
				scores[p] = make(map[string]int)
			}
			scores[p][zone] += w
		}
	}

	out := make(map[int]string, len(scores))
	for p, s := range scores {
		best, bestScore := "", -1
		for _, z := range []string{classify.ZoneConceptCheckSolution, classify.ZoneConceptCheck, classify.ZoneProblemSet, classify.ZoneOther} {
			if s[z] > bestScore {
				best, bestScore = z, s[z]
			}
		}
		switch best {
		case classify.ZoneConceptCheckSolution:
			out[p] = SectionConceptCheckSolutions
		case classify.ZoneConceptCheck:
			out[p] = SectionConceptCheck
		case classify.ZoneProblemSet:
			out[p] = SectionProblemSet
		}
	}
	return out
}

// sourceIndex maps a 1-based page to the candidates visible from it.
type sourceIndex map[int][]*candidate

// indexCandidates lists each candidate on its own pages and on the page
// after each, limited to the extraction pages.
func indexCandidates(cands []*candidate, pages map[int]bool) sourceIndex {
	idx := make(sourceIndex)
	for _, c := range cands {
		set := make(map[int]bool)
		for _, p := range c.Pages {
			if pages[p] {
				set[p] = true
			}
			if pages[p+1] {
				set[p+1] = true
			}
		}
		sorted := make([]int, 0, len(set))
		for p := range set {
			sorted = append(sorted, p)
		}
		sort.Ints(sorted)
		for _, p := range sorted {
			idx[p] = append(idx[p], c)
		}
	}
	return idx
}

// match finds the chunk a segment came from: the largest box overlap on its
// page, else the nearest vertical center, else the first candidate. With no
// candidate on the page, the previous page is searched and flagged.
func (idx sourceIndex) match(seg *Segment) (*candidate, string) {
	page := seg.PageStart
	if page <= 0 {
		return nil, ""
	}
	cands := idx[page]
	fallback := false
	if len(cands) == 0 && page > 1 {
		cands = idx[page-1]
		fallback = len(cands) > 0
	}
	if len(cands) == 0 {
		return nil, ""
	}
	first := MatchFirstCandidate
	if fallback {
		first = MatchPrevPage
	}
	if seg.BBox == nil {
		return cands[0], first
	}
	box := doctree.BBox{X0: seg.BBox.X0, Y0: seg.BBox.Y0, X1: seg.BBox.X1, Y1: seg.BBox.Y1}

	var best *candidate
	bestOverlap := 0.0
	for _, c := range cands {
		if c.BBox == nil {
			continue
		}
		if r := overlapRatio(box, *c.BBox); r > bestOverlap {
			best, bestOverlap = c, r
		}
	}
	if best != nil {
		return best, MatchBBoxOverlap
	}

	var nearest *candidate
	nearestDist := -1.0
	for _, c := range cands {
		if c.BBox == nil {
			continue
		}
		d := c.BBox.CenterY() - box.CenterY()
		if d < 0 {
			d = -d
		}
		if nearestDist < 0 || d < nearestDist {
			nearest, nearestDist = c, d
		}
	}
	if nearest != nil {
		if fallback {
			return nearest, MatchPrevPage
		}
		return nearest, MatchNearestY
	}
	return cands[0], first
}

// overlapRatio is the intersection area over the area of a.
func overlapRatio(a, b doctree.BBox) float64 {
	inter := a.Intersect(b)
	if inter == 0 {
		return 0
	}
	return inter / max(a.Area(), 1e-6)
}

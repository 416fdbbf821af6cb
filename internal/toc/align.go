package toc

import (
	"strings"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/parser"
)

// AlignWindow is how many pages either side of the nominal page are searched.
const AlignWindow = 2

// Align moves each entry to the heading (or, failing that, text block) that
// carries its title near the nominal page. Entries with an unknown page
// (-1) are searched across the whole document. Unmatched entries keep their
// nominal page.
func Align(entries []doctree.TOCEntry, blocks []doctree.ContentBlock) []doctree.TOCEntry {
	byPage := make(map[int][]doctree.ContentBlock)
	maxPage := 0
	for _, b := range blocks {
		byPage[b.PageIdx] = append(byPage[b.PageIdx], b)
		maxPage = max(maxPage, b.PageIdx)
	}

	out := make([]doctree.TOCEntry, 0, len(entries))
	for _, e := range entries {
		title := parser.CleanHeading(e.Title)
		if title == "" {
			continue
		}
		lo, hi := 0, maxPage
		if e.Page >= 0 {
			lo, hi = max(0, e.Page-AlignWindow), e.Page+AlignWindow
		}
		aligned := e
		aligned.Title = title
		if m, ok := findMatch(title, byPage, lo, hi); ok {
			aligned.Page = m.PageIdx
			aligned.MatchedBlockID = m.ID
		}
		out = append(out, aligned)
	}
	return out
}

func findMatch(title string, byPage map[int][]doctree.ContentBlock, lo, hi int) (doctree.ContentBlock, bool) {
	want := NormalizeTitle(title)
	if want == "" {
		return doctree.ContentBlock{}, false
	}
	for p := lo; p <= hi; p++ {
		for _, b := range byPage[p] {
			if b.Type != doctree.BlockHeading {
				continue
			}
			got := NormalizeTitle(b.Text)
			if (strings.Contains(got, want) || strings.Contains(want, got)) && substantialMatch(want, got) {
				return b, true
			}
		}
	}
	for p := lo; p <= hi; p++ {
		for _, b := range byPage[p] {
			if b.Type == doctree.BlockText && NormalizeTitle(b.Text) == want {
				return b, true
			}
		}
	}
	return doctree.ContentBlock{}, false
}

// NormalizeTitle lowercases and keeps ASCII letters and digits only.
func NormalizeTitle(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func substantialMatch(ref, target string) bool {
	if ref == "" || target == "" {
		return false
	}
	if len(ref) < 4 && len(target) < 4 {
		return false
	}
	if ref == target {
		return true
	}
	if Similarity(ref, target) >= 0.7 {
		return true
	}
	shorter, longer := ref, target
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	return strings.Contains(longer, shorter) && float64(len(shorter))/float64(len(longer)) >= 0.6
}

// Similarity returns 2*M/T where M is the number of characters in the
// recursively found longest common blocks and T the combined length
// (Ratcliff/Obershelp).
func Similarity(a, b string) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingChars(a, b)) / float64(total)
}

func matchingChars(a, b string) int {
	type span struct{ alo, ahi, blo, bhi int }
	matched := 0
	queue := []span{{0, len(a), 0, len(b)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		i, j, k := longestCommon(a, b, s.alo, s.ahi, s.blo, s.bhi)
		if k == 0 {
			continue
		}
		matched += k
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			queue = append(queue, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return matched
}

// longestCommon finds the earliest longest common substring of
// a[alo:ahi] and b[blo:bhi].
func longestCommon(a, b string, alo, ahi, blo, bhi int) (int, int, int) {
	bestI, bestJ, bestK := alo, blo, 0
	prev := make([]int, bhi-blo+1)
	for i := alo; i < ahi; i++ {
		cur := make([]int, bhi-blo+1)
		for j := blo; j < bhi; j++ {
			if a[i] != b[j] {
				continue
			}
			k := prev[j-blo] + 1
			cur[j-blo+1] = k
			if k > bestK {
				bestI, bestJ, bestK = i-k+1, j-k+1, k
			}
		}
		prev = cur
	}
	return bestI, bestJ, bestK
}

package toc

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/parser"
)

// DefaultMaxScanPages bounds the contents-page scan.
const DefaultMaxScanPages = 40

var (
	leaderLine       = regexp.MustCompile(`(?m)^(.*?)(?:[\s.·\-_]{3,})\s*([ivxIVX\d]+)$`)
	contentsKeywords = []string{"contents", "table of contents", "index", "brief contents"}
)

// FromContentsPages scans the first maxPages pages for dotted-leader lines,
// starting at the first page whose opening text mentions a contents keyword.
// Printed page numbers become 0-based page indices.
func FromContentsPages(src PageTextSource, maxPages int) ([]doctree.TOCEntry, error) {
	if maxPages <= 0 {
		maxPages = DefaultMaxScanPages
	}
	n := min(maxPages, src.NumPage())

	var entries []doctree.TOCEntry
	var firstErr error
	started := false
	for i := 0; i < n; i++ {
		text, err := src.PageText(i)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !started {
			started = hasContentsKeyword(text)
		}
		if started {
			entries = append(entries, ParseLeaderLines(text)...)
		}
	}
	return entries, firstErr
}

func hasContentsKeyword(text string) bool {
	head := strings.ToLower(text)
	if len(head) > 500 {
		head = head[:500]
	}
	for _, kw := range contentsKeywords {
		if strings.Contains(head, kw) {
			return true
		}
	}
	return false
}

// ParseLeaderLines extracts level-1 entries from "Title ........ 12" lines.
func ParseLeaderLines(text string) []doctree.TOCEntry {
	var entries []doctree.TOCEntry
	for _, m := range leaderLine.FindAllStringSubmatch(text, -1) {
		title := parser.CleanHeading(m[1])
		if utf8.RuneCountInString(title) < 3 {
			continue
		}
		page, ok := pageToken(m[2])
		if !ok {
			continue
		}
		entries = append(entries, doctree.TOCEntry{Level: 1, Title: title, Page: page - 1})
	}
	return entries
}

func pageToken(tok string) (int, bool) {
	if n, err := strconv.Atoi(tok); err == nil {
		return n, true
	}
	return RomanToInt(tok)
}

var romanValues = map[rune]int{'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000}

// RomanToInt converts a roman numeral. It rejects empty input, characters
// outside IVXLCDM and non-positive totals.
func RomanToInt(s string) (int, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	runes := []rune(s)
	total, prev := 0, 0
	for i := len(runes) - 1; i >= 0; i-- {
		v, ok := romanValues[runes[i]]
		if !ok {
			return 0, false
		}
		if v < prev {
			total -= v
		} else {
			total += v
			prev = v
		}
	}
	if total <= 0 {
		return 0, false
	}
	return total, true
}

var (
	partChapterRe = regexp.MustCompile(`(?i)^(part|chapter)\b`)
	sectionRe     = regexp.MustCompile(`(?i)^section\b`)
	leadingNumRe  = regexp.MustCompile(`^\d+(?:\.\d+)*`)
)

// InferHeadingLevel maps "Part"/"Chapter" to 1, "Section" to 2 and dotted
// numerals to their depth ("2.1" is level 2). Anything else is level 2.
func InferHeadingLevel(title string) int {
	t := strings.TrimSpace(title)
	switch {
	case partChapterRe.MatchString(t):
		return 1
	case sectionRe.MatchString(t):
		return 2
	case leadingNumRe.MatchString(t):
		first, _, _ := strings.Cut(t, " ")
		return strings.Count(first, ".") + 1
	}
	return 2
}

package qa

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

var stubPatterns = []struct {
	kind string
	re   *regexp.Regexp
}{
	{"table", regexp.MustCompile(`(?i)\b(Table)\s+([A-Za-z]?\d+(?:\.\d+)*)\b`)},
	{"figure", regexp.MustCompile(`(?i)\b(Figure)\s+([A-Za-z]?\d+(?:\.\d+)*)\b`)},
	{"appendix", regexp.MustCompile(`(?i)\b(Appendix)\s+([A-Z]|\d+)\b`)},
	{"section", regexp.MustCompile(`(?i)\b(Section)\s+([A-Za-z]?\d+(?:\.\d+)*)\b`)},
}

// stubNamespace scopes reference stub ids.
var stubNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("docgraph/reference_stub"))

// referenceStubs emits one stub node and one REFERENCES edge per distinct
// (segment, type, id) mention of a table, figure, appendix or section.
// Stub ids are derived from the mention, so reruns produce the same ids.
func referenceStubs(segs []*Segment, docID string, strength float64) ([]*Segment, []Edge) {
	type key struct{ src, kind, id string }
	seen := make(map[key]bool)
	var stubs []*Segment
	var edges []Edge

	for _, src := range segs {
		text := src.TextContent
		if src.SegmentID == "" || text == "" {
			continue
		}
		for _, p := range stubPatterns {
			for _, m := range p.re.FindAllStringSubmatchIndex(text, -1) {
				refID := text[m[4]:m[5]]
				k := key{src.SegmentID, p.kind, refID}
				if seen[k] {
					continue
				}
				seen[k] = true

				suffix := strings.ReplaceAll(uuid.NewSHA1(stubNamespace, []byte(src.SegmentID+"|"+p.kind+"|"+refID)).String(), "-", "")[:8]
				stubID := fmt.Sprintf("reference_stub_%s_%s_%s", p.kind, refID, suffix)
				snippet := snippetAround(text, m[0], m[1], 80, 220)

				book := src.BookID
				if book == "" {
					book = docID
				}
				chapter := src.ChapterNumber
				if chapter == "" {
					chapter = "unknown"
				}
				stubs = append(stubs, &Segment{
					SegmentID:       stubID,
					SegmentType:     TypeReferenceStub,
					BookID:          book,
					ChapterNumber:   chapter,
					ChapterTitle:    src.ChapterTitle,
					PageStart:       src.PageStart,
					PageEnd:         src.PageEnd,
					BBox:            src.BBox,
					TextContent:     strings.ToUpper(p.kind[:1]) + p.kind[1:] + " " + refID,
					HeadingPath:     src.HeadingPath,
					DocURI:          src.DocURI,
					NeedsReview:     true,
					RefType:         p.kind,
					RefIDText:       refID,
					TargetUnknown:   true,
					SourceSegmentID: src.SegmentID,
					Snippet:         snippet,
				})
				edges = append(edges, Edge{
					EdgeID:     fmt.Sprintf("ref_%s_%s", src.SegmentID, stubID),
					SourceID:   src.SegmentID,
					TargetID:   stubID,
					EdgeType:   EdgeReferences,
					Strength:   strength,
					LinkMethod: "heuristic",
					AnchorMetadata: AnchorMeta{
						Method:  "reference_stub_regex",
						Page:    src.PageStart,
						Snippet: snippet,
					},
				})
			}
		}
	}
	return stubs, edges
}

// snippetAround returns up to pad bytes of context either side of
// text[start:end], whitespace-collapsed and cut to limit runes.
func snippetAround(text string, start, end, pad, limit int) string {
	lo := max(0, start-pad)
	for lo > 0 && !utf8.RuneStart(text[lo]) {
		lo--
	}
	hi := min(len(text), end+pad)
	for hi < len(text) && !utf8.RuneStart(text[hi]) {
		hi++
	}
	s := strings.Join(strings.Fields(text[lo:hi]), " ")
	if utf8.RuneCountInString(s) > limit {
		s = string([]rune(s)[:limit])
	}
	return s
}

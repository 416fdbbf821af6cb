package qa

import (
	"sort"
	"strings"
)

// ModuleChapter summarizes one chapter in the formula module mirror.
type ModuleChapter struct {
	ChapterNumber    string  `json:"chapter_number"`
	ChapterTitle     *string `json:"chapter_title"`
	ChapterLevel     int     `json:"chapter_level"`
	ParentChapter    *string `json:"parent_chapter"`
	SolutionsPresent bool    `json:"solutions_present"`
	SolutionLocation *string `json:"solution_location"`
}

// ModuleMetadata describes the source of a formula module mirror.
type ModuleMetadata struct {
	SourcePDF  string `json:"source_pdf"`
	TotalPages int    `json:"total_pages"`
}

// ModuleOutput is the formula module mirror written next to the sidecars
// as {doc}_formula_segments.json.
type ModuleOutput struct {
	Metadata ModuleMetadata  `json:"metadata"`
	Chapters []ModuleChapter `json:"chapters"`
	Segments []*Segment      `json:"segments"`
	Edges    []Edge          `json:"edges"`
}

const unknownChapter = "Unknown"

// FormulaModule builds the mirror from a QA payload: segments followed by
// formula refs, with a chapter index sorted by number and Unknown last.
func FormulaModule(p *Payload, sourcePDF string) *ModuleOutput {
	merged := make([]*Segment, 0, len(p.Segments)+len(p.FormulaRefs))
	merged = append(merged, p.Segments...)
	merged = append(merged, p.FormulaRefs...)

	chapters := make(map[string]*ModuleChapter)
	total := 0
	for _, s := range merged {
		num := s.ChapterNumber
		if num == "" {
			num = unknownChapter
		}
		ch, ok := chapters[num]
		if !ok {
			ch = &ModuleChapter{ChapterNumber: num, ChapterTitle: s.ChapterTitle, ChapterLevel: 1}
			if num != unknownChapter {
				ch.ChapterLevel = strings.Count(num, ".") + 1
				if i := strings.LastIndex(num, "."); i >= 0 {
					parent := num[:i]
					ch.ParentChapter = &parent
				}
			}
			chapters[num] = ch
		}
		if s.SegmentType == TypeSolution {
			ch.SolutionsPresent = true
			ch.SolutionLocation = strPtr("in_chapter")
		}
		if ch.ChapterTitle == nil && s.ChapterTitle != nil {
			ch.ChapterTitle = s.ChapterTitle
		}

		last := s.PageEnd
		if last == 0 {
			last = s.PageStart
		}
		total = max(total, last)
	}

	out := &ModuleOutput{
		Metadata: ModuleMetadata{SourcePDF: sourcePDF, TotalPages: total},
		Chapters: make([]ModuleChapter, 0, len(chapters)),
		Segments: merged,
		Edges:    p.Edges,
	}
	for _, ch := range chapters {
		out.Chapters = append(out.Chapters, *ch)
	}
	sort.Slice(out.Chapters, func(i, j int) bool {
		a, b := out.Chapters[i].ChapterNumber, out.Chapters[j].ChapterNumber
		if (a == unknownChapter) != (b == unknownChapter) {
			return b == unknownChapter
		}
		return a < b
	})
	if out.Edges == nil {
		out.Edges = []Edge{}
	}
	return out
}

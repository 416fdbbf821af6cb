package chunker

import (
	"github.com/dgallion1/docgraph/internal/classify"
	"github.com/dgallion1/docgraph/internal/doctree"
)

// Finalize normalizes heading paths, assigns content-hash segment ids and
// links each unit to its neighbours in emission order.
func Finalize(units []doctree.Unit) []doctree.Unit {
	for i := range units {
		u := &units[i]
		if hp := doctree.NormalizeHeadingPath(u.HeadingPath); hp != "" {
			u.HeadingPath = hp
		}
		u.SegmentID = doctree.StableID(u.EffectiveType(), u.HeadingPath, u.PageSpan, u.Content)
		if u.References == nil {
			u.References = []doctree.Reference{}
		}
	}
	for i := range units {
		units[i].PrevSegmentID, units[i].NextSegmentID = nil, nil
		if i > 0 {
			prev := units[i-1].SegmentID
			units[i].PrevSegmentID = &prev
		}
		if i < len(units)-1 {
			next := units[i+1].SegmentID
			units[i].NextSegmentID = &next
		}
	}
	return units
}

// MarkNumberedLists relabels plain text and plain heading units that open
// with a list or procedure marker. The unit type is left alone. Run it
// before Finalize so ids reflect the final segment type.
func MarkNumberedLists(units []doctree.Unit) {
	for i := range units {
		u := &units[i]
		switch u.EffectiveType() {
		case classify.Text, doctree.UnitHeading, doctree.UnitHeading + "_" + classify.Text:
		default:
			continue
		}
		if kind := classify.ListKind(u.Content); kind != "" {
			u.SegmentType = kind
		}
	}
}

// AnnotateTraceability stamps provenance onto every unit: the book id, the
// source PDF uri (nil when unknown) and the chapter number and title
// derived from the heading path. Existing chapter fields win. Heading
// paths are expected already normalized by Finalize.
func AnnotateTraceability(units []doctree.Unit, docID, docURI string) {
	var uri *string
	if docURI != "" {
		uri = &docURI
	}
	for i := range units {
		u := &units[i]
		u.BookID = docID
		u.DocURI = uri

		num, title := doctree.ChapterFromHeadingPath(u.HeadingPath)
		if u.ChapterNumber == "" || u.ChapterNumber == doctree.UnknownChapter {
			u.ChapterNumber = num
		}
		if u.ChapterMain == "" || u.ChapterMain == doctree.UnknownChapter {
			u.ChapterMain = num
		}
		if u.ChapterTitle == "" {
			switch {
			case title != "":
				u.ChapterTitle = title
			case u.HeadingPath != "":
				u.ChapterTitle = doctree.TaxonomyPath(u.HeadingPath)[0]
			}
		}
	}
}

// AnnotateQAHints records the QA zone, candidate role and leading question
// number of each non-heading, non-visual unit for the QA graph builder.
func AnnotateQAHints(units []doctree.Unit) {
	for i := range units {
		u := &units[i]
		switch u.Type {
		case doctree.UnitHeading, doctree.UnitTable, doctree.UnitImage, doctree.UnitFormula:
			continue
		}
		st := u.EffectiveType()
		u.QAZoneType = classify.DetectQAZone(u.HeadingPath, st)
		if role := classify.CandidateRole(st); role != classify.RoleNone {
			u.CandidateRole = role
		}
		u.Numbering = classify.ExtractNumbering(u.Content)
	}
}

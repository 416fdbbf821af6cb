package chunker

import (
	"github.com/dgallion1/docgraph/internal/classify"
	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/refs"
)

// BuildElements emits one heading marker per section followed by one unit
// per block, 1:1, depth-first.
func BuildElements(doc *doctree.DocumentTree) []doctree.Unit {
	var out []doctree.Unit
	doc.Walk(func(_ int, n *doctree.SectionNode) {
		hp := n.Path
		if hp == "" {
			hp = n.Title
		}
		tax := doctree.TaxonomyPath(hp)

		out = append(out, doctree.Unit{
			HeadingPath:  hp,
			Content:      n.Title,
			Type:         doctree.UnitHeading,
			SegmentType:  doctree.UnitHeading,
			PageRange:    []int{},
			PageSpan:     []int{},
			TaxonomyPath: tax,
			Confidence:   1.0,
			References:   []doctree.Reference{},
		})

		listCtx := classify.IsListContext(hp)
		for _, b := range n.Blocks {
			segType := string(b.Type)
			if b.Type == doctree.BlockText {
				ctx := listCtx && classify.ListKind(b.Text) != ""
				segType = classify.DetectTextObject(b.Text, hp, ctx)
			}
			out = append(out, doctree.Unit{
				HeadingPath:  hp,
				Content:      b.Text,
				Type:         string(b.Type),
				SegmentType:  segType,
				PageRange:    []int{b.PageIdx},
				PageSpan:     []int{b.PageIdx, b.PageIdx},
				BBox:         b.BBox.Slice(),
				TaxonomyPath: tax,
				Confidence:   1.0,
				ImagePaths:   imagePaths(b),
				TableHTML:    b.Meta.TableHTML,
				References:   refs.Extract(b.Text),
				RawType:      b.Meta.RawType,
			})
		}
	})
	return out
}
